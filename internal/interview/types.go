package interview

import (
	"context"
	"errors"
	"time"

	"github.com/cmehul96/Foresight/internal/capture"
	"github.com/cmehul96/Foresight/internal/transcript"
)

// Stage is the session's conversational state.
type Stage string

const (
	StageInitial    Stage = "initial"
	StageProcessing Stage = "processing"
	StageAsking     Stage = "asking"
	StageListening  Stage = "listening"
	StageConcluding Stage = "concluding"
	StageFinished   Stage = "finished"
)

// Synthesizer streams 48kHz PCM audio for the given text. An empty text must
// produce a closed stream without issuing any request.
type Synthesizer interface {
	StreamPCM48k(ctx context.Context, text string) (<-chan []byte, <-chan error)
}

// AudioSink consumes synthesized PCM and performs delivery. Implementations
// should buffer internally and pace playback.
type AudioSink interface {
	WritePCM(pcm []byte)
	FlushTail()
	// Reset drops any queued frames immediately.
	Reset()
}

// Capture is the session's view of the dual-tier capture coordinator.
type Capture interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Reset releases the input resource without transcribing.
	Reset()
	Busy() bool
	Status() capture.Status
}

// Callbacks are how the presentation layer observes the session. All state it
// sees flows through here; it never mutates the session directly.
type Callbacks struct {
	// OnStage reports every stage transition.
	OnStage func(Stage)
	// OnReveal delivers the progressively revealed question text.
	OnReveal func(text string)
	// OnInput reports the participant input buffer, including uncommitted
	// interim capture text.
	OnInput func(text string)
	// OnNotice surfaces non-fatal, user-visible conditions (synthesis or
	// capture degradation).
	OnNotice func(msg string)
	// OnComplete hands the finished transcript to the caller exactly once.
	// Never invoked for cancelled sessions or empty transcripts.
	OnComplete func(turns []transcript.Turn)
}

// Config tunes session timing. Zero values select the defaults.
type Config struct {
	Language string
	// DebounceWindow absorbs duplicate rapid submissions.
	DebounceWindow time.Duration
	// RevealInterval is the per-character delay of the progressive reveal.
	RevealInterval time.Duration
	// SettleDelay separates the closing remark's end from the finished state,
	// leaving room for audio cleanup.
	SettleDelay time.Duration
	// GenerationTimeout bounds the next-question call; expiry is treated as a
	// service failure.
	GenerationTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Language == "" {
		c.Language = "en"
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 300 * time.Millisecond
	}
	if c.RevealInterval <= 0 {
		c.RevealInterval = 30 * time.Millisecond
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 600 * time.Millisecond
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = 30 * time.Second
	}
}

// Rejected-operation sentinels. These mark caller-discipline violations: the
// session logs and ignores them, nothing is surfaced to the participant.
var (
	ErrNotListening = errors.New("interview: not accepting responses in this stage")
	ErrCaptureBusy  = errors.New("interview: capture in flight")
	ErrProcessing   = errors.New("interview: question generation in flight")
	ErrDebounced    = errors.New("interview: duplicate submission ignored")
	ErrEmptyAnswer  = errors.New("interview: empty answer outside conclusion")
	ErrReplayDenied = errors.New("interview: replay not available now")
	ErrFinished     = errors.New("interview: session is over")
)

const (
	// ThemeConclusion tags closing turns and placeholder answers.
	ThemeConclusion = "Conclusion"

	closingRemark = "That covers everything I wanted to ask. Thank you so much for sharing your thoughts today!"

	emergencyRemark = "I'm sorry, something went wrong on my end, so we'll have to wrap up here. Thank you so much for your time!"

	fillerQuestion = "Could you tell me a bit more about that?"

	// placeholderAnswer records an accepted empty submission at conclusion
	// so the turn is not silently dropped.
	placeholderAnswer = "(no further comment)"
)
