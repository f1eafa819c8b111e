package capture

import "context"

// Status is the uniform capture state surfaced to the presentation layer by
// both tiers.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusRecording    Status = "recording"
	StatusTranscribing Status = "transcribing"
	StatusError        Status = "error"
	StatusReady        Status = "readyToSubmit"
)

// Events carries the coordinator's callbacks into the session/UI.
type Events struct {
	// OnPartial delivers uncommitted interim text (live tier only).
	OnPartial func(text string)
	// OnFinal delivers committed utterance text to append to the input buffer.
	OnFinal func(text string)
	// OnStatus reports every status transition.
	OnStatus func(s Status)
	// OnNotice surfaces user-visible capture notices (degradation, retryable errors).
	OnNotice func(msg string)
}

// Tier is the common contract of both capture strategies. Stop must release
// the underlying input resource deterministically in every case.
type Tier interface {
	Start(ctx context.Context) error
	Feed(pcm []byte)
	Stop(ctx context.Context) error
}

// Transcriber converts a complete audio payload into text (tier B backend).
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte, language string) (string, error)
}

// Archiver stores the assembled recording for later reference. Optional.
type Archiver interface {
	Archive(key string, contentType string, data []byte) error
}
