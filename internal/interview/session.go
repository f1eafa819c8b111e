package interview

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cmehul96/Foresight/internal/llm"
	"github.com/cmehul96/Foresight/internal/plan"
	"github.com/cmehul96/Foresight/internal/transcript"
)

// Session is the interview stage machine. It sequences question generation,
// speech output, response capture and transcript assembly for one sitting,
// and owns every mutation of the transcript.
type Session struct {
	ID  string
	cfg Config
	cb  Callbacks

	gen     llm.Generator
	synth   Synthesizer
	sink    AudioSink
	capture Capture

	plan  plan.Plan
	store *transcript.Store

	mu          sync.Mutex
	stage       Stage
	processing  bool
	active      *llm.Candidate
	input       string
	lastSpoken  string
	spokenOnce  bool
	speaking    bool
	speakCancel context.CancelFunc
	// epoch identifies the current agent turn; completions carrying a stale
	// epoch are no-ops.
	epoch      uint64
	lastSubmit time.Time
	started    bool
	completed  bool
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a session over an immutable research plan. The capture
// coordinator and synthesizer may be nil for text-only interviews.
func New(cfg Config, p plan.Plan, gen llm.Generator, synth Synthesizer, sink AudioSink, cap Capture, cb Callbacks) *Session {
	cfg.setDefaults()
	if sink == nil {
		sink = nopSink{}
	}
	return &Session{
		ID:      uuid.NewString(),
		cfg:     cfg,
		cb:      cb,
		gen:     gen,
		synth:   synth,
		sink:    sink,
		capture: cap,
		plan:    p,
		store:   transcript.NewStore(),
		stage:   StageInitial,
	}
}

// Start triggers the first question fetch. Only the first call, concurrent
// or not, installs the session context; the rest are no-ops.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stage != StageInitial || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.requestNext()
}

// Stage reports the current stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Transcript returns a snapshot of the transcript so far.
func (s *Session) Transcript() []transcript.Turn { return s.store.Snapshot() }

// Input returns the committed participant input buffer.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// SubmitResponse appends exactly one PARTICIPANT turn and triggers the next
// question against a transcript snapshot that already contains it. Ineligible
// calls are rejected without touching the transcript.
func (s *Session) SubmitResponse(text string) error {
	s.mu.Lock()
	if s.stage == StageFinished {
		s.mu.Unlock()
		return ErrFinished
	}
	if s.closed || s.stage != StageListening {
		s.mu.Unlock()
		log.Printf("interview %s: submit rejected: wrong stage", s.ID)
		return ErrNotListening
	}
	if s.capture != nil && s.capture.Busy() {
		s.mu.Unlock()
		log.Printf("interview %s: submit rejected: capture busy", s.ID)
		return ErrCaptureBusy
	}
	if s.processing {
		s.mu.Unlock()
		return ErrProcessing
	}
	now := time.Now()
	if !s.lastSubmit.IsZero() && now.Sub(s.lastSubmit) < s.cfg.DebounceWindow {
		s.mu.Unlock()
		return ErrDebounced
	}
	answer := strings.TrimSpace(text)
	theme := ""
	if s.active != nil {
		theme = s.active.Theme
	}
	if answer == "" {
		// An empty submission is only an implicit "no further comment" when
		// the pending turn signals conclusion; it is recorded, not dropped.
		if theme != ThemeConclusion {
			s.mu.Unlock()
			return ErrEmptyAnswer
		}
		answer = placeholderAnswer
	}
	s.lastSubmit = now
	s.store.Append(transcript.Turn{Speaker: transcript.Participant, Theme: theme, Text: answer})
	s.input = ""
	s.mu.Unlock()

	s.notifyInput("")
	s.requestNext()
	return nil
}

// SubmitBuffered submits whatever the input buffer currently holds.
func (s *Session) SubmitBuffered() error { return s.SubmitResponse(s.Input()) }

// CompleteEarly ends the session immediately from Listening or Concluding,
// flushing any unsaved input as a final PARTICIPANT turn, and hands off the
// transcript as-is.
func (s *Session) CompleteEarly() error {
	s.mu.Lock()
	if s.closed || (s.stage != StageListening && s.stage != StageConcluding) {
		s.mu.Unlock()
		return ErrNotListening
	}
	pending := strings.TrimSpace(s.input)
	if pending != "" {
		theme := ThemeConclusion
		if s.active != nil && s.active.Theme != "" {
			theme = s.active.Theme
		}
		s.store.Append(transcript.Turn{Speaker: transcript.Participant, Theme: theme, Text: pending})
		s.input = ""
	}
	s.mu.Unlock()
	if pending != "" {
		s.notifyInput("")
	}
	s.finish()
	return nil
}

// Replay re-speaks the pending question. Side-effect free: no stage change,
// no transcript append. Denied while speaking, capturing or processing.
func (s *Session) Replay() error {
	s.mu.Lock()
	if s.closed || s.stage != StageListening || s.processing || s.speaking ||
		(s.capture != nil && s.capture.Busy()) || s.active == nil {
		s.mu.Unlock()
		return ErrReplayDenied
	}
	text := s.active.Question
	epoch := s.epoch
	s.mu.Unlock()
	s.speak(text, epoch, true)
	return nil
}

// StartCapture begins voice capture; legal only while Listening.
func (s *Session) StartCapture() error {
	s.mu.Lock()
	if s.closed || s.stage != StageListening || s.processing || s.capture == nil {
		s.mu.Unlock()
		return ErrNotListening
	}
	ctx := s.ctx
	s.mu.Unlock()
	return s.capture.Start(ctx)
}

// StopCapture ends voice capture and lets the coordinator settle the result
// into the input buffer.
func (s *Session) StopCapture(ctx context.Context) error {
	if s.capture == nil {
		return nil
	}
	return s.capture.Stop(ctx)
}

// SetInput replaces the input buffer (typed entry).
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.input = text
	s.mu.Unlock()
	s.notifyInput(text)
}

// AppendFinalInput concatenates a committed capture utterance to the buffer.
func (s *Session) AppendFinalInput(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.input != "" {
		s.input += " "
	}
	s.input += text
	buf := s.input
	s.mu.Unlock()
	s.notifyInput(buf)
}

// PreviewInput shows buffer plus uncommitted interim text, without mutating
// the buffer.
func (s *Session) PreviewInput(partial string) {
	s.mu.Lock()
	buf := s.input
	s.mu.Unlock()
	partial = strings.TrimSpace(partial)
	if partial != "" {
		if buf != "" {
			buf += " "
		}
		buf += partial
	}
	s.notifyInput(buf)
}

// Close abandons the session: pending operations are cancelled and nothing is
// handed off.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.epoch++
	if s.speakCancel != nil {
		s.speakCancel()
		s.speakCancel = nil
	}
	cancel := s.cancel
	s.mu.Unlock()

	if s.capture != nil {
		s.capture.Reset()
	}
	s.sink.Reset()
	if cancel != nil {
		cancel()
	}
}

// requestNext starts the next-question protocol. At most one request is in
// flight; a re-entrant attempt is a rejected no-op, never queued.
func (s *Session) requestNext() {
	s.mu.Lock()
	if s.closed || s.processing || s.stage == StageConcluding || s.stage == StageFinished {
		s.mu.Unlock()
		return
	}
	s.processing = true
	s.stage = StageProcessing
	snapshot := s.store.Snapshot()
	epoch := s.epoch
	s.mu.Unlock()

	s.notifyStage(StageProcessing)
	go s.fetchTurn(snapshot, epoch)
}

func (s *Session) fetchTurn(snapshot []transcript.Turn, epoch uint64) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.GenerationTimeout)
	cand, err := s.gen.NextTurn(ctx, s.plan, snapshot, s.cfg.Language)
	cancel()

	s.mu.Lock()
	if s.closed || epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	if err != nil {
		// Terminal fallback: a failed generation ends the interview
		// gracefully, it is never retried.
		log.Printf("interview %s: generation failed, concluding: %v", s.ID, err)
		cand = llm.Candidate{Question: emergencyRemark, Theme: ThemeConclusion, EndOfInterview: true}
	} else {
		cand = s.repairLocked(cand)
	}

	s.store.Append(transcript.Turn{Speaker: transcript.Agent, Theme: cand.Theme, Text: cand.Question, Probing: cand.Probing})
	s.active = &cand
	s.processing = false
	s.spokenOnce = false
	s.epoch++
	speakEpoch := s.epoch
	next := StageAsking
	if cand.EndOfInterview {
		next = StageConcluding
	}
	s.stage = next
	s.mu.Unlock()

	s.notifyStage(next)
	s.speak(cand.Question, speakEpoch, false)
}

// repairLocked validates and patches the service's proposal so the session
// never speaks an empty string and always concludes cleanly once the plan is
// exhausted. Anomalies are repaired invisibly, never surfaced.
func (s *Session) repairLocked(cand llm.Candidate) llm.Candidate {
	next := s.plan.NextUnasked(s.store)
	if next == nil {
		cand.EndOfInterview = true
		cand.Theme = ThemeConclusion
		cand.Probing = false
		if cand.Question == "" || isGenericClosing(cand.Question) {
			cand.Question = closingRemark
		}
		return cand
	}
	if cand.EndOfInterview && cand.Question == "" {
		// Demote a text-less conclusion back to the next planned question.
		return llm.Candidate{Question: next.Text, Theme: next.Theme}
	}
	if cand.Question == "" {
		cand.Question = fillerQuestion
		if cand.Theme == "" {
			cand.Theme = next.Theme
		}
	}
	return cand
}

func isGenericClosing(text string) bool {
	t := strings.Trim(strings.ToLower(strings.TrimSpace(text)), ".!")
	switch t {
	case "thanks", "thank you", "goodbye", "bye", "done", "the end":
		return true
	}
	return false
}

// finish moves to Finished and hands the transcript off exactly once. An
// empty transcript is an anomaly: logged, not handed off.
func (s *Session) finish() {
	s.mu.Lock()
	if s.closed || s.stage == StageFinished {
		s.mu.Unlock()
		return
	}
	if s.speakCancel != nil {
		s.speakCancel()
		s.speakCancel = nil
	}
	s.stage = StageFinished
	already := s.completed
	s.completed = true
	turns := s.store.Snapshot()
	s.mu.Unlock()

	if s.capture != nil {
		s.capture.Reset()
	}
	s.notifyStage(StageFinished)
	if already {
		return
	}
	if len(turns) == 0 {
		log.Printf("interview %s: finished with empty transcript, no hand-off", s.ID)
		return
	}
	if s.cb.OnComplete != nil {
		s.cb.OnComplete(turns)
	}
}

func (s *Session) notifyStage(st Stage) {
	if s.cb.OnStage != nil {
		s.cb.OnStage(st)
	}
}

func (s *Session) notifyInput(text string) {
	if s.cb.OnInput != nil {
		s.cb.OnInput(text)
	}
}

func (s *Session) notifyReveal(text string) {
	if s.cb.OnReveal != nil {
		s.cb.OnReveal(text)
	}
}

func (s *Session) notifyNotice(msg string) {
	if s.cb.OnNotice != nil {
		s.cb.OnNotice(msg)
	}
}

type nopSink struct{}

func (nopSink) WritePCM(_ []byte) {}
func (nopSink) FlushTail()        {}
func (nopSink) Reset()            {}
