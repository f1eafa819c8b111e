package capture

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Config wires the coordinator's tier constructors. The constructors receive
// the coordinator-managed callbacks so tier events route through one place.
type Config struct {
	// Live builds the streaming tier; nil means recorder-only capture.
	Live func(onPartial, onFinal func(string), onFailure func(error)) Tier
	// Recorder builds the fallback tier. Required.
	Recorder func(onFinal func(string), onStatus func(Status)) Tier
}

// Coordinator holds a reference to the current capture implementation and
// swaps it from the live tier to the recorder tier on failure, instead of
// branching on capability checks at every call site.
type Coordinator struct {
	cfg Config
	ev  Events

	mu       sync.Mutex
	ctx      context.Context
	status   Status
	degraded bool
	active   bool
	current  Tier
}

func NewCoordinator(cfg Config, ev Events) *Coordinator {
	return &Coordinator{cfg: cfg, ev: ev, status: StatusIdle}
}

// Status reports the uniform capture status.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Busy reports whether a capture or transcription is in flight.
func (c *Coordinator) Busy() bool {
	s := c.Status()
	return s == StatusRecording || s == StatusTranscribing
}

// Degraded reports whether capture has fallen back to the recorder tier.
func (c *Coordinator) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// Start begins capturing with the preferred tier. A failing live start falls
// back to the recorder automatically.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil
	}
	c.active = true
	c.ctx = ctx
	tier := c.buildTierLocked()
	c.current = tier
	c.mu.Unlock()

	c.setStatus(StatusRecording)
	if err := tier.Start(ctx); err != nil {
		c.fallback(ctx, err)
	}
	return nil
}

func (c *Coordinator) buildTierLocked() Tier {
	if c.cfg.Live != nil && !c.degraded {
		return c.cfg.Live(c.partial, c.final, c.liveFailed)
	}
	return c.cfg.Recorder(c.final, c.setStatus)
}

// Feed routes audio to whichever tier is current.
func (c *Coordinator) Feed(pcm []byte) {
	c.mu.Lock()
	tier := c.current
	active := c.active
	c.mu.Unlock()
	if active && tier != nil {
		tier.Feed(pcm)
	}
}

// Stop ends the capture. Recorder-tier transcription errors are surfaced as
// retryable: status goes to error, the user is notified, and the error is
// returned; the conversation does not advance until retried or typed.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	c.active = false
	tier := c.current
	c.current = nil
	c.mu.Unlock()

	if tier == nil {
		c.setStatus(StatusIdle)
		return nil
	}
	if err := tier.Stop(ctx); err != nil {
		c.setStatus(StatusError)
		c.notice(fmt.Sprintf("Could not transcribe your answer: %v. Please retry or type instead.", err))
		return err
	}
	c.setStatus(StatusReady)
	return nil
}

// Reset returns an idle or settled coordinator to idle between turns.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	wasActive := c.active
	tier := c.current
	c.active = false
	c.current = nil
	ctx := c.ctx
	c.mu.Unlock()
	if wasActive && tier != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		if err := tier.Stop(ctx); err != nil {
			log.Printf("capture: reset stop: %v", err)
		}
	}
	c.setStatus(StatusIdle)
}

// liveFailed handles an asynchronous live-tier breakdown mid-capture.
func (c *Coordinator) liveFailed(err error) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	c.mu.Unlock()
	c.fallback(ctx, err)
}

// fallback tears down the live tier and continues capturing with the
// recorder, flagging the degradation to the user.
func (c *Coordinator) fallback(ctx context.Context, cause error) {
	log.Printf("capture: live tier failed, falling back to recorder: %v", cause)
	c.setStatus(StatusError)
	c.notice("Live transcription unavailable - switched to recorded capture.")

	c.mu.Lock()
	c.degraded = true
	if !c.active {
		c.mu.Unlock()
		return
	}
	rec := c.cfg.Recorder(c.final, c.setStatus)
	c.current = rec
	c.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	if err := rec.Start(ctx); err != nil {
		c.setStatus(StatusError)
		c.notice(fmt.Sprintf("Voice capture unavailable: %v", err))
		return
	}
	c.setStatus(StatusRecording)
}

func (c *Coordinator) partial(text string) {
	if c.ev.OnPartial != nil {
		c.ev.OnPartial(text)
	}
}

func (c *Coordinator) final(text string) {
	if c.ev.OnFinal != nil {
		c.ev.OnFinal(text)
	}
}

func (c *Coordinator) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
	if c.ev.OnStatus != nil {
		c.ev.OnStatus(s)
	}
}

func (c *Coordinator) notice(msg string) {
	if c.ev.OnNotice != nil {
		c.ev.OnNotice(msg)
	}
}
