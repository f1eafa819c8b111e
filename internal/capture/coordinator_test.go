package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeTier struct {
	mu       sync.Mutex
	startErr error
	stopErr  error
	started  bool
	stopped  bool
	fed      [][]byte
	onFinal  func(string)
	finalOn  string // when set, Stop emits this final text
}

func (f *fakeTier) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeTier) Feed(pcm []byte) {
	f.mu.Lock()
	f.fed = append(f.fed, pcm)
	f.mu.Unlock()
}

func (f *fakeTier) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.stopErr != nil {
		return f.stopErr
	}
	if f.finalOn != "" && f.onFinal != nil {
		f.onFinal(f.finalOn)
	}
	return nil
}

type recordedEvents struct {
	mu       sync.Mutex
	statuses []Status
	finals   []string
	notices  []string
}

func (r *recordedEvents) events() Events {
	return Events{
		OnFinal:  func(s string) { r.mu.Lock(); r.finals = append(r.finals, s); r.mu.Unlock() },
		OnStatus: func(s Status) { r.mu.Lock(); r.statuses = append(r.statuses, s); r.mu.Unlock() },
		OnNotice: func(s string) { r.mu.Lock(); r.notices = append(r.notices, s); r.mu.Unlock() },
	}
}

func TestCoordinator_LiveStartFailureFallsBackToRecorder(t *testing.T) {
	rec := &recordedEvents{}
	var recorder *fakeTier
	cfg := Config{
		Live: func(onPartial, onFinal func(string), onFailure func(error)) Tier {
			return &fakeTier{startErr: errors.New("permission denied")}
		},
		Recorder: func(onFinal func(string), onStatus func(Status)) Tier {
			recorder = &fakeTier{onFinal: onFinal}
			return recorder
		},
	}
	c := NewCoordinator(cfg, rec.events())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if recorder == nil || !recorder.started {
		t.Fatalf("expected recorder tier to start automatically")
	}
	if !c.Degraded() {
		t.Fatalf("expected degraded capture")
	}
	// recording -> error -> recording
	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []Status{StatusRecording, StatusError, StatusRecording}
	if len(rec.statuses) != len(want) {
		t.Fatalf("statuses = %v", rec.statuses)
	}
	for i := range want {
		if rec.statuses[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", rec.statuses, want)
		}
	}
	if len(rec.notices) == 0 {
		t.Fatalf("expected a capture-degraded notice")
	}
}

func TestCoordinator_AsyncLiveFailureSwapsMidCapture(t *testing.T) {
	rec := &recordedEvents{}
	var failLive func(error)
	var recorder *fakeTier
	cfg := Config{
		Live: func(onPartial, onFinal func(string), onFailure func(error)) Tier {
			failLive = onFailure
			return &fakeTier{}
		},
		Recorder: func(onFinal func(string), onStatus func(Status)) Tier {
			recorder = &fakeTier{onFinal: onFinal}
			return recorder
		},
	}
	c := NewCoordinator(cfg, rec.events())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	failLive(errors.New("stream cut"))

	if recorder == nil || !recorder.started {
		t.Fatalf("expected recorder to take over")
	}
	c.Feed([]byte{1, 0})
	recorder.mu.Lock()
	fed := len(recorder.fed)
	recorder.mu.Unlock()
	if fed != 1 {
		t.Fatalf("expected audio routed to recorder, fed=%d", fed)
	}
}

func TestCoordinator_StopDeliversFinalAndReady(t *testing.T) {
	rec := &recordedEvents{}
	cfg := Config{
		Recorder: func(onFinal func(string), onStatus func(Status)) Tier {
			return &fakeTier{onFinal: onFinal, finalOn: "typed by voice"}
		},
	}
	c := NewCoordinator(cfg, rec.events())
	_ = c.Start(context.Background())
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if c.Status() != StatusReady {
		t.Fatalf("status = %v", c.Status())
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.finals) != 1 || rec.finals[0] != "typed by voice" {
		t.Fatalf("finals = %v", rec.finals)
	}
}

func TestCoordinator_StopErrorIsRetryable(t *testing.T) {
	rec := &recordedEvents{}
	cfg := Config{
		Recorder: func(onFinal func(string), onStatus func(Status)) Tier {
			return &fakeTier{stopErr: errors.New("transcription failed")}
		},
	}
	c := NewCoordinator(cfg, rec.events())
	_ = c.Start(context.Background())
	if err := c.Stop(context.Background()); err == nil {
		t.Fatalf("expected stop error")
	}
	if c.Status() != StatusError {
		t.Fatalf("status = %v", c.Status())
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.notices) == 0 {
		t.Fatalf("expected a retryable notice")
	}
}

func TestCoordinator_ResetReleasesTier(t *testing.T) {
	rec := &recordedEvents{}
	var recorder *fakeTier
	cfg := Config{
		Recorder: func(onFinal func(string), onStatus func(Status)) Tier {
			recorder = &fakeTier{}
			return recorder
		},
	}
	c := NewCoordinator(cfg, rec.events())
	_ = c.Start(context.Background())
	c.Reset()
	if !recorder.stopped {
		t.Fatalf("reset must stop the active tier")
	}
	if c.Status() != StatusIdle {
		t.Fatalf("status = %v", c.Status())
	}
}
