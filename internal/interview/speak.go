package interview

import (
	"context"
	"log"
	"sync"
	"time"
)

// speak converts the pending agent turn into audible playback synchronized
// with a progressive text reveal. Exactly one playback is active at a time:
// starting a new one cancels whatever was in flight. The reveal runs
// independently of audio arrival so the question is readable before, and
// without, any audio. Audio end, playback error and synthesis failure all
// funnel into one once-guarded finalize, so speech trouble can never strand
// the session in Asking.
func (s *Session) speak(text string, epoch uint64, force bool) {
	s.mu.Lock()
	if s.closed || epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	if !force && s.spokenOnce && s.lastSpoken == text {
		// Redundant trigger for the same turn, e.g. a re-render.
		s.mu.Unlock()
		return
	}
	if s.speakCancel != nil {
		s.speakCancel()
		s.speakCancel = nil
		s.sink.Reset()
	}
	concluding := s.stage == StageConcluding
	s.lastSpoken = text
	s.spokenOnce = true

	if text == "" {
		// Skip synthesis entirely and advance straight out of Asking.
		s.mu.Unlock()
		s.finalizeTurn(text, epoch, concluding)
		return
	}

	sctx, cancel := context.WithCancel(s.ctx)
	s.speakCancel = cancel
	s.speaking = true
	s.mu.Unlock()

	var once sync.Once
	finalize := func() {
		once.Do(func() { s.finalizeTurn(text, epoch, concluding) })
	}

	go s.reveal(sctx, text)

	if s.synth == nil {
		// Silent text-only session: the reveal is the whole playback.
		go func() {
			d := time.Duration(len([]rune(text))+1) * s.cfg.RevealInterval
			select {
			case <-sctx.Done():
			case <-time.After(d):
			}
			s.clearSpeaking()
			finalize()
		}()
		return
	}

	go func() {
		pcmCh, errCh := s.synth.StreamPCM48k(sctx, text)
		openPCM, openErr := true, true
		wrote := false
		for openPCM || openErr {
			select {
			case b, ok := <-pcmCh:
				if !ok {
					openPCM = false
					continue
				}
				if len(b) > 0 {
					wrote = true
					s.sink.WritePCM(b)
				}
			case e, ok := <-errCh:
				if !ok {
					openErr = false
					continue
				}
				if e != nil {
					log.Printf("interview %s: synthesis error: %v", s.ID, e)
					s.notifyNotice("Audio is unavailable for this question; please read it on screen.")
				}
			case <-sctx.Done():
				openPCM, openErr = false, false
			}
		}
		if wrote && sctx.Err() == nil {
			s.sink.FlushTail()
		}
		s.clearSpeaking()
		finalize()
	}()
}

// reveal emits the text character by character at a fixed interval.
func (s *Session) reveal(ctx context.Context, text string) {
	runes := []rune(text)
	ticker := time.NewTicker(s.cfg.RevealInterval)
	defer ticker.Stop()
	for i := 1; i <= len(runes); i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.notifyReveal(string(runes[:i]))
	}
}

// finalizeTurn completes the reveal and transitions out of Asking (to
// Listening) or, for the closing remark, schedules the settle into Finished.
// A replay finalizing during Listening changes nothing.
func (s *Session) finalizeTurn(text string, epoch uint64, concluding bool) {
	s.notifyReveal(text)

	s.mu.Lock()
	if s.closed || epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	switch s.stage {
	case StageAsking:
		s.stage = StageListening
		s.mu.Unlock()
		s.notifyStage(StageListening)
	case StageConcluding:
		s.mu.Unlock()
		if concluding {
			time.AfterFunc(s.cfg.SettleDelay, s.finish)
		}
	default:
		s.mu.Unlock()
	}
}

func (s *Session) clearSpeaking() {
	s.mu.Lock()
	s.speaking = false
	s.mu.Unlock()
}
