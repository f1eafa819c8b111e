package capture

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cmehul96/Foresight/internal/audio"
)

// RecorderTier is the fallback capture strategy: buffer raw PCM chunks while
// recording, and on stop assemble a single WAV payload, optionally archive
// it, and hand it to the batch transcriber.
type RecorderTier struct {
	transcriber Transcriber
	archiver    Archiver
	language    string
	sampleRate  int
	onFinal     func(string)
	onStatus    func(Status)

	mu        sync.Mutex
	recording bool
	chunks    [][]byte
}

func NewRecorderTier(t Transcriber, archiver Archiver, language string, onFinal func(string), onStatus func(Status)) *RecorderTier {
	return &RecorderTier{
		transcriber: t,
		archiver:    archiver,
		language:    language,
		sampleRate:  16000,
		onFinal:     onFinal,
		onStatus:    onStatus,
	}
}

// Start begins buffering. The tier has no remote session to open, so it
// cannot fail to start.
func (r *RecorderTier) Start(ctx context.Context) error {
	r.mu.Lock()
	r.recording = true
	r.chunks = nil
	r.mu.Unlock()
	return nil
}

// Feed appends one PCM chunk to the in-memory recording.
func (r *RecorderTier) Feed(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	r.chunks = append(r.chunks, cp)
}

// Stop assembles the buffered audio and transcribes it. The recording buffer
// is released whatever happens; a stop with no captured data is an error and
// never reaches the transcriber.
func (r *RecorderTier) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil
	}
	r.recording = false
	chunks := r.chunks
	r.chunks = nil
	r.mu.Unlock()

	var total int
	for _, c := range chunks {
		total += len(c)
	}
	if total == 0 {
		return fmt.Errorf("recorder: no audio captured")
	}
	pcm := make([]byte, 0, total)
	for _, c := range chunks {
		pcm = append(pcm, c...)
	}
	if !audio.HasVoice(pcm) {
		// Not worth a transcription round trip.
		return fmt.Errorf("recorder: no speech detected")
	}

	wav, err := audio.EncodeWAV(pcm, r.sampleRate)
	if err != nil {
		return fmt.Errorf("recorder: assemble: %w", err)
	}

	if r.archiver != nil {
		key := fmt.Sprintf("responses/%d.wav", time.Now().UnixNano())
		if aerr := r.archiver.Archive(key, "audio/wav", wav); aerr != nil {
			log.Printf("recorder: archive failed: %v", aerr)
		}
	}

	if r.onStatus != nil {
		r.onStatus(StatusTranscribing)
	}
	text, err := r.transcriber.Transcribe(ctx, wav, r.language)
	if err != nil {
		return fmt.Errorf("recorder: transcribe: %w", err)
	}
	if r.onFinal != nil && text != "" {
		r.onFinal(text)
	}
	return nil
}
