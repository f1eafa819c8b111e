package audio

import (
	"fmt"

	"github.com/hraban/opus"
)

// OpusDecoder decodes mono Opus frames into 16-bit little-endian PCM for
// clients that capture compressed audio instead of raw PCM.
type OpusDecoder struct {
	dec        *opus.Decoder
	sampleRate int
	pcmBuf     []int16
}

func NewOpusDecoder(sampleRate int) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("opus: create decoder: %w", err)
	}
	// 120ms is the longest legal opus frame.
	return &OpusDecoder{dec: dec, sampleRate: sampleRate, pcmBuf: make([]int16, sampleRate*120/1000)}, nil
}

// Decode decodes a single Opus frame and returns little-endian PCM bytes.
func (d *OpusDecoder) Decode(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, nil
	}
	n, err := d.dec.Decode(frame, d.pcmBuf)
	if err != nil {
		return nil, fmt.Errorf("opus: decode: %w", err)
	}
	return PCM16ToBytes(d.pcmBuf[:n]), nil
}
