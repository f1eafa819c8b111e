package audio

import (
	"encoding/binary"
	"math"
)

// voiceRMS is the threshold above which a PCM buffer is considered to carry
// voice energy. Tuned conservatively for 16-bit mono input.
const voiceRMS = 250.0

// HasVoice reports whether the 16-bit little-endian mono PCM buffer contains
// voice energy above the threshold. Short buffers (<10ms at 16kHz) report false.
func HasVoice(pcm []byte) bool {
	return RMS(pcm) >= voiceRMS
}

// RMS computes the root-mean-square energy of a 16-bit little-endian mono
// PCM buffer, scanning sparsely for large chunks.
func RMS(pcm []byte) float64 {
	const minSamples = 160 // 10ms at 16kHz
	if len(pcm) < minSamples*2 {
		return 0
	}
	step := 2
	if len(pcm) > 3200 {
		step = 4
	}
	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(pcm); i += 2 * step {
		v := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sumSquares += float64(v) * float64(v)
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sumSquares / float64(count))
}
