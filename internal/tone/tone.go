// Package tone implements the Tone Codec: synthesizing a sampled sinusoid
// for playback and classifying a captured PCM chunk as one of the three
// wire symbols (or none).
package tone

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"

	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
)

// Amplitude is the peak amplitude of a synthesized tone, V=1.0 per spec.
const Amplitude = 1.0

// Synthesize returns a sampled sinusoid of the given frequency and
// duration at the protocol sample rate, as float32 playback PCM.
func Synthesize(freqHz float64, duration float64) []float32 {
	n := int(math.Round(float64(protocol.SampleRate) * duration))
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(protocol.SampleRate)
		out[i] = float32(Amplitude * math.Sin(2*math.Pi*freqHz*t))
	}
	return out
}

// SynthesizeSymbol synthesizes one bit duration of the tone for a data or
// delimiter symbol. Panics on SymNone, which is never transmitted.
func SynthesizeSymbol(sym protocol.Symbol) []float32 {
	return Synthesize(protocol.FrequencyFor(sym), protocol.BitDuration.Seconds())
}

// Classify takes a captured int16 PCM chunk of exactly protocol.ChunkSize
// samples and returns the dominant tone's classification. It computes the
// discrete Fourier transform, finds the index of maximum magnitude over
// the first half of the spectrum (ties go to the lowest index), maps that
// index to a frequency, and buckets it against the three known tones
// within protocol.Tolerance. A buffer of the wrong length is a programmer
// error, not a runtime condition to recover from.
func Classify(samples []int16) protocol.Symbol {
	if len(samples) != protocol.ChunkSize {
		panic(fmt.Sprintf("tone: Classify expects %d samples, got %d", protocol.ChunkSize, len(samples)))
	}

	pcm := make([]float64, len(samples))
	for i, s := range samples {
		pcm[i] = float64(s)
	}

	spectrum := fft.FFTReal(pcm)
	half := len(spectrum) / 2

	bestIdx := 0
	bestMag := -1.0
	for i := 0; i < half; i++ {
		mag := math.Hypot(real(spectrum[i]), imag(spectrum[i]))
		if mag > bestMag {
			bestMag = mag
			bestIdx = i
		}
	}

	freq := float64(bestIdx) * float64(protocol.SampleRate) / float64(len(samples))

	switch {
	case math.Abs(freq-protocol.FreqZero) < protocol.Tolerance:
		return protocol.SymZero
	case math.Abs(freq-protocol.FreqOne) < protocol.Tolerance:
		return protocol.SymOne
	case math.Abs(freq-protocol.FreqDelimiter) < protocol.Tolerance:
		return protocol.SymDelimiter
	default:
		return protocol.SymNone
	}
}
