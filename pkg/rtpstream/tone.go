package rtpstream

import "math"

const (
	toneAmplitude = 8000.0
	toneFrequency = 447.0
	toneSampleHz  = 8000.0
)

// ToneGenerator produces a 447Hz sine fallback tone, used when the audio
// task has not supplied a captured frame in time. Phase is carried on the
// generator instance rather than a package-level global, per spec §9's
// design note against global-state test-tone generators.
type ToneGenerator struct {
	phase float64
}

// NextFrame fills one 160-sample 8kHz PCM frame with the next slice of the
// continuous sine wave.
func (g *ToneGenerator) NextFrame() [FrameSamples]int16 {
	var pcm [FrameSamples]int16
	step := 2 * math.Pi * toneFrequency / toneSampleHz
	for i := range pcm {
		pcm[i] = int16(math.Sin(g.phase) * toneAmplitude)
		g.phase += step
		if g.phase > 2*math.Pi {
			g.phase -= 2 * math.Pi
		}
	}
	return pcm
}
