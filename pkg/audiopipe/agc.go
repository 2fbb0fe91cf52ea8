// Package audiopipe implements the fixed-point audio DSP chain: automatic
// gain control, the 8kHz->48kHz polyphase upsampler, and pair-averaging
// 16kHz->8kHz downsampling, plus the Off/Listen/Talk audio engine that owns
// the audio device. Ported from original_source/app/src/agc.rs and dsp.rs
// into Go's idiomatic integer-math style, preserving every fixed-point
// constant and algorithm exactly.
package audiopipe

// AGC is an automatic gain control with attack/release smoothing and a
// soft-knee limiter, operating entirely in Q12 fixed point, per spec §4.5.
type AGC struct {
	gainQ12 int32

	targetRMS    int32
	noiseGateRMS int32
	maxGainQ12   int32
	minGainQ12   int32

	attack  int32
	release int32

	limiterThresh int16
}

const (
	agcStartGain = 3 << 12  // 3.0x
	agcMaxGain   = 32 << 12 // 32.0x
	agcMinGain   = 2048     // 0.5x
)

// NewAGC constructs an AGC with the original device's tuned defaults.
func NewAGC() *AGC {
	return &AGC{
		gainQ12:       agcStartGain,
		targetRMS:     16000,
		noiseGateRMS:  150,
		maxGainQ12:    agcMaxGain,
		minGainQ12:    agcMinGain,
		attack:        96,
		release:       16,
		limiterThresh: 28500,
	}
}

func (a *AGC) SetTargetRMS(target int32)    { a.targetRMS = target }
func (a *AGC) SetNoiseGateRMS(gate int32)   { a.noiseGateRMS = gate }
func (a *AGC) SetMaxGain(maxGainQ12 int32)  { a.maxGainQ12 = maxGainQ12 }
func (a *AGC) SetAttackRelease(attack, release uint8) {
	a.attack = int32(attack)
	a.release = int32(release)
}

// ProcessFrame applies gain and limiting to frame in place, returning the
// applied gain (Q12) and measured RMS for telemetry.
func (a *AGC) ProcessFrame(frame []int16) (gainQ12 int32, rms int32) {
	rms = frameRMS(frame)

	rms64 := int64(rms)
	var desiredGainQ12 int32
	if rms64 > 0 {
		desiredGainQ12 = int32((int64(a.targetRMS) << 12) / rms64)
	} else {
		desiredGainQ12 = a.maxGainQ12
	}

	desiredGainQ12 = clampI32(desiredGainQ12, a.minGainQ12, a.maxGainQ12)

	if rms < a.noiseGateRMS && desiredGainQ12 > a.gainQ12 {
		desiredGainQ12 = a.gainQ12
	}

	alpha := a.release
	if desiredGainQ12 < a.gainQ12 {
		alpha = a.attack
	}

	delta := desiredGainQ12 - a.gainQ12
	a.gainQ12 += (delta * alpha) >> 8

	applyGainWithLimiter(frame, a.gainQ12, a.limiterThresh)

	return a.gainQ12, rms
}

func frameRMS(frame []int16) int32 {
	var sum int64
	for _, s := range frame {
		x := int64(s)
		sum += x * x
	}
	mean := uint32(sum / int64(len(frame)))
	return int32(isqrtU32(mean))
}

func applyGainWithLimiter(frame []int16, gainQ12 int32, thresh int16) {
	threshI32 := int32(thresh)
	negThreshI32 := -threshI32

	for i, s := range frame {
		x := int32(s)
		y := (x * gainQ12) >> 12

		if y > threshI32 {
			excess := y - threshI32
			y = threshI32 + (excess >> 2)
		} else if y < negThreshI32 {
			excess := y - negThreshI32
			y = negThreshI32 + (excess >> 2)
		}

		frame[i] = int16(clampI32(y, -32768, 32767))
	}
}

func clampI32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// isqrtU32 computes the integer square root via the classic binary digit
// method, avoiding a float sqrt in the fixed-point pipeline.
func isqrtU32(n uint32) uint32 {
	var x uint32
	var bit uint32 = 1 << 30
	for bit > n {
		bit >>= 2
	}
	for bit != 0 {
		if n >= x+bit {
			n -= x + bit
			x = (x >> 1) + bit
		} else {
			x >>= 1
		}
		bit >>= 2
	}
	return x
}
