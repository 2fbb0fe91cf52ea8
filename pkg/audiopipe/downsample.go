package audiopipe

// DownsamplePairAverage halves the sample rate by averaging each
// consecutive pair of input samples, per spec §9's preserved design
// choice: the source uses pair-averaging rather than a proper anti-alias
// filter for 16kHz mic capture -> 8kHz codec input, and upgrading this is
// a quality choice, not a correctness one.
func DownsamplePairAverage(in16k []int16) []int16 {
	out := make([]int16, len(in16k)/2)
	for i := range out {
		a := int32(in16k[2*i])
		b := int32(in16k[2*i+1])
		out[i] = int16((a + b) / 2)
	}
	return out
}
