package audio

import "github.com/jscyril/golang_media_player/api"

// Interleave returns the batch's samples in interleaved order. Interleaved
// input is returned as is without copying.
func Interleave(s *api.AudioSamples) []float32 {
	if !s.Planar || s.Channels <= 1 {
		return s.Data
	}
	frames := s.SampleCount
	out := make([]float32, frames*s.Channels)
	for ch := 0; ch < s.Channels; ch++ {
		plane := s.Data[ch*frames : (ch+1)*frames]
		for i, v := range plane {
			out[i*s.Channels+ch] = v
		}
	}
	return out
}

// ResampleLinear converts interleaved samples from one rate to another by
// linear interpolation between neighbouring frames.
func ResampleLinear(in []float32, channels, fromRate, toRate int) []float32 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || channels <= 0 {
		return in
	}
	inFrames := len(in) / channels
	if inFrames == 0 {
		return nil
	}
	outFrames := int(int64(inFrames) * int64(toRate) / int64(fromRate))
	out := make([]float32, outFrames*channels)

	step := float64(fromRate) / float64(toRate)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		idx := int(pos)
		frac := float32(pos - float64(idx))
		next := idx + 1
		if next >= inFrames {
			next = inFrames - 1
		}
		for ch := 0; ch < channels; ch++ {
			a := in[idx*channels+ch]
			b := in[next*channels+ch]
			out[i*channels+ch] = a + (b-a)*frac
		}
	}
	return out
}
