package audio

import (
	"encoding/binary"
	"math"
)

// decodeSamples converts interleaved little-endian PCM of the given width to
// int16 samples. Width 1 is unsigned 8-bit; width 4 is int32 unless float is set.
func decodeSamples(pcm []byte, width int, float bool) []int16 {
	n := len(pcm) / width
	out := make([]int16, n)
	for i := range n {
		b := pcm[i*width : (i+1)*width]
		switch width {
		case 1:
			out[i] = int16((int(b[0]) - 128) << 8)
		case 2:
			out[i] = int16(binary.LittleEndian.Uint16(b))
		case 3:
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
			out[i] = int16(v >> 8)
		case 4:
			if float {
				f := math.Float32frombits(binary.LittleEndian.Uint32(b))
				out[i] = clampInt16(int32(math.Round(float64(f) * 32767)))
			} else {
				out[i] = int16(int32(binary.LittleEndian.Uint32(b)) >> 16)
			}
		}
	}
	return out
}

// downmix averages interleaved channels into mono. Uses int32 accumulation to
// avoid overflow.
func downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]int16, frames)
	for i := range frames {
		var sum int32
		for c := range channels {
			sum += int32(samples[i*channels+c])
		}
		out[i] = clampInt16(sum / int32(channels))
	}
	return out
}

// resample converts mono samples from srcRate to dstRate by linear
// interpolation between neighbouring samples.
func resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) < 2 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]int16, dstLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstLen {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := samples[idx]
		s1 := s0
		if idx+1 < len(samples) {
			s1 = samples[idx+1]
		}
		out[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return out
}

func encodeSamples(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func clampInt16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
