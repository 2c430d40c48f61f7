package audio

import (
	"encoding/binary"
	"math"
)

// BytesPerSample is the width of one s16le mono sample.
const BytesPerSample = 2

// Resampler converts a continuous mono stream between sample rates by linear
// interpolation. The last input sample and the output phase carry over between
// Push calls, so packet boundaries do not restart the interpolation.
type Resampler struct {
	step   float64
	pos    float64
	prev   int16
	primed bool
}

func NewResampler(fromRate, toRate int) *Resampler {
	return &Resampler{step: float64(fromRate) / float64(toRate)}
}

// Push returns the output samples that can be interpolated so far.
func (r *Resampler) Push(samples []int16) []int16 {
	if r.step == 1 || len(samples) == 0 {
		return samples
	}
	at := func(i int) int16 {
		if !r.primed {
			return samples[i]
		}
		if i == 0 {
			return r.prev
		}
		return samples[i-1]
	}
	n := len(samples)
	if r.primed {
		n++
	}
	out := make([]int16, 0, int(math.Ceil(float64(n)/r.step)))
	for {
		idx := int(r.pos)
		if idx+1 >= n {
			break
		}
		frac := r.pos - float64(idx)
		v := float64(at(idx))*(1-frac) + float64(at(idx+1))*frac
		out = append(out, clampPCM(int32(math.Round(v))))
		r.pos += r.step
	}
	// Rebase so the last input sample becomes index 0 of the next call.
	r.pos -= float64(n - 1)
	r.prev = samples[len(samples)-1]
	r.primed = true
	return out
}

// Flush emits the held last sample when an output position still falls on it.
func (r *Resampler) Flush() []int16 {
	if r.step == 1 || !r.primed || r.pos >= 1 {
		return nil
	}
	r.primed = false
	r.pos = 0
	return []int16{r.prev}
}

func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(s))
	}
	return out
}

func clampPCM(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
