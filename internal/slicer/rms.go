package slicer

import "math"

// toMono averages interleaved channels into one sample per frame
func toMono(waveform []float32, channels int) []float32 {
	frames := len(waveform) / channels
	if channels == 1 {
		return waveform[:frames]
	}

	mono := make([]float32, frames)
	ch := float32(channels)
	for i := 0; i < frames; i++ {
		var s float32
		for j := 0; j < channels; j++ {
			s += waveform[i*channels+j] / ch
		}
		mono[i] = s
	}
	return mono
}

// rmsCurve computes one RMS value per hop with a window of frameLength frames
// centered on each hop position. The running sum of squares is updated
// incrementally as the window slides, so the cost is linear in len(samples).
// Window positions that reach past either end only sum the in-bounds samples
// but still divide by frameLength.
func rmsCurve(samples []float32, frameLength, hopLength int) []float64 {
	n := len(samples)
	padding := frameLength / 2
	size := n/hopLength + 1
	curve := make([]float64, size)

	var (
		left, right int
		hopCount    int
		idx         int
		acc         float64
	)

	emit := func() {
		curve[idx] = math.Sqrt(math.Max(0, acc/float64(frameLength)))
		idx++
	}
	step := func() {
		hopCount++
		if hopCount == hopLength {
			emit()
			hopCount = 0
		}
	}
	sq := func(i int) float64 {
		v := float64(samples[i])
		return v * v
	}

	// The first window is centered on frame 0: only its right half exists.
	for right < padding && right < n {
		acc += sq(right)
		right++
	}
	emit()

	// Grow until the window reaches its full width or the end of the signal.
	for right < frameLength && right < n && idx < size {
		acc += sq(right)
		step()
		right++
	}

	if frameLength < n {
		for right < n && idx < size {
			acc += sq(right) - sq(left)
			step()
			left++
			right++
		}
	} else {
		for right < frameLength && idx < size {
			step()
			right++
		}
	}

	// Drain: the window slides past the end of the signal.
	for left < n && idx < size {
		acc -= sq(left)
		step()
		left++
		right++
	}

	return curve
}

// argmin returns the offset from begin of the first smallest value in v[begin:end].
// Bounds are clamped to v; an empty range yields 0.
func argmin(v []float64, begin, end int) int {
	begin = min(max(begin, 0), len(v))
	end = min(max(end, 0), len(v))
	if begin >= end {
		return 0
	}

	best := begin
	for i := begin + 1; i < end; i++ {
		if v[i] < v[best] {
			best = i
		}
	}
	return best - begin
}
