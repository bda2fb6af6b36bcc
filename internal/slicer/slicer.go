// Package slicer splits a waveform into non-silent clips.
//
// A Slicer is built once per sample rate from millisecond/decibel Params and
// can then slice any number of waveforms. Slicing computes an RMS energy
// curve, scans it once for silence runs long enough to cut, and returns the
// kept parts as half-open frame ranges.
package slicer

// Range is a half-open interval [Begin, End) of frames in the input waveform
type Range struct {
	Begin int
	End   int
}

// Len returns the number of frames in the range
func (r Range) Len() int { return r.End - r.Begin }

// Seconds returns the range bounds in seconds for the given sample rate
func (r Range) Seconds(sampleRate int) (start, end float64) {
	return float64(r.Begin) / float64(sampleRate), float64(r.End) / float64(sampleRate)
}

// silenceTag marks RMS indices [begin, end] to be removed between two clips
type silenceTag struct {
	begin int
	end   int
}

type scanState int

const (
	notInSilence scanState = iota
	inSilence
)

// scanner tracks the single-pass silence classification over an RMS curve
type scanner struct {
	s     *Slicer
	rms   []float64
	state scanState
	start int // first index of the current silence run, valid in inSilence
	clip  int // index where the most recent clip began
	tags  []silenceTag
}

// Slice returns the non-silent ranges of an interleaved waveform with the given channel count.
// Ranges are ordered, non-overlapping and never empty.
func (s *Slicer) Slice(waveform []float32, channels int) []Range {
	if channels <= 0 {
		channels = 1
	}

	samples := toMono(waveform, channels)
	frames := len(samples)
	if frames == 0 {
		return nil
	}

	// Too short to analyze.
	if frames <= s.MinLengthFrames() {
		return []Range{{Begin: 0, End: frames}}
	}

	sc := &scanner{s: s, rms: rmsCurve(samples, s.winSize, s.hopSize)}
	sc.scan()

	if len(sc.tags) == 0 {
		return []Range{{Begin: 0, End: frames}}
	}

	return s.materialize(sc.tags, len(sc.rms), frames)
}

func (sc *scanner) scan() {
	for i, v := range sc.rms {
		if v < sc.s.threshold {
			if sc.state == notInSilence {
				sc.state = inSilence
				sc.start = i
			}
			continue
		}

		if sc.state == notInSilence {
			continue
		}

		if sc.qualifies(i) {
			sc.cut(i)
		}
		sc.state = notInSilence
	}

	sc.trailing()
}

// qualifies reports whether the silence run ending before index i should be cut.
// A leading run qualifies once it exceeds the kept-silence limit; a middle run
// needs both a long enough gap and a long enough preceding clip.
func (sc *scanner) qualifies(i int) bool {
	leading := sc.start == 0 && i > sc.s.maxSilKept
	middle := i-sc.start >= sc.s.minInterval && i-sc.clip >= sc.s.minLength
	return leading || middle
}

// cut records the span to remove for the run [start, i) and moves the clip start.
// Cut points are placed at the quietest RMS values near the run's edges.
func (sc *scanner) cut(i int) {
	start := sc.start
	kept := sc.s.maxSilKept
	leading := start == 0
	runLen := i - start

	switch {
	case runLen <= kept:
		pos := argmin(sc.rms, start, i+1) + start
		if leading {
			sc.tags = append(sc.tags, silenceTag{0, pos})
		} else {
			sc.tags = append(sc.tags, silenceTag{pos, pos})
		}
		sc.clip = pos

	case runLen <= 2*kept:
		pos := argmin(sc.rms, i-kept, start+kept+1) + i - kept
		posL := argmin(sc.rms, start, start+kept+1) + start
		posR := argmin(sc.rms, i-kept, i+1) + i - kept
		if leading {
			sc.clip = posR
			sc.tags = append(sc.tags, silenceTag{0, posR})
		} else {
			sc.clip = max(posR, pos)
			sc.tags = append(sc.tags, silenceTag{min(posL, pos), sc.clip})
		}

	default:
		posL := argmin(sc.rms, start, start+kept+1) + start
		posR := argmin(sc.rms, i-kept, i+1) + i - kept
		if leading {
			sc.tags = append(sc.tags, silenceTag{0, posR})
		} else {
			sc.tags = append(sc.tags, silenceTag{posL, posR})
		}
		sc.clip = posR
	}
}

// trailing handles a silence run still open at the end of the curve.
// The tag runs past the last index so nothing after the cut point is kept.
func (sc *scanner) trailing() {
	total := len(sc.rms)
	if sc.state != inSilence || total-sc.start < sc.s.minInterval {
		return
	}

	end := min(total-1, sc.start+sc.s.maxSilKept)
	pos := argmin(sc.rms, sc.start, end+1) + sc.start
	sc.tags = append(sc.tags, silenceTag{pos, total + 1})
}

// materialize turns silence tags into the kept frame ranges between them
func (s *Slicer) materialize(tags []silenceTag, total, frames int) []Range {
	ranges := make([]Range, 0, len(tags)+1)
	add := func(begin, end int) {
		r := Range{
			Begin: min(begin*s.hopSize, frames),
			End:   min(end*s.hopSize, frames),
		}
		if r.End > r.Begin {
			ranges = append(ranges, r)
		}
	}

	if tags[0].begin > 0 {
		add(0, tags[0].begin)
	}
	for i := 0; i < len(tags)-1; i++ {
		add(tags[i].end, tags[i+1].begin)
	}
	if last := tags[len(tags)-1]; last.end < total {
		add(last.end, total)
	}

	return ranges
}
