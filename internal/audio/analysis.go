package audio

import (
	"log/slog"
	"math"
)

// ContentStats summarizes the sample content of a file
type ContentStats struct {
	MinSample      int32
	MaxSample      int32
	ZeroPercent    float64
	RMSDB          float64
	FirstSecondPct float64 // share of non-zero samples in the first second
	LastSecondPct  float64 // share of non-zero samples in the last second
}

// Stats computes ContentStats; ok is false when there are no samples
func (ad *AudioData) Stats() (stats ContentStats, ok bool) {
	if len(ad.Samples) == 0 {
		return stats, false
	}

	scale := fullScale(ad.BitDepth)
	stats.MinSample, stats.MaxSample = ad.Samples[0], ad.Samples[0]
	var zeroSamples int
	var sumSquares float64

	for _, sample := range ad.Samples {
		stats.MinSample = min(stats.MinSample, sample)
		stats.MaxSample = max(stats.MaxSample, sample)
		if sample == 0 {
			zeroSamples++
		}

		normalized := float64(sample) / scale
		sumSquares += normalized * normalized
	}

	stats.ZeroPercent = float64(zeroSamples) / float64(len(ad.Samples)) * 100
	stats.RMSDB = math.Inf(-1)
	if rms := math.Sqrt(sumSquares / float64(len(ad.Samples))); rms > 0 {
		stats.RMSDB = 20 * math.Log10(rms)
	}

	second := ad.SampleRate * ad.Channels
	if second > 0 && len(ad.Samples) >= second {
		stats.FirstSecondPct = nonZeroPercent(ad.Samples[:second])
		stats.LastSecondPct = nonZeroPercent(ad.Samples[len(ad.Samples)-second:])
	}

	return stats, true
}

// AnalyzeContent logs diagnostic statistics about the audio content
func (ad *AudioData) AnalyzeContent(logger *slog.Logger) {
	stats, ok := ad.Stats()
	if !ok {
		logger.Warn("no audio samples found", "file", ad.Filename)
		return
	}

	logger.Debug("audio content",
		"file", ad.Filename,
		"duration_sec", ad.Duration,
		"sample_rate", ad.SampleRate,
		"channels", ad.Channels,
		"bit_depth", ad.BitDepth,
		"frames", ad.GetFrameCount(),
		"min_sample", stats.MinSample,
		"max_sample", stats.MaxSample,
		"zero_pct", stats.ZeroPercent,
		"rms_dbfs", stats.RMSDB,
		"first_second_pct", stats.FirstSecondPct,
		"last_second_pct", stats.LastSecondPct,
	)

	switch {
	case stats.ZeroPercent > 95:
		logger.Warn("file is mostly digital silence, may be empty or a very quiet recording",
			"file", ad.Filename, "zero_pct", stats.ZeroPercent)
	case stats.ZeroPercent > 80:
		logger.Warn("file has a high share of digital silence", "file", ad.Filename, "zero_pct", stats.ZeroPercent)
	}
}

func nonZeroPercent(samples []int32) float64 {
	n := 0
	for _, s := range samples {
		if s != 0 {
			n++
		}
	}
	return float64(n) / float64(len(samples)) * 100
}
