package loudness

import (
	"errors"
	"fmt"
	"io"
	"math"

	"audio-slicer/internal/audio"
)

// ErrNoSamples is returned when there is nothing to measure
var ErrNoSamples = errors.New("no audio samples found")

// LevelResult contains level measurement results for one clip
type LevelResult struct {
	RMSLevel           float64 // dBFS (Root Mean Square level)
	TruePeak           float64 // dBFS
	IntegratedLoudness float64 // approximate LUFS
	Filename           string
}

// Measure calculates level metrics for audio data.
// LUFS is approximated from RMS; no K-weighting or gating is applied.
func Measure(audioData *audio.AudioData) (*LevelResult, error) {
	if audioData == nil {
		return nil, fmt.Errorf("audio data is nil")
	}

	if len(audioData.Samples) == 0 {
		return nil, fmt.Errorf("%s: %w", audioData.Filename, ErrNoSamples)
	}

	rmsDB := ToDB(calculateRMS(audioData.Samples, audioData.BitDepth))

	return &LevelResult{
		RMSLevel:           rmsDB,
		TruePeak:           ToDB(calculatePeak(audioData.Samples, audioData.BitDepth)),
		IntegratedLoudness: rmsDB - 0.691, // Rough calibration offset for LUFS
		Filename:           audioData.Filename,
	}, nil
}

// ToDB converts a linear amplitude to dBFS; zero maps to -Inf
func ToDB(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(amplitude)
}

// calculateRMS computes RMS with bit depth normalization
func calculateRMS(samples []int32, bitDepth int) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	maxValue := negativeFullScale(bitDepth)

	var sumSquares float64
	for _, sample := range samples {
		normalized := math.Max(-1, math.Min(1, float64(sample)/maxValue))
		sumSquares += normalized * normalized
	}

	return math.Sqrt(sumSquares / float64(len(samples)))
}

// calculatePeak finds the maximum absolute sample normalized to [0, 1]
func calculatePeak(samples []int32, bitDepth int) float64 {
	var maxValue float64
	switch bitDepth {
	case 24:
		maxValue = 8388607.0 // 2^23 - 1
	case 32:
		maxValue = 2147483647.0 // 2^31 - 1
	default:
		maxValue = 32767.0 // 2^15 - 1
	}

	var maxAbs float64
	for _, sample := range samples {
		maxAbs = math.Max(maxAbs, math.Abs(float64(sample)))
	}

	return math.Min(1.0, maxAbs/maxValue)
}

func negativeFullScale(bitDepth int) float64 {
	switch bitDepth {
	case 24:
		return 8388608.0 // 2^23
	case 32:
		return 2147483648.0 // 2^31
	default:
		return 32768.0 // 2^15
	}
}

// Print displays level measurement results
func (lr *LevelResult) Print(w io.Writer) {
	fmt.Fprintf(w, "Level Analysis: %s\n", lr.Filename)
	fmt.Fprintf(w, "  Integrated Loudness: %.1f LUFS (approx.)\n", lr.IntegratedLoudness)
	fmt.Fprintf(w, "  RMS Level: %.1f dBFS\n", lr.RMSLevel)
	fmt.Fprintf(w, "  True Peak: %.1f dBFS\n", lr.TruePeak)
	if lr.TruePeak > -0.1 {
		fmt.Fprintf(w, "  ⚠️  Warning: True peak is close to 0dBFS (possible clipping in source)\n")
	}
}
