package slicer

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfiguration is returned when the slicing parameters are inconsistent
var ErrInvalidConfiguration = errors.New("slicer: invalid configuration")

// Params holds the user-facing slicing parameters
type Params struct {
	ThresholdDB   float64 // Silence threshold in dB
	MinLengthMs   int     // Minimum clip length in milliseconds
	MinIntervalMs int     // Minimum silence length to cut in milliseconds
	HopSizeMs     int     // Analysis hop in milliseconds
	MaxSilKeptMs  int     // Maximum silence kept around a cut in milliseconds
}

// DefaultParams returns the default slicing parameters
func DefaultParams() Params {
	return Params{
		ThresholdDB:   -40.0,
		MinLengthMs:   5000,
		MinIntervalMs: 300,
		HopSizeMs:     10,
		MaxSilKeptMs:  500,
	}
}

// Validate checks the ordering constraints between the duration parameters
func (p Params) Validate() error {
	if p.HopSizeMs <= 0 {
		return fmt.Errorf("%w: hop_size must be positive, got %d ms", ErrInvalidConfiguration, p.HopSizeMs)
	}

	if !(p.MinLengthMs >= p.MinIntervalMs && p.MinIntervalMs >= p.HopSizeMs) {
		return fmt.Errorf("%w: min_length >= min_interval >= hop_size must hold (got %d, %d, %d ms)",
			ErrInvalidConfiguration, p.MinLengthMs, p.MinIntervalMs, p.HopSizeMs)
	}

	if p.MaxSilKeptMs < p.HopSizeMs {
		return fmt.Errorf("%w: max_sil_kept >= hop_size must hold (got %d, %d ms)",
			ErrInvalidConfiguration, p.MaxSilKeptMs, p.HopSizeMs)
	}

	return nil
}

// Slicer holds the frame-domain configuration derived from Params for one sample rate.
// It is immutable and safe for concurrent use.
type Slicer struct {
	sampleRate  int
	threshold   float64 // linear amplitude
	hopSize     int     // frames
	winSize     int     // frames
	minLength   int     // hops
	minInterval int     // hops
	maxSilKept  int     // hops
}

// New converts p into frame-domain units for the given sample rate
func New(sampleRate int, p Params) (*Slicer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfiguration, sampleRate)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	sr := int64(sampleRate)
	hopSize := divRound(int64(p.HopSizeMs)*sr, 1000)
	if hopSize <= 0 {
		return nil, fmt.Errorf("%w: hop_size of %d ms is shorter than one frame at %d Hz",
			ErrInvalidConfiguration, p.HopSizeMs, sampleRate)
	}

	winSize := min(divRound(int64(p.MinIntervalMs)*sr, 1000), 4*hopSize)

	return &Slicer{
		sampleRate:  sampleRate,
		threshold:   math.Pow(10, p.ThresholdDB/20.0),
		hopSize:     int(hopSize),
		winSize:     int(winSize),
		minLength:   int(divRound(int64(p.MinLengthMs)*sr, 1000*hopSize)),
		minInterval: int(divRound(int64(p.MinIntervalMs)*sr, 1000*hopSize)),
		maxSilKept:  int(divRound(int64(p.MaxSilKeptMs)*sr, 1000*hopSize)),
	}, nil
}

// SampleRate returns the sample rate the slicer was built for
func (s *Slicer) SampleRate() int { return s.sampleRate }

// Threshold returns the linear amplitude threshold
func (s *Slicer) Threshold() float64 { return s.threshold }

// HopSize returns the analysis hop in frames
func (s *Slicer) HopSize() int { return s.hopSize }

// WinSize returns the RMS window width in frames
func (s *Slicer) WinSize() int { return s.winSize }

// MinLengthFrames returns the minimum clip length in frames
func (s *Slicer) MinLengthFrames() int { return s.minLength * s.hopSize }

// divRound divides n by d rounding half away from zero, without going through floating point.
func divRound(n, d int64) int64 {
	if (n < 0) != (d < 0) {
		return (n - d/2) / d
	}
	return (n + d/2) / d
}
