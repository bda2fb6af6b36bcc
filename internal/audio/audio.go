package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidAudio is returned for input that cannot be decoded or has an unusable format
var ErrInvalidAudio = errors.New("invalid audio")

// AudioData represents decoded PCM audio data
type AudioData struct {
	Samples    []int32 // PCM samples (interleaved for multi-channel)
	SampleRate int     // Sample rate in Hz
	Channels   int     // Number of channels
	BitDepth   int     // Bit depth
	Duration   float64 // Duration in seconds
	Filename   string  // Original filename
}

// LoadWAV loads a WAV file and returns AudioData
func LoadWAV(filename string) (*AudioData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()

	return DecodeWAV(file, filename)
}

// DecodeWAV decodes a WAV stream; name is only used for messages and AudioData.Filename
func DecodeWAV(r io.ReadSeeker, name string) (*AudioData, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrInvalidAudio, name)
	}

	format := decoder.Format()
	if format == nil {
		return nil, fmt.Errorf("%w: failed to read format from %s", ErrInvalidAudio, name)
	}

	intBuf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode PCM data from %s: %v", ErrInvalidAudio, name, err)
	}

	if intBuf == nil || intBuf.Data == nil {
		return nil, fmt.Errorf("%w: no PCM data found in %s", ErrInvalidAudio, name)
	}

	samples := make([]int32, len(intBuf.Data))
	for i, sample := range intBuf.Data {
		samples[i] = int32(sample)
	}

	// Default to 16 if the buffer does not carry it
	bitDepth := 16
	if intBuf.SourceBitDepth > 0 {
		bitDepth = intBuf.SourceBitDepth
	}

	ad := &AudioData{
		Samples:    samples,
		SampleRate: format.SampleRate,
		Channels:   format.NumChannels,
		BitDepth:   bitDepth,
		Filename:   name,
	}
	if err := ad.Validate(); err != nil {
		return nil, err
	}
	ad.Duration = float64(ad.GetFrameCount()) / float64(ad.SampleRate)

	return ad, nil
}

// SaveWAV saves AudioData to a WAV file
func (ad *AudioData) SaveWAV(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", filename, err)
	}

	if err := ad.WriteWAV(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", filename, err)
	}

	return nil
}

// WriteWAV encodes AudioData as PCM WAV with its own bit depth and channel count
func (ad *AudioData) WriteWAV(w io.WriteSeeker) error {
	encoder := wav.NewEncoder(w, ad.SampleRate, ad.BitDepth, ad.Channels, 1)

	intBuf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: ad.Channels,
			SampleRate:  ad.SampleRate,
		},
		Data:           make([]int, len(ad.Samples)),
		SourceBitDepth: ad.BitDepth,
	}

	for i, sample := range ad.Samples {
		intBuf.Data[i] = int(sample)
	}

	if err := encoder.Write(intBuf); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to close encoder: %w", err)
	}

	return nil
}

// GetSampleCount returns the total number of samples
func (ad *AudioData) GetSampleCount() int {
	return len(ad.Samples)
}

// GetFrameCount returns the number of frames (samples per channel)
func (ad *AudioData) GetFrameCount() int {
	if ad.Channels == 0 {
		return 0
	}
	return len(ad.Samples) / ad.Channels
}

// Float32 returns the interleaved samples scaled to [-1, 1] by bit depth
func (ad *AudioData) Float32() []float32 {
	factor := float32(fullScale(ad.BitDepth))
	out := make([]float32, len(ad.Samples))
	for i, sample := range ad.Samples {
		out[i] = float32(sample) / factor
	}
	return out
}

// Clip returns a copy of frames [begin, end), clamped to the available frames
func (ad *AudioData) Clip(begin, end int) *AudioData {
	frames := ad.GetFrameCount()
	begin = min(max(begin, 0), frames)
	end = min(max(end, begin), frames)

	samples := make([]int32, (end-begin)*ad.Channels)
	copy(samples, ad.Samples[begin*ad.Channels:end*ad.Channels])

	var duration float64
	if ad.SampleRate > 0 {
		duration = float64(end-begin) / float64(ad.SampleRate)
	}

	return &AudioData{
		Samples:    samples,
		SampleRate: ad.SampleRate,
		Channels:   ad.Channels,
		BitDepth:   ad.BitDepth,
		Duration:   duration,
		Filename:   ad.Filename,
	}
}

// fullScale returns the magnitude of the most negative sample for a bit depth
func fullScale(bitDepth int) float64 {
	switch bitDepth {
	case 16:
		return 32768.0 // 2^15
	case 24:
		return 8388608.0 // 2^23
	case 32:
		return 2147483648.0 // 2^31
	default:
		return 32768.0
	}
}
