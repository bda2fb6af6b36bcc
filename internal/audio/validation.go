package audio

import "fmt"

// Validate checks that the format is one the slicer can process
func (ad *AudioData) Validate() error {
	if ad.Channels <= 0 {
		return fmt.Errorf("%w: %s has %d channels", ErrInvalidAudio, ad.Filename, ad.Channels)
	}

	if ad.SampleRate <= 0 {
		return fmt.Errorf("%w: %s has sample rate %d Hz", ErrInvalidAudio, ad.Filename, ad.SampleRate)
	}

	switch ad.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: %s has unsupported bit depth %d", ErrInvalidAudio, ad.Filename, ad.BitDepth)
	}

	if len(ad.Samples)%ad.Channels != 0 {
		return fmt.Errorf("%w: %s has %d samples, not a whole number of %d-channel frames",
			ErrInvalidAudio, ad.Filename, len(ad.Samples), ad.Channels)
	}

	return nil
}
