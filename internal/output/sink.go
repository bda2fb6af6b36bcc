// Package output writes sliced clips to their destination.
// LocalSink writes WAV files to disk; S3Sink stages them on disk and uploads
// them to an S3 bucket.
package output

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"audio-slicer/internal/audio"
)

// Sink defines where clips end up.
type Sink interface {
	// Write stores clip under key and returns its location (path or URL).
	Write(ctx context.Context, key string, clip *audio.AudioData) (location string, err error)
}

// ClipName returns the file name of the index-th clip (0-based) of an input with the given stem.
// Indices are zero-padded to three digits so names sort in clip order.
func ClipName(stem string, index int) string {
	return fmt.Sprintf("%s_%03d.wav", stem, index)
}

// Stem returns the input file name without directory and extension
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
