package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"audio-slicer/internal/audio"
)

// LocalSink writes clips as WAV files below a root directory.
// An empty root means keys are used as paths verbatim.
type LocalSink struct {
	root string
}

// NewLocalSink creates a LocalSink, creating root if it does not exist.
func NewLocalSink(root string) (*LocalSink, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0750); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	return &LocalSink{root: root}, nil
}

// Root returns the output directory.
func (s *LocalSink) Root() string {
	return s.root
}

// Write saves clip at root/key and returns the file path.
func (s *LocalSink) Write(ctx context.Context, key string, clip *audio.AudioData) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	path := filepath.Join(s.root, filepath.FromSlash(key))
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return "", fmt.Errorf("create directory for %s: %w", key, err)
		}
	}

	if err := clip.SaveWAV(path); err != nil {
		return "", err
	}
	return path, nil
}

// Stage writes clip to a uniquely named temporary file below root.
// The caller removes it with Cleanup.
func (s *LocalSink) Stage(ctx context.Context, clip *audio.AudioData) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.CreateTemp(s.root, "clip_*.wav")
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}

	name := f.Name()
	if err := clip.WriteWAV(f); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("write staging file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close staging file: %w", err)
	}

	return name, nil
}

// Cleanup removes staged files, ignoring ones that are already gone.
// It keeps going after a failure and returns the first error.
func (s *LocalSink) Cleanup(paths ...string) error {
	var firstErr error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("remove staged file %s: %w", p, err)
		}
	}
	return firstErr
}
