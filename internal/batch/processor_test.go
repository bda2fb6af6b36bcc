package batch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audio-slicer/internal/audio"
	"audio-slicer/internal/metrics"
	"audio-slicer/internal/output"
	"audio-slicer/internal/slicer"
)

const testRate = 8000

func testParams() slicer.Params {
	return slicer.Params{ThresholdDB: -40, MinLengthMs: 1000, MinIntervalMs: 300, HopSizeMs: 10, MaxSilKeptMs: 500}
}

// writeWAV writes a mono 16-bit file alternating half-scale sound and digital silence.
// Each entry in secs is the length of one segment, starting with sound.
func writeWAV(t *testing.T, dir, name string, sampleRate int, secs ...float64) string {
	t.Helper()
	var samples []int32
	for i, s := range secs {
		var v int32
		if i%2 == 0 {
			v = 16384
		}
		for n := 0; n < int(s*float64(sampleRate)); n++ {
			samples = append(samples, v)
		}
	}

	path := filepath.Join(dir, name)
	ad := &audio.AudioData{Samples: samples, SampleRate: sampleRate, Channels: 1, BitDepth: 16}
	require.NoError(t, ad.SaveWAV(path))
	return path
}

func newProcessor(t *testing.T, opts Options, sink output.Sink, m *metrics.Metrics) *Processor {
	t.Helper()
	if opts.Params == (slicer.Params{}) {
		opts.Params = testParams()
	}
	p, err := NewProcessor(opts, sink, m, nil)
	require.NoError(t, err)
	return p
}

func TestRun_WritesClipsBesideInput(t *testing.T) {
	dir := t.TempDir()
	in := writeWAV(t, dir, "talk.wav", testRate, 3, 2, 5)
	sink, err := output.NewLocalSink("")
	require.NoError(t, err)

	results, err := newProcessor(t, Options{Workers: 2}, sink, nil).Run(context.Background(), []string{in})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	require.NoError(t, res.Err)
	require.Len(t, res.Clips, 2)
	assert.Equal(t, filepath.Join(dir, "talk_000.wav"), res.Clips[0].Location)
	assert.Equal(t, filepath.Join(dir, "talk_001.wav"), res.Clips[1].Location)
	assert.Equal(t, slicer.Range{Begin: 0, End: 302 * 80}, res.Clips[0].Range)
	assert.Equal(t, slicer.Range{Begin: 449 * 80, End: 10 * testRate}, res.Clips[1].Range)
	assert.InDelta(t, 3.02, res.Clips[0].End, 1e-9)

	first, err := audio.LoadWAV(res.Clips[0].Location)
	require.NoError(t, err)
	assert.Equal(t, 302*80, first.GetFrameCount())
	require.NotNil(t, res.Clips[0].Level)
	assert.InDelta(t, -6.05, res.Clips[0].Level.RMSLevel, 0.01)
}

func TestRun_OutDir(t *testing.T) {
	in := writeWAV(t, t.TempDir(), "a.wav", testRate, 3, 2, 5)
	outDir := t.TempDir()
	sink, err := output.NewLocalSink(outDir)
	require.NoError(t, err)

	results, err := newProcessor(t, Options{OutDir: outDir}, sink, nil).Run(context.Background(), []string{in})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outDir, "a_000.wav"))
	assert.FileExists(t, filepath.Join(outDir, "a_001.wav"))
	assert.Len(t, results[0].Clips, 2)
}

func TestRun_KeepsOrderAndJoinsErrors(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeWAV(t, dir, "one.wav", testRate, 2),
		filepath.Join(dir, "missing.wav"),
		writeWAV(t, dir, "two.wav", testRate, 3, 2, 5),
		writeWAV(t, dir, "three.wav", testRate, 1),
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	results, err := newProcessor(t, Options{Workers: 3, DryRun: true}, nil, m).Run(context.Background(), paths)

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, paths[i], r.Input)
	}
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Len(t, results[2].Clips, 2)
	assert.Len(t, results[3].Clips, 1)

	assert.InDelta(t, 3.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues(metrics.StatusOK)), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues(metrics.StatusFailed)), 1e-9)
	assert.InDelta(t, 4.0, testutil.ToFloat64(m.ClipsWritten), 1e-9)
	assert.InDelta(t, 13.0, testutil.ToFloat64(m.AudioSecondsIn), 1e-9)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	in := writeWAV(t, dir, "dry.wav", testRate, 3, 2, 5)

	results, err := newProcessor(t, Options{DryRun: true}, nil, nil).Run(context.Background(), []string{in})
	require.NoError(t, err)

	require.Len(t, results[0].Clips, 2)
	for _, c := range results[0].Clips {
		assert.Empty(t, c.Location)
		assert.NotNil(t, c.Level)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the input file")
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeWAV(t, dir, "a.wav", testRate, 1),
		writeWAV(t, dir, "b.wav", testRate, 1),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := newProcessor(t, Options{DryRun: true}, nil, nil).Run(ctx, paths)

	assert.ErrorIs(t, err, context.Canceled)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.Empty(t, r.Clips)
	}
}

func TestRun_NoInputs(t *testing.T) {
	results, err := newProcessor(t, Options{DryRun: true}, nil, nil).Run(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestRun_OnResultOncePerFile(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.wav", "b.wav", "c.wav", "d.wav", "e.wav"} {
		paths = append(paths, writeWAV(t, dir, name, testRate, 1))
	}

	var calls atomic.Int32
	opts := Options{Workers: 4, DryRun: true, OnResult: func(Result) { calls.Add(1) }}
	_, err := newProcessor(t, opts, nil, nil).Run(context.Background(), paths)

	require.NoError(t, err)
	assert.Equal(t, int32(5), calls.Load())
}

func TestProcessor_CachesSlicerPerSampleRate(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeWAV(t, dir, "a.wav", 8000, 1),
		writeWAV(t, dir, "b.wav", 8000, 1),
		writeWAV(t, dir, "c.wav", 16000, 1),
	}
	p := newProcessor(t, Options{DryRun: true}, nil, nil)

	_, err := p.Run(context.Background(), paths)
	require.NoError(t, err)
	assert.Len(t, p.slicers, 2)
}

func TestProcessor_SampleRateTooLowForHop(t *testing.T) {
	dir := t.TempDir()
	in := writeWAV(t, dir, "low.wav", 40, 1)

	_, err := newProcessor(t, Options{DryRun: true}, nil, nil).Run(context.Background(), []string{in})
	assert.ErrorIs(t, err, slicer.ErrInvalidConfiguration)
}

func TestNewProcessor_Validation(t *testing.T) {
	bad := testParams()
	bad.MinIntervalMs = 5000
	_, err := NewProcessor(Options{Params: bad, DryRun: true}, nil, nil, nil)
	assert.ErrorIs(t, err, slicer.ErrInvalidConfiguration)

	_, err = NewProcessor(Options{Params: testParams()}, nil, nil, nil)
	assert.Error(t, err, "sink required when writing")

	p, err := NewProcessor(Options{Params: testParams(), DryRun: true}, nil, nil, nil)
	require.NoError(t, err)
	assert.Positive(t, p.opts.Workers)
}
