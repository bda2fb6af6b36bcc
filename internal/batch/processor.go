// Package batch slices many WAV files concurrently and writes their clips to a sink.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"audio-slicer/internal/audio"
	"audio-slicer/internal/loudness"
	"audio-slicer/internal/metrics"
	"audio-slicer/internal/output"
	"audio-slicer/internal/slicer"
)

// Options configures a Processor
type Options struct {
	Params  slicer.Params
	Workers int    // Number of files processed in parallel; <= 0 means one per CPU
	OutDir  string // When empty, clip keys are placed next to their input file
	DryRun  bool   // Compute ranges without writing clips
	Debug   bool   // Log content statistics of every input

	// OnResult is called once per finished file. Calls are serialized.
	OnResult func(Result)
}

// Clip describes one written (or, in dry-run mode, planned) clip
type Clip struct {
	Index    int
	Range    slicer.Range
	Start    float64 // seconds
	End      float64 // seconds
	Location string  // empty in dry-run mode
	Level    *loudness.LevelResult
}

// Result is the outcome for one input file
type Result struct {
	Input      string
	SampleRate int
	Channels   int
	Duration   float64
	Clips      []Clip
	Err        error
}

// Processor runs the slicer over input files with a bounded worker pool.
// Slicers are cached per sample rate.
type Processor struct {
	opts    Options
	sink    output.Sink
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	slicers map[int]*slicer.Slicer

	resultMu sync.Mutex
}

// NewProcessor validates opts and returns a Processor.
// sink may be nil only in dry-run mode; m may be nil.
func NewProcessor(opts Options, sink output.Sink, m *metrics.Metrics, logger *slog.Logger) (*Processor, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}

	if sink == nil && !opts.DryRun {
		return nil, fmt.Errorf("an output sink is required unless running dry")
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		opts:    opts,
		sink:    sink,
		metrics: m,
		logger:  logger,
		slicers: make(map[int]*slicer.Slicer),
	}, nil
}

// Run processes paths and returns one Result per path, in input order.
// A failing file does not stop the others; all failures are joined into the returned error.
// Files not yet started when ctx is done are reported with ctx.Err().
func (p *Processor) Run(ctx context.Context, paths []string) ([]Result, error) {
	results := make([]Result, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < min(p.opts.Workers, max(len(paths), 1)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					results[i] = Result{Input: paths[i], Err: fmt.Errorf("%s: %w", paths[i], err)}
				} else {
					results[i] = p.ProcessFile(ctx, paths[i])
				}
				p.report(results[i])
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}

	return results, errors.Join(errs...)
}

// ProcessFile loads, slices and writes the clips of a single file
func (p *Processor) ProcessFile(ctx context.Context, path string) (res Result) {
	res.Input = path
	defer func() {
		if p.metrics != nil {
			p.metrics.FileDone(res.Err)
		}
		if res.Err != nil {
			p.logger.Error("file failed", "file", path, "error", res.Err)
		}
	}()

	ad, err := audio.LoadWAV(path)
	if err != nil {
		res.Err = err
		return res
	}
	res.SampleRate, res.Channels, res.Duration = ad.SampleRate, ad.Channels, ad.Duration

	if p.opts.Debug {
		ad.AnalyzeContent(p.logger)
	}

	s, err := p.slicerFor(ad.SampleRate)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", path, err)
		return res
	}

	started := time.Now()
	ranges := s.Slice(ad.Float32(), ad.Channels)
	elapsed := time.Since(started)

	p.logger.Debug("sliced",
		"file", path,
		"ranges", len(ranges),
		"hop_size", s.HopSize(),
		"win_size", s.WinSize(),
		"elapsed", elapsed,
	)

	stem := output.Stem(path)
	var kept float64
	for i, r := range ranges {
		clip := ad.Clip(r.Begin, r.End)
		start, end := r.Seconds(ad.SampleRate)
		c := Clip{Index: i, Range: r, Start: start, End: end}
		kept += end - start

		if c.Level, err = loudness.Measure(clip); err != nil {
			p.logger.Warn("level measurement failed", "file", path, "clip", i, "error", err)
		}

		if !p.opts.DryRun {
			c.Location, err = p.sink.Write(ctx, p.clipKey(path, stem, i), clip)
			if err != nil {
				res.Err = fmt.Errorf("%s: clip %d: %w", path, i, err)
				return res
			}
		}

		res.Clips = append(res.Clips, c)
	}

	if p.metrics != nil {
		p.metrics.ObserveSlice(elapsed, ad.Duration, kept, len(res.Clips))
	}

	return res
}

func (p *Processor) clipKey(input, stem string, index int) string {
	name := output.ClipName(stem, index)
	if p.opts.OutDir == "" {
		return filepath.Join(filepath.Dir(input), name)
	}
	return name
}

// slicerFor returns the cached slicer for a sample rate, building it on first use
func (p *Processor) slicerFor(sampleRate int) (*slicer.Slicer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.slicers[sampleRate]; ok {
		return s, nil
	}

	s, err := slicer.New(sampleRate, p.opts.Params)
	if err != nil {
		return nil, err
	}
	p.slicers[sampleRate] = s
	return s, nil
}

func (p *Processor) report(r Result) {
	if p.opts.OnResult == nil {
		return
	}
	p.resultMu.Lock()
	defer p.resultMu.Unlock()
	p.opts.OnResult(r)
}
