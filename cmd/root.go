package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"audio-slicer/internal/batch"
	"audio-slicer/internal/config"
	"audio-slicer/internal/metrics"
	"audio-slicer/internal/output"
)

var (
	// cfg is the effective configuration, resolved in PersistentPreRunE
	cfg    *config.Config
	logger *slog.Logger

	// flagCfg holds flag values; only flags set on the command line override cfg
	flagCfg    = config.DefaultConfig()
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "audio-slicer [OPTIONS] <input1.wav> <input2.wav> ...",
	Short: "Split audio files into clips at silent passages",
	Long: `audio-slicer splits WAV recordings into non-silent clips.
It measures a short-term RMS energy curve, cuts silences longer than the minimum
interval at their quietest point and writes every clip as <name>_NNN.wav, locally
or to S3. Use the serve subcommand to expose slicing over HTTP.`,
	Args:              cobra.MinimumNArgs(1),
	PersistentPreRunE: loadConfig,
	RunE:              runSlicer,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	pf.Float64VarP(&flagCfg.Slicer.ThresholdDB, "db-thresh", "t", flagCfg.Slicer.ThresholdDB,
		"Silence threshold in dB (-120 to 0)")
	pf.IntVarP(&flagCfg.Slicer.MinLengthMs, "min-length", "l", flagCfg.Slicer.MinLengthMs,
		"Minimum clip length in milliseconds")
	pf.IntVarP(&flagCfg.Slicer.MinIntervalMs, "min-interval", "i", flagCfg.Slicer.MinIntervalMs,
		"Minimum silence length to cut in milliseconds")
	pf.IntVarP(&flagCfg.Slicer.HopSizeMs, "hop-size", "s", flagCfg.Slicer.HopSizeMs,
		"RMS analysis hop in milliseconds")
	pf.IntVarP(&flagCfg.Slicer.MaxSilKeptMs, "max-sil-kept", "k", flagCfg.Slicer.MaxSilKeptMs,
		"Maximum silence kept around each cut in milliseconds")
	pf.StringVar(&flagCfg.Logging.Level, "log-level", flagCfg.Logging.Level,
		"Log level: debug, info, warn or error")
	pf.StringVar(&flagCfg.Logging.Format, "log-format", flagCfg.Logging.Format,
		"Log format: text or json")

	f := rootCmd.Flags()
	f.StringVarP(&flagCfg.Output.Dir, "out", "o", flagCfg.Output.Dir,
		"Output directory (default: next to each input file)")
	f.IntVarP(&flagCfg.Output.Workers, "workers", "w", flagCfg.Output.Workers,
		"Files processed in parallel (0: one per CPU)")
	f.StringVar(&flagCfg.Output.MetricsFile, "metrics-file", flagCfg.Output.MetricsFile,
		"Write Prometheus metrics to this file after the run")
	f.StringVar(&flagCfg.S3.Bucket, "s3-bucket", flagCfg.S3.Bucket, "Upload clips to this S3 bucket")
	f.StringVar(&flagCfg.S3.Region, "s3-region", flagCfg.S3.Region, "S3 region")
	f.StringVar(&flagCfg.S3.Prefix, "s3-prefix", flagCfg.S3.Prefix, "Key prefix for uploaded clips")
	f.StringVar(&flagCfg.S3.Endpoint, "s3-endpoint", flagCfg.S3.Endpoint,
		"Custom S3-compatible endpoint (path-style)")
	f.Bool("dry-run", false, "Only report the ranges, do not write clips")
	f.Bool("debug-info", false, "Show detailed debug information about audio files")
}

// loadConfig resolves defaults, config file, environment and changed flags, in that order
func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(cmd.Context(), configFile)
	if err != nil {
		return err
	}

	overrides := map[string]func(){
		"db-thresh":    func() { c.Slicer.ThresholdDB = flagCfg.Slicer.ThresholdDB },
		"min-length":   func() { c.Slicer.MinLengthMs = flagCfg.Slicer.MinLengthMs },
		"min-interval": func() { c.Slicer.MinIntervalMs = flagCfg.Slicer.MinIntervalMs },
		"hop-size":     func() { c.Slicer.HopSizeMs = flagCfg.Slicer.HopSizeMs },
		"max-sil-kept": func() { c.Slicer.MaxSilKeptMs = flagCfg.Slicer.MaxSilKeptMs },
		"log-level":    func() { c.Logging.Level = flagCfg.Logging.Level },
		"log-format":   func() { c.Logging.Format = flagCfg.Logging.Format },
		"out":          func() { c.Output.Dir = flagCfg.Output.Dir },
		"workers":      func() { c.Output.Workers = flagCfg.Output.Workers },
		"metrics-file": func() { c.Output.MetricsFile = flagCfg.Output.MetricsFile },
		"s3-bucket":    func() { c.S3.Bucket = flagCfg.S3.Bucket },
		"s3-region":    func() { c.S3.Region = flagCfg.S3.Region },
		"s3-prefix":    func() { c.S3.Prefix = flagCfg.S3.Prefix },
		"s3-endpoint":  func() { c.S3.Endpoint = flagCfg.S3.Endpoint },
		"addr":         func() { c.Server.Addr = flagCfg.Server.Addr },
		"max-upload-mb": func() {
			c.Server.MaxUploadMB = flagCfg.Server.MaxUploadMB
		},
	}
	for name, apply := range overrides {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}

	if debug, _ := cmd.Flags().GetBool("debug-info"); debug {
		c.Logging.Level = "debug"
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg = c
	logger = c.Logging.NewLogger(cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return nil
}

func runSlicer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	debugInfo, _ := cmd.Flags().GetBool("debug-info")

	// Validate input files exist and are WAV files
	for _, file := range args {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			return fmt.Errorf("input file not found: %s", file)
		}

		if !strings.HasSuffix(strings.ToLower(file), ".wav") {
			return fmt.Errorf("input file must be a WAV file: %s", file)
		}
	}

	fmt.Fprintf(out, "audio-slicer started with %d input files\n", len(args))
	fmt.Fprintf(out, "Configuration:\n")
	fmt.Fprintf(out, "  Threshold: %.1f dB\n", cfg.Slicer.ThresholdDB)
	fmt.Fprintf(out, "  Min Length: %d ms\n", cfg.Slicer.MinLengthMs)
	fmt.Fprintf(out, "  Min Interval: %d ms\n", cfg.Slicer.MinIntervalMs)
	fmt.Fprintf(out, "  Hop Size: %d ms\n", cfg.Slicer.HopSizeMs)
	fmt.Fprintf(out, "  Max Silence Kept: %d ms\n", cfg.Slicer.MaxSilKeptMs)
	switch {
	case dryRun:
		fmt.Fprintf(out, "  Output: none (dry run)\n")
	case cfg.S3Enabled():
		fmt.Fprintf(out, "  Output: s3://%s/%s\n", cfg.S3.Bucket, cfg.S3.Prefix)
	case cfg.Output.Dir != "":
		fmt.Fprintf(out, "  Output: %s\n", cfg.Output.Dir)
	default:
		fmt.Fprintf(out, "  Output: next to each input\n")
	}
	fmt.Fprintln(out)

	var sink output.Sink
	if !dryRun {
		var err error
		if sink, err = newSink(ctx); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	done := 0
	opts := batch.Options{
		Params:  cfg.Params(),
		Workers: cfg.Output.Workers,
		OutDir:  cfg.Output.Dir,
		DryRun:  dryRun,
		Debug:   debugInfo,
		OnResult: func(r batch.Result) {
			done++
			printResult(cmd, done, len(args), r, debugInfo)
		},
	}

	processor, err := batch.NewProcessor(opts, sink, m, logger)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	fmt.Fprintln(out, "Slicing audio files...")
	results, runErr := processor.Run(ctx, args)

	if cfg.Output.MetricsFile != "" {
		if err := metrics.WriteToTextfile(cfg.Output.MetricsFile, reg); err != nil {
			logger.Error("failed to write metrics file", "path", cfg.Output.MetricsFile, "error", err)
		}
	}

	failed, clips := 0, 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		clips += len(r.Clips)
	}

	if runErr != nil {
		fmt.Fprintf(out, "\n❌ %d of %d files failed\n", failed, len(args))
		return fmt.Errorf("%d of %d files failed: %w", failed, len(args), runErr)
	}

	fmt.Fprintf(out, "\n✅ Processing completed successfully!\n")
	fmt.Fprintf(out, "Produced %d clip(s) from %d file(s)\n", clips, len(args))
	return nil
}

func newSink(ctx context.Context) (output.Sink, error) {
	if cfg.S3Enabled() {
		sink, err := output.NewS3Sink(ctx, cfg.Output.Dir, cfg.S3Sink())
		if err != nil {
			return nil, fmt.Errorf("failed to set up S3 output: %w", err)
		}
		return sink, nil
	}

	sink, err := output.NewLocalSink(cfg.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to set up output directory: %w", err)
	}
	return sink, nil
}

func printResult(cmd *cobra.Command, done, total int, r batch.Result, verbose bool) {
	out := cmd.OutOrStdout()
	if r.Err != nil {
		fmt.Fprintf(out, "[%d/%d] %s ✗ %v\n", done, total, r.Input, r.Err)
		return
	}

	fmt.Fprintf(out, "[%d/%d] %s ✓ (%.2fs, %dHz, %dch) -> %d clip(s)\n",
		done, total, r.Input, r.Duration, r.SampleRate, r.Channels, len(r.Clips))
	for _, c := range r.Clips {
		target := c.Location
		if target == "" {
			target = output.ClipName(output.Stem(r.Input), c.Index)
		}
		level := "-inf"
		if c.Level != nil {
			level = fmt.Sprintf("%.1f", c.Level.RMSLevel)
		}
		fmt.Fprintf(out, "    %s  %8.2fs - %8.2fs  %s dBFS\n", target, c.Start, c.End, level)
		if verbose && c.Level != nil {
			c.Level.Filename = target
			c.Level.Print(out)
		}
	}
}
