package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"audio-slicer/internal/metrics"
	"audio-slicer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the slicer over HTTP",
	Long: `serve starts an HTTP API. POST a WAV file to /slice to get its non-silent
ranges as JSON; slicing parameters can be overridden per request with the
db_thresh, min_length, min_interval, hop_size and max_sil_kept query parameters.
Prometheus metrics are exposed on /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagCfg.Server.Addr, "addr", flagCfg.Server.Addr, "Listen address")
	serveCmd.Flags().IntVar(&flagCfg.Server.MaxUploadMB, "max-upload-mb", flagCfg.Server.MaxUploadMB,
		"Maximum WAV upload size in MiB")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	logger.Info("starting audio-slicer API",
		slog.String("addr", cfg.Server.Addr),
		slog.Int("max_upload_mb", cfg.Server.MaxUploadMB),
		slog.String("config", cfg.String()),
	)

	handlers := server.NewHandlers(cfg.Params(), logger,
		server.WithMaxBodyBytes(int64(cfg.Server.MaxUploadMB)<<20),
		server.WithMetrics(m),
	)
	router := server.NewRouter(handlers, logger, m, reg)

	shutdown := time.Duration(cfg.Server.ShutdownTimeoutSec) * time.Second
	if err := server.ListenAndServe(cmd.Context(), cfg.Server.Addr, router, shutdown, logger); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
