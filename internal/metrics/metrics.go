package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// File outcome labels
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics contains all Prometheus metrics for the slicer
type Metrics struct {
	// Batch metrics
	FilesProcessed *prometheus.CounterVec
	ClipsWritten   prometheus.Counter
	AudioSecondsIn prometheus.Counter
	SecondsKept    prometheus.Counter
	SliceDuration  prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FilesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "slicer_files_processed_total",
			Help: "Total number of input files processed, by outcome",
		}, []string{"status"}),
		ClipsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "slicer_clips_written_total",
			Help: "Total number of clips produced",
		}),
		AudioSecondsIn: factory.NewCounter(prometheus.CounterOpts{
			Name: "slicer_audio_input_seconds_total",
			Help: "Total duration of decoded input audio",
		}),
		SecondsKept: factory.NewCounter(prometheus.CounterOpts{
			Name: "slicer_audio_kept_seconds_total",
			Help: "Total duration of audio kept in clips",
		}),
		SliceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "slicer_slice_duration_seconds",
			Help:    "Time spent slicing one waveform",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "slicer_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slicer_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveSlice records one slicing pass
func (m *Metrics) ObserveSlice(elapsed time.Duration, inputSec, keptSec float64, clips int) {
	m.SliceDuration.Observe(elapsed.Seconds())
	m.AudioSecondsIn.Add(inputSec)
	m.SecondsKept.Add(keptSec)
	m.ClipsWritten.Add(float64(clips))
}

// FileDone records the outcome of one input file
func (m *Metrics) FileDone(err error) {
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	m.FilesProcessed.WithLabelValues(status).Inc()
}

// WriteToTextfile dumps the metrics gathered by g in text exposition format
func WriteToTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
