package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"audio-slicer/internal/audio"
	"audio-slicer/internal/loudness"
	"audio-slicer/internal/metrics"
	"audio-slicer/internal/slicer"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	params    slicer.Params
	maxBody   int64
	validator *validator.Validate
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxBodyBytes limits the size of uploaded WAV bodies.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		h.maxBody = n
	}
}

// WithMetrics records slicing metrics for every request.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handlers) {
		h.metrics = m
	}
}

// NewHandlers creates a new Handlers instance slicing with params unless a request overrides them.
func NewHandlers(params slicer.Params, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		params:    params,
		maxBody:   256 << 20,
		validator: validator.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Slice handles POST /slice requests. The body is a WAV file.
func (h *Handlers) Slice(w http.ResponseWriter, r *http.Request) {
	q, err := parseSliceQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	if err := h.validator.Struct(q); err != nil {
		h.logger.Warn("request validation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	params := q.apply(h.params)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit), "BODY_TOO_LARGE")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body", "INVALID_BODY")
		return
	}

	ad, err := audio.DecodeWAV(bytes.NewReader(body), "upload")
	if err != nil {
		h.logger.Warn("invalid upload", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_AUDIO")
		return
	}

	s, err := slicer.New(ad.SampleRate, params)
	if err != nil {
		if errors.Is(err, slicer.ErrInvalidConfiguration) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_CONFIGURATION")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to build slicer", "INTERNAL_ERROR")
		return
	}

	started := time.Now()
	ranges := s.Slice(ad.Float32(), ad.Channels)
	elapsed := time.Since(started)

	resp := SliceResponse{
		SampleRate: ad.SampleRate,
		Channels:   ad.Channels,
		Frames:     ad.GetFrameCount(),
		Duration:   ad.Duration,
		Ranges:     make([]RangeResponse, 0, len(ranges)),
	}

	var kept float64
	for _, rg := range ranges {
		start, end := rg.Seconds(ad.SampleRate)
		kept += end - start
		item := RangeResponse{BeginFrame: rg.Begin, EndFrame: rg.End, StartSec: start, EndSec: end}
		if level, err := loudness.Measure(ad.Clip(rg.Begin, rg.End)); err == nil && !math.IsInf(level.RMSLevel, 0) {
			item.RMSDB = &level.RMSLevel
		}
		resp.Ranges = append(resp.Ranges, item)
	}

	if h.metrics != nil {
		h.metrics.ObserveSlice(elapsed, ad.Duration, kept, len(ranges))
	}

	h.logger.Info("sliced upload",
		slog.Int("sample_rate", ad.SampleRate),
		slog.Int("channels", ad.Channels),
		slog.Float64("duration", ad.Duration),
		slog.Int("ranges", len(ranges)),
	)

	writeJSON(w, http.StatusOK, resp)
}

func parseSliceQuery(v url.Values) (SliceQuery, error) {
	var q SliceQuery

	if s := v.Get("db_thresh"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return q, fmt.Errorf("db_thresh: %w", err)
		}
		q.DBThresh = &f
	}

	ints := []struct {
		name string
		dst  **int
	}{
		{"min_length", &q.MinLength},
		{"min_interval", &q.MinInterval},
		{"hop_size", &q.HopSize},
		{"max_sil_kept", &q.MaxSilKept},
	}
	for _, p := range ints {
		s := v.Get(p.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, fmt.Errorf("%s: %w", p.name, err)
		}
		*p.dst = &n
	}

	return q, nil
}

func (q SliceQuery) apply(p slicer.Params) slicer.Params {
	if q.DBThresh != nil {
		p.ThresholdDB = *q.DBThresh
	}
	if q.MinLength != nil {
		p.MinLengthMs = *q.MinLength
	}
	if q.MinInterval != nil {
		p.MinIntervalMs = *q.MinInterval
	}
	if q.HopSize != nil {
		p.HopSizeMs = *q.HopSize
	}
	if q.MaxSilKept != nil {
		p.MaxSilKeptMs = *q.MaxSilKept
	}
	return p
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
