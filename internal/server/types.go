// Package server provides the HTTP API of the slicer.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// SliceQuery holds the optional per-request parameter overrides of POST /slice.
// Nil fields keep the server defaults.
type SliceQuery struct {
	DBThresh    *float64 `validate:"omitempty,gte=-120,lte=0"`
	MinLength   *int     `validate:"omitempty,gt=0"`
	MinInterval *int     `validate:"omitempty,gt=0"`
	HopSize     *int     `validate:"omitempty,gt=0"`
	MaxSilKept  *int     `validate:"omitempty,gt=0"`
}

// SliceResponse is the HTTP response of POST /slice.
type SliceResponse struct {
	// SampleRate of the uploaded audio in Hz.
	SampleRate int `json:"sample_rate"`
	// Channels of the uploaded audio.
	Channels int `json:"channels"`
	// Frames is the number of frames in the upload.
	Frames int `json:"frames"`
	// Duration of the upload in seconds.
	Duration float64 `json:"duration"`
	// Ranges are the non-silent parts, in order.
	Ranges []RangeResponse `json:"ranges"`
}

// RangeResponse describes one non-silent range.
type RangeResponse struct {
	BeginFrame int     `json:"begin_frame"`
	EndFrame   int     `json:"end_frame"`
	StartSec   float64 `json:"start_sec"`
	EndSec     float64 `json:"end_sec"`
	// RMSDB is the RMS level of the range in dBFS; null for digital silence.
	RMSDB *float64 `json:"rms_db"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
