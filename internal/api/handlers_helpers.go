// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vitalis/internal/logging"
	"github.com/tomtom215/vitalis/internal/models"
	"github.com/tomtom215/vitalis/internal/recommend"
	"github.com/tomtom215/vitalis/internal/validation"
)

// Error codes for API responses
const (
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeTimeout             = "TIMEOUT"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// maxBodyBytes bounds request bodies. A daily request carries one
// 1536-dimension vector per category.
const maxBodyBytes = 1 << 20

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in the success envelope.
func respondSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			RequestID:   logging.RequestIDFromContext(r.Context()),
		},
	})
}

// respondError sends an error envelope.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// statusForKind maps an error kind onto its HTTP status and API code.
func statusForKind(kind recommend.Kind) (int, string) {
	switch kind {
	case recommend.KindInvalidInput:
		return http.StatusBadRequest, ErrCodeInvalidInput
	case recommend.KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case recommend.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable
	case recommend.KindTimeout:
		return http.StatusGatewayTimeout, ErrCodeTimeout
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// respondServiceError classifies err and sends the matching error envelope.
// Internal errors are logged and replaced with a generic message.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := recommend.KindOf(err)
	status, code := statusForKind(kind)

	message := err.Error()
	switch kind {
	case recommend.KindInternal:
		logging.Ctx(r.Context()).Error().Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
		message = "Internal server error"
	case recommend.KindUpstreamUnavailable, recommend.KindTimeout:
		logging.Ctx(r.Context()).Warn().Str("code", code).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}
	respondError(w, r, status, code, message, nil)
}

// respondValidationError sends a VALIDATION_ERROR envelope.
func respondValidationError(w http.ResponseWriter, r *http.Request, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
}

// decodeJSONBody decodes a bounded JSON body into dst. An empty body is
// reported as io.EOF so callers can treat the body as optional.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	return nil
}

// requireJSONBody decodes a mandatory body and writes the 400 itself.
func requireJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeJSONBody(w, r, dst); err != nil {
		msg := err.Error()
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		respondError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, msg, nil)
		return false
	}
	return true
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", recommend.ErrInvalidInput, name)
	}
	return v, nil
}

// floatParam parses an optional float query parameter.
func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", recommend.ErrInvalidInput, name)
	}
	return v, nil
}
