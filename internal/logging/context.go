// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey struct{}

// requestScope is what the RequestID middleware attaches to a request.
type requestScope struct {
	requestID     string
	correlationID string
	logger        zerolog.Logger
}

// NewCorrelationID returns a short random ID for grouping log lines.
func NewCorrelationID() string {
	return uuid.New().String()[:8]
}

// WithRequest stores the request and correlation IDs in ctx together with a
// child of the global logger that carries both.
func WithRequest(ctx context.Context, requestID, correlationID string) context.Context {
	return withRequestLogger(ctx, Logger(), requestID, correlationID)
}

//nolint:gocritic // zerolog.Logger is passed by value
func withRequestLogger(ctx context.Context, base zerolog.Logger, requestID, correlationID string) context.Context {
	zctx := base.With()
	if requestID != "" {
		zctx = zctx.Str("request_id", requestID)
	}
	if correlationID != "" {
		zctx = zctx.Str("correlation_id", correlationID)
	}
	return context.WithValue(ctx, ctxKey{}, &requestScope{
		requestID:     requestID,
		correlationID: correlationID,
		logger:        zctx.Logger(),
	})
}

func scopeFrom(ctx context.Context) *requestScope {
	s, _ := ctx.Value(ctxKey{}).(*requestScope)
	return s
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	if s := scopeFrom(ctx); s != nil {
		return s.requestID
	}
	return ""
}

// CorrelationIDFromContext returns the correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if s := scopeFrom(ctx); s != nil {
		return s.correlationID
	}
	return ""
}

// Ctx returns the request logger stored by WithRequest, or the global logger
// outside a request.
func Ctx(ctx context.Context) *zerolog.Logger {
	var l zerolog.Logger
	if s := scopeFrom(ctx); s != nil {
		l = s.logger
	} else {
		l = Logger()
	}
	return &l
}
