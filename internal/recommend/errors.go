// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package recommend

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrTimeout             = errors.New("timeout")
)

// Kind names an error class for logs, metrics and API error codes.
type Kind string

const (
	KindNone                Kind = ""
	KindInvalidInput        Kind = "INVALID_INPUT"
	KindNotFound            Kind = "NOT_FOUND"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindTimeout             Kind = "TIMEOUT"
	KindInternal            Kind = "INTERNAL_ERROR"
)

// KindOf classifies err. Context errors count as timeouts.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTimeout
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	default:
		return KindInternal
	}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// timeoutError wraps a context error so both ErrTimeout and the original
// context error match errors.Is.
func timeoutError(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrTimeout, op, cause)
}

// isContextErr reports whether err stems from cancellation or a deadline.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
