// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package database

import (
	"fmt"
	"io"
	"strings"

	"github.com/tomtom215/vitalis/internal/recommend"
)

var (
	// ErrInvalidRecord is returned when a record fails validation before
	// being written. It matches recommend.ErrInvalidInput.
	ErrInvalidRecord = fmt.Errorf("catalog record: %w", recommend.ErrInvalidInput)

	// ErrNotFound is returned when an update targets a missing row. It
	// matches recommend.ErrNotFound.
	ErrNotFound = fmt.Errorf("catalog record: %w", recommend.ErrNotFound)
)

func invalidRecord(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}

// closeQuietly closes a resource in error paths where the close error is
// not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// isTransactionConflict reports whether err is a DuckDB write conflict.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Transaction conflict") ||
		strings.Contains(msg, "Conflict on update")
}
