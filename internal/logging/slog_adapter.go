// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// NewSlogLogger returns an slog.Logger that writes through logger. sutureslog
// only accepts *slog.Logger, so supervisor events go through here.
//
//nolint:gocritic // zerolog.Logger is passed by value
func NewSlogLogger(logger zerolog.Logger) *slog.Logger {
	return slog.New(&slogHandler{logger: logger})
}

// slogHandler flattens groups into dotted keys. Attributes bound with
// WithAttrs are rendered into the zerolog context once.
type slogHandler struct {
	logger zerolog.Logger
	prefix string
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return zerologLevel(level) >= h.logger.GetLevel()
}

//nolint:gocritic // slog.Handler takes the record by value
func (h *slogHandler) Handle(_ context.Context, rec slog.Record) error {
	ev := h.logger.WithLevel(zerologLevel(rec.Level))
	rec.Attrs(func(a slog.Attr) bool {
		walkAttr(h.prefix, a, func(key string, v slog.Value) {
			ev = appendValue(ev, key, v)
		})
		return true
	})
	ev.Msg(rec.Message)
	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	zctx := h.logger.With()
	for _, a := range attrs {
		walkAttr(h.prefix, a, func(key string, v slog.Value) {
			zctx = zctx.Interface(key, v.Any())
		})
	}
	return &slogHandler{logger: zctx.Logger(), prefix: h.prefix}
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &slogHandler{logger: h.logger, prefix: h.prefix + name + "."}
}

// walkAttr resolves a and calls emit for every leaf, descending into groups.
// Empty attributes are dropped and inline groups (empty key) keep the prefix.
func walkAttr(prefix string, a slog.Attr, emit func(key string, v slog.Value)) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range v.Group() {
			walkAttr(prefix, ga, emit)
		}
		return
	}
	if a.Key == "" {
		return
	}
	emit(prefix+a.Key, v)
}

func appendValue(ev *zerolog.Event, key string, v slog.Value) *zerolog.Event {
	switch v.Kind() {
	case slog.KindString:
		return ev.Str(key, v.String())
	case slog.KindInt64:
		return ev.Int64(key, v.Int64())
	case slog.KindUint64:
		return ev.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		return ev.Float64(key, v.Float64())
	case slog.KindBool:
		return ev.Bool(key, v.Bool())
	case slog.KindDuration:
		return ev.Dur(key, v.Duration())
	case slog.KindTime:
		return ev.Time(key, v.Time())
	default:
		if err, ok := v.Any().(error); ok {
			return ev.AnErr(key, err)
		}
		return ev.Interface(key, v.Any())
	}
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	case level >= slog.LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
