// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelslog correlates slog records with OpenTelemetry spans.
package otelslog

import (
	"context"
	"log/slog"

	"github.com/conduitframework/conduit/slogfield"

	"go.opentelemetry.io/otel/trace"
)

// Handler decorates another slog.Handler so every record emitted
// inside an active span carries the span's trace and span IDs.
type Handler struct {
	next slog.Handler
}

// NewHandler wraps h with span correlation.
func NewHandler(h slog.Handler) *Handler {
	return &Handler{next: h}
}

// New returns a slog.Logger backed by NewHandler(h).
func New(h slog.Handler) *slog.Logger {
	return slog.New(NewHandler(h))
}

// Enabled implements the slog.Handler interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
//
// If ctx carries a valid span context, the record is cloned and an
// "otel" group holding the trace and span IDs is appended before
// delegating to the wrapped handler. Records logged outside of a
// span pass through untouched.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	attr, ok := spanGroup(ctx)
	if !ok {
		return h.next.Handle(ctx, record)
	}

	r := record.Clone()
	r.AddAttrs(attr)
	return h.next.Handle(ctx, r)
}

// WithAttrs implements the slog.Handler interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewHandler(h.next.WithAttrs(attrs))
}

// WithGroup implements the slog.Handler interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return NewHandler(h.next.WithGroup(name))
}

func spanGroup(ctx context.Context) (slog.Attr, bool) {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return slog.Attr{}, false
	}

	attr := slog.Group(
		"otel",
		slogfield.String("trace_id", spanCtx.TraceID().String()),
		slogfield.String("span_id", spanCtx.SpanID().String()),
	)
	return attr, true
}
