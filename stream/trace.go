// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package stream

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Trace decorates the given [Publisher] so a span covers the life of
// each subscription. Every value delivery is recorded as a span
// event and terminal signals set the span status before ending it.
func Trace[T any](p Publisher[T], tracer trace.Tracer, operation string) Publisher[T] {
	return tracePublisher[T]{
		inner:     p,
		tracer:    tracer,
		operation: operation,
	}
}

type tracePublisher[T any] struct {
	inner     Publisher[T]
	tracer    trace.Tracer
	operation string
}

// Subscribe implements the [Publisher] interface.
func (p tracePublisher[T]) Subscribe(ctx context.Context, s Subscriber[T]) {
	spanCtx, span := p.tracer.Start(ctx, p.operation)
	p.inner.Subscribe(spanCtx, traceSubscriber[T]{
		inner: s,
		span:  span,
	})
}

type traceSubscriber[T any] struct {
	inner Subscriber[T]
	span  trace.Span
}

// OnNext implements the [Subscriber] interface.
func (s traceSubscriber[T]) OnNext(v T) {
	s.span.AddEvent("next")
	s.inner.OnNext(v)
}

// OnComplete implements the [Subscriber] interface.
func (s traceSubscriber[T]) OnComplete() {
	s.span.SetStatus(codes.Ok, "")
	s.span.End()
	s.inner.OnComplete()
}

// OnError implements the [Subscriber] interface.
func (s traceSubscriber[T]) OnError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	s.span.End()
	s.inner.OnError(err)
}

// OnCancel implements the [Subscriber] interface.
func (s traceSubscriber[T]) OnCancel() {
	s.span.AddEvent("canceled")
	s.span.End()
	s.inner.OnCancel()
}
