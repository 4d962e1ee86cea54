// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package stream defines the contracts for finite, non-restartable
// streams of values, such as an incoming HTTP request body.
//
// A [Publisher] delivers zero or more values to a [Subscriber]
// followed by exactly one terminal signal: OnComplete, OnError or
// OnCancel. After a terminal signal no further signals may be
// delivered. OnCancel signals that the underlying source went away
// (for example, the connection closed); subscribers must release any
// buffered state without producing a result.
package stream

import "context"

// Subscriber consumes the values delivered by a [Publisher].
type Subscriber[T any] interface {
	OnNext(T)
	OnComplete()
	OnError(error)
	OnCancel()
}

// Publisher represents a finite stream of values.
type Publisher[T any] interface {
	Subscribe(context.Context, Subscriber[T])
}

type buffered[T any] struct {
	values []T
}

// Of returns a [Publisher] which synchronously delivers the given
// values to any subscriber and then completes. It is meant for
// sources whose content is already fully available.
func Of[T any](values ...T) Publisher[T] {
	return buffered[T]{values: values}
}

// Subscribe implements the [Publisher] interface.
func (p buffered[T]) Subscribe(ctx context.Context, s Subscriber[T]) {
	for _, v := range p.values {
		if ctx.Err() != nil {
			s.OnCancel()
			return
		}
		s.OnNext(v)
	}
	s.OnComplete()
}
