// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package appbuilder provides middleware for common conduit.AppBuilder patterns.
package appbuilder

import (
	"context"

	"github.com/conduitframework/conduit"
	"github.com/conduitframework/conduit/config"
	"github.com/conduitframework/conduit/internal/try"
)

// Recover will wrap the given [conduit.AppBuilder] with panic recovery.
func Recover[T any](builder conduit.AppBuilder[T]) conduit.AppBuilder[T] {
	return conduit.AppBuilderFunc[T](func(ctx context.Context, cfg T) (_ conduit.App, err error) {
		defer try.Recover(&err)

		return builder.Build(ctx, cfg)
	})
}

// FromConfig returns a [conduit.AppBuilder] which unmarshals
// the given [conduit.AppBuilder]s input type, T, from a [config.Source].
func FromConfig[T any](builder conduit.AppBuilder[T]) conduit.AppBuilder[config.Source] {
	return conduit.AppBuilderFunc[config.Source](func(ctx context.Context, src config.Source) (conduit.App, error) {
		m, err := config.Read(src)
		if err != nil {
			return nil, err
		}

		var cfg T
		err = m.Unmarshal(&cfg)
		if err != nil {
			return nil, err
		}

		return builder.Build(ctx, cfg)
	})
}
