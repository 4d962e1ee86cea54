// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app provides helpers for common conduit.App implementation patterns.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/conduitframework/conduit"
	"github.com/conduitframework/conduit/internal/try"
	"github.com/conduitframework/conduit/lifecycle"
)

type runFunc func(context.Context) error

func (f runFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Recover will wrap the given [conduit.App] with panic recovery.
// If the recovered panic value implements [error] then it will
// be directly returned. If it does not implement [error] then a
// [try.PanicError] will be returned instead.
func Recover(app conduit.App) conduit.App {
	return runFunc(func(ctx context.Context) (err error) {
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

// WithSignalNotifications wraps a given [conduit.App] in an implementation
// that cancels the [context.Context] that's passed to app.Run if an [os.Signal]
// is received by the running process.
func WithSignalNotifications(app conduit.App, signals ...os.Signal) conduit.App {
	return runFunc(func(ctx context.Context) error {
		sigCtx, cancel := signal.NotifyContext(ctx, signals...)
		defer cancel()

		return app.Run(sigCtx)
	})
}

// PostRun wraps a given [conduit.App] in an implementation that always
// runs the given [lifecycle.Hook] after app.Run returns, regardless of
// whether app.Run failed or panicked.
func PostRun(app conduit.App, hook lifecycle.Hook) conduit.App {
	return runFunc(func(ctx context.Context) (err error) {
		defer runPostRunHook(ctx, hook, &err)
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

func runPostRunHook(ctx context.Context, hook lifecycle.Hook, err *error) {
	if hook == nil {
		return
	}

	hookErr := hook.Run(ctx)

	// errors.Join will not return an error if both
	// *err and hookErr are nil.
	*err = errors.Join(*err, hookErr)
}
