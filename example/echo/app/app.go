// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/conduitframework/conduit"
	"github.com/conduitframework/conduit/app"
	"github.com/conduitframework/conduit/health"
	"github.com/conduitframework/conduit/http"
	"github.com/conduitframework/conduit/http/bind"
	"github.com/conduitframework/conduit/http/router"
	"github.com/conduitframework/conduit/otelslog"
	"github.com/conduitframework/conduit/server"
	"github.com/conduitframework/conduit/stream"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Config struct {
	Logging struct {
		Level slog.Level `config:"level"`
	} `config:"logging"`

	Http server.Config `config:"http"`
}

// InitializeOTel implements the appbuilder.OTelInitializer interface.
func (c Config) InitializeOTel(ctx context.Context) error {
	exp, err := stdouttrace.New()
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
	)
	otel.SetTracerProvider(tp)
	return nil
}

// Init builds the echo service.
func Init(ctx context.Context, cfg Config) (conduit.App, error) {
	logHandler := otelslog.NewHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.Logging.Level,
		AddSource: true,
	}))

	var liveness health.Binary

	rt := router.NewRouter()
	rt.Register(
		router.Get(
			"/echo/{msg}",
			router.HandlerFunc(echoPath),
			router.Args(
				bind.Argument{Name: "msg", Type: "string", Source: bind.SourcePath},
				bind.Argument{Name: "loud", Type: "string", Source: bind.SourceQuery, Optional: true},
			),
			router.Named("echo.Path"),
			router.Returns("string"),
		),
		router.Post(
			"/echo",
			router.HandlerFunc(echoBody),
			router.Args(
				bind.Argument{Name: "body", Type: "[]byte", Source: bind.SourceRawBody},
			),
			router.Named("echo.Body"),
			router.Returns("[]byte"),
		),
		router.Post(
			"/users",
			router.HandlerFunc(createUser),
			router.Args(
				bind.Argument{Name: "user", Type: "object", Source: bind.SourceBody},
			),
			router.Consumes(http.MediaTypeJson),
			router.Named("echo.CreateUser"),
			router.Returns("object"),
		),
		router.Post(
			"/count",
			router.HandlerFunc(countBody),
			router.Args(
				bind.Argument{Name: "body", Type: "stream", Source: bind.SourceBodyStream},
			),
			router.Named("echo.Count"),
			router.Returns("string"),
		),
		router.Get(
			"/openapi.json",
			router.HandlerFunc(func(_ context.Context, _ map[string]any) (any, error) {
				return rt.OpenApi("echo", "v0.1.0")
			}),
			router.Named("echo.OpenApi"),
			router.Returns("object"),
		),
		health.Endpoint("/health/liveness", &liveness),
	)

	srv := server.FromConfig(
		cfg.Http,
		rt,
		server.LogHandler(logHandler),
	)

	return app.WithSignalNotifications(srv, os.Interrupt, os.Kill), nil
}

func echoPath(_ context.Context, args map[string]any) (any, error) {
	msg := args["msg"].(string)

	loud := args["loud"].(bind.Opt)
	if loud.Present {
		msg += "!"
	}
	return msg, nil
}

func echoBody(_ context.Context, args map[string]any) (any, error) {
	return args["body"].([]byte), nil
}

func createUser(_ context.Context, args map[string]any) (any, error) {
	user, ok := args["user"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object")
	}

	return map[string]any{
		"created": user["name"],
	}, nil
}

type countSubscriber struct {
	n int
}

func (s *countSubscriber) OnNext(chunk []byte) { s.n += len(chunk) }
func (s *countSubscriber) OnComplete()         {}
func (s *countSubscriber) OnError(error)       {}
func (s *countSubscriber) OnCancel()           {}

func countBody(ctx context.Context, args map[string]any) (any, error) {
	body := args["body"].(stream.Publisher[[]byte])

	var sub countSubscriber
	stream.Trace(body, otel.Tracer("app"), "countBody").Subscribe(ctx, &sub)

	return fmt.Sprintf("%d bytes", sub.n), nil
}
