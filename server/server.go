// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package server provides a TCP server which parses HTTP/1.x
// requests and feeds them to the dispatch engine. It implements the
// conduit.App interface.
//
// Each connection is served by a single goroutine, so requests on
// one connection are processed and answered strictly in arrival
// order. The number of concurrently served connections is bounded by
// a fixed limit.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/conduitframework/conduit/http"
	"github.com/conduitframework/conduit/http/bind"
	"github.com/conduitframework/conduit/http/dispatch"
	"github.com/conduitframework/conduit/http/router"
	"github.com/conduitframework/conduit/internal/noop"
	"github.com/conduitframework/conduit/slogfield"

	"golang.org/x/sync/errgroup"
)

// Config is the server's representation in config sources.
type Config struct {
	Addr                     string        `config:"addr"`
	DefaultCharset           string        `config:"default_charset"`
	ReadBufferSize           int           `config:"read_buffer_size"`
	KeepAliveTimeout         time.Duration `config:"keep_alive_timeout"`
	MaxConcurrentConnections int           `config:"max_concurrent_connections"`
	UnbindableStatus         int           `config:"unbindable_status"`
}

type options struct {
	addr             string
	logHandler       slog.Handler
	charset          string
	unbindableStatus int
	binders          *bind.Registry
	readBufferSize   int
	keepAliveTimeout time.Duration
	maxConns         int
}

// Option represents configurable attributes of a [Server].
type Option func(*options)

// ListenOn configures the address the server listens on.
//
// Default address is ":8080".
func ListenOn(addr string) Option {
	return func(o *options) {
		o.addr = addr
	}
}

// LogHandler sets the slog.Handler used by the server and its
// dispatcher.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Charset sets the charset applied to text responses.
func Charset(cs string) Option {
	return func(o *options) {
		o.charset = cs
	}
}

// UnbindableStatus sets the status responded when a required
// non-body argument can not be resolved.
func UnbindableStatus(status int) Option {
	return func(o *options) {
		if status == 0 {
			return
		}
		o.unbindableStatus = status
	}
}

// Binders sets the binder registry consulted during argument
// resolution.
func Binders(r *bind.Registry) Option {
	return func(o *options) {
		o.binders = r
	}
}

// ReadBufferSize sets the per connection read and write buffer size.
func ReadBufferSize(n int) Option {
	return func(o *options) {
		if n <= 0 {
			return
		}
		o.readBufferSize = n
	}
}

// KeepAliveTimeout bounds how long an idle keep-alive connection is
// held open waiting for its next request.
func KeepAliveTimeout(d time.Duration) Option {
	return func(o *options) {
		if d <= 0 {
			return
		}
		o.keepAliveTimeout = d
	}
}

// MaxConcurrentConnections bounds how many connections are served at
// the same time. Accepted connections beyond the bound wait for a
// worker slot.
func MaxConcurrentConnections(n int) Option {
	return func(o *options) {
		if n <= 0 {
			return
		}
		o.maxConns = n
	}
}

// Server accepts TCP connections and serves HTTP/1.x requests over
// them via a [dispatch.Dispatcher].
type Server struct {
	addr   string
	listen func(network, addr string) (net.Listener, error)

	log        *slog.Logger
	dispatcher *dispatch.Dispatcher

	readBufferSize   int
	keepAliveTimeout time.Duration
	maxConns         int
}

// New initializes a [Server] over the given route table.
func New(rt *router.Router, opts ...Option) *Server {
	o := &options{
		addr:             ":8080",
		logHandler:       noop.LogHandler{},
		charset:          dispatch.DefaultCharset,
		unbindableStatus: http.StatusNotFound,
		binders:          bind.NewRegistry(),
		readBufferSize:   4096,
		keepAliveTimeout: 10 * time.Second,
		maxConns:         1024,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Server{
		addr:   o.addr,
		listen: net.Listen,
		log:    slog.New(o.logHandler),
		dispatcher: dispatch.New(
			rt,
			dispatch.LogHandler(o.logHandler),
			dispatch.Charset(o.charset),
			dispatch.UnbindableStatus(o.unbindableStatus),
			dispatch.Binders(o.binders),
		),
		readBufferSize:   o.readBufferSize,
		keepAliveTimeout: o.keepAliveTimeout,
		maxConns:         o.maxConns,
	}
}

// FromConfig initializes a [Server] from its config source
// representation. Explicit options take precedence over config
// values.
func FromConfig(cfg Config, rt *router.Router, opts ...Option) *Server {
	base := []Option{
		UnbindableStatus(cfg.UnbindableStatus),
		ReadBufferSize(cfg.ReadBufferSize),
		KeepAliveTimeout(cfg.KeepAliveTimeout),
		MaxConcurrentConnections(cfg.MaxConcurrentConnections),
	}
	if cfg.Addr != "" {
		base = append(base, ListenOn(cfg.Addr))
	}
	if cfg.DefaultCharset != "" {
		base = append(base, Charset(cfg.DefaultCharset))
	}
	return New(rt, append(base, opts...)...)
}

// Run implements the conduit.App interface. It serves connections
// until ctx is cancelled and then waits for in-flight connections to
// wind down.
func (s *Server) Run(ctx context.Context) error {
	ls, err := s.listen("tcp", s.addr)
	if err != nil {
		s.log.Error("failed to listen for connections", slogfield.Error(err))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()

		defer s.log.Info("shut down service")

		s.log.Info("shutting down service")
		return ls.Close()
	})
	g.Go(func() error {
		s.log.Info("started service", slogfield.String("addr", ls.Addr().String()))
		return s.serve(gctx, ls)
	})

	err = g.Wait()
	if err == nil || errors.Is(err, net.ErrClosed) {
		return nil
	}
	s.log.Error("service encountered unexpected error", slogfield.Error(err))
	return err
}

func (s *Server) serve(ctx context.Context, ls net.Listener) error {
	g := new(errgroup.Group)
	g.SetLimit(s.maxConns)

	for {
		conn, err := ls.Accept()
		if err != nil {
			werr := g.Wait()
			if werr != nil {
				return werr
			}
			return err
		}

		g.Go(func() error {
			s.handleConn(ctx, conn)
			return nil
		})
	}
}
