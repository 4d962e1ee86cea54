// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package dispatch implements the request-dispatch engine: route
// lookup, argument resolution, execute-or-defer and response
// transmission.
//
// [Dispatcher.OnRequest] produces exactly one response per request.
// Routes whose arguments resolve from already parsed data execute
// inline; routes needing the assembled body attach a content
// subscriber to the body stream and execute once it completes. Every
// failure branch maps to a well-formed status response, so no
// request-handling error ever leaves a connection hung.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/conduitframework/conduit/http"
	"github.com/conduitframework/conduit/http/bind"
	"github.com/conduitframework/conduit/http/router"
	"github.com/conduitframework/conduit/internal/noop"
	"github.com/conduitframework/conduit/internal/try"
	"github.com/conduitframework/conduit/slogfield"

	"go.opentelemetry.io/otel"
)

// DefaultCharset is the charset applied to text responses unless
// configured otherwise.
const DefaultCharset = "utf-8"

// Dispatcher orchestrates the processing of inbound requests. It is
// a read-mostly structure shared by all connections and must not be
// mutated once serving begins.
type Dispatcher struct {
	log     *slog.Logger
	router  *router.Router
	binders *bind.Registry

	charset          string
	unbindableStatus int
}

// Option represents configurable attributes of a [Dispatcher].
type Option func(*Dispatcher)

// LogHandler sets the slog.Handler used for dispatch logging.
func LogHandler(h slog.Handler) Option {
	return func(d *Dispatcher) {
		d.log = slog.New(h)
	}
}

// Binders sets the binder registry consulted during argument
// resolution.
func Binders(r *bind.Registry) Option {
	return func(d *Dispatcher) {
		d.binders = r
	}
}

// Charset sets the charset applied to text responses.
func Charset(cs string) Option {
	return func(d *Dispatcher) {
		d.charset = cs
	}
}

// UnbindableStatus sets the status responded when a required
// non-body argument can not be resolved. The default treats an
// unbindable argument as a routing miss and responds 404; set 400 to
// surface it as a client error instead.
func UnbindableStatus(status int) Option {
	return func(d *Dispatcher) {
		d.unbindableStatus = status
	}
}

// New initializes a [Dispatcher] over the given route table.
func New(rt *router.Router, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:              slog.New(noop.LogHandler{}),
		router:           rt,
		binders:          bind.NewRegistry(),
		charset:          DefaultCharset,
		unbindableStatus: http.StatusNotFound,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnRequest processes one inbound request and produces exactly one
// response on w. All request-handling failures are converted into
// status responses; the returned error is only ever a fatal wire
// write failure, upon which the caller must close the connection.
//
// For routes awaiting a body, the content subscriber is attached to
// req.Body before OnRequest returns; execution and transmission then
// happen on whichever goroutine delivers the body's terminal signal.
func (d *Dispatcher) OnRequest(ctx context.Context, req *http.Request, w http.ResponseWriter) error {
	spanCtx, span := otel.Tracer("dispatch").Start(ctx, "Dispatcher.OnRequest")
	defer span.End()

	t := NewTransmitter(w, d.charset)

	d.log.DebugContext(
		spanCtx,
		"matching route",
		slogfield.String("http_method", req.Method),
		slogfield.String("http_path", req.Path),
	)

	match := d.selectRoute(req)
	if match == nil {
		d.sendMiss(spanCtx, req, t)
		return t.Err()
	}
	d.log.DebugContext(
		spanCtx,
		"matched route",
		slogfield.String("http_method", req.Method),
		slogfield.String("http_path", req.Path),
		slogfield.String("route", match.DeclaringName()),
	)

	rctx := newRequestContext(match)

	unresolved, ok := d.resolveArguments(rctx, req)
	if !ok {
		d.log.DebugContext(
			spanCtx,
			"failed to resolve argument",
			slogfield.String("route", match.DeclaringName()),
			slogfield.String("argument", unresolved),
		)
		t.SendStatus(d.unbindableStatus)
		return t.Err()
	}

	if !rctx.RequiresBody() {
		d.execute(spanCtx, rctx, t)
		return t.Err()
	}

	if !req.HasBody() {
		d.log.DebugContext(
			spanCtx,
			"request body expected, but was empty",
			slogfield.String("route", match.DeclaringName()),
		)
		t.SendBadRequest()
		return t.Err()
	}

	req.Body.Subscribe(spanCtx, d.contentSubscriber(spanCtx, req.ContentType(), rctx, t))
	return t.Err()
}

// selectRoute picks the first match, in router order, whose
// predicate accepts the live request.
func (d *Dispatcher) selectRoute(req *http.Request) *router.Match {
	for _, m := range d.router.Find(req.Method, req.Path) {
		if !m.Test(req) {
			continue
		}
		req.PathParams = m.PathParams()
		return m
	}
	return nil
}

// resolveArguments walks the route's arguments in declared order.
// It reports false, naming the argument, when a required argument
// can not be resolved and the route is not waiting on a body.
func (d *Dispatcher) resolveArguments(rctx *RequestContext, req *http.Request) (string, bool) {
	for _, arg := range rctx.Route().Arguments() {
		binder, found := d.binders.FindBinder(arg, req)
		if found {
			switch binder.Kind() {
			case bind.KindBlockingBody:
				rctx.Defer(arg, binder.(bind.BodyBinder))
				continue
			case bind.KindNonBlockingBody:
				v, ok := binder.Bind(arg, req)
				if ok {
					rctx.Record(arg.Name, v)
					continue
				}
			case bind.KindPlain:
				v, ok := binder.Bind(arg, req)
				if arg.Optional {
					rctx.Record(arg.Name, bind.Opt{Value: v, Present: ok})
					continue
				}
				if ok {
					rctx.Record(arg.Name, v)
					continue
				}
			}
		}

		// The argument stays unresolved. That only fails the
		// request when no body is pending; a deferred bind may
		// still satisfy the route once the body completes.
		if !rctx.RequiresBody() {
			return arg.Name, false
		}
	}
	return "", true
}

// sendMiss responds to a request no route accepted: 405 with the
// allowed methods when the path is known under other methods, 404
// otherwise.
func (d *Dispatcher) sendMiss(ctx context.Context, req *http.Request, t *Transmitter) {
	matches := d.router.FindAny(req.Path)
	if len(matches) == 0 {
		d.log.DebugContext(
			ctx,
			"no matching route",
			slogfield.String("http_method", req.Method),
			slogfield.String("http_path", req.Path),
		)
		t.SendNotFound()
		return
	}

	var allow []string
	seen := make(map[string]struct{})
	for _, m := range matches {
		if _, ok := seen[m.Method()]; ok {
			continue
		}
		seen[m.Method()] = struct{}{}
		allow = append(allow, m.Method())
	}

	d.log.DebugContext(
		ctx,
		"no route for method",
		slogfield.String("http_method", req.Method),
		slogfield.String("http_path", req.Path),
		slogfield.Strings("allowed_methods", allow),
	)
	t.SendMethodNotAllowed(allow)
}

// execute invokes the route's handler with the resolved argument map
// and transmits its result. Handler failures, panics included, are
// logged server side and responded as a bare 500.
func (d *Dispatcher) execute(ctx context.Context, rctx *RequestContext, t *Transmitter) {
	spanCtx, span := otel.Tracer("dispatch").Start(ctx, "execute")
	defer span.End()

	result, err := invoke(spanCtx, rctx)
	if err != nil {
		d.log.ErrorContext(
			spanCtx,
			"handler failed",
			slogfield.String("route", rctx.Route().DeclaringName()),
			slogfield.Error(err),
		)
		t.SendServerError()
		return
	}

	err = t.SendResult(result)
	if err != nil {
		d.log.ErrorContext(
			spanCtx,
			"failed to encode handler result",
			slogfield.String("route", rctx.Route().DeclaringName()),
			slogfield.String("return_type", rctx.Route().ReturnType()),
			slogfield.Error(err),
		)
		t.SendServerError()
	}
}

func invoke(ctx context.Context, rctx *RequestContext) (_ any, err error) {
	defer try.Recover(&err)

	return rctx.Route().Execute(ctx, rctx.Values())
}
