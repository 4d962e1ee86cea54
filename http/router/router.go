// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package router resolves an inbound request to the set of routes
// which can handle it.
//
// A [Router] is built once, before serving begins, and is then a
// read-mostly structure shared by every request. [Router.Find]
// returns candidate matches in registration order; tie-breaking
// between accepted matches is the caller's concern.
package router

import (
	"context"
	"strings"

	"github.com/conduitframework/conduit/http"
	"github.com/conduitframework/conduit/http/bind"
)

// Handler executes a route with its resolved argument values.
type Handler interface {
	Handle(ctx context.Context, args map[string]any) (any, error)
}

// HandlerFunc is a functional implementation of the [Handler] interface.
type HandlerFunc func(context.Context, map[string]any) (any, error)

// Handle implements the [Handler] interface.
func (f HandlerFunc) Handle(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// Route is a registered (method, path pattern) to handler binding.
type Route struct {
	method  string
	pattern string

	segments []segment

	name     string
	args     []bind.Argument
	returns  string
	consumes []http.MediaType

	handler Handler
}

// Option represents configurable attributes of a [Route].
type Option func(*Route)

// Args declares the route's required arguments, in the order the
// dispatcher must resolve them.
func Args(args ...bind.Argument) Option {
	return func(r *Route) {
		r.args = args
	}
}

// Consumes restricts the route to requests whose Content-Type
// matches one of the given media types.
func Consumes(mts ...http.MediaType) Option {
	return func(r *Route) {
		r.consumes = mts
	}
}

// Named sets the route's declaring name, used for diagnostics.
func Named(name string) Option {
	return func(r *Route) {
		r.name = name
	}
}

// Returns sets a human readable descriptor of the route's result
// type, used for diagnostics and documentation.
func Returns(t string) Option {
	return func(r *Route) {
		r.returns = t
	}
}

// New initializes a [Route].
func New(method, pattern string, h Handler, opts ...Option) *Route {
	r := &Route{
		method:   method,
		pattern:  pattern,
		segments: parsePattern(pattern),
		name:     method + " " + pattern,
		handler:  h,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns a [Route] configured for handling HTTP GET requests.
func Get(pattern string, h Handler, opts ...Option) *Route {
	return New("GET", pattern, h, opts...)
}

// Post returns a [Route] configured for handling HTTP POST requests.
func Post(pattern string, h Handler, opts ...Option) *Route {
	return New("POST", pattern, h, opts...)
}

// Put returns a [Route] configured for handling HTTP PUT requests.
func Put(pattern string, h Handler, opts ...Option) *Route {
	return New("PUT", pattern, h, opts...)
}

// Delete returns a [Route] configured for handling HTTP DELETE requests.
func Delete(pattern string, h Handler, opts ...Option) *Route {
	return New("DELETE", pattern, h, opts...)
}

type segment struct {
	literal string
	param   string
	rest    bool
}

func parsePattern(pattern string) []segment {
	pattern = strings.TrimPrefix(pattern, "/")

	var segs []segment
	if pattern == "" {
		return segs
	}
	for _, part := range strings.Split(pattern, "/") {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := part[1 : len(part)-1]
			rest := strings.HasSuffix(name, "...")
			segs = append(segs, segment{
				param: strings.TrimSuffix(name, "..."),
				rest:  rest,
			})
			continue
		}
		segs = append(segs, segment{literal: part})
	}
	return segs
}

func (r *Route) match(path string) (map[string]string, bool) {
	path = strings.TrimPrefix(path, "/")

	var parts []string
	if path != "" {
		parts = strings.Split(path, "/")
	}

	var params map[string]string
	for i, seg := range r.segments {
		if seg.rest {
			if params == nil {
				params = make(map[string]string)
			}
			params[seg.param] = strings.Join(parts[i:], "/")
			return params, true
		}
		if i >= len(parts) {
			return nil, false
		}
		if seg.param != "" {
			if parts[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[seg.param] = parts[i]
			continue
		}
		if seg.literal != parts[i] {
			return nil, false
		}
	}
	if len(parts) != len(r.segments) {
		return nil, false
	}
	return params, true
}

// Router holds the registered routes.
type Router struct {
	routes []*Route
}

// NewRouter initializes a [Router].
func NewRouter() *Router {
	return &Router{}
}

// Register adds routes to the router. It must only be called before
// serving begins.
func (rt *Router) Register(routes ...*Route) {
	rt.routes = append(rt.routes, routes...)
}

// Find returns, in registration order, every route bound to the
// given method whose path pattern matches path.
func (rt *Router) Find(method, path string) []*Match {
	var matches []*Match
	for _, r := range rt.routes {
		if r.method != method {
			continue
		}
		params, ok := r.match(path)
		if !ok {
			continue
		}
		matches = append(matches, &Match{route: r, params: params})
	}
	return matches
}

// FindAny returns, in registration order, every route whose path
// pattern matches path regardless of method. It exists to build the
// allowed-methods list for 405 responses.
func (rt *Router) FindAny(path string) []*Match {
	var matches []*Match
	for _, r := range rt.routes {
		params, ok := r.match(path)
		if !ok {
			continue
		}
		matches = append(matches, &Match{route: r, params: params})
	}
	return matches
}

// Match is a route accepted as a candidate for a specific live
// request. It is produced per request, is immutable and must be
// discarded once the request completes.
type Match struct {
	route  *Route
	params map[string]string
}

// Test reports whether the route accepts the live request, e.g.
// whether the request's Content-Type is compatible with what the
// route consumes. Requests without a Content-Type are accepted.
func (m *Match) Test(req *http.Request) bool {
	if len(m.route.consumes) == 0 {
		return true
	}

	ct := req.ContentType()
	if ct == "" {
		return true
	}
	for _, mt := range m.route.consumes {
		if mt == ct {
			return true
		}
	}
	return false
}

// Method returns the route's HTTP method.
func (m *Match) Method() string {
	return m.route.method
}

// DeclaringName returns the route's declaring name, for diagnostics.
func (m *Match) DeclaringName() string {
	return m.route.name
}

// Arguments returns the route's required arguments in declared order.
func (m *Match) Arguments() []bind.Argument {
	return m.route.args
}

// ReturnType returns the route's result type descriptor.
func (m *Match) ReturnType() string {
	return m.route.returns
}

// PathParams returns the path variables extracted from the matched
// pattern.
func (m *Match) PathParams() map[string]string {
	return m.params
}

// Execute invokes the route's handler with the resolved argument
// values.
func (m *Match) Execute(ctx context.Context, args map[string]any) (any, error) {
	return m.route.handler.Handle(ctx, args)
}
