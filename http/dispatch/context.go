// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package dispatch

import (
	"github.com/conduitframework/conduit/http/bind"
	"github.com/conduitframework/conduit/http/router"
)

type deferredBind struct {
	arg    bind.Argument
	binder bind.BodyBinder
}

// RequestContext is the per-request mutable state threaded through
// the dispatch stages. It is owned exclusively by the processing of
// a single request/response cycle and must never be referenced after
// the response is sent or the connection resets.
type RequestContext struct {
	match    *router.Match
	values   map[string]any
	deferred []deferredBind
}

func newRequestContext(match *router.Match) *RequestContext {
	return &RequestContext{
		match:  match,
		values: make(map[string]any),
	}
}

// Route returns the match selected for this request.
func (c *RequestContext) Route() *router.Match {
	return c.match
}

// Record assigns the resolved value for the named argument. Each
// argument is bound at most once; Record reports false, leaving the
// earlier value in place, when the name was already assigned.
func (c *RequestContext) Record(name string, value any) bool {
	if _, ok := c.values[name]; ok {
		return false
	}
	c.values[name] = value
	return true
}

// Values returns the argument value map for handler invocation.
func (c *RequestContext) Values() map[string]any {
	return c.values
}

// Defer registers a blocking body binder to be applied once the
// request body is fully assembled. A request context with at least
// one deferred bind requires a body.
func (c *RequestContext) Defer(arg bind.Argument, binder bind.BodyBinder) {
	c.deferred = append(c.deferred, deferredBind{arg: arg, binder: binder})
}

// RequiresBody reports whether any argument is waiting on the
// assembled request body.
func (c *RequestContext) RequiresBody() bool {
	return len(c.deferred) > 0
}
