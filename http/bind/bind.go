// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package bind resolves handler arguments from an inbound request.
//
// Every route argument is described by an [Argument] and resolved by
// a [Binder]. Binder capability is an explicit, closed set (see
// [Kind]): plain binders produce a value from the already parsed
// request, non-blocking body binders can produce a value before the
// body completes and blocking body binders require the fully
// assembled body. The dispatcher branches exhaustively on [Kind]
// instead of inspecting binder implementations.
package bind

import (
	"encoding/json"

	"github.com/conduitframework/conduit/http"
)

// Source identifies where an argument's value is bound from.
type Source int

const (
	// SourceAuto resolves from a path variable, then a query
	// parameter, then a header, by argument name.
	SourceAuto Source = iota
	// SourcePath resolves from a path variable.
	SourcePath
	// SourceQuery resolves from a query parameter.
	SourceQuery
	// SourceHeader resolves from a request header.
	SourceHeader
	// SourceBody resolves from the decoded request body.
	SourceBody
	// SourceRawBody resolves from the raw request body bytes.
	SourceRawBody
	// SourceBodyStream resolves to the live body chunk stream
	// itself, without waiting for the body to complete.
	SourceBodyStream
)

// Argument describes one required handler argument. Arguments are
// immutable and owned by their route.
type Argument struct {
	Name string
	// Type is a human readable type descriptor used for
	// diagnostics and documentation.
	Type string
	Source   Source
	Optional bool
}

// Opt is the recorded value of an optional argument. Optional
// arguments are always recorded, present or not, so handlers can
// distinguish "absent" from "empty".
type Opt struct {
	Value   any
	Present bool
}

// Kind is the capability of a [Binder].
type Kind int

const (
	// KindPlain binders produce a value from already parsed
	// request data.
	KindPlain Kind = iota
	// KindNonBlockingBody binders touch body state but can produce
	// a value without waiting for body completion.
	KindNonBlockingBody
	// KindBlockingBody binders require the fully assembled body
	// and are applied after stream completion.
	KindBlockingBody
)

// Body is the assembled request body presented to blocking body
// binders once the content stream completes.
type Body struct {
	// Bytes is the concatenation of all received chunks.
	Bytes []byte
	// Value is the decoded structured content, when a structured
	// content subscriber parsed one.
	Value any
	// Decoded reports whether Value is populated.
	Decoded bool
}

// Binder resolves one argument's value from a request. Bind
// reports false when no value could be produced. Binders may be
// invoked at most once per argument for a given request and must be
// free of non-idempotent side effects.
type Binder interface {
	Kind() Kind
	Bind(Argument, *http.Request) (any, bool)
}

// BodyBinder is a [Binder] of kind [KindBlockingBody]. BindBody is
// applied once the body is fully assembled.
type BodyBinder interface {
	Binder
	BindBody(Argument, Body) (any, error)
}

// Registry resolves the [Binder] applicable to an argument. It is a
// read-mostly structure shared by all requests; it must not be
// mutated after serving begins.
type Registry struct {
	bySource map[Source]Binder
}

// NewRegistry returns a [Registry] pre-populated with the built-in
// binders for every [Source].
func NewRegistry() *Registry {
	return &Registry{
		bySource: map[Source]Binder{
			SourceAuto:       autoBinder{},
			SourcePath:       pathBinder{},
			SourceQuery:      queryBinder{},
			SourceHeader:     headerBinder{},
			SourceBody:       jsonBodyBinder{},
			SourceRawBody:    rawBodyBinder{},
			SourceBodyStream: streamBodyBinder{},
		},
	}
}

// Register overrides the [Binder] used for the given [Source].
// It must only be called before serving begins.
func (r *Registry) Register(src Source, b Binder) {
	r.bySource[src] = b
}

// FindBinder returns the binder applicable to the given argument
// and request, if any.
func (r *Registry) FindBinder(arg Argument, _ *http.Request) (Binder, bool) {
	b, ok := r.bySource[arg.Source]
	return b, ok
}

type pathBinder struct{}

func (pathBinder) Kind() Kind { return KindPlain }

func (pathBinder) Bind(arg Argument, req *http.Request) (any, bool) {
	v, ok := req.PathParams[arg.Name]
	if !ok {
		return nil, false
	}
	return v, true
}

type queryBinder struct{}

func (queryBinder) Kind() Kind { return KindPlain }

func (queryBinder) Bind(arg Argument, req *http.Request) (any, bool) {
	vs, ok := req.Query()[arg.Name]
	if !ok || len(vs) == 0 {
		return nil, false
	}
	return vs[0], true
}

type headerBinder struct{}

func (headerBinder) Kind() Kind { return KindPlain }

func (headerBinder) Bind(arg Argument, req *http.Request) (any, bool) {
	vs := req.Headers.Values(arg.Name)
	if len(vs) == 0 {
		return nil, false
	}
	return vs[0], true
}

type autoBinder struct{}

func (autoBinder) Kind() Kind { return KindPlain }

func (autoBinder) Bind(arg Argument, req *http.Request) (any, bool) {
	for _, b := range []Binder{pathBinder{}, queryBinder{}, headerBinder{}} {
		v, ok := b.Bind(arg, req)
		if ok {
			return v, true
		}
	}
	return nil, false
}

type rawBodyBinder struct{}

func (rawBodyBinder) Kind() Kind { return KindBlockingBody }

func (rawBodyBinder) Bind(Argument, *http.Request) (any, bool) {
	// requires the assembled body, see BindBody
	return nil, false
}

func (rawBodyBinder) BindBody(_ Argument, body Body) (any, error) {
	return body.Bytes, nil
}

type jsonBodyBinder struct{}

func (jsonBodyBinder) Kind() Kind { return KindBlockingBody }

func (jsonBodyBinder) Bind(Argument, *http.Request) (any, bool) {
	// requires the assembled body, see BindBody
	return nil, false
}

// DecodeError occurs when the request body can not be decoded into
// the representation an argument requires.
type DecodeError struct {
	Argument string
	Cause    error
}

// Error implements the [builtin.error] interface.
func (e DecodeError) Error() string {
	return "failed to decode body for argument " + e.Argument + ": " + e.Cause.Error()
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e DecodeError) Unwrap() error {
	return e.Cause
}

func (jsonBodyBinder) BindBody(arg Argument, body Body) (any, error) {
	if body.Decoded {
		return body.Value, nil
	}

	var v any
	err := json.Unmarshal(body.Bytes, &v)
	if err != nil {
		return nil, DecodeError{Argument: arg.Name, Cause: err}
	}
	return v, nil
}

type streamBodyBinder struct{}

func (streamBodyBinder) Kind() Kind { return KindNonBlockingBody }

func (streamBodyBinder) Bind(_ Argument, req *http.Request) (any, bool) {
	if !req.HasBody() {
		return nil, false
	}
	return req.Body, true
}
