// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http

import (
	"net/url"

	"github.com/conduitframework/conduit/stream"
)

// Request is an inbound request already parsed by a codec into
// method, path, headers and a body source. It is owned exclusively
// by the processing of a single request/response cycle and must not
// be retained afterwards.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Proto    string
	Headers  Headers

	// PathParams holds the variables extracted from the matched
	// route's path pattern. The router populates it once a route
	// accepts the request.
	PathParams map[string]string

	// Body is the request body source. A nil Body means the request
	// genuinely carries no body. Codecs deliver fully buffered
	// bodies as a single-chunk publisher (see [stream.Of]) and
	// streamed bodies as an open-ended chunk publisher.
	Body stream.Publisher[[]byte]

	query url.Values
}

// HasBody reports whether the request carries a body source.
func (r *Request) HasBody() bool {
	return r.Body != nil
}

// ContentType returns the parsed Content-Type media type.
func (r *Request) ContentType() MediaType {
	return ParseMediaType(r.Headers.Get("Content-Type"))
}

// Query returns the parsed query string values. The parse happens
// once; malformed pairs are dropped.
func (r *Request) Query() url.Values {
	if r.query == nil {
		vs, err := url.ParseQuery(r.RawQuery)
		if err != nil && vs == nil {
			vs = make(url.Values)
		}
		r.query = vs
	}
	return r.query
}

// KeepAlive reports whether the connection should be kept open after
// responding, per HTTP/1.0 and HTTP/1.1 negotiation rules.
func (r *Request) KeepAlive() bool {
	conn := r.Headers.Get("Connection")
	if r.Proto == "HTTP/1.0" {
		return conn == "keep-alive"
	}
	return conn != "close"
}
