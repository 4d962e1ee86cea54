// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package http defines the wire-level value types shared by every
// stage of the dispatch pipeline: codec, router, binders, dispatcher
// and transmitter.
package http

import (
	"mime"
	"net/textproto"
	"strings"
)

// Headers is a case-insensitive mapping of header names to values.
// Keys are canonicalized on every access, so Headers values can be
// built directly as map literals in tests and route predicates.
type Headers map[string][]string

// Add appends value to the values already associated with name.
func (h Headers) Add(name, value string) {
	key := textproto.CanonicalMIMEHeaderKey(name)
	h[key] = append(h[key], value)
}

// Set replaces any existing values associated with name.
func (h Headers) Set(name, value string) {
	h[textproto.CanonicalMIMEHeaderKey(name)] = []string{value}
}

// Get returns the first value associated with name, or "".
func (h Headers) Get(name string) string {
	vs := h[textproto.CanonicalMIMEHeaderKey(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns all values associated with name.
func (h Headers) Values(name string) []string {
	return h[textproto.CanonicalMIMEHeaderKey(name)]
}

// MediaType is a parsed Content-Type value without its parameters.
type MediaType string

const (
	// MediaTypeJson is the JSON media type.
	MediaTypeJson MediaType = "application/json"
	// MediaTypeText is the plain text media type.
	MediaTypeText MediaType = "text/plain"
	// MediaTypeOctetStream is the opaque binary media type.
	MediaTypeOctetStream MediaType = "application/octet-stream"
)

// ParseMediaType parses a Content-Type header value into a
// [MediaType], dropping any parameters. An empty or malformed value
// parses to "".
func ParseMediaType(v string) MediaType {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return ""
	}
	return MediaType(mt)
}

// IsJson reports whether the media type carries JSON content,
// either application/json itself or any +json structured syntax.
func (mt MediaType) IsJson() bool {
	return mt == MediaTypeJson || strings.HasSuffix(string(mt), "+json")
}

// Response is a fully materialized outbound response, ready for a
// codec to serialize onto the wire.
type Response struct {
	Status  int
	Headers Headers
	Body    []byte
}

// ResponseWriter is the transmitter's view of a connection. A codec
// implementation serializes the response and reports any fatal wire
// failure, upon which it must close the connection.
type ResponseWriter interface {
	WriteResponse(*Response) error
}
