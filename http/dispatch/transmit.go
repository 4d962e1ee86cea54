// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package dispatch

import (
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/conduitframework/conduit/http"
)

var errAlreadySent = errors.New("dispatch: response already sent")

// Transmitter serializes a handler result or an error condition into
// a wire response, exactly once per request. A second send is a
// programming defect; the transmitter guards against it instead of
// writing twice.
type Transmitter struct {
	w       http.ResponseWriter
	charset string

	sent    atomic.Bool
	wireErr error
}

// NewTransmitter returns a [Transmitter] writing to w. Text bodies
// are tagged with the given charset.
func NewTransmitter(w http.ResponseWriter, charset string) *Transmitter {
	return &Transmitter{
		w:       w,
		charset: charset,
	}
}

func (t *Transmitter) send(res *http.Response) {
	if !t.sent.CompareAndSwap(false, true) {
		if t.wireErr == nil {
			t.wireErr = errAlreadySent
		}
		return
	}

	err := t.w.WriteResponse(res)
	if err != nil {
		t.wireErr = err
	}
}

// Err returns the first fatal wire failure observed while sending,
// or nil. A non-nil wire failure means the connection must be
// closed.
func (t *Transmitter) Err() error {
	return t.wireErr
}

// ResultEncodeError occurs when a handler result can not be encoded
// into a response body. Nothing has been written when it is
// returned.
type ResultEncodeError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ResultEncodeError) Error() string {
	return "failed to encode handler result: " + e.Cause.Error()
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ResultEncodeError) Unwrap() error {
	return e.Cause
}

// SendResult transmits a handler result with a 200 status. Strings
// are sent as text in the configured charset, byte slices as opaque
// binary and any other value as JSON. An encode failure is returned
// without anything having been written.
func (t *Transmitter) SendResult(v any) error {
	res := &http.Response{
		Status:  http.StatusOK,
		Headers: make(http.Headers),
	}

	switch x := v.(type) {
	case nil:
	case string:
		res.Headers.Set("Content-Type", t.textContentType())
		res.Body = []byte(x)
	case []byte:
		res.Headers.Set("Content-Type", string(http.MediaTypeOctetStream))
		res.Body = x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ResultEncodeError{Cause: err}
		}
		res.Headers.Set("Content-Type", string(http.MediaTypeJson))
		res.Body = b
	}

	t.send(res)
	return nil
}

// SendNotFound transmits a 404 response.
func (t *Transmitter) SendNotFound() {
	t.sendStatus(http.StatusNotFound, nil)
}

// SendBadRequest transmits a 400 response.
func (t *Transmitter) SendBadRequest() {
	t.sendStatus(http.StatusBadRequest, nil)
}

// SendMethodNotAllowed transmits a 405 response enumerating the
// methods the path does accept.
func (t *Transmitter) SendMethodNotAllowed(allow []string) {
	headers := make(http.Headers)
	headers.Set("Allow", strings.Join(allow, ", "))
	t.sendStatus(http.StatusMethodNotAllowed, headers)
}

// SendServerError transmits a 500 response. The body carries no
// internal detail.
func (t *Transmitter) SendServerError() {
	t.sendStatus(http.StatusInternalServerError, nil)
}

// SendStatus transmits a bare response with the given status code
// and a reason phrase body.
func (t *Transmitter) SendStatus(status int) {
	t.sendStatus(status, nil)
}

func (t *Transmitter) sendStatus(status int, headers http.Headers) {
	if headers == nil {
		headers = make(http.Headers)
	}
	headers.Set("Content-Type", t.textContentType())

	t.send(&http.Response{
		Status:  status,
		Headers: headers,
		Body:    []byte(http.StatusText(status)),
	})
}

func (t *Transmitter) textContentType() string {
	return string(http.MediaTypeText) + "; charset=" + t.charset
}
