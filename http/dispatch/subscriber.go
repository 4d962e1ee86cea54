// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/conduitframework/conduit/http"
	"github.com/conduitframework/conduit/http/bind"
	"github.com/conduitframework/conduit/slogfield"
	"github.com/conduitframework/conduit/stream"
)

// contentSubscriber selects the body consumer for the declared
// content type: a structured subscriber for JSON content, a generic
// chunk subscriber otherwise.
func (d *Dispatcher) contentSubscriber(ctx context.Context, mt http.MediaType, rctx *RequestContext, t *Transmitter) stream.Subscriber[[]byte] {
	cs := &chunkSubscriber{
		ctx:  ctx,
		d:    d,
		rctx: rctx,
		t:    t,
	}
	if mt.IsJson() {
		return &jsonSubscriber{chunkSubscriber: cs}
	}
	return cs
}

// chunkSubscriber accumulates an opaque byte body. On completion it
// presents the concatenated bytes to the deferred binders and
// triggers execution; on cancellation it releases the accumulator
// without producing a response.
type chunkSubscriber struct {
	ctx  context.Context
	d    *Dispatcher
	rctx *RequestContext
	t    *Transmitter

	buf bytes.Buffer
}

// OnNext implements the [stream.Subscriber] interface.
func (s *chunkSubscriber) OnNext(chunk []byte) {
	s.buf.Write(chunk)
}

// OnComplete implements the [stream.Subscriber] interface.
func (s *chunkSubscriber) OnComplete() {
	s.d.completeBody(s.ctx, s.rctx, s.t, bind.Body{Bytes: s.buf.Bytes()})
}

// OnError implements the [stream.Subscriber] interface.
func (s *chunkSubscriber) OnError(err error) {
	s.d.log.ErrorContext(
		s.ctx,
		"request body stream failed",
		slogfield.String("route", s.rctx.Route().DeclaringName()),
		slogfield.Error(err),
	)
	s.release()

	var derr bind.DecodeError
	if errors.As(err, &derr) {
		s.t.SendBadRequest()
		return
	}
	s.t.SendServerError()
}

// OnCancel implements the [stream.Subscriber] interface. The
// connection went away; the handler is never invoked and no
// response is written.
func (s *chunkSubscriber) OnCancel() {
	s.release()
}

func (s *chunkSubscriber) release() {
	s.buf.Reset()
	s.rctx = nil
}

// jsonSubscriber accumulates a structured body and parses it once
// the stream completes. Binding the whole decode to the completion
// signal keeps the failure rule uniform: a malformed document is
// always a 400, never a partially committed response.
type jsonSubscriber struct {
	*chunkSubscriber
}

// OnComplete implements the [stream.Subscriber] interface.
func (s *jsonSubscriber) OnComplete() {
	raw := s.buf.Bytes()

	var v any
	err := json.Unmarshal(raw, &v)
	if err != nil {
		s.d.log.DebugContext(
			s.ctx,
			"failed to decode request body",
			slogfield.String("route", s.rctx.Route().DeclaringName()),
			slogfield.Error(err),
		)
		s.t.SendBadRequest()
		return
	}

	s.d.completeBody(s.ctx, s.rctx, s.t, bind.Body{
		Bytes:   raw,
		Value:   v,
		Decoded: true,
	})
}

// completeBody merges the assembled body into the request context
// via the deferred (argument, binder) pairs and then executes the
// handler exactly as an inline route would.
func (d *Dispatcher) completeBody(ctx context.Context, rctx *RequestContext, t *Transmitter, body bind.Body) {
	for _, db := range rctx.deferred {
		v, err := db.binder.BindBody(db.arg, body)
		if err != nil {
			d.log.DebugContext(
				ctx,
				"failed to bind request body",
				slogfield.String("route", rctx.Route().DeclaringName()),
				slogfield.String("argument", db.arg.Name),
				slogfield.Error(err),
			)

			var derr bind.DecodeError
			if errors.As(err, &derr) {
				t.SendBadRequest()
				return
			}
			t.SendServerError()
			return
		}
		rctx.Record(db.arg.Name, v)
	}

	d.execute(ctx, rctx, t)
}
