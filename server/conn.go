// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/conduitframework/conduit/http"
	"github.com/conduitframework/conduit/slogfield"
	"github.com/conduitframework/conduit/stream"
)

// MalformedRequestError occurs when an inbound request head can not
// be parsed as HTTP/1.x.
type MalformedRequestError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e MalformedRequestError) Error() string {
	return "malformed request: " + e.Cause.Error()
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e MalformedRequestError) Unwrap() error {
	return e.Cause
}

// handleConn serves requests off a single connection, in arrival
// order, until the peer stops keeping it alive, the idle deadline
// fires or ctx is cancelled.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReaderSize(conn, s.readBufferSize)
	bw := bufio.NewWriterSize(conn, s.readBufferSize)

	for {
		if ctx.Err() != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.keepAliveTimeout))

		req, body, err := s.readRequest(br)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.DebugContext(ctx, "failed to read request", slogfield.Error(err))
			}
			return
		}

		keepAlive := req.KeepAlive()
		w := &responseWriter{
			bw:        bw,
			keepAlive: keepAlive,
		}

		err = s.dispatcher.OnRequest(ctx, req, w)
		if err != nil {
			s.log.ErrorContext(ctx, "failed to write response", slogfield.Error(err))
			return
		}

		// A route which never needed the body leaves it on the
		// wire; it has to be consumed before the next head.
		if body != nil {
			err = body.drain()
			if err != nil {
				return
			}
		}

		if !keepAlive {
			return
		}
	}
}

// readRequest parses one request head off the connection and frames
// its body by Content-Length. A request without a body yields a nil
// publisher.
func (s *Server) readRequest(br *bufio.Reader) (*http.Request, *bodyPublisher, error) {
	tp := textproto.NewReader(br)

	line, err := tp.ReadLine()
	if err != nil {
		return nil, nil, err
	}

	method, rest, ok := strings.Cut(line, " ")
	target, proto, ok2 := strings.Cut(rest, " ")
	if !ok || !ok2 || method == "" || target == "" {
		return nil, nil, MalformedRequestError{Cause: fmt.Errorf("invalid request line: %q", line)}
	}
	if proto != "HTTP/1.1" && proto != "HTTP/1.0" {
		return nil, nil, MalformedRequestError{Cause: fmt.Errorf("unsupported protocol: %q", proto)}
	}

	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, nil, MalformedRequestError{Cause: err}
	}

	path, rawQuery, _ := strings.Cut(target, "?")

	req := &http.Request{
		Method:   method,
		Path:     path,
		RawQuery: rawQuery,
		Proto:    proto,
		Headers:  http.Headers(mimeHeader),
	}

	if req.Headers.Get("Transfer-Encoding") != "" {
		return nil, nil, MalformedRequestError{Cause: errors.New("transfer encodings are not supported")}
	}

	cl := req.Headers.Get("Content-Length")
	if cl == "" {
		return req, nil, nil
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || n < 0 {
		return nil, nil, MalformedRequestError{Cause: fmt.Errorf("invalid content length: %q", cl)}
	}
	if n == 0 {
		return req, nil, nil
	}

	body := &bodyPublisher{
		r:         io.LimitReader(br, n),
		chunkSize: s.readBufferSize,
	}
	req.Body = body
	return req, body, nil
}

// bodyPublisher streams a Content-Length framed body off the
// connection. A read failure means the connection went away, which
// surfaces to the subscriber as cancellation.
type bodyPublisher struct {
	r         io.Reader
	chunkSize int

	subscribed bool
}

// Subscribe implements the [stream.Publisher] interface. It pumps
// the body on the calling goroutine until a terminal signal.
func (p *bodyPublisher) Subscribe(ctx context.Context, sub stream.Subscriber[[]byte]) {
	p.subscribed = true

	buf := make([]byte, p.chunkSize)
	for {
		if ctx.Err() != nil {
			sub.OnCancel()
			return
		}

		n, err := p.r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sub.OnNext(chunk)
		}
		if errors.Is(err, io.EOF) {
			sub.OnComplete()
			return
		}
		if err != nil {
			sub.OnCancel()
			return
		}
	}
}

// drain discards whatever part of the body was never consumed so
// the next request head can be read.
func (p *bodyPublisher) drain() error {
	if p.subscribed {
		return nil
	}
	_, err := io.Copy(io.Discard, p.r)
	return err
}

// responseWriter serializes responses onto the connection and
// manages the Connection header per the negotiated keep-alive
// semantics.
type responseWriter struct {
	bw        *bufio.Writer
	keepAlive bool
}

// WriteResponse implements the [http.ResponseWriter] interface.
func (w *responseWriter) WriteResponse(res *http.Response) error {
	_, err := fmt.Fprintf(w.bw, "HTTP/1.1 %d %s\r\n", res.Status, http.StatusText(res.Status))
	if err != nil {
		return err
	}

	headers := res.Headers
	if headers == nil {
		headers = make(http.Headers)
	}
	headers.Set("Content-Length", strconv.Itoa(len(res.Body)))
	if w.keepAlive {
		headers.Set("Connection", "keep-alive")
	} else {
		headers.Set("Connection", "close")
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range headers[name] {
			_, err = fmt.Fprintf(w.bw, "%s: %s\r\n", name, value)
			if err != nil {
				return err
			}
		}
	}

	_, err = w.bw.WriteString("\r\n")
	if err != nil {
		return err
	}
	_, err = w.bw.Write(res.Body)
	if err != nil {
		return err
	}
	return w.bw.Flush()
}
