// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/conduitframework/conduit/http/bind"
	"github.com/conduitframework/conduit/http/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireResponse struct {
	status  int
	headers textproto.MIMEHeader
	body    string
}

func readWireResponse(t *testing.T, br *bufio.Reader) wireResponse {
	t.Helper()

	tp := textproto.NewReader(br)
	line, err := tp.ReadLine()
	require.NoError(t, err)

	parts := strings.SplitN(line, " ", 3)
	require.GreaterOrEqual(t, len(parts), 2)
	status, err := strconv.Atoi(parts[1])
	require.NoError(t, err)

	headers, err := tp.ReadMIMEHeader()
	require.NoError(t, err)

	n, err := strconv.Atoi(headers.Get("Content-Length"))
	require.NoError(t, err)

	body := make([]byte, n)
	_, err = io.ReadFull(br, body)
	require.NoError(t, err)

	return wireResponse{
		status:  status,
		headers: headers,
		body:    string(body),
	}
}

func pingRouter() *router.Router {
	rt := router.NewRouter()
	rt.Register(router.Get(
		"/ping/{n}",
		router.HandlerFunc(func(_ context.Context, args map[string]any) (any, error) {
			return "pong " + args["n"].(string), nil
		}),
		router.Args(bind.Argument{Name: "n", Source: bind.SourcePath}),
	))
	return rt
}

func TestServer_handleConn(t *testing.T) {
	t.Run("will answer requests in arrival order", func(t *testing.T) {
		t.Run("if multiple requests are pipelined on one connection", func(t *testing.T) {
			s := New(pingRouter())

			client, srv := net.Pipe()
			done := make(chan struct{})
			go func() {
				defer close(done)
				s.handleConn(context.Background(), srv)
			}()

			_, err := io.WriteString(
				client,
				"GET /ping/1 HTTP/1.1\r\nHost: test\r\n\r\n"+
					"GET /ping/2 HTTP/1.1\r\nHost: test\r\nConnection: close\r\n\r\n",
			)
			require.NoError(t, err)

			br := bufio.NewReader(client)
			first := readWireResponse(t, br)
			assert.Equal(t, 200, first.status)
			assert.Equal(t, "pong 1", first.body)
			assert.Equal(t, "keep-alive", first.headers.Get("Connection"))

			second := readWireResponse(t, br)
			assert.Equal(t, 200, second.status)
			assert.Equal(t, "pong 2", second.body)
			assert.Equal(t, "close", second.headers.Get("Connection"))

			client.Close()
			<-done
		})
	})

	t.Run("will assemble a streamed body before execution", func(t *testing.T) {
		t.Run("if the route requires the body", func(t *testing.T) {
			rt := router.NewRouter()
			rt.Register(router.Post(
				"/echo",
				router.HandlerFunc(func(_ context.Context, args map[string]any) (any, error) {
					return args["body"].([]byte), nil
				}),
				router.Args(bind.Argument{Name: "body", Source: bind.SourceRawBody}),
			))
			s := New(rt)

			client, srv := net.Pipe()
			done := make(chan struct{})
			go func() {
				defer close(done)
				s.handleConn(context.Background(), srv)
			}()

			body := "hello, conduit"
			_, err := fmt.Fprintf(
				client,
				"POST /echo HTTP/1.1\r\nHost: test\r\nConnection: close\r\nContent-Length: %d\r\n\r\n%s",
				len(body),
				body,
			)
			require.NoError(t, err)

			res := readWireResponse(t, bufio.NewReader(client))
			assert.Equal(t, 200, res.status)
			assert.Equal(t, body, res.body)

			client.Close()
			<-done
		})
	})

	t.Run("will drain an unconsumed body", func(t *testing.T) {
		t.Run("if the matched route never needed it", func(t *testing.T) {
			rt := router.NewRouter()
			rt.Register(router.Post("/fire", router.HandlerFunc(func(_ context.Context, _ map[string]any) (any, error) {
				return "done", nil
			})))
			s := New(rt)

			client, srv := net.Pipe()
			done := make(chan struct{})
			go func() {
				defer close(done)
				s.handleConn(context.Background(), srv)
			}()

			// Responses interleave with the unread body on a
			// synchronous pipe, so read and write concurrently.
			wrote := make(chan error, 1)
			go func() {
				_, err := io.WriteString(
					client,
					"POST /fire HTTP/1.1\r\nHost: test\r\nContent-Length: 7\r\n\r\nignored"+
						"GET /ping HTTP/1.1\r\nHost: test\r\nConnection: close\r\n\r\n",
				)
				wrote <- err
			}()

			br := bufio.NewReader(client)
			first := readWireResponse(t, br)
			assert.Equal(t, 200, first.status)
			assert.Equal(t, "done", first.body)

			second := readWireResponse(t, br)
			assert.Equal(t, 404, second.status)

			require.NoError(t, <-wrote)
			client.Close()
			<-done
		})
	})

	t.Run("will never invoke the handler", func(t *testing.T) {
		t.Run("if the connection closes mid body", func(t *testing.T) {
			invoked := false
			rt := router.NewRouter()
			rt.Register(router.Post(
				"/echo",
				router.HandlerFunc(func(_ context.Context, _ map[string]any) (any, error) {
					invoked = true
					return nil, nil
				}),
				router.Args(bind.Argument{Name: "body", Source: bind.SourceRawBody}),
			))
			s := New(rt)

			client, srv := net.Pipe()
			done := make(chan struct{})
			go func() {
				defer close(done)
				s.handleConn(context.Background(), srv)
			}()

			_, err := io.WriteString(
				client,
				"POST /echo HTTP/1.1\r\nHost: test\r\nContent-Length: 100\r\n\r\npartial",
			)
			require.NoError(t, err)
			client.Close()

			<-done
			assert.False(t, invoked)
		})
	})

	t.Run("will close the connection", func(t *testing.T) {
		t.Run("if the request head is malformed", func(t *testing.T) {
			s := New(pingRouter())

			client, srv := net.Pipe()
			done := make(chan struct{})
			go func() {
				defer close(done)
				s.handleConn(context.Background(), srv)
			}()

			_, err := io.WriteString(client, "not an http request\r\n\r\n")
			require.NoError(t, err)

			_, err = client.Read(make([]byte, 1))
			assert.ErrorIs(t, err, io.EOF)

			client.Close()
			<-done
		})

		t.Run("if the idle deadline fires before the next request", func(t *testing.T) {
			s := New(pingRouter(), KeepAliveTimeout(10*time.Millisecond))

			client, srv := net.Pipe()
			done := make(chan struct{})
			go func() {
				defer close(done)
				s.handleConn(context.Background(), srv)
			}()

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("connection was not closed after the idle deadline")
			}
			client.Close()
		})
	})
}

func TestServer_Run(t *testing.T) {
	t.Run("will stop serving", func(t *testing.T) {
		t.Run("if the context is cancelled", func(t *testing.T) {
			ls, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)

			s := New(pingRouter())
			s.listen = func(_, _ string) (net.Listener, error) {
				return ls, nil
			}

			ctx, cancel := context.WithCancel(context.Background())
			ran := make(chan error, 1)
			go func() {
				ran <- s.Run(ctx)
			}()

			conn, err := net.Dial("tcp", ls.Addr().String())
			require.NoError(t, err)

			_, err = io.WriteString(conn, "GET /ping/7 HTTP/1.1\r\nHost: test\r\nConnection: close\r\n\r\n")
			require.NoError(t, err)

			res := readWireResponse(t, bufio.NewReader(conn))
			assert.Equal(t, 200, res.status)
			assert.Equal(t, "pong 7", res.body)
			conn.Close()

			cancel()
			select {
			case err := <-ran:
				assert.NoError(t, err)
			case <-time.After(time.Second):
				t.Fatal("server did not shut down")
			}
		})
	})
}
