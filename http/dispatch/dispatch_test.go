// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package dispatch

import (
	"context"
	"strings"
	"testing"

	"github.com/conduitframework/conduit/http"
	"github.com/conduitframework/conduit/http/bind"
	"github.com/conduitframework/conduit/http/router"
	"github.com/conduitframework/conduit/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	responses []*http.Response
}

func (w *captureWriter) WriteResponse(res *http.Response) error {
	w.responses = append(w.responses, res)
	return nil
}

// manualPublisher hands the subscriber back to the test so signals
// can be delivered one at a time.
type manualPublisher struct {
	sub stream.Subscriber[[]byte]
}

func (p *manualPublisher) Subscribe(_ context.Context, s stream.Subscriber[[]byte]) {
	p.sub = s
}

func newRequest(method, path string) *http.Request {
	return &http.Request{
		Method:  method,
		Path:    path,
		Proto:   "HTTP/1.1",
		Headers: make(http.Headers),
	}
}

func TestDispatcher_OnRequest(t *testing.T) {
	t.Run("will respond 404", func(t *testing.T) {
		t.Run("if no route matches the path", func(t *testing.T) {
			rt := router.NewRouter()
			rt.Register(router.Get("/users", router.HandlerFunc(func(_ context.Context, _ map[string]any) (any, error) {
				return nil, nil
			})))

			var w captureWriter
			err := New(rt).OnRequest(context.Background(), newRequest("GET", "/nonexistent"), &w)
			require.NoError(t, err)

			require.Len(t, w.responses, 1)
			assert.Equal(t, http.StatusNotFound, w.responses[0].Status)
		})

		t.Run("if a required plain argument can not be resolved", func(t *testing.T) {
			invoked := false
			rt := router.NewRouter()
			rt.Register(router.Get(
				"/search",
				router.HandlerFunc(func(_ context.Context, _ map[string]any) (any, error) {
					invoked = true
					return nil, nil
				}),
				router.Args(bind.Argument{Name: "q", Source: bind.SourceQuery}),
			))

			var w captureWriter
			err := New(rt).OnRequest(context.Background(), newRequest("GET", "/search"), &w)
			require.NoError(t, err)

			require.Len(t, w.responses, 1)
			assert.Equal(t, http.StatusNotFound, w.responses[0].Status)
			assert.False(t, invoked)
		})
	})

	t.Run("will respond 400", func(t *testing.T) {
		t.Run("if an unresolved argument is configured as a client error", func(t *testing.T) {
			rt := router.NewRouter()
			rt.Register(router.Get(
				"/search",
				router.HandlerFunc(func(_ context.Context, _ map[string]any) (any, error) {
					return nil, nil
				}),
				router.Args(bind.Argument{Name: "q", Source: bind.SourceQuery}),
			))

			var w captureWriter
			d := New(rt, UnbindableStatus(http.StatusBadRequest))
			err := d.OnRequest(context.Background(), newRequest("GET", "/search"), &w)
			require.NoError(t, err)

			require.Len(t, w.responses, 1)
			assert.Equal(t, http.StatusBadRequest, w.responses[0].Status)
		})

		t.Run("if the route requires a body but the request has none", func(t *testing.T) {
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

			var w captureWriter
			err := New(rt).OnRequest(context.Background(), newRequest("POST", "/echo"), &w)
			require.NoError(t, err)

			require.Len(t, w.responses, 1)
			assert.Equal(t, http.StatusBadRequest, w.responses[0].Status)
			assert.False(t, invoked)
		})

		t.Run("if the body fails to decode as JSON", func(t *testing.T) {
			invoked := false
			rt := router.NewRouter()
			rt.Register(router.Post(
				"/users",
				router.HandlerFunc(func(_ context.Context, _ map[string]any) (any, error) {
					invoked = true
					return nil, nil
				}),
				router.Args(bind.Argument{Name: "user", Source: bind.SourceBody}),
			))

			req := newRequest("POST", "/users")
			req.Headers.Set("Content-Type", "application/json")
			req.Body = stream.Of([]byte(`{"name":`))

			var w captureWriter
			err := New(rt).OnRequest(context.Background(), req, &w)
			require.NoError(t, err)

			require.Len(t, w.responses, 1)
			assert.Equal(t, http.StatusBadRequest, w.responses[0].Status)
			assert.False(t, invoked)
		})
	})

	t.Run("will respond 405", func(t *testing.T) {
		t.Run("if the path only matches under other methods", func(t *testing.T) {
			noop := router.HandlerFunc(func(_ context.Context, _ map[string]any) (any, error) {
				return nil, nil
			})
			rt := router.NewRouter()
			rt.Register(
				router.Get("/things", noop),
				router.Post("/things", noop),
			)

			var w captureWriter
			err := New(rt).OnRequest(context.Background(), newRequest("DELETE", "/things"), &w)
			require.NoError(t, err)

			require.Len(t, w.responses, 1)
			assert.Equal(t, http.StatusMethodNotAllowed, w.responses[0].Status)

			allow := strings.Split(w.responses[0].Headers.Get("Allow"), ", ")
			assert.ElementsMatch(t, []string{"GET", "POST"}, allow)
		})
	})

	t.Run("will execute the handler inline", func(t *testing.T) {
		t.Run("if every argument resolves from already parsed data", func(t *testing.T) {
			rt := router.NewRouter()
			rt.Register(router.Get(
				"/users/{id}",
				router.HandlerFunc(func(_ context.Context, args map[string]any) (any, error) {
					return args["id"].(string) + ":" + args["q"].(string), nil
				}),
				router.Args(
					bind.Argument{Name: "id", Source: bind.SourcePath},
					bind.Argument{Name: "q", Source: bind.SourceQuery},
				),
			))

			req := newRequest("GET", "/users/42")
			req.RawQuery = "q=hello"

			var w captureWriter
			err := New(rt).OnRequest(context.Background(), req, &w)
			require.NoError(t, err)

			require.Len(t, w.responses, 1)
			assert.Equal(t, http.StatusOK, w.responses[0].Status)
			assert.Equal(t, "text/plain; charset=utf-8", w.responses[0].Headers.Get("Content-Type"))
			assert.Equal(t, "42:hello", string(w.responses[0].Body))
		})

		t.Run("if an optional argument is absent", func(t *testing.T) {
			var got bind.Opt
			rt := router.NewRouter()
			rt.Register(router.Get(
				"/search",
				router.HandlerFunc(func(_ context.Context, args map[string]any) (any, error) {
					got = args["q"].(bind.Opt)
					return "ok", nil
				}),
				router.Args(bind.Argument{Name: "q", Source: bind.SourceQuery, Optional: true}),
			))

			var w captureWriter
			err := New(rt).OnRequest(context.Background(), newRequest("GET", "/search"), &w)
			require.NoError(t, err)

			require.Len(t, w.responses, 1)
			assert.Equal(t, http.StatusOK, w.responses[0].Status)
			assert.False(t, got.Present)
		})
	})

	t.Run("will defer execution", func(t *testing.T) {
		t.Run("if an argument requires the assembled body", func(t *testing.T) {
			invocations := 0
			var got []byte
			rt := router.NewRouter()
			rt.Register(router.Post(
				"/echo",
				router.HandlerFunc(func(_ context.Context, args map[string]any) (any, error) {
					invocations += 1
					got = args["body"].([]byte)
					return got, nil
				}),
				router.Args(bind.Argument{Name: "body", Source: bind.SourceRawBody}),
			))

			req := newRequest("POST", "/echo")
			var pub manualPublisher
			req.Body = &pub

			var w captureWriter
			err := New(rt).OnRequest(context.Background(), req, &w)
			require.NoError(t, err)
			require.NotNil(t, pub.sub)

			for _, chunk := range []string{"he", "ll", "o"} {
				pub.sub.OnNext([]byte(chunk))
				assert.Zero(t, invocations)
				assert.Empty(t, w.responses)
			}

			pub.sub.OnComplete()

			assert.Equal(t, 1, invocations)
			assert.Equal(t, "hello", string(got))
			require.Len(t, w.responses, 1)
			assert.Equal(t, http.StatusOK, w.responses[0].Status)
			assert.Equal(t, "hello", string(w.responses[0].Body))
		})

		t.Run("if the body decodes as JSON", func(t *testing.T) {
			var got any
			rt := router.NewRouter()
			rt.Register(router.Post(
				"/users",
				router.HandlerFunc(func(_ context.Context, args map[string]any) (any, error) {
					got = args["user"]
					return got, nil
				}),
				router.Args(bind.Argument{Name: "user", Source: bind.SourceBody}),
				router.Consumes(http.MediaTypeJson),
			))

			req := newRequest("POST", "/users")
			req.Headers.Set("Content-Type", "application/json")
			req.Body = stream.Of([]byte(`{"name":`), []byte(`"me"}`))

			var w captureWriter
			err := New(rt).OnRequest(context.Background(), req, &w)
			require.NoError(t, err)

			assert.Equal(t, map[string]any{"name": "me"}, got)
			require.Len(t, w.responses, 1)
			assert.Equal(t, http.StatusOK, w.responses[0].Status)
			assert.Equal(t, string(http.MediaTypeJson), w.responses[0].Headers.Get("Content-Type"))
			assert.JSONEq(t, `{"name":"me"}`, string(w.responses[0].Body))
		})
	})

	t.Run("will write no response", func(t *testing.T) {
		t.Run("if the connection closes mid stream", func(t *testing.T) {
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

			req := newRequest("POST", "/echo")
			var pub manualPublisher
			req.Body = &pub

			var w captureWriter
			err := New(rt).OnRequest(context.Background(), req, &w)
			require.NoError(t, err)
			require.NotNil(t, pub.sub)

			pub.sub.OnNext([]byte("partial"))
			pub.sub.OnCancel()

			assert.False(t, invoked)
			assert.Empty(t, w.responses)
		})
	})

	t.Run("will respond 500", func(t *testing.T) {
		t.Run("if the handler returns an error", func(t *testing.T) {
			rt := router.NewRouter()
			rt.Register(router.Get("/fail", router.HandlerFunc(func(_ context.Context, _ map[string]any) (any, error) {
				return nil, assert.AnError
			})))

			var w captureWriter
			err := New(rt).OnRequest(context.Background(), newRequest("GET", "/fail"), &w)
			require.NoError(t, err)

			require.Len(t, w.responses, 1)
			assert.Equal(t, http.StatusInternalServerError, w.responses[0].Status)
			assert.NotContains(t, string(w.responses[0].Body), assert.AnError.Error())
		})

		t.Run("if the handler panics", func(t *testing.T) {
			rt := router.NewRouter()
			rt.Register(router.Get("/fail", router.HandlerFunc(func(_ context.Context, _ map[string]any) (any, error) {
				panic("boom")
			})))

			var w captureWriter
			err := New(rt).OnRequest(context.Background(), newRequest("GET", "/fail"), &w)
			require.NoError(t, err)

			require.Len(t, w.responses, 1)
			assert.Equal(t, http.StatusInternalServerError, w.responses[0].Status)
		})

		t.Run("if the body stream fails", func(t *testing.T) {
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

			req := newRequest("POST", "/echo")
			var pub manualPublisher
			req.Body = &pub

			var w captureWriter
			err := New(rt).OnRequest(context.Background(), req, &w)
			require.NoError(t, err)
			require.NotNil(t, pub.sub)

			pub.sub.OnNext([]byte("partial"))
			pub.sub.OnError(assert.AnError)

			assert.False(t, invoked)
			require.Len(t, w.responses, 1)
			assert.Equal(t, http.StatusInternalServerError, w.responses[0].Status)
		})
	})
}

func TestTransmitter(t *testing.T) {
	t.Run("will write exactly one response", func(t *testing.T) {
		t.Run("if multiple sends race for the same request", func(t *testing.T) {
			var w captureWriter
			tr := NewTransmitter(&w, DefaultCharset)

			tr.SendNotFound()
			tr.SendServerError()

			require.Len(t, w.responses, 1)
			assert.Equal(t, http.StatusNotFound, w.responses[0].Status)
			assert.Error(t, tr.Err())
		})
	})

	t.Run("will encode the result as JSON", func(t *testing.T) {
		t.Run("if it is neither a string nor raw bytes", func(t *testing.T) {
			var w captureWriter
			tr := NewTransmitter(&w, DefaultCharset)

			err := tr.SendResult(map[string]any{"n": 1})
			require.NoError(t, err)

			require.Len(t, w.responses, 1)
			assert.Equal(t, string(http.MediaTypeJson), w.responses[0].Headers.Get("Content-Type"))
			assert.JSONEq(t, `{"n":1}`, string(w.responses[0].Body))
		})
	})

	t.Run("will write nothing", func(t *testing.T) {
		t.Run("if the result can not be encoded", func(t *testing.T) {
			var w captureWriter
			tr := NewTransmitter(&w, DefaultCharset)

			err := tr.SendResult(func() {})

			var eerr ResultEncodeError
			require.ErrorAs(t, err, &eerr)
			assert.Empty(t, w.responses)
		})
	})
}
