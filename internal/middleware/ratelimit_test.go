package middleware_test

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"mime/multipart"
	"net/url"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/linkpulse/internal/middleware"
	"github.com/serroba/linkpulse/internal/ratelimit"
	"github.com/serroba/linkpulse/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testRemoteAddr = "192.168.1.1:12345"
	testUserAgent  = "TestAgent/1.0"
)

var errMultipartNotSupported = errors.New("multipart not supported in mock")

func newTestAPI() huma.API {
	return humachi.New(chi.NewMux(), huma.DefaultConfig("Test", "1.0.0"))
}

// mockHumaContext implements huma.Context for testing.
type mockHumaContext struct {
	headers         map[string]string
	responseHeaders map[string]string
	remoteAddr      string
	written         []byte
	statusCode      int
	method          string
	operation       *huma.Operation
}

func newMockHumaContext() *mockHumaContext {
	return &mockHumaContext{
		headers:         map[string]string{"User-Agent": testUserAgent},
		responseHeaders: make(map[string]string),
		remoteAddr:      testRemoteAddr,
		method:          "GET",
	}
}

func (m *mockHumaContext) Operation() *huma.Operation {
	return m.operation
}
func (m *mockHumaContext) Context() context.Context              { return context.Background() }
func (m *mockHumaContext) TLS() *tls.ConnectionState             { return nil }
func (m *mockHumaContext) Version() huma.ProtoVersion            { return huma.ProtoVersion{} }
func (m *mockHumaContext) Method() string                        { return m.method }
func (m *mockHumaContext) Host() string                          { return "" }
func (m *mockHumaContext) RemoteAddr() string                    { return m.remoteAddr }
func (m *mockHumaContext) URL() url.URL                          { return url.URL{Path: "/test"} }
func (m *mockHumaContext) Param(_ string) string                 { return "" }
func (m *mockHumaContext) Query(_ string) string                 { return "" }
func (m *mockHumaContext) Header(name string) string             { return m.headers[name] }
func (m *mockHumaContext) EachHeader(_ func(name, value string)) {}
func (m *mockHumaContext) BodyReader() io.Reader                 { return nil }
func (m *mockHumaContext) GetMultipartForm() (*multipart.Form, error) {
	return nil, errMultipartNotSupported
}
func (m *mockHumaContext) SetReadDeadline(_ time.Time) error { return nil }
func (m *mockHumaContext) SetStatus(code int)                { m.statusCode = code }
func (m *mockHumaContext) Status() int                       { return m.statusCode }
func (m *mockHumaContext) AppendHeader(name, value string)   { m.responseHeaders[name] = value }
func (m *mockHumaContext) SetHeader(name, value string)      { m.responseHeaders[name] = value }
func (m *mockHumaContext) BodyWriter() io.Writer             { return &mockBodyWriter{ctx: m} }

type mockBodyWriter struct {
	ctx *mockHumaContext
}

func (w *mockBodyWriter) Write(p []byte) (n int, err error) {
	w.ctx.written = append(w.ctx.written, p...)

	return len(p), nil
}

type failingStore struct{}

func (failingStore) Record(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis: connection refused")
}

// capturingStore records which keys were hit.
type capturingStore struct {
	keys []string
}

func (c *capturingStore) Record(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.keys = append(c.keys, key)

	return 1, nil
}

type fixedScopes []ratelimit.Scope

func (f fixedScopes) Resolve(huma.Context) []ratelimit.Scope {
	return f
}

func tightPolicy() *ratelimit.Policy {
	return &ratelimit.Policy{
		Limits: map[ratelimit.Scope][]ratelimit.LimitConfig{
			ratelimit.ScopeRedirect: {{Window: time.Minute, Max: 2}},
		},
	}
}

func run(mw func(huma.Context, func(huma.Context)), ctx *mockHumaContext) bool {
	called := false

	mw(ctx, func(huma.Context) { called = true })

	return called
}

func TestPolicyRateLimiter(t *testing.T) {
	redirect := fixedScopes{ratelimit.ScopeGlobal, ratelimit.ScopeRedirect}

	t.Run("allows requests under the limit", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), tightPolicy())
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, redirect, zap.NewNop())

		assert.True(t, run(mw, newMockHumaContext()))
		assert.True(t, run(mw, newMockHumaContext()))
	})

	t.Run("rejects with 429 and Retry-After", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), tightPolicy())
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, redirect, zap.NewNop())

		run(mw, newMockHumaContext())
		run(mw, newMockHumaContext())

		ctx := newMockHumaContext()

		assert.False(t, run(mw, ctx))
		assert.Equal(t, 429, ctx.statusCode)
		assert.Equal(t, "60", ctx.responseHeaders["Retry-After"])
		assert.Contains(t, string(ctx.written), "redirect scope")
	})

	t.Run("keys clients by IP and user agent", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), tightPolicy())
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, redirect, zap.NewNop())

		run(mw, newMockHumaContext())
		run(mw, newMockHumaContext())

		otherAgent := newMockHumaContext()
		otherAgent.headers["User-Agent"] = "DifferentAgent/2.0"

		otherIP := newMockHumaContext()
		otherIP.remoteAddr = "10.0.0.9:4444"

		assert.True(t, run(mw, otherAgent))
		assert.True(t, run(mw, otherIP))
	})

	t.Run("proxy headers identify the client", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), tightPolicy())
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, redirect, zap.NewNop())

		for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:2"} {
			ctx := newMockHumaContext()
			ctx.remoteAddr = addr
			ctx.headers["X-Forwarded-For"] = "203.0.113.195, 70.41.3.18"
			run(mw, ctx)
		}

		ctx := newMockHumaContext()
		ctx.remoteAddr = "10.0.0.3:3"
		ctx.headers["X-Real-IP"] = "198.51.100.1"
		assert.True(t, run(mw, ctx), "X-Real-IP client has its own budget")

		ctx = newMockHumaContext()
		ctx.headers["X-Forwarded-For"] = "203.0.113.195"
		assert.False(t, run(mw, ctx), "same forwarded client shares a budget")
	})

	t.Run("public clients cannot rotate forwarded addresses", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), tightPolicy())
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, redirect, zap.NewNop())

		allowed := 0

		for _, forwarded := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
			ctx := newMockHumaContext()
			ctx.remoteAddr = "203.0.113.50:5000"
			ctx.headers["X-Forwarded-For"] = forwarded

			if run(mw, ctx) {
				allowed++
			}
		}

		assert.Equal(t, 2, allowed)
	})

	t.Run("fails open when the store is down", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(failingStore{}, tightPolicy())
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, redirect, zap.NewNop())

		ctx := newMockHumaContext()

		assert.True(t, run(mw, ctx))
		assert.Zero(t, ctx.statusCode)
	})

	t.Run("disabled endpoints skip the store", func(t *testing.T) {
		s := &capturingStore{}
		limiter := ratelimit.NewPolicyLimiter(s, tightPolicy())
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, redirect, zap.NewNop())

		ctx := newMockHumaContext()
		ctx.operation = &huma.Operation{
			Path:     "/health",
			Metadata: ratelimit.Metadata(ratelimit.EndpointConfig{Disabled: true}),
		}

		assert.True(t, run(mw, ctx))
		assert.Empty(t, s.keys)
	})

	t.Run("endpoint limits are keyed by route template", func(t *testing.T) {
		s := &capturingStore{}
		limiter := ratelimit.NewPolicyLimiter(s, tightPolicy())
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, redirect, zap.NewNop())

		ctx := newMockHumaContext()
		ctx.operation = &huma.Operation{
			Path: "/AddURLs",
			Metadata: ratelimit.Metadata(ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{{Window: time.Minute, Max: 5}},
			}),
		}

		assert.True(t, run(mw, ctx))
		require.Len(t, s.keys, 1)
		assert.Contains(t, s.keys[0], ":route:/AddURLs:60000")
	})

	t.Run("endpoint limits reject past their max", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), tightPolicy())
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, redirect, zap.NewNop())

		op := &huma.Operation{
			Path: "/AddURLs",
			Metadata: ratelimit.Metadata(ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{{Window: time.Second, Max: 1}},
			}),
		}

		first := newMockHumaContext()
		first.operation = op
		second := newMockHumaContext()
		second.operation = op

		assert.True(t, run(mw, first))
		assert.False(t, run(mw, second))
		assert.Equal(t, "1", second.responseHeaders["Retry-After"])
	})

	t.Run("scopes come from the resolver", func(t *testing.T) {
		s := &capturingStore{}
		limiter := ratelimit.NewPolicyLimiter(s, ratelimit.DefaultPolicy())
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, ratelimit.NewOperationScopeResolver(), zap.NewNop())

		ctx := newMockHumaContext()
		ctx.operation = &huma.Operation{
			Path:     "/admin/cache/links",
			Metadata: ratelimit.Metadata(ratelimit.EndpointConfig{Scope: ratelimit.ScopeAdmin}),
		}

		assert.True(t, run(mw, ctx))

		require.Len(t, s.keys, 2)
		assert.Contains(t, s.keys[0], ":global:")
		assert.Contains(t, s.keys[1], ":admin:")
	})
}
