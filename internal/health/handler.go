package health

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/linkpulse/internal/ratelimit"
)

const (
	statusOK        = "ok"
	statusDegraded  = "degraded"
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"

	defaultTimeout = 2 * time.Second
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts a redis client to the Checker interface.
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type dependency struct {
	name    string
	checker Checker
}

// Handler reports the state of every registered dependency.
type Handler struct {
	deps    []dependency
	timeout time.Duration
}

// NewHandler creates a health handler with no dependencies registered.
func NewHandler() *Handler {
	return &Handler{timeout: defaultTimeout}
}

// With registers a dependency under name and returns the handler.
func (h *Handler) With(name string, checker Checker) *Handler {
	h.deps = append(h.deps, dependency{name: name, checker: checker})

	return h
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status       string            `example:"ok" json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
}

// Check pings every dependency. A failing dependency degrades the status but
// the endpoint itself still answers 200.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = statusOK
	resp.Body.Dependencies = make(map[string]string, len(h.deps))

	for _, dep := range h.deps {
		pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := dep.checker.Ping(pingCtx)

		cancel()

		if err != nil {
			resp.Body.Dependencies[dep.name] = statusUnhealthy
			resp.Body.Status = statusDegraded

			continue
		}

		resp.Body.Dependencies[dep.name] = statusHealthy
	}

	return resp, nil
}

// RegisterRoutes registers health check routes. Health checks are never rate limited.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Service health",
		Tags:        []string{"Health"},
		Metadata:    ratelimit.Metadata(ratelimit.EndpointConfig{Disabled: true}),
	}, h.Check)
}
