package ratelimit

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Scope groups requests that share a rate limit budget.
type Scope string

const (
	// ScopeGlobal applies to every request.
	ScopeGlobal Scope = "global"
	// ScopeRedirect covers short code resolution.
	ScopeRedirect Scope = "redirect"
	// ScopeCreate covers link creation, single and batch.
	ScopeCreate Scope = "create"
	// ScopeManage covers owner operations on existing links.
	ScopeManage Scope = "manage"
	// ScopeAdmin covers diagnostics endpoints.
	ScopeAdmin Scope = "admin"
	// ScopeRead is the fallback for safe methods without an explicit scope.
	ScopeRead Scope = "read"
	// ScopeWrite is the fallback for unsafe methods without an explicit scope.
	ScopeWrite Scope = "write"
	// ScopeRoute labels limits declared directly on an endpoint.
	ScopeRoute Scope = "route"
)

// MetadataKey is the huma operation metadata key holding an EndpointConfig.
const MetadataKey = "rateLimit"

// EndpointConfig tunes rate limiting for one operation.
//
// Limits, when set, replace the policy entirely for that endpoint and Scope is
// ignored. Otherwise Scope picks the policy entry, falling back to read/write
// by HTTP method.
type EndpointConfig struct {
	Scope    Scope
	Limits   []LimitConfig
	Disabled bool
}

// Metadata returns operation metadata carrying cfg.
func Metadata(cfg EndpointConfig) map[string]any {
	return map[string]any{MetadataKey: cfg}
}

// ScopeResolver determines which scopes apply to a given request.
type ScopeResolver interface {
	Resolve(ctx huma.Context) []Scope
}

// MethodScopeResolver puts safe methods in ScopeRead and everything else in
// ScopeWrite.
type MethodScopeResolver struct{}

func NewMethodScopeResolver() *MethodScopeResolver {
	return &MethodScopeResolver{}
}

func (r *MethodScopeResolver) Resolve(ctx huma.Context) []Scope {
	switch ctx.Method() {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return []Scope{ScopeGlobal, ScopeRead}
	default:
		return []Scope{ScopeGlobal, ScopeWrite}
	}
}

// OperationScopeResolver prefers the scope declared in operation metadata.
type OperationScopeResolver struct {
	fallback *MethodScopeResolver
}

func NewOperationScopeResolver() *OperationScopeResolver {
	return &OperationScopeResolver{fallback: NewMethodScopeResolver()}
}

func (r *OperationScopeResolver) Resolve(ctx huma.Context) []Scope {
	if cfg := GetEndpointConfig(ctx); cfg != nil && cfg.Scope != "" {
		return []Scope{ScopeGlobal, cfg.Scope}
	}

	return r.fallback.Resolve(ctx)
}

// GetEndpointConfig extracts the EndpointConfig from operation metadata, if present.
func GetEndpointConfig(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}
