package handlers

import "context"

type requestMetaKey struct{}

// RequestMeta holds the parts of an HTTP request that feed click analytics.
type RequestMeta struct {
	ClientIP    string
	UserAgent   string
	Referrer    string
	ClientHints map[string]string
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}
