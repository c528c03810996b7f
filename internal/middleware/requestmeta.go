package middleware

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linkpulse/internal/auth"
	"github.com/serroba/linkpulse/internal/handlers"
)

const clientHintPrefix = "sec-ch-"

// RequestMeta stores the client's IP, user agent, referrer and client hints
// in the request context, along with any bearer token.
func RequestMeta(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := handlers.RequestMeta{
			ClientIP:    clientIP(ctx),
			UserAgent:   ctx.Header("User-Agent"),
			Referrer:    ctx.Header("Referer"),
			ClientHints: clientHints(ctx),
		}

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)

		if token := bearerToken(ctx.Header("Authorization")); token != "" {
			newCtx = auth.ContextWithToken(newCtx, token)
		}

		next(huma.WithContext(ctx, newCtx))
	}
}

func clientHints(ctx huma.Context) map[string]string {
	var hints map[string]string

	ctx.EachHeader(func(name, value string) {
		name = strings.ToLower(name)
		if !strings.HasPrefix(name, clientHintPrefix) {
			return
		}

		if hints == nil {
			hints = make(map[string]string)
		}

		hints[name] = value
	})

	return hints
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}
