package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linkpulse/internal/ratelimit"
)

// RegisterRoutes registers the link routes with their rate limit scopes.
func RegisterRoutes(api huma.API, h *LinkHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-url",
		Method:        http.MethodPost,
		Path:          "/AddURL",
		Summary:       "Create short link",
		Description:   "Creates a short link, or returns the existing one when the owner already shortened this URL.",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusCreated,
		Metadata:      ratelimit.Metadata(ratelimit.EndpointConfig{Scope: ratelimit.ScopeCreate}),
	}, h.AddURL)

	huma.Register(api, huma.Operation{
		OperationID: "add-urls",
		Method:      http.MethodPost,
		Path:        "/AddURLs",
		Summary:     "Create short links in bulk",
		Tags:        []string{"Links"},
		Metadata: ratelimit.Metadata(ratelimit.EndpointConfig{
			Limits: []ratelimit.LimitConfig{
				{Window: time.Minute, Max: 5},
				{Window: time.Hour, Max: 50},
			},
		}),
	}, h.AddURLs)

	huma.Register(api, huma.Operation{
		OperationID: "set-link-active",
		Method:      http.MethodPatch,
		Path:        "/links/{shortCode}/active",
		Summary:     "Activate or deactivate a link",
		Tags:        []string{"Links"},
		Metadata:    ratelimit.Metadata(ratelimit.EndpointConfig{Scope: ratelimit.ScopeManage}),
	}, h.SetActive)

	huma.Register(api, huma.Operation{
		OperationID: "get-link-by-id",
		Method:      http.MethodGet,
		Path:        "/links/id/{id}",
		Summary:     "Get link by id",
		Tags:        []string{"Links"},
		Metadata:    ratelimit.Metadata(ratelimit.EndpointConfig{Scope: ratelimit.ScopeManage}),
	}, h.LinkByID)

	huma.Register(api, huma.Operation{
		OperationID: "list-cached-links",
		Method:      http.MethodGet,
		Path:        "/admin/cache/links",
		Summary:     "List cached links",
		Description: "Scans the whole cache namespace. Diagnostics only.",
		Tags:        []string{"Admin"},
		Metadata:    ratelimit.Metadata(ratelimit.EndpointConfig{Scope: ratelimit.ScopeAdmin}),
	}, h.CachedLinks)

	huma.Register(api, huma.Operation{
		OperationID:   "redirect",
		Method:        http.MethodGet,
		Path:          "/{shortCode}",
		Summary:       "Redirect to long URL",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusFound,
		Metadata:      ratelimit.Metadata(ratelimit.EndpointConfig{Scope: ratelimit.ScopeRedirect}),
	}, h.Redirect)
}
