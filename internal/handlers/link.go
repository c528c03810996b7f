package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/serroba/linkpulse/internal/resolver"
	"github.com/serroba/linkpulse/internal/shortener"
	"go.uber.org/zap"
)

// LinkService is what the HTTP layer needs from the resolver.
type LinkService interface {
	Resolve(ctx context.Context, code shortener.Code, visit resolver.Visit) (*shortener.ShortLink, error)
	AddShortLink(ctx context.Context, req shortener.CreateRequest) (*shortener.ShortLink, bool, error)
	AddShortLinks(ctx context.Context, reqs []shortener.CreateRequest) []resolver.BatchResult
	SetActive(ctx context.Context, code shortener.Code, ownerID int64, active bool) (*shortener.ShortLink, error)
	LinkByID(ctx context.Context, id int64) (*shortener.ShortLink, error)
	CachedLinks(ctx context.Context) ([]*shortener.ShortLink, error)
}

// LinkHandler serves short link operations.
type LinkHandler struct {
	links   LinkService
	baseURL string
	logger  *zap.Logger
}

func NewLinkHandler(links LinkService, baseURL string, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		links:   links,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// AddURL creates a short link, or returns the one the owner already has for
// the same URL. New links answer 201, existing ones 200.
func (h *LinkHandler) AddURL(ctx context.Context, req *AddURLRequest) (*AddURLResponse, error) {
	link, isNew, err := h.links.AddShortLink(ctx, req.Body.request())
	if err != nil {
		return nil, toHTTPError(err, "body", h.logger)
	}

	resp := &AddURLResponse{Status: http.StatusOK}
	if isNew {
		resp.Status = http.StatusCreated
	}

	resp.Body.LinkBody = h.toBody(link)
	resp.Body.IsNew = isNew
	resp.Location = resp.Body.ShortURL

	return resp, nil
}

// AddURLs creates every link independently; one bad item does not fail the rest.
func (h *LinkHandler) AddURLs(ctx context.Context, req *AddURLsRequest) (*AddURLsResponse, error) {
	reqs := make([]shortener.CreateRequest, 0, len(req.Body.Links))
	for _, in := range req.Body.Links {
		reqs = append(reqs, in.request())
	}

	results := h.links.AddShortLinks(ctx, reqs)

	resp := &AddURLsResponse{}
	resp.Body.Results = make([]BatchItem, 0, len(results))

	for _, res := range results {
		item := BatchItem{IsNew: res.IsNew, Status: http.StatusOK}

		switch {
		case res.Err != nil:
			herr := toHTTPError(res.Err, "body.links", h.logger)
			item.Status = herr.GetStatus()
			item.Error = herr.Error()
		default:
			body := h.toBody(res.Link)
			item.Link = &body

			if res.IsNew {
				item.Status = http.StatusCreated
			}
		}

		resp.Body.Results = append(resp.Body.Results, item)
	}

	return resp, nil
}

// Redirect resolves a short code and sends the client to its long URL.
func (h *LinkHandler) Redirect(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	meta := RequestMetaFromContext(ctx)

	link, err := h.links.Resolve(ctx, shortener.Code(req.ShortCode), resolver.Visit{
		IPAddress:   meta.ClientIP,
		UserAgent:   meta.UserAgent,
		ClientHints: meta.ClientHints,
	})
	if err != nil {
		return nil, toHTTPError(err, "path", h.logger)
	}

	return &RedirectResponse{Status: http.StatusFound, Location: link.LongURL}, nil
}

// SetActive toggles a link on behalf of its owner.
func (h *LinkHandler) SetActive(ctx context.Context, req *SetActiveRequest) (*LinkResponse, error) {
	link, err := h.links.SetActive(ctx, shortener.Code(req.ShortCode), req.Body.OwnerID, req.Body.IsActive)
	if err != nil {
		return nil, toHTTPError(err, "path", h.logger)
	}

	return &LinkResponse{Body: h.toBody(link)}, nil
}

func (h *LinkHandler) LinkByID(ctx context.Context, req *LinkByIDRequest) (*LinkResponse, error) {
	link, err := h.links.LinkByID(ctx, req.ID)
	if err != nil {
		return nil, toHTTPError(err, "path", h.logger)
	}

	return &LinkResponse{Body: h.toBody(link)}, nil
}

// CachedLinks lists every cached link. It scans the whole cache namespace.
func (h *LinkHandler) CachedLinks(ctx context.Context, _ *struct{}) (*CachedLinksResponse, error) {
	links, err := h.links.CachedLinks(ctx)
	if err != nil {
		return nil, toHTTPError(err, "", h.logger)
	}

	resp := &CachedLinksResponse{}
	resp.Body.Count = len(links)
	resp.Body.Links = make([]LinkBody, 0, len(links))

	for _, link := range links {
		resp.Body.Links = append(resp.Body.Links, h.toBody(link))
	}

	return resp, nil
}

func (h *LinkHandler) toBody(link *shortener.ShortLink) LinkBody {
	return LinkBody{
		ID:          link.ID,
		ShortCode:   string(link.ShortCode),
		ShortURL:    h.baseURL + "/" + string(link.ShortCode),
		LongURL:     link.LongURL,
		Description: link.Description,
		OwnerID:     link.OwnerID,
		CreatedAt:   link.CreatedAt,
		IsActive:    link.IsActive,
		ClickCount:  link.ClickCount,
		Categories:  link.CategoryIDs,
	}
}
