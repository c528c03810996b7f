package handlers

import (
	"time"

	"github.com/serroba/linkpulse/internal/shortener"
)

// LinkBody is the wire form of a short link.
type LinkBody struct {
	ID          int64     `doc:"Link id"                           json:"id"`
	ShortCode   string    `doc:"The short code"                    example:"a1b2c3"                             json:"shortCode"`
	ShortURL    string    `doc:"The full short URL"                example:"http://localhost:8888/a1b2c3"       json:"shortUrl"`
	LongURL     string    `doc:"The original URL"                  example:"https://example.com/very/long/path" json:"longUrl"`
	Description string    `doc:"Free text description"             json:"description,omitempty"`
	OwnerID     int64     `doc:"Owner of the link"                 json:"ownerId"`
	CreatedAt   time.Time `doc:"Creation time"                     json:"createdAt"`
	IsActive    bool      `doc:"Whether the link resolves"         json:"isActive"`
	ClickCount  int64     `doc:"Recorded clicks, eventually consistent" json:"clickCount"`
	Categories  []int64   `doc:"Category ids"                      json:"categories,omitempty"`
}

// CreateLinkInput describes one link to shorten.
type CreateLinkInput struct {
	LongURL     string  `doc:"The URL to shorten"                   example:"https://example.com/very/long/path" json:"longUrl,omitempty"`
	Description string  `doc:"Free text description"                json:"description,omitempty"`
	IsActive    *bool   `doc:"Whether the link resolves; default true" json:"isActive,omitempty"`
	Categories  []int64 `doc:"Category ids"                         json:"categories,omitempty"`
	OwnerID     int64   `doc:"Owner of the link"                    example:"1"                                  json:"ownerId,omitempty"`
	CustomCode  string  `doc:"Requested short code"                 example:"my-link"                            json:"customCode,omitempty"`
}

func (in CreateLinkInput) request() shortener.CreateRequest {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	return shortener.CreateRequest{
		LongURL:     in.LongURL,
		Description: in.Description,
		IsActive:    active,
		CategoryIDs: in.Categories,
		OwnerID:     in.OwnerID,
		CustomCode:  shortener.Code(in.CustomCode),
	}
}

// AddURLRequest is the request body for creating a short link.
type AddURLRequest struct {
	Body CreateLinkInput
}

// AddURLResponse carries the link and whether this call created it.
type AddURLResponse struct {
	Status   int
	Location string `doc:"The short URL" header:"Location"`
	Body     struct {
		LinkBody

		IsNew bool `doc:"False when the owner had already shortened this URL" json:"isNew"`
	}
}

// AddURLsRequest creates several links at once.
type AddURLsRequest struct {
	Body struct {
		Links []CreateLinkInput `json:"links" maxItems:"100" minItems:"1"`
	}
}

// BatchItem is the outcome for one entry of a batch create.
type BatchItem struct {
	Link   *LinkBody `json:"link,omitempty"`
	IsNew  bool      `json:"isNew"`
	Status int       `doc:"HTTP status this item would have had on its own" json:"status"`
	Error  string    `json:"error,omitempty"`
}

// AddURLsResponse lists per-item outcomes in request order.
type AddURLsResponse struct {
	Body struct {
		Results []BatchItem `json:"results"`
	}
}

// RedirectRequest is the request for resolving a short code.
type RedirectRequest struct {
	ShortCode string `doc:"The short code" example:"a1b2c3" path:"shortCode"`
}

// RedirectResponse sends the client on to the long URL.
type RedirectResponse struct {
	Status   int
	Location string `header:"Location"`
}

// SetActiveRequest toggles whether a link resolves.
type SetActiveRequest struct {
	ShortCode string `doc:"The short code" path:"shortCode"`
	Body      struct {
		OwnerID  int64 `doc:"Owner of the link"   json:"ownerId"`
		IsActive bool  `doc:"New activation state" json:"isActive"`
	}
}

// LinkByIDRequest looks a link up by id.
type LinkByIDRequest struct {
	ID int64 `doc:"Link id" minimum:"1" path:"id"`
}

// LinkResponse wraps a single link.
type LinkResponse struct {
	Body LinkBody
}

// CachedLinksResponse lists cached links.
type CachedLinksResponse struct {
	Body struct {
		Count int        `json:"count"`
		Links []LinkBody `json:"links"`
	}
}
