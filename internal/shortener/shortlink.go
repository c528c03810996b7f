package shortener

import "time"

// Code represents a short URL code.
type Code string

// CacheNamespace prefixes every cached ShortLink key.
const CacheNamespace = "shortlink"

// ShortLink maps a short code to the long URL it redirects to.
// ShortCode and LongURL never change once the link is stored.
type ShortLink struct {
	ID          int64     `json:"id"`
	ShortCode   Code      `json:"shortCode"`
	LongURL     string    `json:"longUrl"`
	Description string    `json:"description,omitempty"`
	OwnerID     int64     `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	IsActive    bool      `json:"isActive"`
	ClickCount  int64     `json:"clickCount"`
	CategoryIDs []int64   `json:"categoryIds,omitempty"`
}

// CacheKey is the natural key a ShortLink is cached under.
func CacheKey(link *ShortLink) string {
	return string(link.ShortCode)
}

// CreateRequest describes a link an owner wants shortened.
type CreateRequest struct {
	LongURL     string
	Description string
	IsActive    bool
	CategoryIDs []int64
	OwnerID     int64
	CustomCode  Code
}
