package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultGeoBaseURL is the ipwho.is lookup endpoint.
	DefaultGeoBaseURL = "https://ipwho.is/"
	// DefaultGeoCacheSize bounds the number of remembered addresses.
	DefaultGeoCacheSize = 10000
)

var ErrLookupFailed = errors.New("geo lookup failed")

// GeoLocator resolves an IP address to a location.
type GeoLocator interface {
	Locate(ctx context.Context, ip string) (LocationInfo, error)
}

type geoCacheItem struct {
	location LocationInfo
	expires  time.Time
}

// IPWhoLocator looks addresses up against an ipwho.is compatible API.
// Private, loopback and unparseable addresses resolve to an empty location
// without a network call. Successful answers are cached for ttl, holding at
// most maxEntries addresses.
type IPWhoLocator struct {
	baseURL    string
	client     *http.Client
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]geoCacheItem
}

func NewIPWhoLocator(baseURL string, client *http.Client, ttl time.Duration) *IPWhoLocator {
	if baseURL == "" {
		baseURL = DefaultGeoBaseURL
	}

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &IPWhoLocator{
		baseURL:    baseURL,
		client:     client,
		ttl:        ttl,
		maxEntries: DefaultGeoCacheSize,
		now:        time.Now,
		cache:      make(map[string]geoCacheItem),
	}
}

// WithCacheSize caps the number of cached addresses. Non-positive sizes keep
// the default.
func (g *IPWhoLocator) WithCacheSize(n int) *IPWhoLocator {
	if n > 0 {
		g.maxEntries = n
	}

	return g
}

type ipWhoResponse struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	Continent   string  `json:"continent"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

func (g *IPWhoLocator) Locate(ctx context.Context, ip string) (LocationInfo, error) {
	if ip == "" || isPrivateIP(ip) {
		return LocationInfo{}, nil
	}

	now := g.now()

	if location, ok := g.cached(ip, now); ok {
		return location, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+ip, nil)
	if err != nil {
		return LocationInfo{}, fmt.Errorf("build geo request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return LocationInfo{}, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return LocationInfo{}, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var out ipWhoResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return LocationInfo{}, fmt.Errorf("%w: decode: %w", ErrLookupFailed, err)
	}

	if !out.Success {
		return LocationInfo{}, fmt.Errorf("%w: %s", ErrLookupFailed, out.Message)
	}

	countryCode := strings.ToUpper(strings.TrimSpace(out.CountryCode))
	if len(countryCode) != 2 {
		countryCode = ""
	}

	location := LocationInfo{
		City:        out.City,
		Region:      out.Region,
		Country:     out.Country,
		CountryCode: countryCode,
		Continent:   out.Continent,
		Latitude:    out.Latitude,
		Longitude:   out.Longitude,
	}

	if g.ttl > 0 {
		g.remember(ip, location, now)
	}

	return location, nil
}

func (g *IPWhoLocator) cached(ip string, now time.Time) (LocationInfo, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	item, ok := g.cache[ip]
	if !ok {
		return LocationInfo{}, false
	}

	if !now.Before(item.expires) {
		delete(g.cache, ip)

		return LocationInfo{}, false
	}

	return item.location, true
}

// remember stores a location. When the cache is full, expired entries go
// first, then the entry closest to expiry.
func (g *IPWhoLocator) remember(ip string, location LocationInfo, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.cache[ip]; !ok && len(g.cache) >= g.maxEntries {
		for key, item := range g.cache {
			if !now.Before(item.expires) {
				delete(g.cache, key)
			}
		}

		if len(g.cache) >= g.maxEntries {
			var (
				oldest   string
				earliest time.Time
			)

			for key, item := range g.cache {
				if oldest == "" || item.expires.Before(earliest) {
					oldest, earliest = key, item.expires
				}
			}

			delete(g.cache, oldest)
		}
	}

	g.cache[ip] = geoCacheItem{location: location, expires: now.Add(g.ttl)}
}

func isPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return true
	}

	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() || parsed.IsUnspecified()
}
