package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/serroba/linkpulse/internal/analytics"
	"github.com/serroba/linkpulse/internal/shortener"
)

type ownerURL struct {
	ownerID int64
	longURL string
}

// MemoryStore is an in-memory implementation of shortener.Repository and
// analytics.ClickStore. Every write either fully applies or leaves the
// store untouched.
type MemoryStore struct {
	mu          sync.RWMutex
	nextLinkID  int64
	nextClickID int64
	links       map[int64]*shortener.ShortLink
	codes       map[shortener.Code]int64
	owners      map[ownerURL]int64
	categories  map[int64]string
	clicks      map[int64]*analytics.ClickRecord
	events      map[string]int64
	now         func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links:      make(map[int64]*shortener.ShortLink),
		codes:      make(map[shortener.Code]int64),
		owners:     make(map[ownerURL]int64),
		categories: make(map[int64]string),
		clicks:     make(map[int64]*analytics.ClickRecord),
		events:     make(map[string]int64),
		now:        time.Now,
	}
}

// AddCategory registers a category links may reference.
func (m *MemoryStore) AddCategory(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.categories[id] = name
}

func (m *MemoryStore) GetByCode(_ context.Context, code shortener.Code) (*shortener.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.codes[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	return cloneLink(m.links[id]), nil
}

func (m *MemoryStore) GetByID(_ context.Context, id int64) (*shortener.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, ok := m.links[id]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	return cloneLink(link), nil
}

func (m *MemoryStore) FindByOwnerURL(_ context.Context, ownerID int64, longURL string) (*shortener.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.owners[ownerURL{ownerID, longURL}]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	return cloneLink(m.links[id]), nil
}

func (m *MemoryStore) CodeExists(_ context.Context, code shortener.Code) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.codes[code]

	return ok, nil
}

func (m *MemoryStore) Create(_ context.Context, link *shortener.ShortLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.codes[link.ShortCode]; ok {
		return shortener.ErrCodeTaken
	}

	key := ownerURL{link.OwnerID, link.LongURL}
	if _, ok := m.owners[key]; ok {
		return shortener.ErrDuplicateLink
	}

	for _, id := range link.CategoryIDs {
		if _, ok := m.categories[id]; !ok {
			verr := &shortener.ValidationError{}
			verr.Add("categories", "unknown category", id)

			return verr
		}
	}

	m.nextLinkID++
	link.ID = m.nextLinkID
	link.CreatedAt = m.now().UTC()
	link.ClickCount = 0

	stored := cloneLink(link)
	m.links[stored.ID] = stored
	m.codes[stored.ShortCode] = stored.ID
	m.owners[key] = stored.ID

	return nil
}

func (m *MemoryStore) SetActive(_ context.Context, code shortener.Code, active bool) (*shortener.ShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.codes[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	link := m.links[id]
	link.IsActive = active

	return cloneLink(link), nil
}

func (m *MemoryStore) TopLinks(_ context.Context, limit int) ([]*shortener.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	links := make([]*shortener.ShortLink, 0, len(m.links))

	for _, link := range m.links {
		if link.IsActive {
			links = append(links, cloneLink(link))
		}
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].ClickCount != links[j].ClickCount {
			return links[i].ClickCount > links[j].ClickCount
		}

		return links[i].ID < links[j].ID
	})

	if limit >= 0 && len(links) > limit {
		links = links[:limit]
	}

	return links, nil
}

func (m *MemoryStore) SaveClick(_ context.Context, record *analytics.ClickRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.EventID == "" {
		return false, errors.New("click record without event id")
	}

	if _, ok := m.events[record.EventID]; ok {
		return false, nil
	}

	link, ok := m.links[record.ShortLinkID]
	if !ok {
		return false, fmt.Errorf("click for unknown link: %w", shortener.ErrNotFound)
	}

	m.nextClickID++
	record.ID = m.nextClickID

	stored := *record
	m.clicks[stored.ID] = &stored
	m.events[stored.EventID] = stored.ID
	link.ClickCount++

	return true, nil
}

// Clicks returns the stored click records of a link ordered by ID.
func (m *MemoryStore) Clicks(linkID int64) []*analytics.ClickRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*analytics.ClickRecord

	for _, rec := range m.clicks {
		if rec.ShortLinkID == linkID {
			c := *rec
			out = append(out, &c)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func cloneLink(link *shortener.ShortLink) *shortener.ShortLink {
	c := *link
	c.CategoryIDs = slices.Clone(link.CategoryIDs)

	return &c
}
