package resolver_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/serroba/linkpulse/internal/analytics"
	"github.com/serroba/linkpulse/internal/shortener"
)

var errCacheDown = errors.New("cache unavailable")

// fakeCache stores JSON snapshots like the real cache and counts lookups.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	hits    int
	misses  int
	getErr  error
	setErr  error
	sets    int
	removed []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) (*shortener.ShortLink, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return nil, false, c.getErr
	}

	data, ok := c.entries[key]
	if !ok {
		c.misses++

		return nil, false, nil
	}

	c.hits++

	var link shortener.ShortLink
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, false, err
	}

	return &link, true, nil
}

func (c *fakeCache) Set(_ context.Context, key string, link *shortener.ShortLink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.setErr != nil {
		return c.setErr
	}

	data, _ := json.Marshal(link)
	c.entries[key] = data
	c.sets++

	return nil
}

func (c *fakeCache) Add(_ context.Context, key string, link *shortener.ShortLink) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.setErr != nil {
		return false, c.setErr
	}

	if _, ok := c.entries[key]; ok {
		return false, nil
	}

	data, _ := json.Marshal(link)
	c.entries[key] = data
	c.sets++

	return true, nil
}

func (c *fakeCache) SetBatch(
	_ context.Context,
	links []*shortener.ShortLink,
	key func(*shortener.ShortLink) string,
) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.setErr != nil {
		return 0, c.setErr
	}

	written := 0

	for _, link := range links {
		k := key(link)
		if _, ok := c.entries[k]; ok {
			continue
		}

		data, _ := json.Marshal(link)
		c.entries[k] = data
		written++
	}

	return written, nil
}

func (c *fakeCache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	c.removed = append(c.removed, key)

	return nil
}

func (c *fakeCache) GetAll(_ context.Context) ([]*shortener.ShortLink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*shortener.ShortLink, 0, len(c.entries))

	for _, data := range c.entries {
		var link shortener.ShortLink
		if err := json.Unmarshal(data, &link); err != nil {
			return nil, err
		}

		out = append(out, &link)
	}

	return out, nil
}

func (c *fakeCache) cached(key string) (*shortener.ShortLink, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	var link shortener.ShortLink
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, false
	}

	return &link, true
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]

	return ok
}

// failingQueue rejects every push.
type failingQueue struct{}

func (failingQueue) Push(context.Context, *analytics.ClickEvent) error {
	return errors.New("queue unavailable")
}

func (failingQueue) Pop(context.Context) (*analytics.ClickEvent, bool, error) {
	return nil, false, nil
}

// denyAll rejects every owner.
type denyAll struct{}

func (denyAll) Authorize(context.Context, int64) error {
	return shortener.ErrUnauthorized
}

// racingRepo hides some existing codes from CodeExists so that Create is the
// first to notice them, as when another writer wins the race.
type racingRepo struct {
	shortener.Repository
	hidden map[shortener.Code]bool
}

func (r *racingRepo) CodeExists(ctx context.Context, code shortener.Code) (bool, error) {
	if r.hidden[code] {
		return false, nil
	}

	return r.Repository.CodeExists(ctx, code)
}

// slowReadRepo runs afterRead once, between the first GetByCode read and its
// return, the way a concurrent writer could.
type slowReadRepo struct {
	shortener.Repository
	afterRead func()
	fired     bool
}

func (r *slowReadRepo) GetByCode(ctx context.Context, code shortener.Code) (*shortener.ShortLink, error) {
	link, err := r.Repository.GetByCode(ctx, code)
	if err == nil && !r.fired && r.afterRead != nil {
		r.fired = true
		r.afterRead()
	}

	return link, err
}
