// Package resolver answers "which long URL does this short code map to" and
// registers new short links, keeping the cache in front of the durable store.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/serroba/linkpulse/internal/analytics"
	"github.com/serroba/linkpulse/internal/messaging"
	"github.com/serroba/linkpulse/internal/metrics"
	"github.com/serroba/linkpulse/internal/queue"
	"github.com/serroba/linkpulse/internal/shortener"
	"go.uber.org/zap"
)

const (
	DefaultEnqueueTimeout       = 500 * time.Millisecond
	DefaultMaxCollisionAttempts = 10
)

// LinkCache is the cache layer as seen by the resolver.
type LinkCache interface {
	Get(ctx context.Context, key string) (*shortener.ShortLink, bool, error)
	Set(ctx context.Context, key string, link *shortener.ShortLink) error
	Add(ctx context.Context, key string, link *shortener.ShortLink) (bool, error)
	SetBatch(ctx context.Context, links []*shortener.ShortLink, key func(*shortener.ShortLink) string) (int, error)
	Remove(ctx context.Context, key string) error
	GetAll(ctx context.Context) ([]*shortener.ShortLink, error)
}

// Authorizer checks that the caller may act for ownerID.
type Authorizer interface {
	Authorize(ctx context.Context, ownerID int64) error
}

// Visit describes the request that triggered a resolution.
type Visit struct {
	IPAddress   string
	UserAgent   string
	ClientHints map[string]string
}

type Config struct {
	EnqueueTimeout       time.Duration
	MaxCollisionAttempts int
}

// Resolver orchestrates the code generator, the cache and the durable store.
type Resolver struct {
	repo          shortener.Repository
	cache         LinkCache
	clicks        queue.Queue[analytics.ClickEvent]
	generator     *shortener.Generator
	authorizer    Authorizer
	publishCreate messaging.Publish[analytics.LinkCreatedEvent]
	logger        *zap.Logger
	cfg           Config
	now           func() time.Time
	newEventID    func() string
}

func New(
	repo shortener.Repository,
	cache LinkCache,
	clicks queue.Queue[analytics.ClickEvent],
	generator *shortener.Generator,
	authorizer Authorizer,
	publishCreate messaging.Publish[analytics.LinkCreatedEvent],
	logger *zap.Logger,
	cfg Config,
) *Resolver {
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = DefaultEnqueueTimeout
	}

	if cfg.MaxCollisionAttempts <= 0 {
		cfg.MaxCollisionAttempts = DefaultMaxCollisionAttempts
	}

	return &Resolver{
		repo:          repo,
		cache:         cache,
		clicks:        clicks,
		generator:     generator,
		authorizer:    authorizer,
		publishCreate: publishCreate,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
		newEventID:    uuid.NewString,
	}
}

// Resolve returns the active link stored under code and enqueues a click
// event for it. Inactive and unknown codes both yield ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, code shortener.Code, visit Visit) (*shortener.ShortLink, error) {
	if err := shortener.ValidateCode(code); err != nil {
		metrics.Redirects.WithLabelValues("invalid").Inc()

		return nil, err
	}

	link, err := r.lookup(ctx, code)
	if err != nil {
		if errors.Is(err, shortener.ErrNotFound) {
			metrics.Redirects.WithLabelValues("not_found").Inc()
		}

		return nil, err
	}

	if !link.IsActive {
		metrics.Redirects.WithLabelValues("inactive").Inc()

		return nil, fmt.Errorf("%w: %s is inactive", shortener.ErrNotFound, code)
	}

	r.enqueueClick(ctx, link, visit)

	metrics.Redirects.WithLabelValues("resolved").Inc()

	return link, nil
}

// lookup is the cache-aside read: cache first, store on a miss or a cache
// failure, then write the store's answer back. The write-back never replaces
// an entry, so a snapshot written by SetActive in the meantime survives.
func (r *Resolver) lookup(ctx context.Context, code shortener.Code) (*shortener.ShortLink, error) {
	key := string(code)

	link, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("cache read failed, falling back to store",
			zap.String("shortCode", key),
			zap.Error(err),
		)
	} else if ok {
		return link, nil
	}

	link, err = r.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	r.fillCache(ctx, link)

	return link, nil
}

func (r *Resolver) enqueueClick(ctx context.Context, link *shortener.ShortLink, visit Visit) {
	event := &analytics.ClickEvent{
		EventID:     r.newEventID(),
		IPAddress:   visit.IPAddress,
		UserAgent:   visit.UserAgent,
		ClientHints: visit.ClientHints,
		TimeClicked: r.now().UTC(),
		Link:        *link,
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.EnqueueTimeout)
	defer cancel()

	if err := r.clicks.Push(ctx, event); err != nil {
		metrics.EnqueueFailures.Inc()
		r.logger.Warn("failed to enqueue click event",
			zap.String("shortCode", string(link.ShortCode)),
			zap.String("eventId", event.EventID),
			zap.Error(err),
		)
	}
}

// AddShortLink creates a link for the owner, or returns the one the owner
// already has for the same long URL. The bool reports whether a link was created.
func (r *Resolver) AddShortLink(ctx context.Context, req shortener.CreateRequest) (*shortener.ShortLink, bool, error) {
	req.LongURL = strings.TrimSpace(req.LongURL)

	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	if err := r.authorizer.Authorize(ctx, req.OwnerID); err != nil {
		return nil, false, err
	}

	link, isNew, err := r.create(ctx, req)
	if err != nil {
		return nil, false, err
	}

	if isNew {
		if link.IsActive {
			r.cacheLink(ctx, link)
		}

		r.announce(link)
	}

	return link, isNew, nil
}

// BatchResult is the outcome of one item of AddShortLinks.
type BatchResult struct {
	Link  *shortener.ShortLink
	IsNew bool
	Err   error
}

// AddShortLinks creates every request independently and warms the cache
// with a single batch write. A failing item does not affect the others.
func (r *Resolver) AddShortLinks(ctx context.Context, reqs []shortener.CreateRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))
	warm := make([]*shortener.ShortLink, 0, len(reqs))

	for i, req := range reqs {
		req.LongURL = strings.TrimSpace(req.LongURL)

		if err := req.Validate(); err != nil {
			results[i].Err = err

			continue
		}

		if err := r.authorizer.Authorize(ctx, req.OwnerID); err != nil {
			results[i].Err = err

			continue
		}

		link, isNew, err := r.create(ctx, req)
		results[i] = BatchResult{Link: link, IsNew: isNew, Err: err}

		if err != nil {
			continue
		}

		if isNew {
			r.announce(link)
		}

		if link.IsActive {
			warm = append(warm, link)
		}
	}

	if len(warm) > 0 {
		if _, err := r.cache.SetBatch(ctx, warm, shortener.CacheKey); err != nil {
			r.logger.Warn("failed to warm cache for batch", zap.Int("links", len(warm)), zap.Error(err))
		}
	}

	return results
}

func (r *Resolver) create(ctx context.Context, req shortener.CreateRequest) (*shortener.ShortLink, bool, error) {
	existing, err := r.repo.FindByOwnerURL(ctx, req.OwnerID, req.LongURL)
	if err == nil {
		return existing, false, nil
	}

	if !errors.Is(err, shortener.ErrNotFound) {
		return nil, false, err
	}

	link := &shortener.ShortLink{
		LongURL:     req.LongURL,
		Description: req.Description,
		OwnerID:     req.OwnerID,
		IsActive:    req.IsActive,
		CategoryIDs: req.CategoryIDs,
	}

	if req.CustomCode != "" {
		link.ShortCode = req.CustomCode

		return r.insert(ctx, link, func() error {
			return fmt.Errorf("%w: %s", shortener.ErrConflict, req.CustomCode)
		})
	}

	base := r.generator.Generate(req.LongURL)
	code := base

	for range r.cfg.MaxCollisionAttempts {
		exists, err := r.repo.CodeExists(ctx, code)
		if err != nil {
			return nil, false, err
		}

		if exists {
			code = r.generator.ResolveCollision(base)

			continue
		}

		link.ShortCode = code

		created, isNew, err := r.insert(ctx, link, nil)
		if errors.Is(err, shortener.ErrCodeTaken) {
			code = r.generator.ResolveCollision(base)

			continue
		}

		return created, isNew, err
	}

	return nil, false, fmt.Errorf("%w: no free code for %s after %d attempts",
		shortener.ErrConflict, base, r.cfg.MaxCollisionAttempts)
}

// insert persists link. A concurrent create for the same owner and URL is
// answered with the winner's link. onTaken maps a taken code; nil leaves
// ErrCodeTaken to the caller.
func (r *Resolver) insert(ctx context.Context, link *shortener.ShortLink, onTaken func() error) (*shortener.ShortLink, bool, error) {
	err := r.repo.Create(ctx, link)

	switch {
	case err == nil:
		metrics.LinksCreated.Inc()

		return link, true, nil
	case errors.Is(err, shortener.ErrDuplicateLink):
		existing, ferr := r.repo.FindByOwnerURL(ctx, link.OwnerID, link.LongURL)
		if ferr != nil {
			return nil, false, ferr
		}

		return existing, false, nil
	case errors.Is(err, shortener.ErrCodeTaken) && onTaken != nil:
		return nil, false, onTaken()
	default:
		return nil, false, err
	}
}

// SetActive toggles a link on behalf of its owner and replaces the cached
// snapshot with the updated one.
func (r *Resolver) SetActive(ctx context.Context, code shortener.Code, ownerID int64, active bool) (*shortener.ShortLink, error) {
	if err := shortener.ValidateCode(code); err != nil {
		return nil, err
	}

	if err := r.authorizer.Authorize(ctx, ownerID); err != nil {
		return nil, err
	}

	current, err := r.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if current.OwnerID != ownerID {
		return nil, shortener.ErrForbidden
	}

	link, err := r.repo.SetActive(ctx, code, active)
	if err != nil {
		return nil, err
	}

	// lookup write-backs only fill absent keys, so the key must stay occupied
	if err := r.cache.Set(ctx, shortener.CacheKey(link), link); err != nil {
		r.logger.Warn("failed to cache toggled link, evicting",
			zap.String("shortCode", string(code)),
			zap.Error(err),
		)

		if rerr := r.cache.Remove(ctx, string(code)); rerr != nil {
			r.logger.Error("failed to evict toggled link",
				zap.String("shortCode", string(code)),
				zap.Error(rerr),
			)
		}
	}

	return link, nil
}

func (r *Resolver) LinkByID(ctx context.Context, id int64) (*shortener.ShortLink, error) {
	return r.repo.GetByID(ctx, id)
}

// CachedLinks lists every link currently in the cache. Diagnostics only.
func (r *Resolver) CachedLinks(ctx context.Context) ([]*shortener.ShortLink, error) {
	return r.cache.GetAll(ctx)
}

// WarmCache loads the most clicked active links into the cache without
// overwriting entries that are already there.
func (r *Resolver) WarmCache(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}

	links, err := r.repo.TopLinks(ctx, limit)
	if err != nil {
		return 0, err
	}

	written, err := r.cache.SetBatch(ctx, links, shortener.CacheKey)
	if err != nil {
		return 0, err
	}

	r.logger.Info("cache warmed", zap.Int("candidates", len(links)), zap.Int("written", written))

	return written, nil
}

func (r *Resolver) cacheLink(ctx context.Context, link *shortener.ShortLink) {
	if err := r.cache.Set(ctx, shortener.CacheKey(link), link); err != nil {
		r.logger.Warn("failed to cache link",
			zap.String("shortCode", string(link.ShortCode)),
			zap.Error(err),
		)
	}
}

func (r *Resolver) fillCache(ctx context.Context, link *shortener.ShortLink) {
	if _, err := r.cache.Add(ctx, shortener.CacheKey(link), link); err != nil {
		r.logger.Warn("failed to cache link",
			zap.String("shortCode", string(link.ShortCode)),
			zap.Error(err),
		)
	}
}

func (r *Resolver) announce(link *shortener.ShortLink) {
	if r.publishCreate == nil {
		return
	}

	event := &analytics.LinkCreatedEvent{
		ID:        link.ID,
		ShortCode: link.ShortCode,
		LongURL:   link.LongURL,
		OwnerID:   link.OwnerID,
		CreatedAt: link.CreatedAt,
	}

	if err := r.publishCreate(event); err != nil {
		r.logger.Warn("failed to publish link created event",
			zap.String("shortCode", string(link.ShortCode)),
			zap.Error(err),
		)
	}
}
