package analytics_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/serroba/linkpulse/internal/analytics"
	"github.com/serroba/linkpulse/internal/queue"
	"github.com/serroba/linkpulse/internal/shortener"
	"github.com/serroba/linkpulse/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGeo struct {
	location analytics.LocationInfo
	err      error
	delay    time.Duration
}

func (s *stubGeo) Locate(ctx context.Context, _ string) (analytics.LocationInfo, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return analytics.LocationInfo{}, ctx.Err()
		}
	}

	return s.location, s.err
}

type deadLetters struct {
	mu     sync.Mutex
	events []*analytics.DeadLetterEvent
}

func (d *deadLetters) publish(e *analytics.DeadLetterEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.events = append(d.events, e)

	return nil
}

func (d *deadLetters) all() []*analytics.DeadLetterEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]*analytics.DeadLetterEvent(nil), d.events...)
}

type pipeline struct {
	repo      *store.MemoryStore
	clicks    *queue.Memory[analytics.ClickEvent]
	geo       *stubGeo
	dead      *deadLetters
	processor *analytics.Processor
	link      *shortener.ShortLink
}

func newPipeline(t *testing.T, cfg analytics.ProcessorConfig) *pipeline {
	t.Helper()

	p := &pipeline{
		repo:   store.NewMemoryStore(),
		clicks: queue.NewMemory[analytics.ClickEvent](),
		geo:    &stubGeo{location: analytics.LocationInfo{City: "Berlin", CountryCode: "DE"}},
		dead:   &deadLetters{},
	}

	p.link = &shortener.ShortLink{ShortCode: "abc123", LongURL: "https://example.com", OwnerID: 1, IsActive: true}
	require.NoError(t, p.repo.Create(context.Background(), p.link))

	p.processor = analytics.NewProcessor(
		p.clicks,
		p.geo,
		analytics.NewUAClassifier(),
		p.repo,
		p.dead.publish,
		zap.NewNop(),
		cfg,
	)

	return p
}

func (p *pipeline) push(t *testing.T, eventID string) {
	t.Helper()

	require.NoError(t, p.clicks.Push(context.Background(), &analytics.ClickEvent{
		EventID:     eventID,
		IPAddress:   "203.0.113.7",
		UserAgent:   iPhoneUA,
		TimeClicked: time.Now().UTC(),
		Link:        *p.link,
	}))
}

func (p *pipeline) clickCount(t *testing.T) int64 {
	t.Helper()

	link, err := p.repo.GetByID(context.Background(), p.link.ID)
	require.NoError(t, err)

	return link.ClickCount
}

func TestProcessor_ProcessNext(t *testing.T) {
	ctx := context.Background()

	t.Run("empty queue", func(t *testing.T) {
		p := newPipeline(t, analytics.ProcessorConfig{})

		processed, err := p.processor.ProcessNext(ctx)

		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("three events yield three records and three clicks", func(t *testing.T) {
		p := newPipeline(t, analytics.ProcessorConfig{})

		for _, id := range []string{"e-1", "e-2", "e-3"} {
			p.push(t, id)
		}

		for range 3 {
			processed, err := p.processor.ProcessNext(ctx)
			require.NoError(t, err)
			require.True(t, processed)
		}

		assert.Equal(t, int64(3), p.clickCount(t))

		records := p.repo.Clicks(p.link.ID)
		require.Len(t, records, 3)
		assert.Equal(t, "Berlin", records[0].Location.City)
		assert.Equal(t, "iOS", records[0].Device.OS)
		assert.Equal(t, "Apple", records[0].Device.Brand)
		assert.Equal(t, p.link.ShortCode, records[0].ShortCode)
		assert.Empty(t, p.dead.all())
	})

	t.Run("redelivered events are counted once", func(t *testing.T) {
		p := newPipeline(t, analytics.ProcessorConfig{})
		p.push(t, "e-1")
		p.push(t, "e-1")

		for range 2 {
			_, err := p.processor.ProcessNext(ctx)
			require.NoError(t, err)
		}

		assert.Equal(t, int64(1), p.clickCount(t))
		assert.Len(t, p.repo.Clicks(p.link.ID), 1)
	})

	t.Run("enrichment failure drops the event without partial writes", func(t *testing.T) {
		p := newPipeline(t, analytics.ProcessorConfig{})
		p.geo.err = errors.New("quota exceeded")
		p.push(t, "e-1")

		processed, err := p.processor.ProcessNext(ctx)

		require.Error(t, err)
		assert.True(t, processed)
		assert.Zero(t, p.clickCount(t))
		assert.Empty(t, p.repo.Clicks(p.link.ID))

		dead := p.dead.all()
		require.Len(t, dead, 1)
		assert.Equal(t, analytics.StageGeo, dead[0].Stage)
		assert.Equal(t, "e-1", dead[0].EventID)
		require.NotNil(t, dead[0].Event)
		assert.Equal(t, p.link.ShortCode, dead[0].Event.Link.ShortCode)
	})

	t.Run("slow analyzers time out", func(t *testing.T) {
		p := newPipeline(t, analytics.ProcessorConfig{AnalyzerTimeout: 20 * time.Millisecond})
		p.geo.delay = time.Second
		p.push(t, "e-1")

		_, err := p.processor.ProcessNext(ctx)

		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, p.clickCount(t))
	})

	t.Run("persistence failure is dead-lettered", func(t *testing.T) {
		p := newPipeline(t, analytics.ProcessorConfig{})

		require.NoError(t, p.clicks.Push(ctx, &analytics.ClickEvent{
			EventID: "e-1",
			Link:    shortener.ShortLink{ID: 404, ShortCode: "gone00"},
		}))

		_, err := p.processor.ProcessNext(ctx)

		require.ErrorIs(t, err, shortener.ErrNotFound)
		require.Len(t, p.dead.all(), 1)
		assert.Equal(t, analytics.StagePersist, p.dead.all()[0].Stage)
	})

	t.Run("undecodable elements are dead-lettered with their payload", func(t *testing.T) {
		p := newPipeline(t, analytics.ProcessorConfig{})
		p.clicks.PushRaw([]byte("{broken"))

		processed, err := p.processor.ProcessNext(ctx)

		require.Error(t, err)
		assert.True(t, processed)

		dead := p.dead.all()
		require.Len(t, dead, 1)
		assert.Equal(t, analytics.StageDecode, dead[0].Stage)
		assert.Equal(t, []byte("{broken"), dead[0].Raw)
	})

	t.Run("a failed event does not block the next one", func(t *testing.T) {
		p := newPipeline(t, analytics.ProcessorConfig{})
		p.clicks.PushRaw([]byte("{broken"))
		p.push(t, "e-1")

		_, err := p.processor.ProcessNext(ctx)
		require.Error(t, err)

		processed, err := p.processor.ProcessNext(ctx)
		require.NoError(t, err)
		assert.True(t, processed)
		assert.Equal(t, int64(1), p.clickCount(t))
	})
}

func TestProcessor_Run(t *testing.T) {
	t.Run("drains the queue in the background", func(t *testing.T) {
		p := newPipeline(t, analytics.ProcessorConfig{
			PollInterval:    5 * time.Millisecond,
			ProcessInterval: -1,
		})

		for _, id := range []string{"e-1", "e-2", "e-3"} {
			p.push(t, id)
		}

		require.NoError(t, p.processor.Start(context.Background()))

		assert.Eventually(t, func() bool {
			return len(p.repo.Clicks(p.link.ID)) == 3
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, p.processor.Shutdown())
		assert.Equal(t, int64(3), p.clickCount(t))
	})

	t.Run("stops promptly while idle", func(t *testing.T) {
		p := newPipeline(t, analytics.ProcessorConfig{PollInterval: time.Hour})

		require.NoError(t, p.processor.Start(context.Background()))

		done := make(chan struct{})

		go func() {
			_ = p.processor.Shutdown()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("processor did not stop")
		}
	})

	t.Run("stops when the parent context is cancelled", func(t *testing.T) {
		p := newPipeline(t, analytics.ProcessorConfig{PollInterval: time.Hour})
		ctx, cancel := context.WithCancel(context.Background())

		require.NoError(t, p.processor.Start(ctx))
		cancel()

		require.NoError(t, p.processor.Shutdown())
	})

	t.Run("keeps going through failures", func(t *testing.T) {
		p := newPipeline(t, analytics.ProcessorConfig{
			PollInterval:    5 * time.Millisecond,
			ProcessInterval: -1,
		})

		p.clicks.PushRaw([]byte("{broken"))
		p.push(t, "e-1")

		require.NoError(t, p.processor.Start(context.Background()))

		assert.Eventually(t, func() bool {
			return len(p.repo.Clicks(p.link.ID)) == 1
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, p.processor.Shutdown())
		assert.Len(t, p.dead.all(), 1)
	})
}

func TestProcessor_ShutdownWithoutStart(t *testing.T) {
	p := newPipeline(t, analytics.ProcessorConfig{})

	require.NoError(t, p.processor.Shutdown())
}
