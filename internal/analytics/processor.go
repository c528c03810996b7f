package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/serroba/linkpulse/internal/messaging"
	"github.com/serroba/linkpulse/internal/metrics"
	"github.com/serroba/linkpulse/internal/queue"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultProcessInterval = 2 * time.Second
	DefaultAnalyzerTimeout = 3 * time.Second
)

// ProcessorConfig controls the processor cadence.
type ProcessorConfig struct {
	// PollInterval is the back-off after finding the queue empty or unreachable.
	PollInterval time.Duration
	// ProcessInterval is the pause after each handled event. It caps the
	// processor at 60s/ProcessInterval events per minute so the metered
	// geo API is never hammered.
	ProcessInterval time.Duration
	// AnalyzerTimeout bounds each analyzer call.
	AnalyzerTimeout time.Duration
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.ProcessInterval < 0 {
		c.ProcessInterval = 0
	} else if c.ProcessInterval == 0 {
		c.ProcessInterval = DefaultProcessInterval
	}

	if c.AnalyzerTimeout <= 0 {
		c.AnalyzerTimeout = DefaultAnalyzerTimeout
	}

	return c
}

// stageError tags a failure with the pipeline stage that produced it.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// Processor drains the click queue, enriches each event and persists it.
// A failing event is dropped and dead-lettered; the loop keeps going.
type Processor struct {
	queue      queue.Queue[ClickEvent]
	geo        GeoLocator
	devices    DeviceClassifier
	store      ClickStore
	deadLetter messaging.Publish[DeadLetterEvent]
	logger     *zap.Logger
	cfg        ProcessorConfig
	now        func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewProcessor(
	q queue.Queue[ClickEvent],
	geo GeoLocator,
	devices DeviceClassifier,
	store ClickStore,
	deadLetter messaging.Publish[DeadLetterEvent],
	logger *zap.Logger,
	cfg ProcessorConfig,
) *Processor {
	return &Processor{
		queue:      q,
		geo:        geo,
		devices:    devices,
		store:      store,
		deadLetter: deadLetter,
		logger:     logger,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		done:       make(chan struct{}),
	}
}

// Start runs the processing loop in the background until ctx is cancelled
// or Shutdown is called.
func (p *Processor) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	go p.run(ctx)

	p.logger.Info("click processor started",
		zap.Duration("pollInterval", p.cfg.PollInterval),
		zap.Duration("processInterval", p.cfg.ProcessInterval),
	)

	return nil
}

func (p *Processor) run(ctx context.Context) {
	defer close(p.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// The event in hand is finished even if shutdown starts meanwhile;
		// analyzer calls stay bounded by their own timeout.
		processed, err := p.ProcessNext(context.WithoutCancel(ctx))

		wait := p.cfg.ProcessInterval
		if !processed {
			wait = p.cfg.PollInterval

			if err != nil {
				p.logger.Warn("click queue unavailable", zap.Error(err))
			}
		}

		timer.Reset(wait)
	}
}

// ProcessNext handles at most one event. It reports whether an event was
// taken off the queue; the error describes why that event was dropped, or
// why the queue could not be read.
func (p *Processor) ProcessNext(ctx context.Context) (bool, error) {
	event, ok, err := p.queue.Pop(ctx)
	if err != nil {
		var decodeErr *queue.DecodeError
		if errors.As(err, &decodeErr) {
			p.drop(nil, decodeErr.Payload, &stageError{stage: StageDecode, err: err})

			return true, err
		}

		return false, err
	}

	if !ok {
		return false, nil
	}

	if err = p.Handle(ctx, event); err != nil {
		p.drop(event, nil, err)

		return true, err
	}

	return true, nil
}

// Handle enriches and persists a single event.
func (p *Processor) Handle(ctx context.Context, event *ClickEvent) error {
	location, err := p.locate(ctx, event.IPAddress)
	if err != nil {
		return &stageError{stage: StageGeo, err: err}
	}

	device, err := p.classify(ctx, event)
	if err != nil {
		return &stageError{stage: StageDevice, err: err}
	}

	record := &ClickRecord{
		EventID:     event.EventID,
		ClickedAt:   event.TimeClicked,
		IPAddress:   event.IPAddress,
		UserAgent:   event.UserAgent,
		ShortLinkID: event.Link.ID,
		ShortCode:   event.Link.ShortCode,
		Location:    location,
		Device:      device,
	}

	inserted, err := p.store.SaveClick(ctx, record)
	if err != nil {
		return &stageError{stage: StagePersist, err: err}
	}

	if !inserted {
		metrics.ClicksDuplicate.Inc()
		p.logger.Debug("duplicate click event ignored", zap.String("eventId", event.EventID))

		return nil
	}

	metrics.ClicksRecorded.Inc()

	return nil
}

func (p *Processor) locate(ctx context.Context, ip string) (LocationInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.AnalyzerTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.EnrichmentDuration.WithLabelValues(StageGeo).Observe(time.Since(start).Seconds())
	}()

	return p.geo.Locate(ctx, ip)
}

func (p *Processor) classify(ctx context.Context, event *ClickEvent) (DeviceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.AnalyzerTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.EnrichmentDuration.WithLabelValues(StageDevice).Observe(time.Since(start).Seconds())
	}()

	return p.devices.Classify(ctx, event.UserAgent, event.Hint)
}

func (p *Processor) drop(event *ClickEvent, raw []byte, cause error) {
	stage := StagePersist

	var se *stageError
	if errors.As(cause, &se) {
		stage = se.stage
	}

	metrics.ClicksDropped.WithLabelValues(stage).Inc()

	dead := &DeadLetterEvent{
		Stage:    stage,
		Reason:   cause.Error(),
		FailedAt: p.now().UTC(),
		Event:    event,
		Raw:      raw,
	}

	fields := []zap.Field{zap.String("stage", stage), zap.Error(cause)}

	if event != nil {
		dead.EventID = event.EventID
		fields = append(fields,
			zap.String("eventId", event.EventID),
			zap.String("shortCode", string(event.Link.ShortCode)),
		)
	}

	p.logger.Error("click event dropped", fields...)

	if p.deadLetter == nil {
		return
	}

	if err := p.deadLetter(dead); err != nil {
		p.logger.Error("failed to publish dead letter", zap.String("stage", stage), zap.Error(err))
	}
}

// Shutdown stops the loop and waits for the event in hand to finish.
func (p *Processor) Shutdown() error {
	if p.cancel == nil {
		return nil
	}

	p.cancel()
	<-p.done

	p.logger.Info("click processor stopped")

	return nil
}
