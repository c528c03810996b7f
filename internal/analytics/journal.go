package analytics

import (
	"context"

	"go.uber.org/zap"
)

// Journal writes link lifecycle events and dead letters to the log.
// Its methods are messaging handlers.
type Journal struct {
	logger *zap.Logger
}

func NewJournal(logger *zap.Logger) *Journal {
	return &Journal{logger: logger}
}

func (j *Journal) LinkCreated(_ context.Context, event *LinkCreatedEvent) error {
	j.logger.Info("short link created",
		zap.Int64("id", event.ID),
		zap.String("shortCode", string(event.ShortCode)),
		zap.String("longUrl", event.LongURL),
		zap.Int64("ownerId", event.OwnerID),
		zap.Time("createdAt", event.CreatedAt),
	)

	return nil
}

func (j *Journal) DeadLetter(_ context.Context, event *DeadLetterEvent) error {
	fields := []zap.Field{
		zap.String("eventId", event.EventID),
		zap.String("stage", event.Stage),
		zap.String("reason", event.Reason),
		zap.Time("failedAt", event.FailedAt),
	}

	if event.Event != nil {
		fields = append(fields,
			zap.String("shortCode", string(event.Event.Link.ShortCode)),
			zap.String("ipAddress", event.Event.IPAddress),
		)
	}

	if len(event.Raw) > 0 {
		fields = append(fields, zap.ByteString("raw", event.Raw))
	}

	j.logger.Warn("click event dead-lettered", fields...)

	return nil
}
