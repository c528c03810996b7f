package analytics

import (
	"strconv"
	"strings"
	"time"

	"github.com/serroba/linkpulse/internal/shortener"
)

const (
	TopicLinkCreated = "links.created"
	TopicDeadLetter  = "clicks.deadletter"
)

// ClickEvent is pushed onto the click queue for every successful redirect.
// EventID is the idempotency key: a redelivered event is recorded once.
type ClickEvent struct {
	EventID     string              `json:"eventId"`
	IPAddress   string              `json:"ipAddress"`
	UserAgent   string              `json:"userAgent"`
	ClientHints map[string]string   `json:"clientHints,omitempty"`
	TimeClicked time.Time           `json:"timeClicked"`
	Link        shortener.ShortLink `json:"link"`
}

// Hint returns a client hint header value, matching the name case-insensitively.
func (e *ClickEvent) Hint(name string) string {
	if v, ok := e.ClientHints[strings.ToLower(name)]; ok {
		return v
	}

	for k, v := range e.ClientHints {
		if strings.EqualFold(k, name) {
			return v
		}
	}

	return ""
}

// LinkCreatedEvent is published once per newly created short link.
type LinkCreatedEvent struct {
	ID        int64          `json:"id"`
	ShortCode shortener.Code `json:"shortCode"`
	LongURL   string         `json:"longUrl"`
	OwnerID   int64          `json:"ownerId"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (e *LinkCreatedEvent) MessageKey() string {
	return "link-" + strconv.FormatInt(e.ID, 10)
}

// Failure stages reported on dead letters and in metrics.
const (
	StageDecode  = "decode"
	StageGeo     = "geo"
	StageDevice  = "device"
	StagePersist = "persist"
)

// DeadLetterEvent carries a click event the processor gave up on.
// Raw is only set when the queue element could not be decoded.
type DeadLetterEvent struct {
	EventID  string      `json:"eventId,omitempty"`
	Stage    string      `json:"stage"`
	Reason   string      `json:"reason"`
	FailedAt time.Time   `json:"failedAt"`
	Event    *ClickEvent `json:"event,omitempty"`
	Raw      []byte      `json:"raw,omitempty"`
}

// MessageKey is empty for undecodable events, which get a random message id.
func (e *DeadLetterEvent) MessageKey() string {
	return e.EventID
}
