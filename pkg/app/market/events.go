package market

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventListingCreated  EventType = "listing-created"
	EventListingExecuted EventType = "listing-executed"
	EventListingEdited   EventType = "listing-edited"
)

// Event is an informational snapshot emitted after a successful mutation.
// Listing is the full record as of the moment the event fired.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	ListingID uint64    `json:"listing_id"`
	Listing   Listing   `json:"listing"`
	Timestamp int64     `json:"timestamp"` // unix ms
}

// Sink receives listing events. The API server implements it to fan events
// out over WebSocket; a nil sink drops them.
type Sink interface {
	Publish(Event)
}

func (r *Registry) emit(typ EventType, l *Listing) {
	if r.sink == nil {
		return
	}
	r.sink.Publish(Event{
		ID:        uuid.NewString(),
		Type:      typ,
		ListingID: l.ID,
		Listing:   *l,
		Timestamp: time.Now().UnixMilli(),
	})
}
