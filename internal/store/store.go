// Package store persists the per-customer state of the decision pipeline:
// conversation contexts, order sessions, orders, journeys, tags and the
// interaction log.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/chat-commerce-agent/internal/conversation"
	"github.com/wolfman30/chat-commerce-agent/internal/conversion"
	"github.com/wolfman30/chat-commerce-agent/internal/orders"
	"github.com/wolfman30/chat-commerce-agent/internal/tagging"
)

var (
	// ErrNotFound is returned by loads of records that do not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a journey was saved by someone else since it was loaded.
	ErrConflict = errors.New("store: version conflict")
)

// ContextRepository keeps conversation contexts.
type ContextRepository interface {
	LoadContext(ctx context.Context, customerID string) (*conversation.Context, error)
	SaveContext(ctx context.Context, c *conversation.Context) error
}

// SessionRepository keeps order sessions. LoadActiveSession returns
// ErrNotFound when the customer has no open session; saving a terminal
// session closes it.
type SessionRepository interface {
	LoadActiveSession(ctx context.Context, customerID string) (*orders.Session, error)
	SaveSession(ctx context.Context, s *orders.Session) error
}

// JourneyRepository keeps conversion journeys. SaveJourney succeeds only when
// j.Version matches the stored version and bumps it on success.
type JourneyRepository interface {
	LoadJourney(ctx context.Context, customerID string) (*conversion.Journey, error)
	SaveJourney(ctx context.Context, j *conversion.Journey) error
	ListJourneys(ctx context.Context) ([]*conversion.Journey, error)
}

// OrderRepository keeps confirmed orders. Orders are never updated and a
// session has at most one: SaveOrder returns the order already stored for
// o.SessionID instead of writing a second one.
type OrderRepository interface {
	SaveOrder(ctx context.Context, o *orders.Order) (*orders.Order, error)
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
}

// TagRepository keeps the latest tags of each customer.
type TagRepository interface {
	SaveTags(ctx context.Context, customerID string, tags []tagging.Tag) error
	ListTags(ctx context.Context, customerID string) ([]CustomerTag, error)
}

// InteractionRecorder appends to the interaction log.
type InteractionRecorder interface {
	RecordInteraction(ctx context.Context, rec InteractionRecord) error
}

// CustomerTag is a stored tag, unique on (customer, category, tag).
type CustomerTag struct {
	CustomerID string           `json:"customerId"`
	Category   tagging.Category `json:"category"`
	Tag        string           `json:"tag"`
	Priority   tagging.Priority `json:"priority"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// InteractionRecord is one row of the interaction log.
type InteractionRecord struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customerId"`
	Message     string    `json:"message"`
	Response    string    `json:"response"`
	Intent      string    `json:"intent"`
	LeadScore   int       `json:"leadScore"`
	OrderStatus string    `json:"orderStatus"`
	Tags        []string  `json:"tags"`
	Products    []string  `json:"products"`
	CreatedAt   time.Time `json:"createdAt"`
}

func tagKey(c tagging.Category, value string) string {
	return string(c) + ":" + value
}

// upsertTags merges tags into existing rows keyed by category and value,
// refreshing priority and UpdatedAt of rows that already exist.
func upsertTags(existing map[string]CustomerTag, customerID string, tags []tagging.Tag, now time.Time) {
	for _, t := range tags {
		key := tagKey(t.Category, t.Value)
		row, ok := existing[key]
		if !ok {
			row = CustomerTag{CustomerID: customerID, Category: t.Category, Tag: t.Value, CreatedAt: now}
		}
		row.Priority = t.Priority
		row.UpdatedAt = now
		existing[key] = row
	}
}
