package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chat-commerce-agent/internal/conversation"
	"github.com/wolfman30/chat-commerce-agent/internal/conversion"
	"github.com/wolfman30/chat-commerce-agent/internal/orders"
	"github.com/wolfman30/chat-commerce-agent/internal/tagging"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newSession(customerID string, state orders.State) *orders.Session {
	return &orders.Session{
		ID:         orders.SessionID(customerID, t0),
		CustomerID: customerID,
		State:      state,
		Products:   []orders.LineItem{{ID: "lav", Name: "Lavender Oil", Price: 350, Quantity: 2}},
		CreatedAt:  t0,
		UpdatedAt:  t0,
	}
}

type contractStore interface {
	ContextRepository
	SessionRepository
	JourneyRepository
	TagRepository
}

// exerciseRepositories runs the behavior every backing store shares.
func exerciseRepositories(t *testing.T, s contractStore) {
	ctx := context.Background()

	t.Run("context round trip", func(t *testing.T) {
		_, err := s.LoadContext(ctx, "c1")
		require.ErrorIs(t, err, ErrNotFound)

		c := conversation.NewContext("c1")
		c.Record(t0, 40, false, "product_inquiry")
		require.NoError(t, s.SaveContext(ctx, c))

		got, err := s.LoadContext(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, 1, got.InteractionCount)
		assert.Equal(t, []string{"product_inquiry"}, got.Topics)
		assert.True(t, got.LastInteraction.Equal(t0))
	})

	t.Run("terminal session clears the active pointer", func(t *testing.T) {
		_, err := s.LoadActiveSession(ctx, "c2")
		require.ErrorIs(t, err, ErrNotFound)

		sess := newSession("c2", orders.StateCollectingInfo)
		require.NoError(t, s.SaveSession(ctx, sess))

		got, err := s.LoadActiveSession(ctx, "c2")
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
		assert.Equal(t, 700.0, got.Total())

		sess.State = orders.StateCompleted
		require.NoError(t, s.SaveSession(ctx, sess))
		_, err = s.LoadActiveSession(ctx, "c2")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("journey versions", func(t *testing.T) {
		j := conversion.NewJourney("c3", t0)
		require.NoError(t, s.SaveJourney(ctx, j))
		assert.Equal(t, int64(1), j.Version)

		loaded, err := s.LoadJourney(ctx, "c3")
		require.NoError(t, err)
		assert.Equal(t, int64(1), loaded.Version)
		assert.True(t, loaded.Funnel[conversion.StageAwareness].Reached)

		stale := loaded.Clone()
		require.NoError(t, s.SaveJourney(ctx, loaded))
		assert.Equal(t, int64(2), loaded.Version)
		assert.ErrorIs(t, s.SaveJourney(ctx, stale), ErrConflict)

		require.NoError(t, s.SaveJourney(ctx, conversion.NewJourney("c4", t0)))
		all, err := s.ListJourneys(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "c3", all[0].CustomerID)
		assert.Equal(t, "c4", all[1].CustomerID)
	})

	t.Run("tags upsert", func(t *testing.T) {
		require.NoError(t, s.SaveTags(ctx, "c5", []tagging.Tag{
			{Category: tagging.CategoryPriority, Value: "warm_lead", Priority: tagging.PriorityMedium},
			{Category: tagging.CategoryBuyingStage, Value: "interest", Priority: tagging.PriorityLow},
		}))
		require.NoError(t, s.SaveTags(ctx, "c5", []tagging.Tag{
			{Category: tagging.CategoryPriority, Value: "warm_lead", Priority: tagging.PriorityHigh},
		}))

		tags, err := s.ListTags(ctx, "c5")
		require.NoError(t, err)
		require.Len(t, tags, 2)
		assert.Equal(t, tagging.CategoryBuyingStage, tags[0].Category)
		assert.Equal(t, "warm_lead", tags[1].Tag)
		assert.Equal(t, tagging.PriorityHigh, tags[1].Priority)
	})
}

func TestMemoryStore(t *testing.T) {
	exerciseRepositories(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	sess := newSession("c1", orders.StateInquiry)
	require.NoError(t, s.SaveSession(ctx, sess))
	sess.Products[0].Quantity = 9

	got, err := s.LoadActiveSession(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Products[0].Quantity)

	o := &orders.Order{ID: "o1", OrderNumber: "ORD-000001-ABC", Products: sess.Products, TotalAmount: 700}
	_, err = s.SaveOrder(ctx, o)
	require.NoError(t, err)
	loaded, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-000001-ABC", loaded.OrderNumber)
	_, err = s.GetOrder(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.RecordInteraction(ctx, InteractionRecord{CustomerID: "c1", Message: "hi", Tags: []string{"awareness"}}))
	require.NoError(t, s.RecordInteraction(ctx, InteractionRecord{CustomerID: "c2", Message: "yo"}))
	assert.Len(t, s.Interactions("c1"), 1)
}

func TestMemoryStoreOneOrderPerSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sessionID := "order_c1_1773482400000"

	first := &orders.Order{ID: orders.OrderID(sessionID), OrderNumber: "ORD-600000-X7Q", SessionID: sessionID, TotalAmount: 350}
	stored, err := s.SaveOrder(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "ORD-600000-X7Q", stored.OrderNumber)

	retry := &orders.Order{ID: orders.OrderID(sessionID), OrderNumber: "ORD-611000-B2C", SessionID: sessionID, TotalAmount: 350}
	stored, err = s.SaveOrder(ctx, retry)
	require.NoError(t, err)
	assert.Equal(t, "ORD-600000-X7Q", stored.OrderNumber, "existing order is returned")

	loaded, err := s.GetOrder(ctx, orders.OrderID(sessionID))
	require.NoError(t, err)
	assert.Equal(t, "ORD-600000-X7Q", loaded.OrderNumber)
	assert.Len(t, s.orders, 1)
}

func TestMemoryStoreSessionUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first := newSession("c1", orders.StateCancelled)
	require.NoError(t, s.SaveSession(ctx, first))

	second := newSession("c1", orders.StateInquiry)
	second.ID = orders.SessionID("c1", t0.Add(time.Minute))
	require.NoError(t, s.SaveSession(ctx, second))

	active, err := s.LoadActiveSession(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	old, ok := s.Session(first.ID)
	require.True(t, ok)
	assert.Equal(t, orders.StateCancelled, old.State)
}
