package store

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chat-commerce-agent/internal/orders"
	"github.com/wolfman30/chat-commerce-agent/internal/tagging"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	s := newPostgresStore(mock)
	s.now = func() time.Time { return t0 }
	return s, mock
}

func TestPostgresStore_Orders(t *testing.T) {
	s, mock := newMockPostgres(t)
	ctx := context.Background()

	o := &orders.Order{
		ID:           "5f1c2b9e-6d7a-4e2b-9a51-0c9f6c1d2e3f",
		OrderNumber:  "ORD-600000-X7Q",
		SessionID:    "order_c1_1773482400000",
		CustomerID:   "c1",
		CustomerName: "Maria Santos",
		Phone:        "+639171234567",
		Products:     []orders.LineItem{{ID: "lav", Name: "Lavender Oil", Price: 350, Quantity: 2}},
		TotalAmount:  700,
		Status:       orders.OrderStatusConfirmed,
		CreatedAt:    t0,
	}
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(o.ID, o.OrderNumber, o.SessionID, "c1", "Maria Santos", "+639171234567", "",
			pgxmock.AnyArg(), 700.0, "confirmed", pgxmock.AnyArg(), t0).
		WillReturnRows(orderRows(o.ID, o.OrderNumber, o.SessionID))
	saved, err := s.SaveOrder(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, saved.OrderNumber)

	mock.ExpectQuery("SELECT id, order_number").WithArgs(o.ID).WillReturnRows(orderRows(o.ID, o.OrderNumber, o.SessionID))
	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Products, got.Products)
	assert.Equal(t, "Makati", got.Details.Address)

	mock.ExpectQuery("SELECT id, order_number").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	_, err = s.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	_, err = s.SaveOrder(ctx, o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store: insert order")

	require.NoError(t, mock.ExpectationsWereMet())
}

func orderRows(id, number, sessionID string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "order_number", "session_id", "customer_id", "customer_name", "phone", "email",
		"products", "total_amount", "status", "details", "created_at"}).
		AddRow(id, number, sessionID, "c1", "Maria Santos", "+639171234567", "",
			[]byte(`[{"id":"lav","name":"Lavender Oil","price":350,"quantity":2}]`), 700.0, "confirmed",
			[]byte(`{"address":"Makati"}`), t0)
}

func TestPostgresStore_SaveOrderKeepsFirstOrderOfSession(t *testing.T) {
	s, mock := newMockPostgres(t)
	sessionID := "order_c1_1773482400000"
	retry := &orders.Order{
		ID:          orders.OrderID(sessionID),
		OrderNumber: "ORD-611000-B2C",
		SessionID:   sessionID,
		CustomerID:  "c1",
		TotalAmount: 700,
		Status:      orders.OrderStatusConfirmed,
		CreatedAt:   t0,
	}
	mock.ExpectQuery(`ON CONFLICT \(session_id\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(orderRows(retry.ID, "ORD-600000-X7Q", sessionID))

	stored, err := s.SaveOrder(context.Background(), retry)
	require.NoError(t, err)
	assert.Equal(t, "ORD-600000-X7Q", stored.OrderNumber)
	assert.Equal(t, retry.ID, stored.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Sessions(t *testing.T) {
	s, mock := newMockPostgres(t)
	ctx := context.Background()
	sess := newSession("c1", orders.StateCollectingInfo)

	mock.ExpectExec("INSERT INTO order_sessions").
		WithArgs(sess.ID, "c1", "collecting_info", pgxmock.AnyArg(), t0, t0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.SaveSession(ctx, sess))

	mock.ExpectQuery("SELECT data").WithArgs("c1").WillReturnRows(
		pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"` + sess.ID + `","customerId":"c1","state":"collecting_info",` +
			`"products":[{"id":"lav","name":"Lavender Oil","price":350,"quantity":2}]}`)))
	got, err := s.LoadActiveSession(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, orders.StateCollectingInfo, got.State)
	assert.Equal(t, 700.0, got.Total())

	mock.ExpectQuery("SELECT data").WithArgs("c2").WillReturnError(pgx.ErrNoRows)
	_, err = s.LoadActiveSession(ctx, "c2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Tags(t *testing.T) {
	s, mock := newMockPostgres(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO customer_tags").
		WithArgs("c1", "priority", "hot_lead", "critical", t0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO customer_tags").
		WithArgs("c1", "buying_stage", "ready_to_buy", "critical", t0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	require.NoError(t, s.SaveTags(ctx, "c1", []tagging.Tag{
		{Category: tagging.CategoryPriority, Value: "hot_lead", Priority: tagging.PriorityCritical},
		{Category: tagging.CategoryBuyingStage, Value: "ready_to_buy", Priority: tagging.PriorityCritical},
	}))

	mock.ExpectQuery("SELECT customer_id, category, tag").WithArgs("c1").WillReturnRows(
		pgxmock.NewRows([]string{"customer_id", "category", "tag", "priority", "created_at", "updated_at"}).
			AddRow("c1", "buying_stage", "ready_to_buy", "critical", t0, t0).
			AddRow("c1", "priority", "hot_lead", "critical", t0, t0))
	tags, err := s.ListTags(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, tagging.CategoryBuyingStage, tags[0].Category)
	assert.Equal(t, tagging.PriorityCritical, tags[1].Priority)

	require.NoError(t, s.SaveTags(ctx, "c1", nil), "no tags is a no-op")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TagsRollbackOnError(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO customer_tags").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := s.SaveTags(context.Background(), "c1", []tagging.Tag{
		{Category: tagging.CategoryPriority, Value: "cold_lead", Priority: tagging.PriorityLow},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
