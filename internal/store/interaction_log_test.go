package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionLog_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log := NewInteractionLog(db)
	mock.ExpectExec("INSERT INTO interactions").
		WithArgs("i-1", "c1", "magkano po?", "Lavender Oil is ₱350", "price_inquiry", 47, "",
			pq.Array([]string{"evaluation"}), pq.Array([]string{"Lavender Oil"}), t0).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = log.RecordInteraction(context.Background(), InteractionRecord{
		ID:         "i-1",
		CustomerID: "c1",
		Message:    "magkano po?",
		Response:   "Lavender Oil is ₱350",
		Intent:     "price_inquiry",
		LeadScore:  47,
		Tags:       []string{"evaluation"},
		Products:   []string{"Lavender Oil"},
		CreatedAt:  t0,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionLog_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log := NewInteractionLog(db)
	mock.ExpectQuery("SELECT id, customer_id, message").WithArgs("c1", 50).WillReturnRows(
		sqlmock.NewRows([]string{"id", "customer_id", "message", "response", "intent", "lead_score",
			"order_status", "tags", "products", "created_at"}).
			AddRow("i-2", "c1", "yes", "Order confirmed", "purchase_intent", 90, "completed",
				"{customer,hot_lead}", "{}", t0))

	recs, err := log.ListInteractions(context.Background(), "c1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"customer", "hot_lead"}, recs[0].Tags)
	assert.Equal(t, []string{}, recs[0].Products)
	assert.Equal(t, 90, recs[0].LeadScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionLog_NilIsNoop(t *testing.T) {
	log := NewInteractionLog(nil)
	assert.Nil(t, log)
	assert.NoError(t, log.RecordInteraction(context.Background(), InteractionRecord{CustomerID: "c1"}))
}
