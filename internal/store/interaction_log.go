package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// InteractionLog appends processed messages to the interactions table.
type InteractionLog struct {
	db *sql.DB
}

var _ InteractionRecorder = (*InteractionLog)(nil)

// NewInteractionLog returns nil when db is nil so callers can skip logging.
func NewInteractionLog(db *sql.DB) *InteractionLog {
	if db == nil {
		return nil
	}
	return &InteractionLog{db: db}
}

func (l *InteractionLog) RecordInteraction(ctx context.Context, rec InteractionRecord) error {
	if l == nil {
		return nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO interactions (id, customer_id, message, response, intent, lead_score,
		                          order_status, tags, products, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.CustomerID, rec.Message, rec.Response, rec.Intent, rec.LeadScore,
		rec.OrderStatus, pq.Array(rec.Tags), pq.Array(rec.Products), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert interaction: %w", err)
	}
	return nil
}

// ListInteractions returns the newest interactions of a customer first.
func (l *InteractionLog) ListInteractions(ctx context.Context, customerID string, limit int) ([]InteractionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, customer_id, message, response, intent, lead_score, order_status, tags, products, created_at
		FROM interactions
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: select interactions: %w", err)
	}
	defer rows.Close()

	out := []InteractionRecord{}
	for rows.Next() {
		var rec InteractionRecord
		if err := rows.Scan(&rec.ID, &rec.CustomerID, &rec.Message, &rec.Response, &rec.Intent,
			&rec.LeadScore, &rec.OrderStatus, pq.Array(&rec.Tags), pq.Array(&rec.Products), &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan interaction: %w", err)
		}
		if rec.Tags == nil {
			rec.Tags = []string{}
		}
		if rec.Products == nil {
			rec.Products = []string{}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
