package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/chat-commerce-agent/internal/orders"
	"github.com/wolfman30/chat-commerce-agent/internal/tagging"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore keeps orders, order sessions and customer tags.
type PostgresStore struct {
	pool pgxQuerier
	now  func() time.Time
}

var (
	_ SessionRepository = (*PostgresStore)(nil)
	_ OrderRepository   = (*PostgresStore)(nil)
	_ TagRepository     = (*PostgresStore)(nil)
)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("store: pgx pool required")
	}
	return newPostgresStore(pool)
}

func newPostgresStore(pool pgxQuerier) *PostgresStore {
	if pool == nil {
		panic("store: pgx querier required")
	}
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

const orderColumns = `id, order_number, session_id, customer_id, customer_name, phone, email,
		products, total_amount, status, details, created_at`

// SaveOrder writes at most one order per session. When the session already
// has an order the stored row is returned unchanged.
func (s *PostgresStore) SaveOrder(ctx context.Context, o *orders.Order) (*orders.Order, error) {
	products, err := json.Marshal(o.Products)
	if err != nil {
		return nil, fmt.Errorf("store: marshal order products: %w", err)
	}
	details, err := json.Marshal(o.Details)
	if err != nil {
		return nil, fmt.Errorf("store: marshal order details: %w", err)
	}
	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (session_id) DO UPDATE SET session_id = EXCLUDED.session_id
		RETURNING ` + orderColumns
	stored, err := scanOrder(s.pool.QueryRow(ctx, query,
		o.ID,
		o.OrderNumber,
		o.SessionID,
		o.CustomerID,
		o.CustomerName,
		o.Phone,
		o.Email,
		products,
		o.TotalAmount,
		o.Status,
		details,
		o.CreatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("store: insert order: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: select order: %w", err)
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*orders.Order, error) {
	var (
		o                 orders.Order
		products, details []byte
	)
	if err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.SessionID,
		&o.CustomerID,
		&o.CustomerName,
		&o.Phone,
		&o.Email,
		&products,
		&o.TotalAmount,
		&o.Status,
		&details,
		&o.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(products, &o.Products); err != nil {
		return nil, fmt.Errorf("decode order products: %w", err)
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &o.Details); err != nil {
			return nil, fmt.Errorf("decode order details: %w", err)
		}
	}
	return &o, nil
}

// LoadActiveSession returns the customer's newest session that is not completed or cancelled.
func (s *PostgresStore) LoadActiveSession(ctx context.Context, customerID string) (*orders.Session, error) {
	query := `
		SELECT data
		FROM order_sessions
		WHERE customer_id = $1 AND state NOT IN ('completed', 'cancelled')
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var data []byte
	if err := s.pool.QueryRow(ctx, query, customerID).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: select active session: %w", err)
	}
	var sess orders.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("store: decode session: %w", err)
	}
	return &sess, nil
}

// SaveSession upserts by session id. A terminal state drops the row out of
// the active query.
func (s *PostgresStore) SaveSession(ctx context.Context, sess *orders.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("store: marshal session: %w", err)
	}
	query := `
		INSERT INTO order_sessions (id, customer_id, state, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET state = EXCLUDED.state, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query,
		sess.ID,
		sess.CustomerID,
		string(sess.State),
		data,
		sess.CreatedAt,
		sess.UpdatedAt,
	); err != nil {
		return fmt.Errorf("store: upsert session: %w", err)
	}
	return nil
}

// SaveTags upserts every tag in one transaction.
func (s *PostgresStore) SaveTags(ctx context.Context, customerID string, tags []tagging.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tags tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO customer_tags (customer_id, category, tag, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (customer_id, category, tag) DO UPDATE
		SET priority = EXCLUDED.priority, updated_at = EXCLUDED.updated_at
	`
	now := s.now()
	for _, t := range tags {
		if _, err := tx.Exec(ctx, query, customerID, string(t.Category), t.Value, string(t.Priority), now); err != nil {
			return fmt.Errorf("store: upsert tag %s: %w", tagKey(t.Category, t.Value), err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit tags: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTags(ctx context.Context, customerID string) ([]CustomerTag, error) {
	query := `
		SELECT customer_id, category, tag, priority, created_at, updated_at
		FROM customer_tags
		WHERE customer_id = $1
		ORDER BY category, tag
	`
	rows, err := s.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("store: select tags: %w", err)
	}
	defer rows.Close()

	out := []CustomerTag{}
	for rows.Next() {
		var (
			t                  CustomerTag
			category, priority string
		)
		if err := rows.Scan(&t.CustomerID, &category, &t.Tag, &priority, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan tag: %w", err)
		}
		t.Category = tagging.Category(category)
		t.Priority = tagging.Priority(priority)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate tags: %w", err)
	}
	return out, nil
}
