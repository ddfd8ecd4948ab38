package events

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestPostgresDeduper(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	d := newPostgresDeduper(mock, time.Hour)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs(ProviderMessenger, "m_new", now, now.Add(-time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if ok, err := d.MarkProcessed(ctx, ProviderMessenger, "m_new"); err != nil || !ok {
		t.Fatalf("expected new event, got ok=%v err=%v", ok, err)
	}

	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs(ProviderMessenger, "m_new", now, now.Add(-time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	if ok, err := d.MarkProcessed(ctx, ProviderMessenger, "m_new"); err != nil || ok {
		t.Fatalf("expected duplicate, got ok=%v err=%v", ok, err)
	}

	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs(ProviderMessenger, "m_err", now, now.Add(-time.Hour)).
		WillReturnError(errors.New("connection reset"))
	if _, err := d.MarkProcessed(ctx, ProviderMessenger, "m_err"); err == nil {
		t.Fatal("expected error")
	}

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(ProviderMessenger, "m_new", now.Add(-time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	if seen, err := d.Seen(ctx, ProviderMessenger, "m_new"); err != nil || !seen {
		t.Fatalf("expected seen, got seen=%v err=%v", seen, err)
	}

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(ProviderMessenger, "m_other", now.Add(-time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	if seen, err := d.Seen(ctx, ProviderMessenger, "m_other"); err != nil || seen {
		t.Fatalf("expected unseen, got seen=%v err=%v", seen, err)
	}

	mock.ExpectExec("DELETE FROM processed_events").
		WithArgs(now.Add(-time.Hour)).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	if n, err := d.Purge(ctx); err != nil || n != 3 {
		t.Fatalf("expected 3 purged, got %d err=%v", n, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNewPostgresDeduperRequiresPool(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on nil pool")
		}
	}()
	NewPostgresDeduper(nil, 0)
}

func TestMemoryDeduper(t *testing.T) {
	d := NewMemoryDeduper(time.Hour)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	if seen, _ := d.Seen(ctx, ProviderMessenger, "m_1"); seen {
		t.Fatal("expected unmarked id to be unseen")
	}
	if ok, _ := d.MarkProcessed(ctx, ProviderMessenger, "m_1"); !ok {
		t.Fatal("expected first delivery to be new")
	}
	if seen, _ := d.Seen(ctx, ProviderMessenger, "m_1"); !seen {
		t.Fatal("expected marked id to be seen")
	}
	if ok, _ := d.MarkProcessed(ctx, ProviderMessenger, "m_1"); ok {
		t.Fatal("expected redelivery to be a duplicate")
	}
	if ok, _ := d.MarkProcessed(ctx, "other", "m_1"); !ok {
		t.Fatal("expected ids to be scoped by provider")
	}

	now = now.Add(2 * time.Hour)
	if seen, _ := d.Seen(ctx, ProviderMessenger, "m_1"); seen {
		t.Fatal("expected id past retention to be unseen")
	}
	if ok, _ := d.MarkProcessed(ctx, ProviderMessenger, "m_1"); !ok {
		t.Fatal("expected id to be forgotten after retention")
	}
}
