package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/chat-commerce-agent/internal/analysis"
	"github.com/wolfman30/chat-commerce-agent/internal/orders"
)

type recordingSender struct {
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func sampleOrder() *orders.Order {
	return &orders.Order{
		ID:           "ord_1",
		OrderNumber:  "ORD-123456-ab1",
		CustomerID:   "psid_42",
		CustomerName: "Maria Santos",
		Phone:        "09171234567",
		Products:     []orders.LineItem{{ID: "p1", Name: "Lavender Oil", Price: 350, Quantity: 2}},
		TotalAmount:  700,
		Status:       "confirmed",
		Details:      analysis.OrderDetails{Address: "12 Mabini St, Makati"},
		CreatedAt:    time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestNotifyOrder_SendsSummary(t *testing.T) {
	sender := &recordingSender{}
	n := NewOrderNotifier(sender, " owner@aromaph.example ", "Aroma PH", nil)

	if err := n.NotifyOrder(context.Background(), sampleOrder()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "owner@aromaph.example" {
		t.Errorf("to = %q", msg.To)
	}
	if !strings.Contains(msg.Subject, "ORD-123456-ab1") || !strings.Contains(msg.Subject, "Maria Santos") {
		t.Errorf("subject = %q", msg.Subject)
	}
	for _, want := range []string{
		"Lavender Oil x2 @ ₱350 = ₱700",
		"Total: ₱700",
		"Phone: 09171234567",
		"Address: 12 Mabini St, Makati",
		"May 1, 2024",
	} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body missing %q:\n%s", want, msg.Body)
		}
	}
	if strings.Contains(msg.Body, "Email:") {
		t.Error("empty fields should be omitted")
	}
}

func TestNotifyOrder_DisabledWithoutRecipient(t *testing.T) {
	sender := &recordingSender{}
	n := NewOrderNotifier(sender, "", "Aroma PH", nil)
	if n.Enabled() {
		t.Fatal("expected notifier to be disabled")
	}
	if err := n.NotifyOrder(context.Background(), sampleOrder()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no email, got %d", len(sender.sent))
	}

	if NewOrderNotifier(nil, "owner@aromaph.example", "Aroma PH", nil).Enabled() {
		t.Fatal("expected notifier without sender to be disabled")
	}
}

func TestNotifyOrder_WrapsSendError(t *testing.T) {
	boom := errors.New("smtp down")
	n := NewOrderNotifier(&recordingSender{err: boom}, "owner@aromaph.example", "Aroma PH", nil)
	err := n.NotifyOrder(context.Background(), sampleOrder())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestNotifyOrder_AnonymousCustomer(t *testing.T) {
	sender := &recordingSender{}
	order := sampleOrder()
	order.CustomerName = ""
	n := NewOrderNotifier(sender, "owner@aromaph.example", "Aroma PH", nil)
	if err := n.NotifyOrder(context.Background(), order); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(sender.sent[0].Subject, "A customer") {
		t.Errorf("subject = %q", sender.sent[0].Subject)
	}
}
