// Package notify tells the seller about orders the assistant has taken.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/chat-commerce-agent/internal/catalog"
	"github.com/wolfman30/chat-commerce-agent/internal/orders"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

const orderCategory = "order-notification"

// OrderNotifier emails the seller a summary of every completed order.
type OrderNotifier struct {
	email     EmailSender
	recipient string
	shopName  string
	logger    *logging.Logger
}

// NewOrderNotifier returns a notifier that mails recipient. With no sender or
// no recipient the notifier is disabled and NotifyOrder is a no-op.
func NewOrderNotifier(email EmailSender, recipient, shopName string, logger *logging.Logger) *OrderNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &OrderNotifier{
		email:     email,
		recipient: strings.TrimSpace(recipient),
		shopName:  shopName,
		logger:    logger,
	}
}

// Enabled reports whether notifications will actually be sent.
func (n *OrderNotifier) Enabled() bool {
	return n != nil && n.email != nil && n.recipient != ""
}

// NotifyOrder sends the order summary to the seller.
func (n *OrderNotifier) NotifyOrder(ctx context.Context, order *orders.Order) error {
	if order == nil {
		return nil
	}
	if !n.Enabled() {
		n.logger.Debug("notify: seller notifications disabled", "order_number", order.OrderNumber)
		return nil
	}

	msg := EmailMessage{
		To:       n.recipient,
		ToName:   n.shopName,
		Subject:  orderSubject(order),
		Body:     orderBody(order),
		Category: orderCategory,
	}
	if err := n.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: order %s: %w", order.OrderNumber, err)
	}
	n.logger.Info("notify: seller notified", "order_number", order.OrderNumber, "customer_id", order.CustomerID)
	return nil
}

func orderSubject(order *orders.Order) string {
	name := order.CustomerName
	if name == "" {
		name = "A customer"
	}
	return fmt.Sprintf("🛒 New order %s - %s", order.OrderNumber, name)
}

func orderBody(order *orders.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s was confirmed on %s.\n\n", order.OrderNumber, order.CreatedAt.Format("January 2, 2006 at 3:04 PM"))

	b.WriteString("Items:\n")
	for _, item := range order.Products {
		fmt.Fprintf(&b, "- %s x%d @ %s = %s\n", item.Name, item.Quantity, catalog.FormatPeso(item.Price), catalog.FormatPeso(item.Subtotal()))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n\n", catalog.FormatPeso(order.TotalAmount))

	b.WriteString("Customer:\n")
	writeField(&b, "Name", order.CustomerName)
	writeField(&b, "Phone", order.Phone)
	writeField(&b, "Email", order.Email)
	writeField(&b, "Messenger ID", order.CustomerID)
	writeField(&b, "Variant", order.Details.Variant)
	writeField(&b, "Address", order.Details.Address)
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}
