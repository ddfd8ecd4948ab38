package orders

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/chat-commerce-agent/internal/analysis"
)

// ErrOrderCreation marks a confirmed order that could not be written. The
// session stays in Confirming so the customer can confirm again.
var ErrOrderCreation = errors.New("orders: order creation failed")

// orderNamespace derives order ids from session ids, so the same session
// always yields the same order id.
var orderNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:chat-commerce-agent:orders"))

// OrderID returns the order id for a session.
func OrderID(sessionID string) string {
	return uuid.NewSHA1(orderNamespace, []byte(sessionID)).String()
}

// OrderStatusConfirmed is the status of every written order.
const OrderStatusConfirmed = "confirmed"

// Order is the immutable record written when a customer confirms.
type Order struct {
	ID           string                `json:"id"`
	OrderNumber  string                `json:"orderNumber"`
	SessionID    string                `json:"sessionId"`
	CustomerID   string                `json:"customerId"`
	CustomerName string                `json:"customerName"`
	Phone        string                `json:"customerPhone,omitempty"`
	Email        string                `json:"customerEmail,omitempty"`
	Products     []LineItem            `json:"products"`
	TotalAmount  float64               `json:"totalAmount"`
	Status       string                `json:"status"`
	Details      analysis.OrderDetails `json:"orderDetails"`
	CreatedAt    time.Time             `json:"createdAt"`
}

// OrderNumber formats a customer-facing order number:
// ORD-<last 6 digits of unix ms>-<3 upper-case base36 characters>.
func OrderNumber(now time.Time, rng *rand.Rand) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	var suffix [3]byte
	for i := range suffix {
		suffix[i] = alphabet[rng.IntN(len(alphabet))]
	}
	return fmt.Sprintf("ORD-%s-%s", ms, strings.ToUpper(string(suffix[:])))
}

func newOrder(s *Session, now time.Time, rng *rand.Rand) *Order {
	return &Order{
		ID:           OrderID(s.ID),
		OrderNumber:  OrderNumber(now, rng),
		SessionID:    s.ID,
		CustomerID:   s.CustomerID,
		CustomerName: s.CustomerInfo.Name,
		Phone:        s.CustomerInfo.Phone,
		Email:        s.CustomerInfo.Email,
		Products:     append([]LineItem(nil), s.Products...),
		TotalAmount:  s.Total(),
		Status:       OrderStatusConfirmed,
		Details:      s.OrderDetails,
		CreatedAt:    now,
	}
}
