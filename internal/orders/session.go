// Package orders runs the per-customer order collection state machine.
package orders

import (
	"fmt"
	"slices"
	"time"

	"github.com/wolfman30/chat-commerce-agent/internal/analysis"
	"github.com/wolfman30/chat-commerce-agent/internal/catalog"
)

// State is the position of a session in the order flow.
type State string

const (
	StateInquiry        State = "inquiry"
	StateCollectingInfo State = "collecting_info"
	StateConfirming     State = "confirming"
	StateProcessing     State = "processing"
	StateCompleted      State = "completed"
	StateCancelled      State = "cancelled"
)

// Terminal reports whether the state ends the session.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Status is the order status reported with every processed message. Besides the
// session states it covers the replies given without a session.
type Status string

const (
	StatusNone           Status = ""
	StatusBrowsing       Status = "browsing"
	StatusNurturing      Status = "nurturing"
	StatusInquiry        Status = Status(StateInquiry)
	StatusCollectingInfo Status = Status(StateCollectingInfo)
	StatusConfirming     Status = Status(StateConfirming)
	StatusProcessing     Status = Status(StateProcessing)
	StatusCompleted      Status = Status(StateCompleted)
	StatusCancelled      Status = Status(StateCancelled)
)

// InSession reports whether the status comes from an order session rather
// than a reply given without one.
func (s Status) InSession() bool {
	switch s {
	case StatusInquiry, StatusCollectingInfo, StatusConfirming, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// LineItem is one product in a session.
type LineItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Subtotal is price times quantity.
func (li LineItem) Subtotal() float64 {
	return li.Price * float64(li.Quantity)
}

// Session is the order being collected for one customer.
type Session struct {
	ID           string                `json:"id"`
	CustomerID   string                `json:"customerId"`
	State        State                 `json:"state"`
	Products     []LineItem            `json:"products"`
	CustomerInfo analysis.ContactInfo  `json:"customerInfo"`
	OrderDetails analysis.OrderDetails `json:"orderDetails"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// SessionID formats the id of a session created at now.
func SessionID(customerID string, now time.Time) string {
	return fmt.Sprintf("order_%s_%d", customerID, now.UnixMilli())
}

// Total is always derived from the line items.
func (s *Session) Total() float64 {
	var total float64
	for _, li := range s.Products {
		total += li.Subtotal()
	}
	return total
}

// Active reports whether the session can still change.
func (s *Session) Active() bool {
	return s != nil && !s.State.Terminal()
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Products = slices.Clone(s.Products)
	return &out
}

// ProductNames lists the line item names in order.
func (s *Session) ProductNames() []string {
	names := make([]string, 0, len(s.Products))
	for _, li := range s.Products {
		names = append(names, li.Name)
	}
	return names
}

// hasProduct reports whether a product id is already a line item.
func (s *Session) hasProduct(id string) bool {
	return slices.ContainsFunc(s.Products, func(li LineItem) bool { return li.ID == id })
}

func (s *Session) addProducts(products []catalog.Product, quantity int) {
	if quantity <= 0 {
		quantity = 1
	}
	for _, p := range products {
		if s.hasProduct(p.ID) {
			continue
		}
		s.Products = append(s.Products, LineItem{ID: p.ID, Name: p.Name, Price: p.Price, Quantity: quantity})
	}
}

// merge copies the contact and order details a message carried. Non-empty
// values overwrite what the session already holds.
func (s *Session) merge(a analysis.MessageAnalysis) {
	if c := a.ContactInfo; c != nil {
		s.CustomerInfo.Name = firstNonEmpty(c.Name, s.CustomerInfo.Name)
		s.CustomerInfo.Phone = firstNonEmpty(c.Phone, s.CustomerInfo.Phone)
		s.CustomerInfo.Email = firstNonEmpty(c.Email, s.CustomerInfo.Email)
	}
	if d := a.OrderDetails; d != nil {
		s.OrderDetails.Variant = firstNonEmpty(d.Variant, s.OrderDetails.Variant)
		s.OrderDetails.Address = firstNonEmpty(d.Address, s.OrderDetails.Address)
		if d.Quantity > 0 {
			s.OrderDetails.Quantity = d.Quantity
			// A quantity only applies unambiguously to a single line item.
			if len(s.Products) == 1 {
				s.Products[0].Quantity = d.Quantity
			}
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
