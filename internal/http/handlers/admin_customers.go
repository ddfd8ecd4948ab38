package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/chat-commerce-agent/internal/analysis"
	"github.com/wolfman30/chat-commerce-agent/internal/conversation"
	"github.com/wolfman30/chat-commerce-agent/internal/orders"
	"github.com/wolfman30/chat-commerce-agent/internal/store"
	"github.com/wolfman30/chat-commerce-agent/internal/tagging"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

type tagLister interface {
	ListTags(ctx context.Context, customerID string) ([]store.CustomerTag, error)
}

type contextLoader interface {
	LoadContext(ctx context.Context, customerID string) (*conversation.Context, error)
}

type orderGetter interface {
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
}

// AdminCustomersHandler exposes what the assistant knows about a customer
// and the orders it took.
type AdminCustomersHandler struct {
	tags     tagLister
	contexts contextLoader
	orders   orderGetter
	logger   *logging.Logger
}

func NewAdminCustomersHandler(tags tagLister, contexts contextLoader, orders orderGetter, logger *logging.Logger) *AdminCustomersHandler {
	if tags == nil || contexts == nil || orders == nil {
		panic("handlers: customer stores cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminCustomersHandler{tags: tags, contexts: contexts, orders: orders, logger: logger}
}

// CustomerTagsResponse is the tag view of one customer.
type CustomerTagsResponse struct {
	CustomerID       string                  `json:"customerId"`
	Tags             []store.CustomerTag     `json:"tags"`
	InteractionCount int                     `json:"interactionCount"`
	AverageLeadScore int                     `json:"averageLeadScore"`
	Profile          tagging.Profile         `json:"profile"`
	Recommendations  tagging.Recommendations `json:"recommendations"`
}

// GetCustomerTags handles GET /admin/customers/{customerID}/tags.
func (h *AdminCustomersHandler) GetCustomerTags(w http.ResponseWriter, r *http.Request) {
	customerID := strings.TrimSpace(chi.URLParam(r, "customerID"))
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "customer id required")
		return
	}

	stored, err := h.tags.ListTags(r.Context(), customerID)
	if err != nil {
		h.logger.Error("failed to list tags", "customer_id", customerID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load tags")
		return
	}

	resp := CustomerTagsResponse{CustomerID: customerID, Tags: stored}
	c, err := h.contexts.LoadContext(r.Context(), customerID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		h.logger.Error("failed to load context", "customer_id", customerID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load customer")
		return
	default:
		resp.InteractionCount = c.InteractionCount
		if c.InteractionCount > 0 {
			resp.AverageLeadScore = c.TotalLeadScore / c.InteractionCount
		}
	}
	if len(stored) == 0 && resp.InteractionCount == 0 {
		writeError(w, http.StatusNotFound, "customer not found")
		return
	}

	tags := make([]tagging.Tag, 0, len(stored))
	for _, t := range stored {
		tags = append(tags, tagging.Tag{Category: t.Category, Value: t.Tag, Priority: t.Priority})
	}
	resp.Profile = tagging.BuildProfile(customerID, tags, analysis.MessageAnalysis{Sentiment: analysis.SentimentNeutral}, resp.AverageLeadScore)
	resp.Recommendations = tagging.Recommend(tags, resp.Profile)
	writeJSON(w, http.StatusOK, resp)
}

// GetOrder handles GET /admin/orders/{orderID}.
func (h *AdminCustomersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	order, err := h.orders.GetOrder(r.Context(), orderID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case err != nil:
		h.logger.Error("failed to load order", "order_id", orderID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load order")
	default:
		writeJSON(w, http.StatusOK, order)
	}
}
