package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/chat-commerce-agent/internal/pipeline"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

// MessageProcessor runs one customer message through the decision pipeline.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, in pipeline.Inbound) (pipeline.Result, error)
}

// AdminTestMessageHandler lets operators try the assistant without Messenger.
// Nothing is sent to the customer.
type AdminTestMessageHandler struct {
	processor MessageProcessor
	logger    *logging.Logger
}

func NewAdminTestMessageHandler(processor MessageProcessor, logger *logging.Logger) *AdminTestMessageHandler {
	if processor == nil {
		panic("handlers: processor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminTestMessageHandler{processor: processor, logger: logger}
}

// TestMessageFailure is returned when processing failed midway. Result still
// carries the reply the customer would have received.
type TestMessageFailure struct {
	Error  string          `json:"error"`
	Result pipeline.Result `json:"result"`
}

// SendTestMessage handles POST /admin/test/message.
func (h *AdminTestMessageHandler) SendTestMessage(w http.ResponseWriter, r *http.Request) {
	var in pipeline.Inbound
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBody)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.processor.ProcessMessage(r.Context(), in)
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "customerId and message are required")
	case err != nil:
		h.logger.Error("test message failed", "customer_id", in.CustomerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, TestMessageFailure{Error: err.Error(), Result: result})
	default:
		writeJSON(w, http.StatusOK, result)
	}
}
