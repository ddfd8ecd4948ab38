// Package messenger connects Facebook Messenger to the message pipeline:
// webhook intake, signature checks and Graph API sends.
package messenger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/chat-commerce-agent/internal/dispatch"
	"github.com/wolfman30/chat-commerce-agent/internal/events"
	"github.com/wolfman30/chat-commerce-agent/internal/observability/metrics"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

const maxWebhookBody = 1 << 20

// Canned customer texts for the quick-reply and postback buttons. The order
// quick replies (YES/NO) pass through as typed text.
var payloadTexts = map[string]string{
	"PRICES":   "How much are your products?",
	"STOCK":    "What products are available in stock?",
	"SHIPPING": "How long is delivery?",
	"BROWSE":   "Tell me about your products",
}

// WebhookHandler handles Messenger webhook verification and inbound messages.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	queue       dispatch.Enqueuer
	dedup       events.Deduper
	logger      *logging.Logger
	metrics     *metrics.MessengerMetrics
}

// NewWebhookHandler creates a handler that enqueues every new inbound message.
// dedup may be nil, in which case redeliveries are not filtered.
func NewWebhookHandler(verifyToken, appSecret string, queue dispatch.Enqueuer, dedup events.Deduper, logger *logging.Logger, m *metrics.MessengerMetrics) *WebhookHandler {
	if queue == nil {
		panic("messenger: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		queue:       queue,
		dedup:       dedup,
		logger:      logger,
		metrics:     m,
	}
}

// HandleVerification handles the GET webhook verification challenge from Meta.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && h.verifyToken != "" && q.Get("hub.verify_token") == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, q.Get("hub.challenge"))
		return
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleInbound handles POST webhook events. Valid events are acknowledged
// with 200 even when a message could not be queued, so Meta does not retry
// the whole batch.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if !VerifySignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		h.metrics.ObserveInbound("webhook", "unauthorized")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.metrics.ObserveInbound("webhook", "malformed")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	for _, msg := range ParseWebhookEvent(event) {
		kind := msg.EventType()
		dedupe := h.dedup != nil && msg.MessageID != ""
		if dedupe {
			seen, err := h.dedup.Seen(ctx, events.ProviderMessenger, msg.MessageID)
			if err != nil {
				h.logger.Warn("messenger: dedup check failed", "message_id", msg.MessageID, "error", err)
			} else if seen {
				h.metrics.ObserveInbound(kind, "duplicate")
				continue
			}
		}
		err := h.queue.Enqueue(ctx, dispatch.Job{
			EventID:    msg.MessageID,
			CustomerID: msg.SenderID,
			Text:       msg.Text,
			ReceivedAt: msg.Timestamp,
		})
		if err != nil {
			// Left unmarked so Meta's redelivery is accepted.
			h.logger.Error("messenger: failed to enqueue message", "customer_id", msg.SenderID, "message_id", msg.MessageID, "error", err)
			h.metrics.ObserveInbound(kind, "error")
			continue
		}
		if dedupe {
			if _, err := h.dedup.MarkProcessed(ctx, events.ProviderMessenger, msg.MessageID); err != nil {
				h.logger.Warn("messenger: failed to mark message processed", "message_id", msg.MessageID, "error", err)
			}
		}
		h.metrics.ObserveInbound(kind, "queued")
	}
	h.metrics.ObserveWebhookLatency("webhook", time.Since(start).Seconds())
	w.WriteHeader(http.StatusOK)
}

// ParseWebhookEvent extracts customer messages from a webhook event. Echoes
// of the page's own sends and non-text messages are skipped.
func ParseWebhookEvent(event WebhookEvent) []ParsedInboundMessage {
	var messages []ParsedInboundMessage
	for _, entry := range event.Entry {
		for _, m := range entry.Messaging {
			parsed := ParsedInboundMessage{
				SenderID:    m.Sender.ID,
				RecipientID: m.Recipient.ID,
				Timestamp:   time.UnixMilli(m.Timestamp).UTC(),
			}
			switch {
			case m.Message != nil:
				if m.Message.IsEcho {
					continue
				}
				parsed.MessageID = m.Message.MID
				parsed.Text = m.Message.Text
				if m.Message.QuickReply != nil {
					parsed.Payload = m.Message.QuickReply.Payload
				}
			case m.Postback != nil:
				parsed.IsPostback = true
				parsed.MessageID = m.Postback.MID
				parsed.Payload = m.Postback.Payload
				parsed.Text = m.Postback.Title
			default:
				continue
			}
			if text, ok := payloadTexts[strings.ToUpper(parsed.Payload)]; ok {
				parsed.Text = text
			}
			if strings.TrimSpace(parsed.Text) == "" || parsed.SenderID == "" {
				continue
			}
			messages = append(messages, parsed)
		}
	}
	return messages
}

// VerifySignature verifies the X-Hub-Signature-256 header.
func VerifySignature(appSecret string, body []byte, signature string) bool {
	if appSecret == "" || signature == "" {
		return false
	}
	const prefix = "sha256="
	if len(signature) <= len(prefix) || !strings.HasPrefix(signature, prefix) {
		return false
	}
	sigHex := signature[len(prefix):]

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sigHex))
}
