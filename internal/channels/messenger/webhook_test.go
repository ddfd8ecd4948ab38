package messenger

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/wolfman30/chat-commerce-agent/internal/dispatch"
	"github.com/wolfman30/chat-commerce-agent/internal/events"
)

type recordingQueue struct {
	mu       sync.Mutex
	jobs     []dispatch.Job
	failures int
}

func (q *recordingQueue) Enqueue(_ context.Context, job dispatch.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failures > 0 {
		q.failures--
		return errors.New("sqs: service unavailable")
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "test_app_secret"
	body := []byte(`{"object":"page","entry":[]}`)
	validSig := sign(secret, body)

	tests := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		want      bool
	}{
		{"valid signature", secret, body, validSig, true},
		{"wrong signature", secret, body, "sha256=0000000000000000000000000000000000000000000000000000000000000000", false},
		{"empty signature", secret, body, "", false},
		{"empty secret", "", body, validSig, false},
		{"missing prefix", secret, body, "abcdefabcdef", false},
		{"sha1 header", secret, body, "sha1=" + validSig[len("sha256="):], false},
		{"tampered body", secret, []byte(`tampered`), validSig, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature(tt.secret, tt.body, tt.signature); got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandleVerification(t *testing.T) {
	h := NewWebhookHandler("my_verify_token", "secret", &recordingQueue{}, nil, nil, nil)

	t.Run("valid challenge", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/webhooks/messenger?hub.mode=subscribe&hub.verify_token=my_verify_token&hub.challenge=CHALLENGE_123", nil)
		w := httptest.NewRecorder()
		h.HandleVerification(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if w.Body.String() != "CHALLENGE_123" {
			t.Fatalf("expected CHALLENGE_123, got %s", w.Body.String())
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/webhooks/messenger?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=X", nil)
		w := httptest.NewRecorder()
		h.HandleVerification(w, req)
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", w.Code)
		}
	})

	t.Run("unconfigured token never matches", func(t *testing.T) {
		open := NewWebhookHandler("", "secret", &recordingQueue{}, nil, nil, nil)
		req := httptest.NewRequest(http.MethodGet,
			"/webhooks/messenger?hub.mode=subscribe&hub.verify_token=&hub.challenge=X", nil)
		w := httptest.NewRecorder()
		open.HandleVerification(w, req)
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", w.Code)
		}
	})
}

func TestParseWebhookEvent(t *testing.T) {
	event := WebhookEvent{
		Object: "page",
		Entry: []Entry{{
			ID: "page_123",
			Messaging: []Messaging{
				{Sender: Participant{ID: "user_1"}, Recipient: Participant{ID: "page_123"}, Timestamp: 1700000000000,
					Message: &Message{MID: "m_1", Text: "Magkano po ang Lavender Oil?"}},
				{Sender: Participant{ID: "page_123"}, Recipient: Participant{ID: "user_1"}, Timestamp: 1700000000500,
					Message: &Message{MID: "m_echo", Text: "Our reply", IsEcho: true}},
				{Sender: Participant{ID: "user_1"}, Timestamp: 1700000001000,
					Message: &Message{MID: "m_2", Text: "YES", QuickReply: &QuickReplyPick{Payload: "YES"}}},
				{Sender: Participant{ID: "user_1"}, Timestamp: 1700000002000,
					Message: &Message{MID: "m_3", Text: "PRICES", QuickReply: &QuickReplyPick{Payload: "PRICES"}}},
				{Sender: Participant{ID: "user_2"}, Timestamp: 1700000003000,
					Postback: &Postback{MID: "m_4", Title: "Shipping Info", Payload: "SHIPPING"}},
				{Sender: Participant{ID: "user_2"}, Timestamp: 1700000004000,
					Message: &Message{MID: "m_5"}},
				{Sender: Participant{ID: "user_3"}, Timestamp: 1700000005000},
			},
		}},
	}

	msgs := ParseWebhookEvent(event)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "Magkano po ang Lavender Oil?" || msgs[0].MessageID != "m_1" || msgs[0].RecipientID != "page_123" {
		t.Errorf("unexpected text message: %+v", msgs[0])
	}
	if msgs[0].Timestamp.UnixMilli() != 1700000000000 {
		t.Errorf("timestamp = %v", msgs[0].Timestamp)
	}
	if msgs[1].Text != "YES" || msgs[1].EventType() != "quick_reply" {
		t.Errorf("order quick reply should pass through, got %+v", msgs[1])
	}
	if msgs[2].Text != "How much are your products?" {
		t.Errorf("PRICES payload text = %q", msgs[2].Text)
	}
	if !msgs[3].IsPostback || msgs[3].Text != "How long is delivery?" || msgs[3].EventType() != "postback" {
		t.Errorf("unexpected postback: %+v", msgs[3])
	}
}

func TestHandleInbound(t *testing.T) {
	appSecret := "test_secret"
	queue := &recordingQueue{}
	h := NewWebhookHandler("token", appSecret, queue, events.NewMemoryDeduper(0), nil, nil)

	event := WebhookEvent{
		Object: "page",
		Entry: []Entry{{
			Messaging: []Messaging{{
				Sender:    Participant{ID: "sender_1"},
				Timestamp: 1700000000000,
				Message:   &Message{MID: "m1", Text: "Hello"},
			}},
		}},
	}
	body, _ := json.Marshal(event)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/messenger", bytes.NewReader(body))
		req.Header.Set("X-Hub-Signature-256", sign(appSecret, body))
		w := httptest.NewRecorder()
		h.HandleInbound(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i+1, w.Code)
		}
	}

	if len(queue.jobs) != 1 {
		t.Fatalf("expected redelivery to be dropped, got %d jobs", len(queue.jobs))
	}
	job := queue.jobs[0]
	if job.CustomerID != "sender_1" || job.Text != "Hello" || job.EventID != "m1" {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestHandleInboundFailedEnqueueAcceptsRedelivery(t *testing.T) {
	appSecret := "test_secret"
	queue := &recordingQueue{failures: 1}
	h := NewWebhookHandler("token", appSecret, queue, events.NewMemoryDeduper(0), nil, nil)

	body, _ := json.Marshal(WebhookEvent{
		Object: "page",
		Entry: []Entry{{
			Messaging: []Messaging{{
				Sender:    Participant{ID: "sender_1"},
				Timestamp: 1700000000000,
				Message:   &Message{MID: "m_retry", Text: "Magkano po?"},
			}},
		}},
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/messenger", bytes.NewReader(body))
		req.Header.Set("X-Hub-Signature-256", sign(appSecret, body))
		w := httptest.NewRecorder()
		h.HandleInbound(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i+1, w.Code)
		}
	}

	if len(queue.jobs) != 1 {
		t.Fatalf("expected the redelivery after a failed enqueue to be queued once, got %d jobs", len(queue.jobs))
	}
	if queue.jobs[0].EventID != "m_retry" {
		t.Errorf("unexpected job: %+v", queue.jobs[0])
	}
}

func TestHandleInboundRejects(t *testing.T) {
	queue := &recordingQueue{}
	h := NewWebhookHandler("token", "secret", queue, nil, nil, nil)

	body := []byte(`{"object":"page","entry":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/messenger", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256=bad")
	w := httptest.NewRecorder()
	h.HandleInbound(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	malformed := []byte(`{"object":`)
	req = httptest.NewRequest(http.MethodPost, "/webhooks/messenger", bytes.NewReader(malformed))
	req.Header.Set("X-Hub-Signature-256", sign("secret", malformed))
	w = httptest.NewRecorder()
	h.HandleInbound(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(queue.jobs))
	}
}
