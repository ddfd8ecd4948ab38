package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSend(t *testing.T) {
	var received SendRequest
	var token string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/me/messages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		token = r.URL.Query().Get("access_token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatal(err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SendResponse{RecipientID: "user_1", MessageID: "mid_001"})
	}))
	defer server.Close()

	client := NewClient("test_token", WithGraphAPIBase(server.URL), WithSendRate(0, 0))
	err := client.Send(context.Background(), "user_1", "Reply YES to confirm or NO to cancel", []string{"YES", "NO"})
	if err != nil {
		t.Fatal(err)
	}
	if token != "test_token" {
		t.Errorf("access_token = %q", token)
	}
	if received.Recipient.ID != "user_1" || received.MessagingType != "RESPONSE" {
		t.Errorf("unexpected envelope: %+v", received)
	}
	if len(received.Message.QuickReplies) != 2 {
		t.Fatalf("expected 2 quick replies, got %d", len(received.Message.QuickReplies))
	}
	if qr := received.Message.QuickReplies[0]; qr.ContentType != "text" || qr.Title != "YES" || qr.Payload != "YES" {
		t.Errorf("unexpected quick reply: %+v", qr)
	}
}

func TestSendWithoutQuickRepliesOmitsField(t *testing.T) {
	var raw map[string]map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		json.NewEncoder(w).Encode(SendResponse{RecipientID: "user_1"})
	}))
	defer server.Close()

	client := NewClient("token", WithGraphAPIBase(server.URL))
	if err := client.Send(context.Background(), "user_1", "Hi!", nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["message"]["quick_replies"]; ok {
		t.Error("quick_replies should be omitted")
	}
}

func TestSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(SendResponse{
			Error: &GraphError{Code: 190, Message: "Invalid OAuth access token", Type: "OAuthException"},
		})
	}))
	defer server.Close()

	client := NewClient("bad_token", WithGraphAPIBase(server.URL))
	err := client.Send(context.Background(), "user_1", "test", nil)
	var gerr *GraphError
	if !errors.As(err, &gerr) || gerr.Code != 190 {
		t.Fatalf("expected graph error 190, got %v", err)
	}
}

func TestSendWithoutToken(t *testing.T) {
	client := NewClient("")
	if err := client.Send(context.Background(), "user_1", "test", nil); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user_9" || r.URL.Query().Get("fields") != "first_name,last_name" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		w.Write([]byte(`{"first_name":"Maria","last_name":"Santos","id":"user_9"}`))
	}))
	defer server.Close()

	client := NewClient("token", WithGraphAPIBase(server.URL))
	name, err := client.CustomerName(context.Background(), "user_9")
	if err != nil {
		t.Fatal(err)
	}
	if name != "Maria Santos" {
		t.Errorf("name = %q", name)
	}
}

func TestBuildQuickRepliesLimits(t *testing.T) {
	titles := make([]string, 15)
	for i := range titles {
		titles[i] = strings.Repeat("x", 25)
	}
	qrs := buildQuickReplies(titles)
	if len(qrs) != maxQuickReplies {
		t.Fatalf("expected %d quick replies, got %d", maxQuickReplies, len(qrs))
	}
	if len(qrs[0].Title) != maxQuickReplyTitle {
		t.Errorf("title length = %d", len(qrs[0].Title))
	}
}
