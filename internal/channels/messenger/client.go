package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/wolfman30/chat-commerce-agent/internal/observability/metrics"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v18.0"
	defaultHTTPTimeout  = 10 * time.Second
	defaultSendRPS      = 20
	maxQuickReplies     = 13
	maxQuickReplyTitle  = 20
	maxTextRunes        = 2000
)

// ErrNoToken is returned when the client has no page access token.
var ErrNoToken = errors.New("messenger: page access token not configured")

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithGraphAPIBase overrides the Graph API base URL.
func WithGraphAPIBase(base string) ClientOption {
	return func(c *Client) {
		if base != "" {
			c.graphAPIBase = base
		}
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithSendRate limits outbound calls to rps per second; zero or less disables the limit.
func WithSendRate(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

func WithClientMetrics(m *metrics.MessengerMetrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// Client sends messages via the Messenger Graph API.
type Client struct {
	pageAccessToken string
	graphAPIBase    string
	httpClient      *http.Client
	limiter         *rate.Limiter
	metrics         *metrics.MessengerMetrics
}

// NewClient creates a new Graph API client.
func NewClient(pageAccessToken string, opts ...ClientOption) *Client {
	c := &Client{
		pageAccessToken: pageAccessToken,
		graphAPIBase:    defaultGraphAPIBase,
		httpClient:      &http.Client{Timeout: defaultHTTPTimeout},
		limiter:         rate.NewLimiter(defaultSendRPS, defaultSendRPS),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send delivers a RESPONSE message with optional quick replies.
func (c *Client) Send(ctx context.Context, customerID, text string, quickReplies []string) error {
	req := SendRequest{
		Recipient:     Participant{ID: customerID},
		MessagingType: "RESPONSE",
		Message:       SendMessage{Text: truncate(text, maxTextRunes), QuickReplies: buildQuickReplies(quickReplies)},
	}
	_, err := c.send(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.ObserveOutbound(status)
	return err
}

// Profile fetches the public name of a user.
func (c *Client) Profile(ctx context.Context, psid string) (Profile, error) {
	if c.pageAccessToken == "" {
		return Profile{}, ErrNoToken
	}
	if err := c.wait(ctx); err != nil {
		return Profile{}, err
	}
	q := url.Values{"fields": {"first_name,last_name"}, "access_token": {c.pageAccessToken}}
	endpoint := fmt.Sprintf("%s/%s?%s", c.graphAPIBase, url.PathEscape(psid), q.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("messenger: create profile request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Profile{}, fmt.Errorf("messenger: fetch profile: %w", err)
	}
	defer resp.Body.Close()

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("messenger: decode profile: %w", err)
	}
	if p.Error != nil {
		return Profile{}, p.Error
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("messenger: unexpected profile status %d", resp.StatusCode)
	}
	return p, nil
}

// CustomerName resolves a display name for the pipeline's order records.
func (c *Client) CustomerName(ctx context.Context, psid string) (string, error) {
	p, err := c.Profile(ctx, psid)
	if err != nil {
		return "", err
	}
	return p.FullName(), nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("messenger: rate limit wait: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	if c.pageAccessToken == "" {
		return nil, ErrNoToken
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("messenger: marshal send request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", c.graphAPIBase, url.QueryEscape(c.pageAccessToken))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("messenger: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("messenger: send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("messenger: read response: %w", err)
	}

	var sendResp SendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return nil, fmt.Errorf("messenger: unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if sendResp.Error != nil {
		return &sendResp, sendResp.Error
	}
	if resp.StatusCode != http.StatusOK {
		return &sendResp, fmt.Errorf("messenger: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return &sendResp, nil
}

func buildQuickReplies(titles []string) []QuickReply {
	if len(titles) == 0 {
		return nil
	}
	out := make([]QuickReply, 0, min(len(titles), maxQuickReplies))
	for _, t := range titles {
		if len(out) == maxQuickReplies {
			break
		}
		out = append(out, QuickReply{ContentType: "text", Title: truncate(t, maxQuickReplyTitle), Payload: t})
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
