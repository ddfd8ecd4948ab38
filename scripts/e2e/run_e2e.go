// Package main runs end-to-end conversation scenarios against a running API
// server through the admin test endpoint.
//
// Scenarios:
//   - greeting on first contact
//   - price inquiry naming a catalog product
//   - full order: purchase intent, contact details, confirmation
//   - cancellation while confirming
//   - customer tags after a conversation
//   - Messenger webhook verification challenge
//
// Usage:
//
//	ADMIN_JWT_SECRET=... API_BASE_URL=... go run scripts/e2e/run_e2e.go            # runs all
//	ADMIN_JWT_SECRET=... API_BASE_URL=... go run scripts/e2e/run_e2e.go full-order # runs one
//
// PRODUCT_NAME selects the catalog product used by the order scenarios
// (default "Sample Product").
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	apiBase     string
	token       string
	product     string
	verifyToken string
	runID       = time.Now().UTC().Format("20060102150405")
	httpClient  = &http.Client{Timeout: 30 * time.Second}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T collects the checks of one scenario.
type T struct {
	name   string
	passed int
	failed int
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
		return
	}
	fmt.Printf("    FAIL: %s\n", name)
	t.failed++
}

type result struct {
	Response    string   `json:"response"`
	OrderStatus string   `json:"orderStatus"`
	OrderNumber string   `json:"orderNumber"`
	LeadScore   int      `json:"leadScore"`
	Products    []string `json:"mentionedProducts"`
	Analysis    struct {
		Intent string `json:"intent"`
	} `json:"analysis"`
}

func main() {
	apiBase = strings.TrimRight(envOr("API_BASE_URL", "http://localhost:8080"), "/")
	product = envOr("PRODUCT_NAME", "Sample Product")
	verifyToken = os.Getenv("MESSENGER_VERIFY_TOKEN")
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_JWT_SECRET is required")
		os.Exit(2)
	}
	var err error
	if token, err = mintToken(secret); err != nil {
		fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
		os.Exit(2)
	}

	scenarios := []scenario{
		{"greeting", scenarioGreeting},
		{"price-inquiry", scenarioPriceInquiry},
		{"full-order", scenarioFullOrder},
		{"cancel-order", scenarioCancelOrder},
		{"customer-tags", scenarioCustomerTags},
		{"webhook-verify", scenarioWebhookVerify},
	}
	only := ""
	if len(os.Args) > 1 {
		only = os.Args[1]
	}

	var passed, failed int
	for _, s := range scenarios {
		if only != "" && s.Name != only {
			continue
		}
		fmt.Printf("\n=== %s ===\n", s.Name)
		t := &T{name: s.Name}
		s.Fn(t)
		passed += t.passed
		failed += t.failed
	}
	fmt.Printf("\n%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func scenarioGreeting(t *T) {
	res, code := send(t, customer("greet"), "Hi there!")
	t.check("status 200", code == http.StatusOK)
	t.check("greeting intent", res.Analysis.Intent == "greeting")
	t.check("reply is not empty", res.Response != "")
}

func scenarioPriceInquiry(t *T) {
	res, code := send(t, customer("price"), fmt.Sprintf("How much is the %s?", product))
	t.check("status 200", code == http.StatusOK)
	t.check("price intent", res.Analysis.Intent == "price_inquiry")
	t.check("product mentioned", contains(res.Products, product))
}

func scenarioFullOrder(t *T) {
	id := customer("order")
	res, _ := send(t, id, fmt.Sprintf("I want to buy the %s", product))
	t.check("collecting info after purchase intent", res.OrderStatus == "collecting_info")

	res, _ = send(t, id, "My name is Juan, phone 09171234567")
	t.check("confirming after contact details", res.OrderStatus == "confirming")
	t.check("summary names customer", strings.Contains(res.Response, "Juan"))

	res, _ = send(t, id, "yes")
	t.check("order completed", res.OrderStatus == "completed")
	t.check("order number issued", strings.HasPrefix(res.OrderNumber, "ORD-"))
}

func scenarioCancelOrder(t *T) {
	id := customer("cancel")
	send(t, id, fmt.Sprintf("I want to buy the %s", product))
	send(t, id, "I'm Ana, 09181234567")
	res, _ := send(t, id, "no, cancel")
	t.check("order cancelled", res.OrderStatus == "cancelled")
	t.check("no order number", res.OrderNumber == "")
}

func scenarioCustomerTags(t *T) {
	id := customer("tags")
	send(t, id, fmt.Sprintf("Do you have %s in stock? I need it urgently", product))
	body, code := get(t, "/admin/customers/"+url.PathEscape(id)+"/tags")
	t.check("status 200", code == http.StatusOK)
	var resp struct {
		Tags             []json.RawMessage `json:"tags"`
		InteractionCount int               `json:"interactionCount"`
	}
	_ = json.Unmarshal(body, &resp)
	t.check("tags recorded", len(resp.Tags) > 0)
}

func scenarioWebhookVerify(t *T) {
	if verifyToken == "" {
		fmt.Println("    SKIP: MESSENGER_VERIFY_TOKEN not set")
		return
	}
	q := url.Values{"hub.mode": {"subscribe"}, "hub.verify_token": {verifyToken}, "hub.challenge": {"e2e-" + runID}}
	resp, err := httpClient.Get(apiBase + "/webhooks/messenger?" + q.Encode())
	if err != nil {
		t.check("verification request: "+err.Error(), false)
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	t.check("status 200", resp.StatusCode == http.StatusOK)
	t.check("challenge echoed", string(body) == "e2e-"+runID)
}

func send(t *T, customerID, message string) (result, int) {
	payload, _ := json.Marshal(map[string]string{"customerId": customerID, "message": message})
	req, _ := http.NewRequest(http.MethodPost, apiBase+"/admin/test/message", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	fmt.Printf("  > %s\n", message)

	resp, err := httpClient.Do(req)
	if err != nil {
		t.check("request: "+err.Error(), false)
		return result{}, 0
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var res result
	if resp.StatusCode == http.StatusInternalServerError {
		var failure struct {
			Result result `json:"result"`
		}
		_ = json.Unmarshal(body, &failure)
		res = failure.Result
	} else {
		_ = json.Unmarshal(body, &res)
	}
	fmt.Printf("  < %s\n", firstLine(res.Response))
	return res, resp.StatusCode
}

func get(t *T, path string) ([]byte, int) {
	req, _ := http.NewRequest(http.MethodGet, apiBase+path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := httpClient.Do(req)
	if err != nil {
		t.check("request: "+err.Error(), false)
		return nil, 0
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return body, resp.StatusCode
}

func mintToken(secret string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  "e2e",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func customer(prefix string) string {
	return fmt.Sprintf("e2e-%s-%s", prefix, runID)
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
