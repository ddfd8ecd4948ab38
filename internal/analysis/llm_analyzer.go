package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfman30/chat-commerce-agent/internal/catalog"
	"github.com/wolfman30/chat-commerce-agent/internal/rules"
	"go.opentelemetry.io/otel/attribute"
)

const (
	llmAnalysisMaxTokens   = 500
	llmAnalysisTemperature = 0.1
)

const analysisSystemPrompt = `You analyze customer messages sent to an online shop (English or Filipino).
Respond with valid JSON only. No prose, no markdown.

{
  "intent": "greeting|product_inquiry|price_inquiry|purchase_intent|availability_check|support|comparison|general",
  "sentiment": "positive|negative|neutral",
  "confidence": 0.0-1.0,
  "urgencyIndicators": ["words that signal urgency"],
  "buyingSignals": [{"category": "purchase_ready|price_conscious|decision_making|availability_check", "keyword": "matched phrase"}],
  "contactInfo": {"name": "", "phone": "", "email": ""},
  "orderDetails": {"quantity": 0, "variant": "", "address": ""},
  "mentionedProducts": ["product names from the catalog"]
}

Confidence: clear intent 0.8+, specific products 0.7+, vague messages 0.3-0.5.`

// LLMAnalyzer delegates classification to a language model and normalizes its
// JSON answer into a MessageAnalysis.
type LLMAnalyzer struct {
	client LLMClient
	model  string
	rules  *rules.RuleSet
}

// NewLLMAnalyzer returns an analyzer backed by client. model may be empty to use
// the client's default. rs is used to categorize bare signal keywords.
func NewLLMAnalyzer(client LLMClient, model string, rs *rules.RuleSet) *LLMAnalyzer {
	if client == nil {
		panic("analysis: llm client cannot be nil")
	}
	if rs == nil {
		rs = rules.Default()
	}
	return &LLMAnalyzer{client: client, model: model, rules: rs}
}

// Analyze implements Analyzer. Every failure wraps ErrAnalysisFailed.
func (a *LLMAnalyzer) Analyze(ctx context.Context, text string, biz *catalog.BusinessConfig) (MessageAnalysis, error) {
	ctx, span := llmTracer.Start(ctx, "analysis.llm_analyze")
	defer span.End()

	resp, err := a.client.Complete(ctx, LLMRequest{
		Model:       a.model,
		System:      []string{analysisSystemPrompt, catalogPrompt(biz)},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: fmt.Sprintf("Analyze this customer message: %q", text)}},
		MaxTokens:   llmAnalysisMaxTokens,
		Temperature: llmAnalysisTemperature,
	})
	if err != nil {
		span.RecordError(err)
		return MessageAnalysis{}, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	raw, err := decodeLLMAnalysis(resp.Text)
	if err != nil {
		span.RecordError(err)
		return MessageAnalysis{}, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	result := MessageAnalysis{
		Intent:            ParseIntent(raw.Intent),
		Sentiment:         ParseSentiment(raw.Sentiment),
		Confidence:        raw.Confidence,
		UrgencyIndicators: cleanStrings(raw.UrgencyIndicators),
		BuyingSignals:     a.signals(raw.BuyingSignals),
		Source:            SourceLLM,
	}
	if raw.ContactInfo != nil {
		result.ContactInfo = &ContactInfo{
			Name:  strings.TrimSpace(raw.ContactInfo.Name),
			Phone: strings.TrimSpace(raw.ContactInfo.Phone),
			Email: strings.TrimSpace(raw.ContactInfo.Email),
		}
		if result.ContactInfo.Phone != "" {
			result.ContactInfo.Phone = normalizePhone(result.ContactInfo.Phone)
		}
	}
	if raw.OrderDetails != nil {
		result.OrderDetails = &OrderDetails{
			Quantity: parseQuantity(raw.OrderDetails.Quantity),
			Variant:  strings.TrimSpace(raw.OrderDetails.Variant),
			Address:  strings.TrimSpace(raw.OrderDetails.Address),
		}
	}
	if biz != nil {
		cat := biz.Catalog()
		result.MentionedProducts = cat.Union(cat.FindByName(raw.MentionedProducts), cat.FindMentioned(text))
	}
	result.Normalize()

	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("chatcommerce.analysis.intent", string(result.Intent)),
			attribute.Float64("chatcommerce.analysis.confidence", result.Confidence),
		)
	}
	return result, nil
}

type llmAnalysisPayload struct {
	Intent            string            `json:"intent"`
	Sentiment         string            `json:"sentiment"`
	Confidence        float64           `json:"confidence"`
	UrgencyIndicators []string          `json:"urgencyIndicators"`
	BuyingSignals     []json.RawMessage `json:"buyingSignals"`
	ContactInfo       *struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	} `json:"contactInfo"`
	OrderDetails *struct {
		Quantity json.RawMessage `json:"quantity"`
		Variant  string          `json:"variant"`
		Address  string          `json:"address"`
	} `json:"orderDetails"`
	MentionedProducts []string `json:"mentionedProducts"`
}

// decodeLLMAnalysis extracts the outermost JSON object from a model reply.
func decodeLLMAnalysis(text string) (llmAnalysisPayload, error) {
	var payload llmAnalysisPayload
	content := strings.TrimSpace(text)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return payload, errors.New("analysis: no json object in model reply")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return payload, fmt.Errorf("analysis: decode model reply: %w", err)
	}
	return payload, nil
}

// signals accepts both {"category","keyword"} objects and bare keyword strings;
// bare keywords are categorized through the rule tables.
func (a *LLMAnalyzer) signals(raw []json.RawMessage) []BuyingSignal {
	var out []BuyingSignal
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) == 0 {
			continue
		}
		if item[0] == '"' {
			var kw string
			if err := json.Unmarshal(item, &kw); err != nil {
				continue
			}
			kw = strings.ToLower(strings.TrimSpace(kw))
			if cat := a.categorize(kw); cat != "" {
				out = append(out, BuyingSignal{Category: cat, Keyword: kw})
			}
			continue
		}
		var sig BuyingSignal
		if err := json.Unmarshal(item, &sig); err != nil {
			continue
		}
		sig.Category = strings.ToLower(strings.TrimSpace(sig.Category))
		sig.Keyword = strings.ToLower(strings.TrimSpace(sig.Keyword))
		if sig.Category == "" {
			sig.Category = a.categorize(sig.Keyword)
		}
		if sig.Category != "" {
			out = append(out, sig)
		}
	}
	return out
}

func (a *LLMAnalyzer) categorize(keyword string) string {
	if keyword == "" {
		return ""
	}
	for _, cat := range a.rules.BuyingSignals {
		for _, kw := range cat.Keywords {
			if kw == keyword || rules.ContainsPhrase(keyword, kw) {
				return cat.Category
			}
		}
	}
	return ""
}

func parseQuantity(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= maxQuantity {
		return int(f)
	}
	return 0
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func catalogPrompt(biz *catalog.BusinessConfig) string {
	if biz == nil || len(biz.Products) == 0 {
		return ""
	}
	names := make([]string, 0, len(biz.Products))
	for _, p := range biz.Products {
		names = append(names, p.Name)
	}
	return fmt.Sprintf("Shop: %s. Catalog products: %s.", biz.ShopName, strings.Join(names, ", "))
}
