package analysis

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/wolfman30/chat-commerce-agent/internal/catalog"
)

// Intent is the classified purpose of a customer message.
type Intent string

const (
	IntentGreeting          Intent = "greeting"
	IntentProductInquiry    Intent = "product_inquiry"
	IntentPriceInquiry      Intent = "price_inquiry"
	IntentPurchase          Intent = "purchase_intent"
	IntentAvailabilityCheck Intent = "availability_check"
	IntentSupport           Intent = "support"
	IntentComparison        Intent = "comparison"
	IntentGeneral           Intent = "general"
)

var knownIntents = map[Intent]struct{}{
	IntentGreeting: {}, IntentProductInquiry: {}, IntentPriceInquiry: {}, IntentPurchase: {},
	IntentAvailabilityCheck: {}, IntentSupport: {}, IntentComparison: {}, IntentGeneral: {},
}

// ParseIntent maps free text to a known intent, defaulting to general.
func ParseIntent(s string) Intent {
	i := Intent(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownIntents[i]; ok {
		return i
	}
	return IntentGeneral
}

// Sentiment is the tone of a message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ParseSentiment maps free text to a sentiment, defaulting to neutral.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNegative:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Source records which analyzer produced an analysis.
type Source string

const (
	SourceRules    Source = "rules"
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// Buying-signal categories produced by the rule tables.
const (
	SignalPurchaseReady     = "purchase_ready"
	SignalPriceConscious    = "price_conscious"
	SignalDecisionMaking    = "decision_making"
	SignalAvailabilityCheck = "availability_check"
)

// BuyingSignal is one matched keyword and the category it belongs to.
type BuyingSignal struct {
	Category string `json:"category"`
	Keyword  string `json:"keyword"`
}

// ContactInfo carries details the customer shared about themselves.
type ContactInfo struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Empty reports whether no contact field is set.
func (c *ContactInfo) Empty() bool {
	return c == nil || (c.Name == "" && c.Phone == "" && c.Email == "")
}

// OrderDetails carries order specifics mentioned in a message.
type OrderDetails struct {
	Quantity int    `json:"quantity,omitempty"`
	Variant  string `json:"variant,omitempty"`
	Address  string `json:"address,omitempty"`
}

// Empty reports whether no order detail is set.
func (d *OrderDetails) Empty() bool {
	return d == nil || (d.Quantity == 0 && d.Variant == "" && d.Address == "")
}

// MessageAnalysis is the structured reading of one inbound message.
type MessageAnalysis struct {
	Intent            Intent            `json:"intent"`
	Sentiment         Sentiment         `json:"sentiment"`
	Confidence        float64           `json:"confidence"`
	UrgencyIndicators []string          `json:"urgencyIndicators"`
	BuyingSignals     []BuyingSignal    `json:"buyingSignals"`
	ContactInfo       *ContactInfo      `json:"contactInfo,omitempty"`
	OrderDetails      *OrderDetails     `json:"orderDetails,omitempty"`
	MentionedProducts []catalog.Product `json:"mentionedProducts"`
	Source            Source            `json:"source"`
}

// HasSignal reports whether any buying signal of the category was matched.
func (a MessageAnalysis) HasSignal(category string) bool {
	for _, s := range a.BuyingSignals {
		if s.Category == category {
			return true
		}
	}
	return false
}

// Normalize enforces the output contract shared by every analyzer: a known
// intent and sentiment, confidence within [0,1], and empty optional blocks dropped.
func (a *MessageAnalysis) Normalize() {
	a.Intent = ParseIntent(string(a.Intent))
	a.Sentiment = ParseSentiment(string(a.Sentiment))
	switch {
	case math.IsNaN(a.Confidence), a.Confidence < 0:
		a.Confidence = 0
	case a.Confidence > 1:
		a.Confidence = 1
	}
	if a.ContactInfo.Empty() {
		a.ContactInfo = nil
	}
	if a.OrderDetails.Empty() {
		a.OrderDetails = nil
	}
	if a.UrgencyIndicators == nil {
		a.UrgencyIndicators = []string{}
	}
	if a.BuyingSignals == nil {
		a.BuyingSignals = []BuyingSignal{}
	}
	if a.MentionedProducts == nil {
		a.MentionedProducts = []catalog.Product{}
	}
}

// ErrAnalysisFailed marks an analyzer that could not produce a usable analysis.
var ErrAnalysisFailed = errors.New("analysis: analyzer failed")

// Analyzer turns raw message text into a MessageAnalysis.
type Analyzer interface {
	Analyze(ctx context.Context, text string, biz *catalog.BusinessConfig) (MessageAnalysis, error)
}
