package pipeline

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/wolfman30/chat-commerce-agent/internal/analysis"
	"github.com/wolfman30/chat-commerce-agent/internal/catalog"
	"github.com/wolfman30/chat-commerce-agent/internal/conversation"
	"github.com/wolfman30/chat-commerce-agent/internal/orders"
)

const (
	fallbackText = "I apologize, but I'm having trouble processing your message right now. Please try again or contact our support team."

	welcomeBackTemplate = "Welcome back to {shopName}! 😊 Great to see you again! How can I assist you today?"
	pricingPromptText   = "I'd be happy to help with pricing! 💰 Which product would you like to know about?"
	productPromptText   = "I'd love to help you find the perfect product! 🔍 Could you tell me more about what you're looking for?"
	closingScoreCutoff  = 70
	considerationCutoff = 50
)

// ResponsePicker chooses one of several equivalent canned replies.
type ResponsePicker interface {
	Pick(options []string) string
}

// SeededPicker picks uniformly with a deterministic source.
type SeededPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSeededPicker(seed uint64) *SeededPicker {
	return &SeededPicker{rng: rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))}
}

func (p *SeededPicker) Pick(options []string) string {
	switch len(options) {
	case 0:
		return ""
	case 1:
		return options[0]
	}
	p.mu.Lock()
	i := p.rng.IntN(len(options))
	p.mu.Unlock()
	return options[i]
}

// RoundRobinPicker cycles through the options with one shared counter.
type RoundRobinPicker struct {
	next atomic.Uint64
}

func NewRoundRobinPicker() *RoundRobinPicker { return &RoundRobinPicker{} }

func (p *RoundRobinPicker) Pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	n := p.next.Add(1) - 1
	return options[n%uint64(len(options))]
}

// ConversationStage is the coarse position of a conversation used for reporting.
type ConversationStage string

const (
	StageInitial       ConversationStage = "initial"
	StageDiscovery     ConversationStage = "discovery"
	StageConsideration ConversationStage = "consideration"
	StageEngagement    ConversationStage = "engagement"
	StageClosing       ConversationStage = "closing"
)

// stageOf classifies a message. prior is the context before this message was recorded.
func stageOf(prior *conversation.Context, a analysis.MessageAnalysis, leadScore int, status orders.Status) ConversationStage {
	switch {
	case prior == nil || prior.InteractionCount == 0:
		return StageInitial
	case orderFlowActive(status), a.Intent == analysis.IntentPurchase && leadScore >= closingScoreCutoff:
		return StageClosing
	case a.Intent == analysis.IntentProductInquiry,
		a.Intent == analysis.IntentPriceInquiry,
		a.Intent == analysis.IntentAvailabilityCheck:
		return StageDiscovery
	case a.Intent == analysis.IntentComparison || leadScore >= considerationCutoff:
		return StageConsideration
	default:
		return StageEngagement
	}
}

func orderFlowActive(status orders.Status) bool {
	switch status {
	case orders.StatusInquiry, orders.StatusCollectingInfo, orders.StatusConfirming, orders.StatusProcessing:
		return true
	}
	return false
}

// generatedReply answers messages the order flow left unanswered: a matching
// FAQ first, then the intent's templates.
func (o *Orchestrator) generatedReply(text string, a analysis.MessageAnalysis, prior *conversation.Context) string {
	if faq, ok := o.catalog.MatchFAQ(text); ok {
		return faq.Answer
	}

	t := o.business.Templates
	vars := map[string]string{"shopName": o.business.ShopName}
	hasProduct := len(a.MentionedProducts) > 0
	if hasProduct {
		p := a.MentionedProducts[0]
		vars["productName"] = p.Name
		vars["price"] = catalog.FormatPeso(p.Price)
	}

	var options []string
	switch a.Intent {
	case analysis.IntentGreeting:
		if prior != nil && prior.InteractionCount > 0 {
			return catalog.Render(welcomeBackTemplate, vars)
		}
		options = t.Greeting
	case analysis.IntentProductInquiry:
		if !hasProduct {
			return productPromptText
		}
		options = t.ProductInquiry
	case analysis.IntentPriceInquiry:
		if !hasProduct {
			return pricingPromptText
		}
		options = t.Pricing
	case analysis.IntentAvailabilityCheck:
		options = t.Availability
	case analysis.IntentPurchase:
		options = t.Purchase
	case analysis.IntentSupport:
		options = t.Support
	default:
		options = t.General
	}
	if reply := catalog.Render(o.picker.Pick(options), vars); reply != "" {
		return reply
	}
	return catalog.Render(o.picker.Pick(t.General), vars)
}
