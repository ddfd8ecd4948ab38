// Package tagging classifies customers into lead tags after every message.
package tagging

import (
	"strings"

	"github.com/wolfman30/chat-commerce-agent/internal/analysis"
	"github.com/wolfman30/chat-commerce-agent/internal/catalog"
	"github.com/wolfman30/chat-commerce-agent/internal/conversation"
	"github.com/wolfman30/chat-commerce-agent/internal/orders"
)

// Category groups tags that describe the same aspect of a customer.
type Category string

const (
	CategoryBuyingStage   Category = "buying_stage"
	CategoryInterestLevel Category = "interest_level"
	CategoryCustomerType  Category = "customer_type"
	CategoryBehavior      Category = "behavior"
	CategoryPriority      Category = "priority"
	CategorySegment       Category = "segment"
)

// Priority ranks how soon a tag calls for seller attention.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Tag is one classification of a customer.
type Tag struct {
	Category Category `json:"category"`
	Value    string   `json:"tag"`
	Priority Priority `json:"priority"`
}

// Input is everything the tagger reads for one message.
type Input struct {
	Analysis    analysis.MessageAnalysis
	OrderStatus orders.Status
	LeadScore   int
	Context     *conversation.Context
	Products    []catalog.Product
}

// Tagger is stateless; a zero value is ready to use.
type Tagger struct{}

func NewTagger() *Tagger { return &Tagger{} }

// Tag derives the deduplicated tag set for one message. Calling it twice with
// the same input returns the same tags in the same order.
func (t *Tagger) Tag(in Input) []Tag {
	var tags []Tag
	tags = append(tags, buyingStage(in)...)
	tags = append(tags, interestLevel(in)...)
	tags = append(tags, customerType(in)...)
	tags = append(tags, behavior(in)...)
	tags = append(tags, priority(in)...)
	tags = append(tags, segment(in)...)
	return dedupe(tags)
}

// stageFromStatus reports whether the order status, rather than the intent,
// decides the buying stage: any session status plus the nurture reply.
func stageFromStatus(s orders.Status) bool {
	return s.InSession() || s == orders.StatusNurturing
}

func buyingStage(in Input) []Tag {
	tag := func(v string, p Priority) []Tag { return []Tag{{CategoryBuyingStage, v, p}} }
	if stageFromStatus(in.OrderStatus) {
		switch in.OrderStatus {
		case orders.StatusCompleted:
			return tag("customer", PriorityHigh)
		case orders.StatusConfirming, orders.StatusProcessing:
			return tag("ready_to_buy", PriorityCritical)
		case orders.StatusCollectingInfo:
			return tag("qualifying", PriorityHigh)
		case orders.StatusNurturing:
			return tag("consideration", PriorityMedium)
		default:
			return tag("awareness", PriorityLow)
		}
	}
	switch in.Analysis.Intent {
	case analysis.IntentPurchase:
		return tag("ready_to_buy", PriorityCritical)
	case analysis.IntentPriceInquiry, analysis.IntentAvailabilityCheck:
		return tag("evaluation", PriorityHigh)
	case analysis.IntentComparison:
		return tag("consideration", PriorityMedium)
	case analysis.IntentProductInquiry:
		return tag("interest", PriorityMedium)
	default:
		return tag("awareness", PriorityLow)
	}
}

func interestLevel(in Input) []Tag {
	var tags []Tag
	add := func(v string, p Priority) { tags = append(tags, Tag{CategoryInterestLevel, v, p}) }
	switch score := in.LeadScore; {
	case score >= 70:
		add("very_high", PriorityCritical)
	case score >= 50:
		add("high", PriorityHigh)
	case score >= 30:
		add("medium", PriorityMedium)
	case score >= 15:
		add("low", PriorityLow)
	default:
		add("very_low", PriorityLow)
	}
	switch n := len(in.Products); {
	case n >= 3:
		add("exploring_multiple", PriorityMedium)
	case n > 0:
		add("focused_interest", PriorityHigh)
	}
	return tags
}

func customerType(in Input) []Tag {
	var tags []Tag
	add := func(v string, p Priority) { tags = append(tags, Tag{CategoryCustomerType, v, p}) }
	ctx := in.Context
	if ctx == nil {
		ctx = conversation.NewContext("")
	}
	if ctx.PreviousPurchase {
		add("returning_customer", PriorityHigh)
	} else {
		add("new_prospect", PriorityMedium)
	}
	switch {
	case ctx.InteractionCount >= 5:
		add("highly_engaged", PriorityHigh)
	case ctx.InteractionCount >= 2:
		add("engaged", PriorityMedium)
	default:
		add("first_time_visitor", PriorityLow)
	}
	switch {
	case in.Analysis.HasSignal(analysis.SignalPurchaseReady):
		add("impulse_buyer", PriorityCritical)
	case in.Analysis.HasSignal(analysis.SignalPriceConscious):
		add("price_conscious", PriorityMedium)
	}
	return tags
}

func behavior(in Input) []Tag {
	var tags []Tag
	add := func(v string, p Priority) { tags = append(tags, Tag{CategoryBehavior, v, p}) }
	a := in.Analysis
	if len(a.UrgencyIndicators) > 0 {
		add("urgent_buyer", PriorityCritical)
	}
	if a.Intent == analysis.IntentProductInquiry || a.Intent == analysis.IntentComparison {
		add("researcher", PriorityMedium)
	}
	if a.HasSignal(analysis.SignalDecisionMaking) {
		add("comparison_shopper", PriorityMedium)
	}
	if !a.ContactInfo.Empty() {
		add("information_sharer", PriorityHigh)
	}
	switch a.Sentiment {
	case analysis.SentimentPositive:
		add("positive_engagement", PriorityMedium)
	case analysis.SentimentNegative:
		add("needs_attention", PriorityHigh)
	}
	return tags
}

func priority(in Input) []Tag {
	var tags []Tag
	add := func(v string, p Priority) { tags = append(tags, Tag{CategoryPriority, v, p}) }
	switch in.OrderStatus {
	case orders.StatusConfirming, orders.StatusProcessing:
		add("immediate_action", PriorityCritical)
	case orders.StatusCollectingInfo:
		add("follow_up_needed", PriorityHigh)
	}
	switch score := in.LeadScore; {
	case score >= 60:
		add("hot_lead", PriorityCritical)
	case score >= 40:
		add("warm_lead", PriorityHigh)
	case score >= 20:
		add("cold_lead", PriorityMedium)
	}
	if len(in.Analysis.UrgencyIndicators) > 0 {
		add("time_sensitive", PriorityCritical)
	}
	return tags
}

func segment(in Input) []Tag {
	if len(in.Products) == 0 {
		return nil
	}
	var tags []Tag
	var sum float64
	for _, p := range in.Products {
		sum += p.Price
		if cat := strings.TrimSpace(p.Category); cat != "" {
			tags = append(tags, Tag{CategorySegment, strings.ToLower(cat) + "_buyer", PriorityMedium})
		}
	}
	switch avg := sum / float64(len(in.Products)); {
	case avg >= 10000:
		tags = append(tags, Tag{CategorySegment, "premium_buyer", PriorityHigh})
	case avg >= 5000:
		tags = append(tags, Tag{CategorySegment, "mid_range_buyer", PriorityMedium})
	default:
		tags = append(tags, Tag{CategorySegment, "budget_buyer", PriorityMedium})
	}
	return tags
}

func dedupe(tags []Tag) []Tag {
	seen := make(map[string]struct{}, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		key := string(t.Category) + ":" + t.Value
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
