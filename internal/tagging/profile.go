package tagging

import (
	"slices"

	"github.com/wolfman30/chat-commerce-agent/internal/analysis"
)

// DefaultNextBestAction is returned when no tag on the ladder matches.
const DefaultNextBestAction = "continue_conversation"

// nextBestActions is checked top to bottom; the first matching tag wins.
var nextBestActions = []struct {
	tag    string
	action string
}{
	{"immediate_action", "process_order_immediately"},
	{"ready_to_buy", "confirm_order_details"},
	{"hot_lead", "personalized_offer"},
	{"follow_up_needed", "collect_contact_info"},
	{"warm_lead", "send_product_details"},
	{"price_conscious", "offer_discount"},
	{"researcher", "provide_comparison"},
	{"cold_lead", "nurture_relationship"},
}

// NextBestAction resolves the seller's next step from a tag set.
func NextBestAction(tags []Tag) string {
	for _, step := range nextBestActions {
		if hasValue(tags, step.tag) {
			return step.action
		}
	}
	return DefaultNextBestAction
}

// RecommendedAction is a follow-up suggestion for the seller.
type RecommendedAction struct {
	Action    string `json:"action"`
	Reason    string `json:"reason"`
	Timeframe string `json:"timeframe"`
}

// Profile summarizes the tags of one message into a customer profile.
type Profile struct {
	CustomerID          string              `json:"customerId"`
	BuyingStage         string              `json:"buyingStage,omitempty"`
	InterestLevel       string              `json:"interestLevel,omitempty"`
	CustomerType        string              `json:"customerType,omitempty"`
	Priority            string              `json:"priority,omitempty"`
	IsUrgent            bool                `json:"isUrgent"`
	IsPriceConscious    bool                `json:"isPriceConscious"`
	IsReturningCustomer bool                `json:"isReturningCustomer"`
	LeadScore           int                 `json:"leadScore"`
	Sentiment           analysis.Sentiment  `json:"sentiment"`
	Confidence          float64             `json:"confidence"`
	RecommendedActions  []RecommendedAction `json:"recommendedActions"`
	NextBestAction      string              `json:"nextBestAction"`
}

// BuildProfile derives the profile for a customer from its latest tags.
func BuildProfile(customerID string, tags []Tag, a analysis.MessageAnalysis, leadScore int) Profile {
	return Profile{
		CustomerID:          customerID,
		BuyingStage:         firstValue(tags, CategoryBuyingStage),
		InterestLevel:       firstValue(tags, CategoryInterestLevel),
		CustomerType:        firstValue(tags, CategoryCustomerType),
		Priority:            firstValue(tags, CategoryPriority),
		IsUrgent:            hasValue(tags, "urgent_buyer") || hasValue(tags, "time_sensitive"),
		IsPriceConscious:    hasValue(tags, "price_conscious"),
		IsReturningCustomer: hasValue(tags, "returning_customer"),
		LeadScore:           leadScore,
		Sentiment:           a.Sentiment,
		Confidence:          a.Confidence,
		RecommendedActions:  recommendedActions(tags),
		NextBestAction:      NextBestAction(tags),
	}
}

func recommendedActions(tags []Tag) []RecommendedAction {
	actions := []RecommendedAction{}
	if hasPriority(tags, PriorityCritical) {
		actions = append(actions, RecommendedAction{"immediate_response", "High-priority lead detected", "within 5 minutes"})
	}
	if hasValue(tags, "ready_to_buy") {
		actions = append(actions, RecommendedAction{"process_order", "Customer ready to purchase", "immediate"})
	}
	if hasValue(tags, "follow_up_needed") {
		actions = append(actions, RecommendedAction{"collect_information", "Missing customer details", "within 10 minutes"})
	}
	if hasValue(tags, "researcher") {
		actions = append(actions, RecommendedAction{"provide_detailed_info", "Customer is gathering information", "within 30 minutes"})
	}
	return actions
}

// Recommendations is the sales playbook for a profile.
type Recommendations struct {
	SalesApproach  string `json:"salesApproach"`
	MessagingTone  string `json:"messagingTone"`
	OfferStrategy  string `json:"offerStrategy"`
	FollowUpTiming string `json:"followUpTiming"`
}

// Recommend picks the sales approach, tone, offer and follow-up timing.
func Recommend(tags []Tag, p Profile) Recommendations {
	r := Recommendations{
		SalesApproach:  "consultative",
		MessagingTone:  "professional",
		OfferStrategy:  "benefit_focused",
		FollowUpTiming: "within_week",
	}

	switch {
	case hasValue(tags, "researcher"):
		r.SalesApproach = "educational"
	case hasValue(tags, "price_conscious"):
		r.SalesApproach = "value_focused"
	case hasValue(tags, "urgent_buyer"):
		r.SalesApproach = "direct_close"
	}

	switch {
	case p.Sentiment == analysis.SentimentPositive:
		r.MessagingTone = "enthusiastic"
	case p.IsUrgent:
		r.MessagingTone = "responsive"
	case p.IsPriceConscious:
		r.MessagingTone = "value_oriented"
	}

	switch {
	case hasValue(tags, "price_conscious"):
		r.OfferStrategy = "discount_focused"
	case hasValue(tags, "premium_buyer"):
		r.OfferStrategy = "quality_focused"
	case hasValue(tags, "urgent_buyer"):
		r.OfferStrategy = "urgency_based"
	}

	switch {
	case hasPriority(tags, PriorityCritical):
		r.FollowUpTiming = "immediate"
	case hasPriority(tags, PriorityHigh):
		r.FollowUpTiming = "within_hour"
	case hasPriority(tags, PriorityMedium):
		r.FollowUpTiming = "within_day"
	}
	return r
}

func hasValue(tags []Tag, value string) bool {
	return slices.ContainsFunc(tags, func(t Tag) bool { return t.Value == value })
}

func hasPriority(tags []Tag, p Priority) bool {
	return slices.ContainsFunc(tags, func(t Tag) bool { return t.Priority == p })
}

func firstValue(tags []Tag, c Category) string {
	for _, t := range tags {
		if t.Category == c {
			return t.Value
		}
	}
	return ""
}
