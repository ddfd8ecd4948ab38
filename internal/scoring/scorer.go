// Package scoring computes the per-message lead score.
//
// The score is an additive evidence count: every keyword table is scanned as
// case-insensitive substrings and each hit adds its table's points, so near
// synonyms in one message stack. The sum is clamped to [0,100] only at the end,
// letting the sentiment penalty offset bonuses first.
package scoring

import (
	"strings"

	"github.com/wolfman30/chat-commerce-agent/internal/analysis"
	"github.com/wolfman30/chat-commerce-agent/internal/conversation"
	"github.com/wolfman30/chat-commerce-agent/internal/rules"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Breakdown itemizes the contributions behind a score.
type Breakdown struct {
	Intent        int `json:"intent"`
	Signals       int `json:"signals"`
	Urgency       int `json:"urgency"`
	UrgencyCount  int `json:"urgencyCount"`
	Decision      int `json:"decision"`
	Sentiment     int `json:"sentiment"`
	Context       int `json:"context"`
	Products      int `json:"products"`
	Qualification int `json:"qualification"`
	Contact       int `json:"contact"`
	Order         int `json:"order"`
	Raw           int `json:"raw"`
	Total         int `json:"total"`
}

// Scorer is a pure function over a rule set.
type Scorer struct {
	tables rules.Scoring
}

func NewScorer(rs *rules.RuleSet) *Scorer {
	if rs == nil {
		rs = rules.Default()
	}
	return &Scorer{tables: rs.Scoring}
}

// Score returns the clamped lead score of one message. ctx may be nil for a
// customer without history.
func (s *Scorer) Score(message string, a analysis.MessageAnalysis, ctx *conversation.Context) int {
	return s.Evaluate(message, a, ctx).Total
}

// Evaluate computes the score with its per-table breakdown.
func (s *Scorer) Evaluate(message string, a analysis.MessageAnalysis, ctx *conversation.Context) Breakdown {
	lower := strings.ToLower(message)
	t := s.tables
	var b Breakdown

	b.Intent = t.IntentBase[string(a.Intent)]

	for _, table := range t.Signals {
		b.Signals += table.Points * rules.CountSubstrings(lower, table.Keywords)
	}

	b.UrgencyCount = rules.CountSubstrings(lower, t.Urgency.Keywords)
	b.Urgency = t.Urgency.Points * b.UrgencyCount

	for _, stage := range t.DecisionStages {
		b.Decision += stage.Points * rules.CountSubstrings(lower, stage.Keywords)
	}

	b.Sentiment = t.Sentiment[string(a.Sentiment)]

	if ctx != nil {
		if ctx.InteractionCount > t.Context.EngagedAfter {
			b.Context += t.Context.EngagedPoints
		}
		if ctx.InteractionCount > t.Context.VeryEngagedAfter {
			b.Context += t.Context.VeryEngagedPoints
		}
		if ctx.PreviousPurchase {
			b.Context += t.Context.PreviousPurchasePoints
		}
	}

	b.Products = t.ProductPoints * len(a.MentionedProducts)
	b.Qualification = t.Qualification.Points * rules.CountSubstrings(lower, t.Qualification.Keywords)
	b.Contact = t.Contact.Points * rules.CountSubstrings(lower, t.Contact.Keywords)
	b.Order = t.OrderKeywords.Points * rules.CountSubstrings(lower, t.OrderKeywords.Keywords)

	b.Raw = b.Intent + b.Signals + b.Urgency + b.Decision + b.Sentiment + b.Context +
		b.Products + b.Qualification + b.Contact + b.Order
	b.Total = Clamp(b.Raw)
	return b
}

// Clamp bounds a raw sum to [MinScore, MaxScore].
func Clamp(raw int) int {
	return max(MinScore, min(MaxScore, raw))
}
