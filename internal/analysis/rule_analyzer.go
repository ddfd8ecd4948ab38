package analysis

import (
	"context"
	"strings"

	"github.com/wolfman30/chat-commerce-agent/internal/catalog"
	"github.com/wolfman30/chat-commerce-agent/internal/rules"
)

const (
	baseConfidence       = 0.5
	longMessageBonus     = 0.2
	veryLongMessageBonus = 0.1
	specificityBonus     = 0.05
	maxRuleConfidence    = 0.95
	longMessageWords     = 5
	veryLongMessageWords = 10
)

// RuleAnalyzer classifies messages with the keyword tables of a rule set. It
// never fails and never blocks, which makes it the fallback for LLM analysis.
type RuleAnalyzer struct {
	rules *rules.RuleSet
}

// NewRuleAnalyzer returns an analyzer over rs, using the embedded defaults when rs is nil.
func NewRuleAnalyzer(rs *rules.RuleSet) *RuleAnalyzer {
	if rs == nil {
		rs = rules.Default()
	}
	return &RuleAnalyzer{rules: rs}
}

// Analyze implements Analyzer.
func (a *RuleAnalyzer) Analyze(_ context.Context, text string, biz *catalog.BusinessConfig) (MessageAnalysis, error) {
	lower := strings.ToLower(text)

	result := MessageAnalysis{
		Intent:            a.classifyIntent(lower),
		Sentiment:         a.classifySentiment(lower),
		Confidence:        a.confidence(lower),
		UrgencyIndicators: rules.MatchPhrases(lower, a.rules.Urgency),
		BuyingSignals:     a.buyingSignals(lower),
		ContactInfo:       ExtractContactInfo(text),
		OrderDetails:      ExtractOrderDetails(text),
		Source:            SourceRules,
	}
	if biz != nil {
		result.MentionedProducts = biz.Catalog().FindMentioned(text)
	}
	result.Normalize()
	return result, nil
}

func (a *RuleAnalyzer) classifyIntent(lower string) Intent {
	for _, rule := range a.rules.Intents {
		if rules.AnyPhrase(lower, rule.Keywords) {
			return ParseIntent(rule.Intent)
		}
	}
	return IntentGeneral
}

func (a *RuleAnalyzer) classifySentiment(lower string) Sentiment {
	pos := len(rules.MatchPhrases(lower, a.rules.Sentiment.Positive))
	neg := len(rules.MatchPhrases(lower, a.rules.Sentiment.Negative))
	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func (a *RuleAnalyzer) buyingSignals(lower string) []BuyingSignal {
	var out []BuyingSignal
	for _, cat := range a.rules.BuyingSignals {
		for _, kw := range rules.MatchPhrases(lower, cat.Keywords) {
			out = append(out, BuyingSignal{Category: cat.Category, Keyword: kw})
		}
	}
	return out
}

func (a *RuleAnalyzer) confidence(lower string) float64 {
	words := len(strings.Fields(lower))
	c := baseConfidence
	if words > longMessageWords {
		c += longMessageBonus
	}
	if words > veryLongMessageWords {
		c += veryLongMessageBonus
	}
	c += specificityBonus * float64(len(rules.MatchPhrases(lower, a.rules.Specificity)))
	if c > maxRuleConfidence {
		c = maxRuleConfidence
	}
	return c
}
