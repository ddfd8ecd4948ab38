package scoring

import "github.com/wolfman30/chat-commerce-agent/internal/analysis"

// Urgency is the follow-up priority reported with every processed message.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// UrgencyFor maps a message's lead score and urgency indicators to a level:
// high at score 25 or two indicators, medium at score 15 or one indicator.
func UrgencyFor(leadScore int, a analysis.MessageAnalysis) Urgency {
	indicators := len(a.UrgencyIndicators)
	switch {
	case leadScore >= 25 || indicators >= 2:
		return UrgencyHigh
	case leadScore >= 15 || indicators >= 1:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}
