package conversion

import (
	"math"
	"strings"
	"time"

	"github.com/wolfman30/chat-commerce-agent/internal/analysis"
	"github.com/wolfman30/chat-commerce-agent/internal/catalog"
	"github.com/wolfman30/chat-commerce-agent/internal/orders"
	"github.com/wolfman30/chat-commerce-agent/internal/tagging"
)

const (
	highEngagementScore = 70
	maxInteractionPts   = 30
)

// TrackInput is one processed message as seen by the tracker.
type TrackInput struct {
	CustomerID  string
	Timestamp   time.Time
	Message     string
	Response    string
	LeadScore   int
	Intent      analysis.Intent
	OrderStatus orders.Status
	OrderTotal  float64
	Products    []catalog.Product
	// OrderedProducts names the session line items; when empty the mentioned
	// products count as ordered.
	OrderedProducts []string
	Tags            []tagging.Tag
}

// Update is the result of tracking one message.
type Update struct {
	Journey   *Journey
	Stage     Stage
	Events    []Event
	Converted bool
}

// Tracker applies messages to journeys. It never touches storage.
type Tracker struct{}

func NewTracker() *Tracker { return &Tracker{} }

// TrackInteraction returns the next version of the journey after one message.
// A nil journey starts a new one at the message time.
func (t *Tracker) TrackInteraction(current *Journey, in TrackInput) Update {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	j := current.Clone()
	if j == nil {
		j = NewJourney(in.CustomerID, ts)
	}

	names := productNames(in.Products)
	j.Interactions = append(j.Interactions, Interaction{
		Timestamp:   ts,
		Message:     in.Message,
		Response:    in.Response,
		LeadScore:   in.LeadScore,
		Intent:      string(in.Intent),
		OrderStatus: string(in.OrderStatus),
		Products:    names,
	})
	j.LastInteraction = ts
	j.Metrics.TotalInteractions++

	change := in.LeadScore
	if n := len(j.LeadScoreHistory); n > 0 {
		change = in.LeadScore - j.LeadScoreHistory[n-1].Score
	}
	j.LeadScoreHistory = append(j.LeadScoreHistory, ScorePoint{Score: in.LeadScore, Timestamp: ts, Change: change})
	var sum int
	for _, p := range j.LeadScoreHistory {
		sum += p.Score
	}
	j.Metrics.AverageLeadScore = float64(sum) / float64(len(j.LeadScoreHistory))
	j.Metrics.PeakLeadScore = max(j.Metrics.PeakLeadScore, in.LeadScore)

	j.Products.Viewed = addUnique(j.Products.Viewed, names...)
	if strings.Contains(string(in.Intent), "inquiry") {
		j.Products.Inquired = addUnique(j.Products.Inquired, names...)
	}
	if orderedStatus(in.OrderStatus) {
		ordered := in.OrderedProducts
		if len(ordered) == 0 {
			ordered = names
		}
		j.Products.Ordered = addUnique(j.Products.Ordered, ordered...)
	}
	for _, tag := range in.Tags {
		j.Tags = addUnique(j.Tags, tag.Value)
	}

	events, converted := t.events(j, in, names, ts)
	j.Events = append(j.Events, events...)

	stage := DetermineStage(in.LeadScore, in.Intent, in.OrderStatus)
	advanceFunnel(j, stage, ts)
	j.Metrics.EngagementScore = EngagementScore(j, ts)

	return Update{Journey: j, Stage: stage, Events: events, Converted: converted}
}

func (t *Tracker) events(j *Journey, in TrackInput, names []string, ts time.Time) ([]Event, bool) {
	var events []Event
	if len(names) > 0 {
		events = append(events, Event{Type: EventProductInterest, Timestamp: ts, Products: names})
	}
	if in.LeadScore >= highEngagementScore {
		events = append(events, Event{Type: EventHighEngagement, Timestamp: ts, LeadScore: in.LeadScore})
	}
	if intent := string(in.Intent); strings.Contains(intent, "buy") || strings.Contains(intent, "purchase") || strings.Contains(intent, "order") {
		events = append(events, Event{Type: EventPurchaseIntent, Timestamp: ts, Intent: intent})
	}
	if !in.OrderStatus.InSession() {
		return events, false
	}
	events = append(events, Event{Type: "order_" + string(in.OrderStatus), Timestamp: ts, OrderStatus: string(in.OrderStatus), Products: names})
	if in.OrderStatus != orders.StatusCompleted || j.Converted() {
		return events, false
	}

	elapsed := ts.Sub(j.StartDate).Milliseconds()
	events = append(events, Event{
		Type:             EventConversion,
		Timestamp:        ts,
		TimeToConversion: elapsed,
		Interactions:     j.Metrics.TotalInteractions,
		Products:         in.OrderedProducts,
	})
	j.Status = StatusConverted
	j.Metrics.TimeToConversion = elapsed
	j.Metrics.ConversionValue = in.OrderTotal
	return events, true
}

// orderedStatus reports whether the products of the message count as ordered:
// any session status past the initial inquiry.
func orderedStatus(s orders.Status) bool {
	return s.InSession() && s != orders.StatusInquiry
}

// DetermineStage places one message in the funnel.
func DetermineStage(leadScore int, intent analysis.Intent, status orders.Status) Stage {
	switch {
	case status == orders.StatusCompleted:
		return StagePurchase
	case orderedStatus(status):
		return StageIntent
	case leadScore >= 60 || intent == analysis.IntentPurchase || intent == analysis.IntentPriceInquiry:
		return StageConsideration
	case leadScore >= 30 || intent == analysis.IntentProductInquiry:
		return StageInterest
	default:
		return StageAwareness
	}
}

// advanceFunnel marks every stage up to the given one as reached. Reached
// flags and their first timestamps never change afterwards.
func advanceFunnel(j *Journey, stage Stage, ts time.Time) {
	idx := stage.Index()
	for i := 0; i <= idx; i++ {
		s := Stages[i]
		mark := j.Funnel[s]
		if !mark.Reached {
			reached := ts
			mark.Reached = true
			mark.Timestamp = &reached
		}
		mark.Interactions++
		j.Funnel[s] = mark
	}
	j.CurrentStage = stage
}

// EngagementScore recomputes the 0-100 engagement of a journey as of now.
func EngagementScore(j *Journey, now time.Time) int {
	score := float64(min(j.Metrics.TotalInteractions*5, maxInteractionPts))
	score += j.Metrics.AverageLeadScore * 0.3
	score += float64(len(j.Products.Viewed) * 3)
	score += float64(len(j.Products.Inquired) * 7)
	score += float64(len(j.Products.Ordered) * 15)
	score += float64(j.StagesReached() * 8)

	switch since := now.Sub(j.LastInteraction); {
	case since <= 24*time.Hour:
		score += 10
	case since <= 7*24*time.Hour:
		score += 5
	}
	return min(int(math.Round(score)), 100)
}

func productNames(products []catalog.Product) []string {
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	return names
}
