package conversion

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/chat-commerce-agent/internal/analysis"
	"github.com/wolfman30/chat-commerce-agent/internal/catalog"
	"github.com/wolfman30/chat-commerce-agent/internal/orders"
	"github.com/wolfman30/chat-commerce-agent/internal/tagging"
)

var lavender = catalog.Product{ID: "lav", Name: "Lavender Oil", Price: 350}

func eventTypes(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

func TestTrackInteractionThroughPurchase(t *testing.T) {
	tracker := NewTracker()
	t0 := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	u := tracker.TrackInteraction(nil, TrackInput{CustomerID: "c1", Timestamp: t0, Message: "hi", LeadScore: 10, Intent: analysis.IntentGreeting})
	j := u.Journey
	require.NotNil(t, j)
	assert.Equal(t, StageAwareness, u.Stage)
	assert.Empty(t, u.Events)
	assert.Equal(t, t0, j.StartDate)
	assert.Equal(t, 1, j.Funnel[StageAwareness].Interactions)
	assert.Equal(t, 1, j.StagesReached())

	u = tracker.TrackInteraction(j, TrackInput{
		CustomerID: "c1", Timestamp: t0.Add(time.Hour), Message: "do you have lavender oil?",
		LeadScore: 40, Intent: analysis.IntentProductInquiry, Products: []catalog.Product{lavender},
		Tags: []tagging.Tag{{Category: tagging.CategoryBuyingStage, Value: "interest"}},
	})
	assert.Len(t, j.Interactions, 1, "input journey is not modified")
	j = u.Journey
	assert.Equal(t, StageInterest, u.Stage)
	assert.Equal(t, []string{EventProductInterest}, eventTypes(u.Events))
	assert.Equal(t, []string{"Lavender Oil"}, j.Products.Viewed)
	assert.Equal(t, []string{"Lavender Oil"}, j.Products.Inquired)
	assert.Empty(t, j.Products.Ordered)
	assert.Equal(t, []string{"interest"}, j.Tags)
	assert.Equal(t, 30, j.LeadScoreHistory[1].Change)

	u = tracker.TrackInteraction(j, TrackInput{
		CustomerID: "c1", Timestamp: t0.Add(2 * time.Hour), Message: "I'll buy 2",
		LeadScore: 70, Intent: analysis.IntentPurchase, OrderStatus: orders.StatusCollectingInfo,
		OrderedProducts: []string{"Lavender Oil"},
	})
	j = u.Journey
	assert.Equal(t, StageIntent, u.Stage)
	assert.Equal(t, []string{EventHighEngagement, EventPurchaseIntent, "order_collecting_info"}, eventTypes(u.Events))
	assert.Equal(t, []string{"Lavender Oil"}, j.Products.Ordered)
	assert.False(t, u.Converted)

	u = tracker.TrackInteraction(j, TrackInput{
		CustomerID: "c1", Timestamp: t0.Add(3 * time.Hour), Message: "yes",
		LeadScore: 90, Intent: analysis.IntentPurchase, OrderStatus: orders.StatusCompleted,
		OrderTotal: 700, OrderedProducts: []string{"Lavender Oil"},
	})
	j = u.Journey
	assert.True(t, u.Converted)
	assert.Equal(t, StagePurchase, u.Stage)
	assert.Equal(t, []string{EventHighEngagement, EventPurchaseIntent, "order_completed", EventConversion}, eventTypes(u.Events))
	assert.Equal(t, StatusConverted, j.Status)
	assert.Equal(t, int64(3*time.Hour/time.Millisecond), j.Metrics.TimeToConversion)
	assert.Equal(t, 700.0, j.Metrics.ConversionValue)
	assert.Equal(t, 4, j.Metrics.TotalInteractions)
	assert.Equal(t, 52.5, j.Metrics.AverageLeadScore)
	assert.Equal(t, 90, j.Metrics.PeakLeadScore)
	assert.Equal(t, 5, j.StagesReached())
	assert.Equal(t, t0.Add(3*time.Hour), *j.Funnel[StagePurchase].Timestamp)
	assert.Equal(t, t0, *j.Funnel[StageAwareness].Timestamp)
	assert.Equal(t, 4, j.Funnel[StageAwareness].Interactions)

	u = tracker.TrackInteraction(j, TrackInput{
		CustomerID: "c1", Timestamp: t0.Add(4 * time.Hour), Message: "thanks",
		LeadScore: 20, Intent: analysis.IntentGeneral, OrderStatus: orders.StatusCompleted, OrderTotal: 900,
	})
	assert.False(t, u.Converted, "conversion is recorded once")
	assert.NotContains(t, eventTypes(u.Events), EventConversion)
	assert.Equal(t, 700.0, u.Journey.Metrics.ConversionValue)
	assert.Equal(t, StatusConverted, u.Journey.Status)
}

func TestBrowsingStatusIsNotAnOrder(t *testing.T) {
	u := NewTracker().TrackInteraction(nil, TrackInput{
		CustomerID: "c2", Timestamp: time.Now(), LeadScore: 20, Intent: analysis.IntentGeneral,
		OrderStatus: orders.StatusNurturing, Products: []catalog.Product{lavender},
	})
	assert.Equal(t, StageAwareness, u.Stage)
	assert.Empty(t, u.Journey.Products.Ordered)
	assert.Equal(t, []string{EventProductInterest}, eventTypes(u.Events))
}

func TestDetermineStage(t *testing.T) {
	tests := []struct {
		score  int
		intent analysis.Intent
		status orders.Status
		want   Stage
	}{
		{0, analysis.IntentGeneral, orders.StatusCompleted, StagePurchase},
		{0, analysis.IntentGeneral, orders.StatusConfirming, StageIntent},
		{0, analysis.IntentGeneral, orders.StatusInquiry, StageAwareness},
		{65, analysis.IntentGeneral, orders.StatusNone, StageConsideration},
		{0, analysis.IntentPriceInquiry, orders.StatusBrowsing, StageConsideration},
		{0, analysis.IntentGeneral, orders.StatusNurturing, StageAwareness},
		{30, analysis.IntentGeneral, orders.StatusBrowsing, StageInterest},
		{30, analysis.IntentGreeting, orders.StatusNone, StageInterest},
		{0, analysis.IntentProductInquiry, orders.StatusNone, StageInterest},
		{29, analysis.IntentGreeting, orders.StatusNone, StageAwareness},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetermineStage(tt.score, tt.intent, tt.status), "%d %s %s", tt.score, tt.intent, tt.status)
	}
}

func TestEngagementScore(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	j := NewJourney("c", now)
	j.Metrics.TotalInteractions = 2
	j.Metrics.AverageLeadScore = 50
	j.Products.Viewed = []string{"a", "b"}
	j.Products.Inquired = []string{"a"}
	// 10 + 15 + 6 + 7 + 8 (one stage) + 10 (recent)
	assert.Equal(t, 56, EngagementScore(j, now))
	// stale by more than a week loses the recency bonus
	assert.Equal(t, 46, EngagementScore(j, now.Add(8*24*time.Hour)))

	j.Metrics.TotalInteractions = 50
	j.Metrics.AverageLeadScore = 100
	j.Products.Ordered = []string{"a", "b", "c"}
	assert.Equal(t, 100, EngagementScore(j, now))
}

func TestFunnelNeverRegresses(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	statuses := []orders.Status{orders.StatusNone, orders.StatusBrowsing, orders.StatusNurturing, orders.StatusInquiry,
		orders.StatusCollectingInfo, orders.StatusConfirming, orders.StatusCompleted, orders.StatusCancelled}
	intents := []analysis.Intent{analysis.IntentGreeting, analysis.IntentProductInquiry, analysis.IntentPriceInquiry,
		analysis.IntentPurchase, analysis.IntentGeneral}
	tracker := NewTracker()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("reached stages and their timestamps are sticky", prop.ForAll(
		func(steps []int) bool {
			var j *Journey
			for i, v := range steps {
				prev := j.Clone()
				u := tracker.TrackInteraction(j, TrackInput{
					CustomerID:  "c",
					Timestamp:   t0.Add(time.Duration(i) * time.Minute),
					LeadScore:   v % 101,
					Intent:      intents[(v/7)%len(intents)],
					OrderStatus: statuses[(v/3)%len(statuses)],
					OrderTotal:  100,
				})
				j = u.Journey
				if j.Metrics.EngagementScore < 0 || j.Metrics.EngagementScore > 100 {
					return false
				}
				if prev == nil {
					continue
				}
				if prev.Converted() && !j.Converted() {
					return false
				}
				for _, s := range Stages {
					before, after := prev.Funnel[s], j.Funnel[s]
					if before.Reached && (!after.Reached || !after.Timestamp.Equal(*before.Timestamp)) {
						return false
					}
				}
				// a reached stage implies every earlier stage was reached
				for k := 1; k < len(Stages); k++ {
					if j.Funnel[Stages[k]].Reached && !j.Funnel[Stages[k-1]].Reached {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}
