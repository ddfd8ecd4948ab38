// Package conversion tracks each customer's journey through the sales funnel
// and aggregates journeys into analytics reports.
package conversion

import (
	"slices"
	"time"
)

// Stage is a funnel stage.
type Stage string

const (
	StageAwareness     Stage = "awareness"
	StageInterest      Stage = "interest"
	StageConsideration Stage = "consideration"
	StageIntent        Stage = "intent"
	StagePurchase      Stage = "purchase"
)

// Stages lists the funnel in order.
var Stages = []Stage{StageAwareness, StageInterest, StageConsideration, StageIntent, StagePurchase}

// Index is the position of the stage in the funnel, or -1.
func (s Stage) Index() int {
	return slices.Index(Stages, s)
}

// Status is the journey outcome. Converted is one-way.
type Status string

const (
	StatusActive    Status = "active"
	StatusConverted Status = "converted"
)

// Event types recorded on a journey. Order events are "order_<status>".
const (
	EventProductInterest = "product_interest"
	EventHighEngagement  = "high_engagement"
	EventPurchaseIntent  = "purchase_intent"
	EventConversion      = "conversion"
)

// Interaction is one processed message in the journey log.
type Interaction struct {
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"message"`
	Response    string    `json:"response"`
	LeadScore   int       `json:"leadScore"`
	Intent      string    `json:"intent"`
	OrderStatus string    `json:"orderStatus,omitempty"`
	Products    []string  `json:"products"`
}

// ScorePoint is one entry of the lead score history.
type ScorePoint struct {
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
	Change    int       `json:"change"`
}

// FunnelMark records when a stage was first reached and how many messages
// touched it since.
type FunnelMark struct {
	Reached      bool       `json:"reached"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	Interactions int        `json:"interactions"`
}

// ProductSets holds product names in first-seen order without duplicates.
type ProductSets struct {
	Viewed   []string `json:"viewed"`
	Inquired []string `json:"inquired"`
	Ordered  []string `json:"ordered"`
}

// Event is a notable moment in the journey.
type Event struct {
	Type             string    `json:"type"`
	Timestamp        time.Time `json:"timestamp"`
	Products         []string  `json:"products,omitempty"`
	LeadScore        int       `json:"leadScore,omitempty"`
	Intent           string    `json:"intent,omitempty"`
	OrderStatus      string    `json:"orderStatus,omitempty"`
	TimeToConversion int64     `json:"timeToConversionMs,omitempty"`
	Interactions     int       `json:"totalInteractions,omitempty"`
}

// Metrics are derived aggregates, recomputed on every interaction.
type Metrics struct {
	TotalInteractions int     `json:"totalInteractions"`
	AverageLeadScore  float64 `json:"averageLeadScore"`
	PeakLeadScore     int     `json:"peakLeadScore"`
	EngagementScore   int     `json:"engagementScore"`
	// TimeToConversion is in milliseconds; zero until converted.
	TimeToConversion int64   `json:"timeToConversionMs"`
	ConversionValue  float64 `json:"conversionValue"`
}

// Journey is the long-lived funnel record of one customer.
type Journey struct {
	CustomerID       string               `json:"customerId"`
	StartDate        time.Time            `json:"startDate"`
	CurrentStage     Stage                `json:"currentStage"`
	Status           Status               `json:"status"`
	LastInteraction  time.Time            `json:"lastInteraction"`
	Interactions     []Interaction        `json:"interactions"`
	LeadScoreHistory []ScorePoint         `json:"leadScoreHistory"`
	Funnel           map[Stage]FunnelMark `json:"funnel"`
	Products         ProductSets          `json:"products"`
	Tags             []string             `json:"tags"`
	Events           []Event              `json:"conversionEvents"`
	Metrics          Metrics              `json:"metrics"`
	// Version increases on every save; stores use it for optimistic writes.
	Version int64 `json:"version"`
}

// NewJourney starts a journey with awareness already reached.
func NewJourney(customerID string, now time.Time) *Journey {
	j := &Journey{
		CustomerID:       customerID,
		StartDate:        now,
		CurrentStage:     StageAwareness,
		Status:           StatusActive,
		LastInteraction:  now,
		Interactions:     []Interaction{},
		LeadScoreHistory: []ScorePoint{},
		Funnel:           make(map[Stage]FunnelMark, len(Stages)),
		Products:         ProductSets{Viewed: []string{}, Inquired: []string{}, Ordered: []string{}},
		Tags:             []string{},
		Events:           []Event{},
	}
	for _, s := range Stages {
		j.Funnel[s] = FunnelMark{}
	}
	reached := now
	j.Funnel[StageAwareness] = FunnelMark{Reached: true, Timestamp: &reached}
	return j
}

// StagesReached counts funnel stages marked reached.
func (j *Journey) StagesReached() int {
	n := 0
	for _, s := range Stages {
		if j.Funnel[s].Reached {
			n++
		}
	}
	return n
}

// Converted reports whether the journey ended in a purchase.
func (j *Journey) Converted() bool {
	return j.Status == StatusConverted
}

// Clone returns a deep copy.
func (j *Journey) Clone() *Journey {
	if j == nil {
		return nil
	}
	out := *j
	out.Interactions = make([]Interaction, len(j.Interactions))
	for i, in := range j.Interactions {
		in.Products = slices.Clone(in.Products)
		out.Interactions[i] = in
	}
	out.LeadScoreHistory = slices.Clone(j.LeadScoreHistory)
	out.Funnel = make(map[Stage]FunnelMark, len(j.Funnel))
	for s, m := range j.Funnel {
		if m.Timestamp != nil {
			ts := *m.Timestamp
			m.Timestamp = &ts
		}
		out.Funnel[s] = m
	}
	out.Products = ProductSets{
		Viewed:   slices.Clone(j.Products.Viewed),
		Inquired: slices.Clone(j.Products.Inquired),
		Ordered:  slices.Clone(j.Products.Ordered),
	}
	out.Tags = slices.Clone(j.Tags)
	out.Events = make([]Event, len(j.Events))
	for i, e := range j.Events {
		e.Products = slices.Clone(e.Products)
		out.Events[i] = e
	}
	return &out
}

func addUnique(set []string, values ...string) []string {
	for _, v := range values {
		if v != "" && !slices.Contains(set, v) {
			set = append(set, v)
		}
	}
	return set
}
