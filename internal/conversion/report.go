package conversion

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"
)

// Timeframe selects how far back a report looks, by journey start date.
type Timeframe string

const (
	Timeframe7d  Timeframe = "7d"
	Timeframe30d Timeframe = "30d"
	Timeframe90d Timeframe = "90d"
)

// ParseTimeframe accepts 7d, 30d and 90d; anything else means 30d.
func ParseTimeframe(s string) Timeframe {
	switch tf := Timeframe(s); tf {
	case Timeframe7d, Timeframe30d, Timeframe90d:
		return tf
	default:
		return Timeframe30d
	}
}

// Days is the length of the timeframe.
func (tf Timeframe) Days() int {
	switch tf {
	case Timeframe7d:
		return 7
	case Timeframe90d:
		return 90
	default:
		return 30
	}
}

// Report thresholds.
const (
	dropoffAlertPct          = 50.0
	lowConversionRatePct     = 5.0
	lowProductConversionPct  = 2.0
	minProductViews          = 5
	lowEngagementScore       = 30
	lowEngagementShare       = 0.3
	highValueEngagement      = 80
	mediumValueEngagement    = 50
	fastConversionMillis     = int64(24 * time.Hour / time.Millisecond)
	millisPerHour            = float64(time.Hour / time.Millisecond)
	recentInteractionsWindow = time.Hour
)

// Summary is the headline of a report.
type Summary struct {
	TotalCustomers          int     `json:"totalCustomers"`
	TotalConversions        int     `json:"totalConversions"`
	ConversionRate          float64 `json:"conversionRate"`
	AverageTimeToConversion float64 `json:"averageTimeToConversionHours"`
	TotalRevenue            float64 `json:"totalRevenue"`
	AverageEngagementScore  float64 `json:"averageEngagementScore"`
}

// FunnelStat counts journeys that reached a stage and the share lost before the next.
type FunnelStat struct {
	Stage   Stage   `json:"stage"`
	Count   int     `json:"count"`
	Dropoff float64 `json:"dropoff"`
}

// ValueDistribution summarizes conversion values.
type ValueDistribution struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Median  float64 `json:"median"`
	Average float64 `json:"average"`
}

// ConversionStats describes converted journeys.
type ConversionStats struct {
	Total                   int               `json:"total"`
	Rate                    float64           `json:"rate"`
	AverageTimeToConversion float64           `json:"averageTimeToConversionHours"`
	AverageInteractions     float64           `json:"averageInteractionsToConversion"`
	ValueDistribution       ValueDistribution `json:"valueDistribution"`
}

// ProductStat is the funnel performance of one product.
type ProductStat struct {
	Product        string  `json:"product"`
	Views          int     `json:"views"`
	Inquiries      int     `json:"inquiries"`
	Orders         int     `json:"orders"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversionRate"`
	InquiryRate    float64 `json:"inquiryRate"`
}

// Segments buckets journeys by engagement, conversion speed and browsing breadth.
type Segments struct {
	HighValue      int `json:"highValue"`
	MediumValue    int `json:"mediumValue"`
	LowValue       int `json:"lowValue"`
	FastConverters int `json:"fastConverters"`
	SlowConverters int `json:"slowConverters"`
	MultiProduct   int `json:"multiProduct"`
	SingleProduct  int `json:"singleProduct"`
}

// DailyTrend aggregates one UTC day.
type DailyTrend struct {
	Date              string  `json:"date"`
	NewCustomers      int     `json:"newCustomers"`
	Conversions       int     `json:"conversions"`
	TotalInteractions int     `json:"totalInteractions"`
	AverageLeadScore  float64 `json:"averageLeadScore"`
}

// Realtime covers every journey regardless of timeframe.
type Realtime struct {
	TotalCustomers       int     `json:"totalCustomers"`
	ActiveCustomers      int     `json:"activeCustomers"`
	ActiveToday          int     `json:"activeToday"`
	InteractionsLastHour int     `json:"interactionsLastHour"`
	TotalConversions     int     `json:"totalConversions"`
	ConversionRate       float64 `json:"conversionRate"`
	AverageEngagement    float64 `json:"averageEngagement"`
}

// Recommendation is an advisory finding of a report.
type Recommendation struct {
	Type       string `json:"type"`
	Priority   string `json:"priority"`
	Stage      Stage  `json:"stage,omitempty"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
}

// Report is the analytics snapshot over a timeframe.
type Report struct {
	Timeframe       Timeframe        `json:"timeframe"`
	StartDate       time.Time        `json:"startDate"`
	EndDate         time.Time        `json:"endDate"`
	Summary         Summary          `json:"summary"`
	Funnel          []FunnelStat     `json:"funnel"`
	Conversions     ConversionStats  `json:"conversions"`
	Products        []ProductStat    `json:"products"`
	Segments        Segments         `json:"segments"`
	Trends          []DailyTrend     `json:"trends"`
	Realtime        Realtime         `json:"realtime"`
	Recommendations []Recommendation `json:"recommendations"`
}

// BuildReport aggregates journeys that started within the timeframe ending at now.
func BuildReport(all []*Journey, tf Timeframe, now time.Time) Report {
	start := now.AddDate(0, 0, -tf.Days())
	var journeys []*Journey
	for _, j := range all {
		if j != nil && !j.StartDate.Before(start) {
			journeys = append(journeys, j)
		}
	}

	var converted []*Journey
	for _, j := range journeys {
		if j.Converted() {
			converted = append(converted, j)
		}
	}

	funnel := funnelStats(journeys)
	conversions := conversionStats(journeys, converted)
	products := productStats(journeys)

	r := Report{
		Timeframe: tf,
		StartDate: start,
		EndDate:   now,
		Summary: Summary{
			TotalCustomers:          len(journeys),
			TotalConversions:        len(converted),
			ConversionRate:          conversions.Rate,
			AverageTimeToConversion: conversions.AverageTimeToConversion,
			TotalRevenue:            totalRevenue(converted),
			AverageEngagementScore:  averageEngagement(journeys, 1),
		},
		Funnel:      funnel,
		Conversions: conversions,
		Products:    products,
		Segments:    segments(journeys),
		Trends:      trends(journeys, start, now),
		Realtime:    realtime(all, now),
	}
	r.Recommendations = recommendations(journeys, funnel, conversions, products)
	return r
}

func funnelStats(journeys []*Journey) []FunnelStat {
	stats := make([]FunnelStat, len(Stages))
	for i, s := range Stages {
		stats[i].Stage = s
		for _, j := range journeys {
			if j.Funnel[s].Reached {
				stats[i].Count++
			}
		}
	}
	for i := 0; i < len(stats)-1; i++ {
		if stats[i].Count > 0 {
			stats[i].Dropoff = round(float64(stats[i].Count-stats[i+1].Count)/float64(stats[i].Count)*100, 2)
		}
	}
	return stats
}

func conversionStats(journeys, converted []*Journey) ConversionStats {
	cs := ConversionStats{Total: len(converted), AverageTimeToConversion: averageHoursToConversion(converted)}
	if len(journeys) > 0 {
		cs.Rate = round(float64(len(converted))/float64(len(journeys))*100, 2)
	}
	if len(converted) > 0 {
		var interactions int
		for _, j := range converted {
			interactions += j.Metrics.TotalInteractions
		}
		cs.AverageInteractions = round(float64(interactions)/float64(len(converted)), 1)
	}

	values := make([]float64, 0, len(converted))
	for _, j := range converted {
		values = append(values, j.Metrics.ConversionValue)
	}
	slices.Sort(values)
	if n := len(values); n > 0 {
		var sum float64
		for _, v := range values {
			sum += v
		}
		cs.ValueDistribution = ValueDistribution{
			Min:     values[0],
			Max:     values[n-1],
			Median:  values[n/2],
			Average: round(sum/float64(n), 2),
		}
	}
	return cs
}

func averageHoursToConversion(journeys []*Journey) float64 {
	var total int64
	var n int
	for _, j := range journeys {
		if j.Converted() && j.Metrics.TimeToConversion > 0 {
			total += j.Metrics.TimeToConversion
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Round(float64(total) / float64(n) / millisPerHour)
}

func totalRevenue(converted []*Journey) float64 {
	var sum float64
	for _, j := range converted {
		sum += j.Metrics.ConversionValue
	}
	return sum
}

func averageEngagement(journeys []*Journey, places int) float64 {
	if len(journeys) == 0 {
		return 0
	}
	var sum int
	for _, j := range journeys {
		sum += j.Metrics.EngagementScore
	}
	return round(float64(sum)/float64(len(journeys)), places)
}

func productStats(journeys []*Journey) []ProductStat {
	byName := make(map[string]*ProductStat)
	for _, j := range journeys {
		for _, name := range j.Products.Viewed {
			st, ok := byName[name]
			if !ok {
				st = &ProductStat{Product: name}
				byName[name] = st
			}
			st.Views++
		}
		for _, name := range j.Products.Inquired {
			if st, ok := byName[name]; ok {
				st.Inquiries++
			}
		}
		for _, name := range j.Products.Ordered {
			if st, ok := byName[name]; ok {
				st.Orders++
				if j.Converted() {
					st.Conversions++
				}
			}
		}
	}

	out := make([]ProductStat, 0, len(byName))
	for _, st := range byName {
		if st.Views > 0 {
			st.ConversionRate = round(float64(st.Conversions)/float64(st.Views)*100, 2)
			st.InquiryRate = round(float64(st.Inquiries)/float64(st.Views)*100, 2)
		}
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b ProductStat) int {
		return cmp.Or(
			cmp.Compare(b.Conversions, a.Conversions),
			cmp.Compare(b.Views, a.Views),
			cmp.Compare(a.Product, b.Product),
		)
	})
	return out
}

func segments(journeys []*Journey) Segments {
	var s Segments
	for _, j := range journeys {
		switch e := j.Metrics.EngagementScore; {
		case e >= highValueEngagement:
			s.HighValue++
		case e >= mediumValueEngagement:
			s.MediumValue++
		default:
			s.LowValue++
		}
		if j.Converted() {
			if j.Metrics.TimeToConversion <= fastConversionMillis {
				s.FastConverters++
			} else {
				s.SlowConverters++
			}
		}
		switch n := len(j.Products.Viewed); {
		case n > 1:
			s.MultiProduct++
		case n == 1:
			s.SingleProduct++
		}
	}
	return s
}

func dayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func trends(journeys []*Journey, start, end time.Time) []DailyTrend {
	var days []DailyTrend
	index := make(map[string]int)
	for d := start.UTC(); !d.After(end.UTC()); d = d.AddDate(0, 0, 1) {
		index[dayKey(d)] = len(days)
		days = append(days, DailyTrend{Date: dayKey(d)})
	}
	if last := dayKey(end); len(days) > 0 && days[len(days)-1].Date != last {
		index[last] = len(days)
		days = append(days, DailyTrend{Date: last})
	}

	scores := make([]int, len(days))
	for _, j := range journeys {
		if i, ok := index[dayKey(j.StartDate)]; ok {
			days[i].NewCustomers++
		}
		if mark := j.Funnel[StagePurchase]; j.Converted() && mark.Timestamp != nil {
			if i, ok := index[dayKey(*mark.Timestamp)]; ok {
				days[i].Conversions++
			}
		}
		for _, in := range j.Interactions {
			if i, ok := index[dayKey(in.Timestamp)]; ok {
				days[i].TotalInteractions++
				scores[i] += in.LeadScore
			}
		}
	}
	for i := range days {
		if days[i].TotalInteractions > 0 {
			days[i].AverageLeadScore = round(float64(scores[i])/float64(days[i].TotalInteractions), 1)
		}
	}
	return days
}

func realtime(all []*Journey, now time.Time) Realtime {
	var rt Realtime
	today := dayKey(now)
	var engagement int
	for _, j := range all {
		if j == nil {
			continue
		}
		rt.TotalCustomers++
		engagement += j.Metrics.EngagementScore
		if j.Converted() {
			rt.TotalConversions++
		} else {
			rt.ActiveCustomers++
		}
		if dayKey(j.LastInteraction) == today {
			rt.ActiveToday++
		}
		for _, in := range j.Interactions {
			if age := now.Sub(in.Timestamp); age >= 0 && age <= recentInteractionsWindow {
				rt.InteractionsLastHour++
			}
		}
	}
	if rt.TotalCustomers > 0 {
		rt.ConversionRate = round(float64(rt.TotalConversions)/float64(rt.TotalCustomers)*100, 2)
		rt.AverageEngagement = round(float64(engagement)/float64(rt.TotalCustomers), 1)
	}
	return rt
}

func recommendations(journeys []*Journey, funnel []FunnelStat, cs ConversionStats, products []ProductStat) []Recommendation {
	recs := []Recommendation{}

	var worst *FunnelStat
	for i := range funnel {
		if funnel[i].Stage == StagePurchase {
			continue
		}
		if worst == nil || funnel[i].Dropoff > worst.Dropoff {
			worst = &funnel[i]
		}
	}
	if worst != nil && worst.Dropoff > dropoffAlertPct {
		recs = append(recs, Recommendation{
			Type:       "funnel_optimization",
			Priority:   "high",
			Stage:      worst.Stage,
			Issue:      fmt.Sprintf("High dropoff rate of %.2f%% at %s stage", worst.Dropoff, worst.Stage),
			Suggestion: fmt.Sprintf("Focus on improving messaging and engagement strategies for customers in the %s stage", worst.Stage),
		})
	}

	if cs.Rate < lowConversionRatePct {
		recs = append(recs, Recommendation{
			Type:       "conversion_optimization",
			Priority:   "high",
			Issue:      fmt.Sprintf("Low conversion rate of %.2f%%", cs.Rate),
			Suggestion: "Implement more aggressive follow-up strategies and personalized offers for high-scoring leads",
		})
	}

	var weak int
	for _, p := range products {
		if p.ConversionRate < lowProductConversionPct && p.Views > minProductViews {
			weak++
		}
	}
	if weak > 0 {
		recs = append(recs, Recommendation{
			Type:       "product_optimization",
			Priority:   "medium",
			Issue:      fmt.Sprintf("%d products have low conversion rates", weak),
			Suggestion: "Review pricing, descriptions, and marketing strategies for underperforming products",
		})
	}

	var low int
	for _, j := range journeys {
		if j.Metrics.EngagementScore < lowEngagementScore {
			low++
		}
	}
	if float64(low) > float64(len(journeys))*lowEngagementShare {
		recs = append(recs, Recommendation{
			Type:       "engagement_optimization",
			Priority:   "medium",
			Issue:      fmt.Sprintf("%d customers have low engagement scores", low),
			Suggestion: "Implement more interactive content and personalized messaging to increase engagement",
		})
	}
	return recs
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
