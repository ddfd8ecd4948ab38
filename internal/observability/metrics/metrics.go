package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatcommerce"

// PipelineMetrics exposes counters/histograms for the per-message decision pipeline.
type PipelineMetrics struct {
	messagesTotal     *prometheus.CounterVec
	analyzerFallbacks *prometheus.CounterVec
	orderTransitions  *prometheus.CounterVec
	latency           *prometheus.HistogramVec
	leadScore         prometheus.Histogram
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "messages_total",
			Help:      "Processed inbound customer messages by outcome",
		}, []string{"outcome"}),
		analyzerFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "analyzer_fallback_total",
			Help:      "Analyses served by the rule fallback after the primary analyzer failed",
		}, []string{"reason"}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "order_transitions_total",
			Help:      "Order session state transitions",
		}, []string{"from", "to"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "process_seconds",
			Help:      "Latency of processing one customer message",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		leadScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "lead_score",
			Help:      "Distribution of per-message lead scores",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.analyzerFallbacks, m.orderTransitions, m.latency, m.leadScore)
	return m
}

// ObserveMessage records one processed message and its latency.
func (m *PipelineMetrics) ObserveMessage(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(outcome).Inc()
	m.latency.WithLabelValues(outcome).Observe(seconds)
}

func (m *PipelineMetrics) ObserveAnalyzerFallback(reason string) {
	if m == nil {
		return
	}
	m.analyzerFallbacks.WithLabelValues(reason).Inc()
}

func (m *PipelineMetrics) ObserveOrderTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

func (m *PipelineMetrics) ObserveLeadScore(score int) {
	if m == nil {
		return
	}
	m.leadScore.Observe(float64(score))
}

// MessengerMetrics exposes counters/histograms for the Messenger channel.
type MessengerMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewMessengerMetrics(reg prometheus.Registerer) *MessengerMetrics {
	m := &MessengerMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messenger",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound Messenger webhook events",
		}, []string{"event_type", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messenger",
			Name:      "outbound_total",
			Help:      "Total outbound Messenger sends",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messenger",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of Messenger webhook handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *MessengerMetrics) ObserveInbound(eventType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(eventType, status).Inc()
}

func (m *MessengerMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *MessengerMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

// HTTPMetrics records request counts and latency per route pattern.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *HTTPMetrics) ObserveRequest(method, route string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(method, route).Observe(seconds)
}
