// Package pipeline runs one inbound customer message through analysis, lead
// scoring, the order flow, tagging and journey tracking, and decides the reply.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/chat-commerce-agent/internal/analysis"
	"github.com/wolfman30/chat-commerce-agent/internal/catalog"
	"github.com/wolfman30/chat-commerce-agent/internal/conversation"
	"github.com/wolfman30/chat-commerce-agent/internal/conversion"
	"github.com/wolfman30/chat-commerce-agent/internal/observability/metrics"
	"github.com/wolfman30/chat-commerce-agent/internal/orders"
	"github.com/wolfman30/chat-commerce-agent/internal/scoring"
	"github.com/wolfman30/chat-commerce-agent/internal/store"
	"github.com/wolfman30/chat-commerce-agent/internal/tagging"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

var (
	// ErrInvalidInput is returned for a blank customer id or message; no state is touched.
	ErrInvalidInput = errors.New("pipeline: invalid input")
	// ErrPersistence wraps any store failure that stopped a message midway.
	ErrPersistence = errors.New("pipeline: persistence failed")
)

const journeyWriteAttempts = 3

// Inbound is one customer message.
type Inbound struct {
	CustomerID   string `json:"customerId"`
	CustomerName string `json:"customerName,omitempty"`
	Text         string `json:"message"`
}

// Result is everything decided for one message. Response is always safe to
// send to the customer, including when ProcessMessage also returns an error.
type Result struct {
	Response          string                   `json:"response"`
	QuickReplies      []string                 `json:"quickReplies,omitempty"`
	Analysis          analysis.MessageAnalysis `json:"analysis"`
	LeadScore         int                      `json:"leadScore"`
	Urgency           scoring.Urgency          `json:"urgency"`
	Tags              []tagging.Tag            `json:"tags"`
	NextBestAction    string                   `json:"nextBestAction"`
	OrderStatus       orders.Status            `json:"orderStatus,omitempty"`
	OrderTotal        float64                  `json:"orderTotal,omitempty"`
	OrderNumber       string                   `json:"orderNumber,omitempty"`
	ConversationStage ConversationStage        `json:"conversationStage"`
	MentionedProducts []string                 `json:"mentionedProducts"`
	FunnelStage       conversion.Stage         `json:"funnelStage,omitempty"`
}

// OrderNotifier tells the seller about a completed order.
type OrderNotifier interface {
	NotifyOrder(ctx context.Context, o *orders.Order) error
}

// JourneyArchiver keeps a copy of a journey once it converts.
type JourneyArchiver interface {
	ArchiveJourney(ctx context.Context, j *conversion.Journey) error
}

// Repositories groups the stores the orchestrator reads and writes.
type Repositories struct {
	Contexts store.ContextRepository
	Sessions store.SessionRepository
	Journeys store.JourneyRepository
	Orders   store.OrderRepository
	Tags     store.TagRepository
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger *logging.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithPicker(p ResponsePicker) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.picker = p
		}
	}
}

// WithInteractionLog records every processed message; failures only log a warning.
func WithInteractionLog(r store.InteractionRecorder) Option {
	return func(o *Orchestrator) { o.interactions = r }
}

func WithNotifier(n OrderNotifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithJourneyArchiver(a JourneyArchiver) Option {
	return func(o *Orchestrator) { o.archiver = a }
}

// WithScorer, WithProcessor, WithTagger and WithTracker replace the
// default-table components.
func WithScorer(s *scoring.Scorer) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.scorer = s
		}
	}
}

func WithProcessor(p *orders.Processor) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.processor = p
		}
	}
}

func WithTagger(t *tagging.Tagger) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tagger = t
		}
	}
}

func WithTracker(t *conversion.Tracker) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracker = t
		}
	}
}

// Orchestrator processes messages. Messages of one customer are serialized;
// different customers run in parallel.
type Orchestrator struct {
	analyzer  analysis.Analyzer
	business  *catalog.BusinessConfig
	catalog   *catalog.Catalog
	repos     Repositories
	scorer    *scoring.Scorer
	processor *orders.Processor
	tagger    *tagging.Tagger
	tracker   *conversion.Tracker
	picker    ResponsePicker

	interactions store.InteractionRecorder
	notifier     OrderNotifier
	archiver     JourneyArchiver

	logger  *logging.Logger
	metrics *metrics.PipelineMetrics
	now     func() time.Time
	locks   *keyedMutex
}

// New builds an orchestrator. The analyzer, business config and every repository are required.
func New(analyzer analysis.Analyzer, business *catalog.BusinessConfig, repos Repositories, opts ...Option) *Orchestrator {
	if analyzer == nil {
		panic("pipeline: analyzer cannot be nil")
	}
	if business == nil {
		panic("pipeline: business config cannot be nil")
	}
	if repos.Contexts == nil || repos.Sessions == nil || repos.Journeys == nil || repos.Orders == nil || repos.Tags == nil {
		panic("pipeline: all repositories are required")
	}
	o := &Orchestrator{
		analyzer:  analyzer,
		business:  business,
		catalog:   business.Catalog(),
		repos:     repos,
		scorer:    scoring.NewScorer(nil),
		processor: orders.NewProcessor(nil),
		tagger:    tagging.NewTagger(),
		tracker:   conversion.NewTracker(),
		picker:    NewSeededPicker(uint64(time.Now().UnixNano())),
		logger:    logging.Default(),
		now:       func() time.Time { return time.Now().UTC() },
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessMessage handles one message. On a persistence failure the returned
// Result still carries a customer-safe reply and the error wraps ErrPersistence.
func (o *Orchestrator) ProcessMessage(ctx context.Context, in Inbound) (Result, error) {
	start := time.Now()
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	if in.CustomerID == "" || strings.TrimSpace(in.Text) == "" {
		o.metrics.ObserveMessage("invalid", time.Since(start).Seconds())
		return Result{}, fmt.Errorf("%w: customer id and message are required", ErrInvalidInput)
	}

	unlock := o.locks.Lock(in.CustomerID)
	defer unlock()

	res, err := o.process(ctx, in)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		o.logger.Error("message processing failed", "customer_id", in.CustomerID, "error", err)
	}
	o.metrics.ObserveMessage(outcome, time.Since(start).Seconds())
	return res, err
}

func (o *Orchestrator) process(ctx context.Context, in Inbound) (Result, error) {
	now := o.now()
	log := o.logger.With("customer_id", in.CustomerID)

	a, err := o.analyzer.Analyze(ctx, in.Text, o.business)
	if err != nil {
		return Result{Response: fallbackText}, fmt.Errorf("pipeline: analyze: %w", err)
	}
	res := Result{
		Analysis:          a,
		MentionedProducts: productNames(a.MentionedProducts),
	}

	prior, err := o.repos.Contexts.LoadContext(ctx, in.CustomerID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		prior = conversation.NewContext(in.CustomerID)
	case err != nil:
		return o.fail(res, fallbackText, "load context", err)
	}

	res.LeadScore = o.scorer.Score(in.Text, a, prior)
	res.Urgency = scoring.UrgencyFor(res.LeadScore, a)
	o.metrics.ObserveLeadScore(res.LeadScore)

	active, err := o.repos.Sessions.LoadActiveSession(ctx, in.CustomerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return o.fail(res, fallbackText, "load session", err)
	}
	out := o.processor.Handle(active, in.CustomerID, a, in.Text, res.LeadScore, o.business)
	// A session can confirm on a phone number alone; the profile name fills the order.
	if out.Order != nil && out.Order.CustomerName == "" {
		out.Order.CustomerName = in.CustomerName
	}

	if out.Order != nil {
		stored, err := o.repos.Orders.SaveOrder(ctx, out.Order)
		if err != nil {
			reply := orders.ReconfirmReply()
			res.QuickReplies = reply.QuickReplies
			res.OrderStatus = orders.StatusConfirming
			res.OrderTotal = out.Session.Total()
			return o.fail(res, reply.Text, "save order", fmt.Errorf("%w: %w", orders.ErrOrderCreation, err))
		}
		if stored.OrderNumber != out.Order.OrderNumber {
			// An earlier confirmation already wrote this session's order.
			log.Info("order already recorded", "order_number", stored.OrderNumber, "session_id", out.Session.ID)
			out.Order = stored
			out.Reply = orders.SuccessReply(stored, o.business)
		} else {
			log.Info("order created", "order_number", out.Order.OrderNumber, "session_id", out.Session.ID, "total", out.Order.TotalAmount)
		}
	}
	if out.Session != nil {
		if err := o.repos.Sessions.SaveSession(ctx, out.Session); err != nil {
			handoff := orders.HandoffReply()
			return o.fail(res, handoff.Text, "save session", err)
		}
		from := string(out.From)
		if from == "" {
			from = "none"
		}
		o.metrics.ObserveOrderTransition(from, string(out.Session.State))
		res.OrderTotal = out.Session.Total()
	}
	res.OrderStatus = out.Status
	if out.Order != nil {
		res.OrderNumber = out.Order.OrderNumber
		res.OrderTotal = out.Order.TotalAmount
	}

	if out.Reply.Text != "" {
		res.Response = out.Reply.Text
		res.QuickReplies = out.Reply.QuickReplies
	} else {
		res.Response = o.generatedReply(in.Text, a, prior)
	}
	res.ConversationStage = stageOf(prior, a, res.LeadScore, out.Status)

	res.Tags = o.tagger.Tag(tagging.Input{
		Analysis:    a,
		OrderStatus: out.Status,
		LeadScore:   res.LeadScore,
		Context:     prior,
		Products:    a.MentionedProducts,
	})
	res.NextBestAction = tagging.NextBestAction(res.Tags)
	if err := o.repos.Tags.SaveTags(ctx, in.CustomerID, res.Tags); err != nil {
		return o.fail(res, fallbackText, "save tags", err)
	}

	next := prior.Clone()
	next.Record(now, res.LeadScore, out.Status == orders.StatusCompleted, topics(a)...)
	if err := o.repos.Contexts.SaveContext(ctx, next); err != nil {
		return o.fail(res, fallbackText, "save context", err)
	}

	track := conversion.TrackInput{
		CustomerID:  in.CustomerID,
		Timestamp:   now,
		Message:     in.Text,
		Response:    res.Response,
		LeadScore:   res.LeadScore,
		Intent:      a.Intent,
		OrderStatus: out.Status,
		OrderTotal:  res.OrderTotal,
		Products:    a.MentionedProducts,
		Tags:        res.Tags,
	}
	if out.Session != nil {
		track.OrderedProducts = out.Session.ProductNames()
	}
	update, err := o.trackJourney(ctx, track)
	if err != nil {
		return o.fail(res, fallbackText, "save journey", err)
	}
	res.FunnelStage = update.Stage

	o.afterCommit(ctx, log, in, res, out, update)
	return res, nil
}

// trackJourney applies the message to the stored journey. A version conflict
// means another writer got there first, so the journey is reloaded and the
// message applied again.
func (o *Orchestrator) trackJourney(ctx context.Context, in conversion.TrackInput) (conversion.Update, error) {
	var lastErr error
	for attempt := 0; attempt < journeyWriteAttempts; attempt++ {
		current, err := o.repos.Journeys.LoadJourney(ctx, in.CustomerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return conversion.Update{}, err
		}
		update := o.tracker.TrackInteraction(current, in)
		err = o.repos.Journeys.SaveJourney(ctx, update.Journey)
		if err == nil {
			return update, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return conversion.Update{}, err
		}
		lastErr = err
	}
	return conversion.Update{}, lastErr
}

// afterCommit runs the best-effort side effects once every write succeeded.
func (o *Orchestrator) afterCommit(ctx context.Context, log *logging.Logger, in Inbound, res Result, out orders.Outcome, update conversion.Update) {
	if o.interactions != nil {
		rec := store.InteractionRecord{
			ID:          uuid.New().String(),
			CustomerID:  in.CustomerID,
			Message:     in.Text,
			Response:    res.Response,
			Intent:      string(res.Analysis.Intent),
			LeadScore:   res.LeadScore,
			OrderStatus: string(res.OrderStatus),
			Tags:        tagValues(res.Tags),
			Products:    res.MentionedProducts,
			CreatedAt:   o.now(),
		}
		if err := o.interactions.RecordInteraction(ctx, rec); err != nil {
			log.Warn("failed to record interaction", "error", err)
		}
	}
	if out.Order != nil && o.notifier != nil {
		if err := o.notifier.NotifyOrder(ctx, out.Order); err != nil {
			log.Warn("failed to notify seller", "order_number", out.Order.OrderNumber, "error", err)
		}
	}
	if update.Converted {
		log.Info("customer converted", "conversion_value", update.Journey.Metrics.ConversionValue)
		if o.archiver != nil {
			if err := o.archiver.ArchiveJourney(ctx, update.Journey); err != nil {
				log.Warn("failed to archive journey", "error", err)
			}
		}
	}
}

func (o *Orchestrator) fail(res Result, reply, step string, err error) (Result, error) {
	res.Response = reply
	return res, fmt.Errorf("%w: %s: %w", ErrPersistence, step, err)
}

// topics are the intent plus the categories of mentioned products.
func topics(a analysis.MessageAnalysis) []string {
	out := []string{string(a.Intent)}
	for _, p := range a.MentionedProducts {
		out = append(out, strings.ToLower(p.Category))
	}
	return out
}

func productNames(products []catalog.Product) []string {
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	return names
}

func tagValues(tags []tagging.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Value)
	}
	return out
}
