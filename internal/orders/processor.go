package orders

import (
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/chat-commerce-agent/internal/analysis"
	"github.com/wolfman30/chat-commerce-agent/internal/catalog"
	"github.com/wolfman30/chat-commerce-agent/internal/rules"
)

// Action is the advisory next step derived from order-intent confidence.
type Action string

const (
	ActionProcessOrder    Action = "process_order"
	ActionCollectDetails  Action = "collect_details"
	ActionQualifyInterest Action = "qualify_interest"
	ActionNurtureLead     Action = "nurture_lead"
)

// Intent is the result of order-intent detection.
type Intent struct {
	HasIntent  bool    `json:"hasIntent"`
	Confidence float64 `json:"confidence"`
	Action     Action  `json:"action"`
}

// Outcome is the result of one message through the order flow. Session is nil
// when no session exists; Order is set only when the message completed one.
// From is the session state before the message and is empty for a new session.
type Outcome struct {
	Session *Session `json:"session,omitempty"`
	Order   *Order   `json:"order,omitempty"`
	Reply   Reply    `json:"reply"`
	Status  Status   `json:"status"`
	From    State    `json:"from,omitempty"`
	Created bool     `json:"created"`
	Missing []string `json:"missing,omitempty"`
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// WithRand sets the source used for order number suffixes.
func WithRand(rng *rand.Rand) Option {
	return func(p *Processor) {
		if rng != nil {
			p.rng = rng
		}
	}
}

// Processor holds the order keyword tables. Its methods never touch storage;
// the caller persists the returned session and order.
type Processor struct {
	rules *rules.RuleSet
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewProcessor builds a processor; nil rules select the defaults.
func NewProcessor(rs *rules.RuleSet, opts ...Option) *Processor {
	if rs == nil {
		rs = rules.Default()
	}
	p := &Processor{
		rules: rs,
		now:   time.Now,
		rng:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DetectIntent gates session creation: an order intent plus either a strong
// buying signal or a mentioned product. Confidence is advisory only.
func (p *Processor) DetectIntent(a analysis.MessageAnalysis, message string, leadScore int) Intent {
	tables := p.rules.Orders
	orderIntent := slices.Contains(tables.OrderIntents, string(a.Intent))
	strong := rules.AnyPhrase(strings.ToLower(message), tables.StrongSignals) ||
		slices.ContainsFunc(a.BuyingSignals, func(s analysis.BuyingSignal) bool {
			return slices.Contains(tables.StrongSignals, strings.ToLower(s.Keyword))
		})

	confidence := float64(leadScore) * 0.01
	if len(a.MentionedProducts) > 0 {
		confidence += 0.3
	}
	if !a.ContactInfo.Empty() {
		confidence += 0.4
	}
	if !a.OrderDetails.Empty() {
		confidence += 0.5
	}
	confidence = min(confidence, 1.0)

	return Intent{
		HasIntent:  orderIntent && (strong || len(a.MentionedProducts) > 0),
		Confidence: confidence,
		Action:     actionFor(confidence),
	}
}

func actionFor(confidence float64) Action {
	switch {
	case confidence >= 0.8:
		return ActionProcessOrder
	case confidence >= 0.6:
		return ActionCollectDetails
	case confidence >= 0.4:
		return ActionQualifyInterest
	default:
		return ActionNurtureLead
	}
}

// Start creates an Inquiry session seeded with the mentioned products.
func (p *Processor) Start(customerID string, a analysis.MessageAnalysis, now time.Time) *Session {
	s := &Session{
		ID:         SessionID(customerID, now),
		CustomerID: customerID,
		State:      StateInquiry,
		Products:   []LineItem{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	qty := 1
	if a.OrderDetails != nil && a.OrderDetails.Quantity > 0 {
		qty = a.OrderDetails.Quantity
	}
	s.addProducts(a.MentionedProducts, qty)
	return s
}

// Handle runs one message through the order flow for a customer whose active
// session (possibly nil) was loaded by the caller.
func (p *Processor) Handle(active *Session, customerID string, a analysis.MessageAnalysis, message string, leadScore int, biz *catalog.BusinessConfig) Outcome {
	if active.Active() {
		return p.Advance(active, a, message, biz)
	}
	if p.DetectIntent(a, message, leadScore).HasIntent {
		out := p.Advance(p.Start(customerID, a, p.now()), a, message, biz)
		out.Created = true
		out.From = ""
		return out
	}
	return p.Nurture(a)
}

// Nurture answers a customer without an active session. The reply is empty when
// the message carried neither a product nor an order intent, leaving the
// answer to the general responder.
func (p *Processor) Nurture(a analysis.MessageAnalysis) Outcome {
	if len(a.MentionedProducts) > 0 {
		return Outcome{Reply: nurtureReply(a.MentionedProducts[0]), Status: StatusNurturing}
	}
	out := Outcome{Status: StatusBrowsing}
	if slices.Contains(p.rules.Orders.OrderIntents, string(a.Intent)) {
		out.Reply = browsingReply()
	}
	return out
}

// Advance applies one message to an active session. The input session is not
// modified; the returned Outcome carries the next version.
func (p *Processor) Advance(current *Session, a analysis.MessageAnalysis, message string, biz *catalog.BusinessConfig) Outcome {
	s := current.Clone()
	from := s.State
	now := p.now()

	var out Outcome
	switch s.State {
	case StateCollectingInfo:
		out = p.collectingInfo(s, a)
	case StateConfirming:
		out = p.confirming(s, message, biz, now)
	default:
		out = p.inquiry(s, a, biz)
	}
	out.From = from
	if out.Session.State != from {
		out.Session.UpdatedAt = now
	}
	out.Status = Status(out.Session.State)
	return out
}

func (p *Processor) inquiry(s *Session, a analysis.MessageAnalysis, biz *catalog.BusinessConfig) Outcome {
	if s.State != StateInquiry {
		// A stored Processing session never survives a write; treat it as a fresh inquiry.
		s.State = StateInquiry
	}
	s.addProducts(a.MentionedProducts, quantityOf(a))
	s.merge(a)

	hasProducts := len(s.Products) > 0
	hasContact := s.CustomerInfo.Name != "" || s.CustomerInfo.Phone != ""
	switch {
	case hasProducts && hasContact:
		s.State = StateConfirming
		return Outcome{Session: s, Reply: confirmationReply(s)}
	case hasProducts:
		s.State = StateCollectingInfo
		return Outcome{Session: s, Reply: contactRequestReply(s)}
	default:
		return Outcome{Session: s, Reply: productSelectionReply(biz)}
	}
}

func (p *Processor) collectingInfo(s *Session, a analysis.MessageAnalysis) Outcome {
	s.merge(a)
	missing := missingFields(s)
	if len(missing) == 0 {
		s.State = StateConfirming
		return Outcome{Session: s, Reply: confirmationReply(s)}
	}
	return Outcome{Session: s, Reply: missingInfoReply(missing), Missing: missing}
}

func (p *Processor) confirming(s *Session, message string, biz *catalog.BusinessConfig, now time.Time) Outcome {
	lower := strings.ToLower(message)
	switch {
	case rules.AnyPhrase(lower, p.rules.Orders.Confirm):
		// Processing is transient: the order is built in the same step.
		s.State = StateProcessing
		p.mu.Lock()
		order := newOrder(s, now, p.rng)
		p.mu.Unlock()
		s.State = StateCompleted
		return Outcome{Session: s, Order: order, Reply: SuccessReply(order, biz)}
	case rules.AnyPhrase(lower, p.rules.Orders.Cancel):
		s.State = StateCancelled
		return Outcome{Session: s, Reply: cancellationReply()}
	default:
		return Outcome{Session: s, Reply: clarificationReply(s)}
	}
}

func quantityOf(a analysis.MessageAnalysis) int {
	if a.OrderDetails != nil && a.OrderDetails.Quantity > 0 {
		return a.OrderDetails.Quantity
	}
	return 1
}
