package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/wolfman30/chat-commerce-agent/internal/conversation"
	"github.com/wolfman30/chat-commerce-agent/internal/conversion"
	"github.com/wolfman30/chat-commerce-agent/internal/orders"
	"github.com/wolfman30/chat-commerce-agent/internal/tagging"
)

// MemoryStore implements every repository in process memory. Values are
// copied on the way in and out.
type MemoryStore struct {
	mu            sync.RWMutex
	now           func() time.Time
	contexts      map[string]*conversation.Context
	sessions      map[string]*orders.Session
	active        map[string]string
	orders        map[string]*orders.Order
	sessionOrders map[string]string // session id -> order id
	journeys      map[string]*conversion.Journey
	tags          map[string]map[string]CustomerTag
	interactions  []InteractionRecord
}

var (
	_ ContextRepository   = (*MemoryStore)(nil)
	_ SessionRepository   = (*MemoryStore)(nil)
	_ JourneyRepository   = (*MemoryStore)(nil)
	_ OrderRepository     = (*MemoryStore)(nil)
	_ TagRepository       = (*MemoryStore)(nil)
	_ InteractionRecorder = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:           func() time.Time { return time.Now().UTC() },
		contexts:      make(map[string]*conversation.Context),
		sessions:      make(map[string]*orders.Session),
		active:        make(map[string]string),
		orders:        make(map[string]*orders.Order),
		sessionOrders: make(map[string]string),
		journeys:      make(map[string]*conversion.Journey),
		tags:          make(map[string]map[string]CustomerTag),
	}
}

func (m *MemoryStore) LoadContext(_ context.Context, customerID string) (*conversation.Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contexts[customerID]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (m *MemoryStore) SaveContext(_ context.Context, c *conversation.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[c.CustomerID] = c.Clone()
	return nil
}

func (m *MemoryStore) LoadActiveSession(_ context.Context, customerID string) (*orders.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.active[customerID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.sessions[id].Clone(), nil
}

func (m *MemoryStore) SaveSession(_ context.Context, s *orders.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	if s.Active() {
		m.active[s.CustomerID] = s.ID
	} else if m.active[s.CustomerID] == s.ID {
		delete(m.active, s.CustomerID)
	}
	return nil
}

// Session returns any stored session by id, open or closed.
func (m *MemoryStore) Session(id string) (*orders.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s.Clone(), ok
}

func (m *MemoryStore) SaveOrder(_ context.Context, o *orders.Order) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.sessionOrders[o.SessionID]; ok && o.SessionID != "" {
		return copyOrder(m.orders[id]), nil
	}
	m.orders[o.ID] = copyOrder(o)
	if o.SessionID != "" {
		m.sessionOrders[o.SessionID] = o.ID
	}
	return copyOrder(o), nil
}

func copyOrder(o *orders.Order) *orders.Order {
	cp := *o
	cp.Products = slices.Clone(o.Products)
	return &cp
}

func (m *MemoryStore) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOrder(o), nil
}

func (m *MemoryStore) LoadJourney(_ context.Context, customerID string) (*conversion.Journey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.journeys[customerID]
	if !ok {
		return nil, ErrNotFound
	}
	return j.Clone(), nil
}

func (m *MemoryStore) SaveJourney(_ context.Context, j *conversion.Journey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stored int64
	if cur, ok := m.journeys[j.CustomerID]; ok {
		stored = cur.Version
	}
	if stored != j.Version {
		return ErrConflict
	}
	j.Version++
	m.journeys[j.CustomerID] = j.Clone()
	return nil
}

func (m *MemoryStore) ListJourneys(_ context.Context) ([]*conversion.Journey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*conversion.Journey, 0, len(m.journeys))
	for _, j := range m.journeys {
		out = append(out, j.Clone())
	}
	slices.SortFunc(out, func(a, b *conversion.Journey) int { return cmp.Compare(a.CustomerID, b.CustomerID) })
	return out, nil
}

func (m *MemoryStore) SaveTags(_ context.Context, customerID string, tags []tagging.Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tags[customerID]
	if !ok {
		existing = make(map[string]CustomerTag)
		m.tags[customerID] = existing
	}
	upsertTags(existing, customerID, tags, m.now())
	return nil
}

func (m *MemoryStore) ListTags(_ context.Context, customerID string) ([]CustomerTag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CustomerTag, 0, len(m.tags[customerID]))
	for _, t := range m.tags[customerID] {
		out = append(out, t)
	}
	sortTags(out)
	return out, nil
}

func (m *MemoryStore) RecordInteraction(_ context.Context, rec InteractionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Tags = slices.Clone(rec.Tags)
	rec.Products = slices.Clone(rec.Products)
	m.interactions = append(m.interactions, rec)
	return nil
}

// Interactions returns the recorded interactions of a customer in order.
func (m *MemoryStore) Interactions(customerID string) []InteractionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []InteractionRecord
	for _, rec := range m.interactions {
		if rec.CustomerID == customerID {
			out = append(out, rec)
		}
	}
	return out
}

// sortTags orders by category then tag.
func sortTags(tags []CustomerTag) {
	slices.SortFunc(tags, func(a, b CustomerTag) int {
		return cmp.Or(cmp.Compare(a.Category, b.Category), cmp.Compare(a.Tag, b.Tag))
	})
}
