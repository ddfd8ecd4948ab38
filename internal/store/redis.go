package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/chat-commerce-agent/internal/conversation"
	"github.com/wolfman30/chat-commerce-agent/internal/conversion"
	"github.com/wolfman30/chat-commerce-agent/internal/orders"
	"github.com/wolfman30/chat-commerce-agent/internal/tagging"
)

// sessionTTL bounds how long a closed session stays readable by id.
const sessionTTL = 30 * 24 * time.Hour

const journeyIndexKey = "journeys"

// RedisStore keeps contexts, sessions, journeys and tags in Redis as JSON.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	now    func() time.Time
}

var (
	_ ContextRepository = (*RedisStore)(nil)
	_ SessionRepository = (*RedisStore)(nil)
	_ JourneyRepository = (*RedisStore)(nil)
	_ TagRepository     = (*RedisStore)(nil)
)

func NewRedisStore(client *redis.Client, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("store: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("chatcommerce.internal.store.redis")
	}
	return &RedisStore{redis: client, tracer: tracer, now: func() time.Time { return time.Now().UTC() }}
}

func contextKey(customerID string) string       { return fmt.Sprintf("context:%s", customerID) }
func sessionKey(id string) string               { return fmt.Sprintf("session:%s", id) }
func activeSessionKey(customerID string) string { return fmt.Sprintf("session:active:%s", customerID) }
func journeyKey(customerID string) string       { return fmt.Sprintf("journey:%s", customerID) }
func tagsKey(customerID string) string          { return fmt.Sprintf("tags:%s", customerID) }

func (s *RedisStore) LoadContext(ctx context.Context, customerID string) (*conversation.Context, error) {
	ctx, span := s.tracer.Start(ctx, "store.load_context")
	defer span.End()

	var c conversation.Context
	if err := s.getJSON(ctx, contextKey(customerID), &c); err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
		}
		return nil, err
	}
	return &c, nil
}

func (s *RedisStore) SaveContext(ctx context.Context, c *conversation.Context) error {
	ctx, span := s.tracer.Start(ctx, "store.save_context")
	defer span.End()

	if err := s.setJSON(ctx, contextKey(c.CustomerID), c, 0); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *RedisStore) LoadActiveSession(ctx context.Context, customerID string) (*orders.Session, error) {
	ctx, span := s.tracer.Start(ctx, "store.load_active_session")
	defer span.End()

	id, err := s.redis.Get(ctx, activeSessionKey(customerID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("store: load active session pointer: %w", err)
	}
	var sess orders.Session
	if err := s.getJSON(ctx, sessionKey(id), &sess); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &sess, nil
}

// SaveSession writes the session and moves the customer's active pointer in
// one transaction.
func (s *RedisStore) SaveSession(ctx context.Context, sess *orders.Session) error {
	ctx, span := s.tracer.Start(ctx, "store.save_session")
	defer span.End()

	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: marshal session: %w", err)
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(sess.ID), data, sessionTTL)
		if sess.Active() {
			pipe.Set(ctx, activeSessionKey(sess.CustomerID), sess.ID, 0)
		} else {
			pipe.Del(ctx, activeSessionKey(sess.CustomerID))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: persist session: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadJourney(ctx context.Context, customerID string) (*conversion.Journey, error) {
	ctx, span := s.tracer.Start(ctx, "store.load_journey")
	defer span.End()

	var j conversion.Journey
	if err := s.getJSON(ctx, journeyKey(customerID), &j); err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
		}
		return nil, err
	}
	return &j, nil
}

// SaveJourney uses WATCH so a concurrent writer turns into ErrConflict.
func (s *RedisStore) SaveJourney(ctx context.Context, j *conversion.Journey) error {
	ctx, span := s.tracer.Start(ctx, "store.save_journey")
	defer span.End()

	key := journeyKey(j.CustomerID)
	next := j.Clone()
	next.Version = j.Version + 1
	data, err := json.Marshal(next)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: marshal journey: %w", err)
	}

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		var stored int64
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			var cur struct {
				Version int64 `json:"version"`
			}
			if err := json.Unmarshal(raw, &cur); err != nil {
				return fmt.Errorf("store: decode journey version: %w", err)
			}
			stored = cur.Version
		}
		if stored != j.Version {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, journeyIndexKey, j.CustomerID)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		j.Version = next.Version
		return nil
	case errors.Is(err, ErrConflict), errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	default:
		span.RecordError(err)
		return fmt.Errorf("store: persist journey: %w", err)
	}
}

func (s *RedisStore) ListJourneys(ctx context.Context) ([]*conversion.Journey, error) {
	ctx, span := s.tracer.Start(ctx, "store.list_journeys")
	defer span.End()

	ids, err := s.redis.SMembers(ctx, journeyIndexKey).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store: list journey ids: %w", err)
	}
	slices.Sort(ids)
	out := make([]*conversion.Journey, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = journeyKey(id)
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store: load journeys: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var j conversion.Journey
		if err := json.Unmarshal([]byte(raw), &j); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("store: decode journey %s: %w", ids[i], err)
		}
		out = append(out, &j)
	}
	return out, nil
}

// SaveTags stores each tag as a hash field keyed by category and value.
func (s *RedisStore) SaveTags(ctx context.Context, customerID string, tags []tagging.Tag) error {
	ctx, span := s.tracer.Start(ctx, "store.save_tags")
	defer span.End()

	if len(tags) == 0 {
		return nil
	}
	existing, err := s.tagMap(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	upsertTags(existing, customerID, tags, s.now())

	fields := make(map[string]any, len(tags))
	for _, t := range tags {
		key := tagKey(t.Category, t.Value)
		data, err := json.Marshal(existing[key])
		if err != nil {
			return fmt.Errorf("store: marshal tag: %w", err)
		}
		fields[key] = data
	}
	if err := s.redis.HSet(ctx, tagsKey(customerID), fields).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: persist tags: %w", err)
	}
	return nil
}

func (s *RedisStore) ListTags(ctx context.Context, customerID string) ([]CustomerTag, error) {
	ctx, span := s.tracer.Start(ctx, "store.list_tags")
	defer span.End()

	existing, err := s.tagMap(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make([]CustomerTag, 0, len(existing))
	for _, t := range existing {
		out = append(out, t)
	}
	sortTags(out)
	return out, nil
}

func (s *RedisStore) tagMap(ctx context.Context, customerID string) (map[string]CustomerTag, error) {
	raw, err := s.redis.HGetAll(ctx, tagsKey(customerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("store: load tags: %w", err)
	}
	out := make(map[string]CustomerTag, len(raw))
	for field, value := range raw {
		var t CustomerTag
		if err := json.Unmarshal([]byte(value), &t); err != nil {
			return nil, fmt.Errorf("store: decode tag %s: %w", field, err)
		}
		out[field] = t
	}
	return out, nil
}

func (s *RedisStore) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return fmt.Errorf("store: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decode %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", key, err)
	}
	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}
