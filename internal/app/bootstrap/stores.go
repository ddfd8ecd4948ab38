package bootstrap

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	appconfig "github.com/wolfman30/chat-commerce-agent/internal/config"
	"github.com/wolfman30/chat-commerce-agent/internal/events"
	"github.com/wolfman30/chat-commerce-agent/internal/pipeline"
	"github.com/wolfman30/chat-commerce-agent/internal/store"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

// Stores is the persistence layer chosen from configuration.
type Stores struct {
	Repos        pipeline.Repositories
	Interactions store.InteractionRecorder
	Dedup        events.Deduper
	HealthChecks map[string]func(context.Context) error

	closers []func()
}

// Close releases every connection opened for the stores.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// BuildStores starts from the in-memory store and replaces each repository
// with the most durable backend configured: Redis for hot customer state,
// Postgres for orders, sessions and tags, DynamoDB for journeys.
func BuildStores(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*Stores, error) {
	if logger == nil {
		logger = logging.Default()
	}
	mem := store.NewMemoryStore()
	s := &Stores{
		Repos: pipeline.Repositories{
			Contexts: mem,
			Sessions: mem,
			Journeys: mem,
			Orders:   mem,
			Tags:     mem,
		},
		Interactions: mem,
		Dedup:        events.NewMemoryDeduper(0),
		HealthChecks: map[string]func(context.Context) error{},
	}

	if redisClient := BuildRedisClient(ctx, cfg, logger, true); redisClient != nil {
		rs := store.NewRedisStore(redisClient, nil)
		s.Repos.Contexts = rs
		s.Repos.Sessions = rs
		s.Repos.Journeys = rs
		s.Repos.Tags = rs
		s.HealthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		s.closers = append(s.closers, func() { _ = redisClient.Close() })
		logger.Info("redis store enabled", "addr", cfg.RedisAddr)
	}

	db, err := BuildDatabase(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	if db != nil {
		pg := store.NewPostgresStore(db.Pool)
		s.Repos.Orders = pg
		s.Repos.Sessions = pg
		s.Repos.Tags = pg
		s.Interactions = store.NewInteractionLog(db.SQL)
		dedup := events.NewPostgresDeduper(db.Pool, events.DefaultRetention)
		if purged, err := dedup.Purge(ctx); err != nil {
			logger.Warn("failed to purge processed events", "error", err)
		} else if purged > 0 {
			logger.Info("purged processed events", "count", purged)
		}
		s.Dedup = dedup
		s.HealthChecks["postgres"] = db.Pool.Ping
		s.closers = append(s.closers, db.Close)
		logger.Info("postgres store enabled")
	}

	if table := strings.TrimSpace(cfg.JourneyTable); table != "" {
		s.Repos.Journeys = store.NewDynamoJourneyStore(dynamodb.NewFromConfig(awsCfg), table, logger)
		logger.Info("dynamodb journey store enabled", "table", table)
	}
	return s, nil
}

