package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/chat-commerce-agent/cmd/mainconfig"
	"github.com/wolfman30/chat-commerce-agent/internal/api/router"
	"github.com/wolfman30/chat-commerce-agent/internal/app/bootstrap"
	"github.com/wolfman30/chat-commerce-agent/internal/channels/messenger"
	appconfig "github.com/wolfman30/chat-commerce-agent/internal/config"
	"github.com/wolfman30/chat-commerce-agent/internal/dispatch"
	"github.com/wolfman30/chat-commerce-agent/internal/http/handlers"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

const (
	memoryQueueBuffer = 256
	shutdownTimeout   = 30 * time.Second
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting chat-commerce-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"analyzer", cfg.AnalyzerMode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	app, err := bootstrap.Build(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	publisher, memQueue, err := setupQueue(cfg, awsCfg)
	if err != nil {
		logger.Error("failed to set up inbound queue", "error", err)
		os.Exit(1)
	}
	worker := setupInlineWorker(ctx, cfg, app, memQueue, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      buildRouter(app, publisher),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	if worker != nil {
		worker.Wait()
	}
	logger.Info("server stopped")
}

// setupQueue returns the publisher webhooks enqueue onto. With
// USE_MEMORY_QUEUE the queue lives in-process and is also returned so an
// inline worker can drain it; otherwise jobs go to SQS for the
// conversation-worker binary.
func setupQueue(cfg *appconfig.Config, awsCfg aws.Config) (*dispatch.Publisher, *dispatch.MemoryQueue, error) {
	if cfg.UseMemoryQueue {
		q := dispatch.NewMemoryQueue(max(cfg.WorkerCount, 1), memoryQueueBuffer)
		return dispatch.NewPublisher(q), q, nil
	}
	if cfg.InboundQueueURL == "" {
		return nil, nil, errors.New("INBOUND_QUEUE_URL is required when USE_MEMORY_QUEUE=false")
	}
	q := dispatch.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.InboundQueueURL)
	return dispatch.NewPublisher(q), nil, nil
}

// setupInlineWorker starts a worker on the in-memory queue. It returns nil
// when jobs are consumed by a separate process.
func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, app *bootstrap.App, q *dispatch.MemoryQueue, logger *logging.Logger) *dispatch.Worker {
	if q == nil {
		return nil
	}
	var sender dispatch.MessageSender
	opts := []dispatch.WorkerOption{dispatch.WithWorkerCount(max(cfg.WorkerCount, 1))}
	if app.Messenger != nil && cfg.MessengerPageToken != "" {
		sender = app.Messenger
		opts = append(opts, dispatch.WithNameResolver(app.Messenger))
	} else {
		logger.Warn("MESSENGER_PAGE_TOKEN not set; replies will not be delivered")
	}
	w := dispatch.NewWorker(app.Orchestrator, q, sender, logger, opts...)
	w.Start(ctx)
	logger.Info("inline dispatch worker started", "workers", max(cfg.WorkerCount, 1))
	return w
}

func buildRouter(app *bootstrap.App, publisher dispatch.Enqueuer) http.Handler {
	cfg, logger := app.Config, app.Logger
	repos := app.Stores.Repos

	var archiver handlers.ReportArchiver
	if app.Archive.Enabled() {
		archiver = app.Archive
	}

	checks := make(map[string]router.HealthCheck, len(app.HealthChecks()))
	for name, check := range app.HealthChecks() {
		checks[name] = check
	}

	return router.New(&router.Config{
		Logger:         logger,
		HTTPMetrics:    app.HTTPMetrics,
		MetricsHandler: promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}),
		HealthChecks:   checks,
		Messenger: messenger.NewWebhookHandler(
			cfg.MessengerVerifyToken,
			cfg.MessengerAppSecret,
			publisher,
			app.Stores.Dedup,
			logger,
			app.MessengerMetrics,
		),
		AdminTest:          handlers.NewAdminTestMessageHandler(app.Orchestrator, logger),
		AdminAnalytics:     handlers.NewAdminAnalyticsHandler(repos.Journeys, archiver, logger),
		AdminCustomers:     handlers.NewAdminCustomersHandler(repos.Tags, repos.Contexts, repos.Orders, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AdminRateLimitRPS:  cfg.AdminRateLimitRPS,
		AdminRateBurst:     cfg.AdminRateBurst,
	})
}
