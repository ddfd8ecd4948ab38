// Command conversation-worker drains the SQS inbound queue when the API runs
// with USE_MEMORY_QUEUE=false.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/wolfman30/chat-commerce-agent/cmd/mainconfig"
	"github.com/wolfman30/chat-commerce-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/chat-commerce-agent/internal/config"
	"github.com/wolfman30/chat-commerce-agent/internal/dispatch"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

const (
	drainTimeout       = 30 * time.Second
	receiveWaitSeconds = 20
	receiveBatchSize   = 10
)

var errNoQueueURL = errors.New("conversation worker requires INBOUND_QUEUE_URL")

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("conversation worker failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg.InboundQueueURL == "" {
		return errNoQueueURL
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}
	app, err := bootstrap.Build(ctx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	queue := dispatch.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.InboundQueueURL)
	worker := newWorker(cfg, app, queue, logger)

	// Receive loops stop with ctx; in-flight messages are allowed to finish.
	worker.Start(ctx)
	logger.Info("conversation worker started", "workers", cfg.WorkerCount, "queue", cfg.InboundQueueURL)
	<-ctx.Done()

	logger.Info("shutting down conversation worker")
	return waitForDrain(worker, drainTimeout, logger)
}

func newWorker(cfg *appconfig.Config, app *bootstrap.App, queue *dispatch.SQSQueue, logger *logging.Logger) *dispatch.Worker {
	return dispatch.NewWorker(
		app.Orchestrator,
		queue,
		app.Messenger,
		logger,
		dispatch.WithWorkerCount(cfg.WorkerCount),
		dispatch.WithReceiveWaitSeconds(receiveWaitSeconds),
		dispatch.WithReceiveBatchSize(receiveBatchSize),
		dispatch.WithNameResolver(app.Messenger),
	)
}

type waiter interface {
	Wait()
}

func waitForDrain(w waiter, timeout time.Duration, logger *logging.Logger) error {
	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("conversation worker stopped")
		return nil
	case <-time.After(timeout):
		return errors.New("conversation worker shutdown timed out")
	}
}
