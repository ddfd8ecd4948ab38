package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/chat-commerce-agent/internal/pipeline"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

// Processor is the pipeline entrypoint the worker drives.
type Processor interface {
	ProcessMessage(ctx context.Context, in pipeline.Inbound) (pipeline.Result, error)
}

// MessageSender delivers a reply to the customer's channel.
type MessageSender interface {
	Send(ctx context.Context, customerID, text string, quickReplies []string) error
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	sendTimeout          = 10 * time.Second
	nameLookupTimeout    = 3 * time.Second
	fallbackReply        = "Sorry - I'm having trouble responding right now. Please reply again in a moment."
)

// NameResolver looks up a customer's display name on their channel.
type NameResolver interface {
	CustomerName(ctx context.Context, customerID string) (string, error)
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	names            NameResolver
}

// WithWorkerCount sets the number of concurrent consumer goroutines. With a
// MemoryQueue it should equal the shard count.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		cfg.receiveWaitSecs = min(seconds, maxWaitSeconds)
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		cfg.receiveBatchSize = min(size, maxReceiveBatchSize)
	}
}

// WithNameResolver fills in the customer name of jobs that arrive without one.
func WithNameResolver(r NameResolver) WorkerOption {
	return func(cfg *workerConfig) { cfg.names = r }
}

// Worker consumes jobs from the queue, runs them through the pipeline and
// sends the reply.
type Worker struct {
	processor Processor
	queue     queueClient
	sender    MessageSender
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

func NewWorker(processor Processor, queue queueClient, sender MessageSender, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("dispatch: processor cannot be nil")
	}
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{processor: processor, queue: queue, sender: sender, logger: logger, cfg: cfg}
}

// Start launches the consumer goroutines; they stop when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, consumer int) {
	defer w.wg.Done()
	w.logger.Debug("dispatch worker started", "worker_id", consumer)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("dispatch worker stopping", "worker_id", consumer)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, consumer, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive jobs", "error", err, "worker_id", consumer)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(ctx, msg.ReceiptHandle)
		return
	}
	log := w.logger.With("job_id", job.ID, "customer_id", job.CustomerID)
	if job.CustomerName == "" {
		job.CustomerName = w.lookupName(ctx, log, job.CustomerID)
	}

	res, err := w.processor.ProcessMessage(ctx, pipeline.Inbound{
		CustomerID:   job.CustomerID,
		CustomerName: job.CustomerName,
		Text:         job.Text,
	})
	switch {
	case err == nil:
		log.Debug("job processed", "intent", res.Analysis.Intent, "lead_score", res.LeadScore, "order_status", res.OrderStatus)
	case errors.Is(err, pipeline.ErrInvalidInput):
		log.Warn("dropping invalid job", "error", err)
		w.deleteMessage(ctx, msg.ReceiptHandle)
		return
	case ctx.Err() != nil:
		// Shutting down mid-message: leave it on the queue for redelivery.
		log.Warn("job interrupted", "error", err)
		return
	default:
		log.Error("job failed", "error", err)
		if res.Response == "" {
			res.Response = fallbackReply
		}
	}

	w.sendReply(ctx, log, job.CustomerID, res)
	w.deleteMessage(ctx, msg.ReceiptHandle)
}

func (w *Worker) lookupName(ctx context.Context, log *logging.Logger, customerID string) string {
	if w.cfg.names == nil {
		return ""
	}
	lookupCtx, cancel := context.WithTimeout(ctx, nameLookupTimeout)
	defer cancel()
	name, err := w.cfg.names.CustomerName(lookupCtx, customerID)
	if err != nil {
		log.Debug("customer name lookup failed", "error", err)
		return ""
	}
	return name
}

func (w *Worker) sendReply(ctx context.Context, log *logging.Logger, customerID string, res pipeline.Result) {
	if w.sender == nil || res.Response == "" {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()
	if err := w.sender.Send(sendCtx, customerID, res.Response, res.QuickReplies); err != nil {
		log.Error("failed to send reply", "error", err)
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete job", "error", err)
	}
}
