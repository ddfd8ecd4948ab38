package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wolfman30/chat-commerce-agent/internal/archive"
	"github.com/wolfman30/chat-commerce-agent/internal/catalog"
	"github.com/wolfman30/chat-commerce-agent/internal/channels/messenger"
	appconfig "github.com/wolfman30/chat-commerce-agent/internal/config"
	"github.com/wolfman30/chat-commerce-agent/internal/notify"
	"github.com/wolfman30/chat-commerce-agent/internal/observability/metrics"
	"github.com/wolfman30/chat-commerce-agent/internal/orders"
	"github.com/wolfman30/chat-commerce-agent/internal/pipeline"
	"github.com/wolfman30/chat-commerce-agent/internal/rules"
	"github.com/wolfman30/chat-commerce-agent/internal/scoring"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

// App holds the components shared by the API server and the worker.
type App struct {
	Config   *appconfig.Config
	Logger   *logging.Logger
	Business *catalog.BusinessConfig
	Rules    *rules.RuleSet

	Registry         *prometheus.Registry
	PipelineMetrics  *metrics.PipelineMetrics
	MessengerMetrics *metrics.MessengerMetrics
	HTTPMetrics      *metrics.HTTPMetrics

	Stores       *Stores
	Archive      *archive.Store
	Notifier     *notify.OrderNotifier
	Orchestrator *pipeline.Orchestrator
	Messenger    *messenger.Client

	closeAnalyzer func()
}

// Build loads the business and rule files and wires the pipeline with the
// backends selected by cfg.
func Build(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	biz, err := loadBusiness(cfg.BusinessConfigFile)
	if err != nil {
		return nil, err
	}
	rs, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app := &App{
		Config:           cfg,
		Logger:           logger,
		Business:         biz,
		Rules:            rs,
		Registry:         reg,
		PipelineMetrics:  metrics.NewPipelineMetrics(reg),
		MessengerMetrics: metrics.NewMessengerMetrics(reg),
		HTTPMetrics:      metrics.NewHTTPMetrics(reg),
		closeAnalyzer:    func() {},
	}

	app.Stores, err = BuildStores(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	analyzer, closeAnalyzer, err := BuildAnalyzer(ctx, cfg, awsCfg, rs, app.PipelineMetrics, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closeAnalyzer = closeAnalyzer

	if bucket := strings.TrimSpace(cfg.ReportBucket); bucket != "" {
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWSEndpointOverride != ""
		})
		app.Archive = archive.NewStore(s3Client, bucket, logger)
		logger.Info("report archive enabled", "bucket", bucket)
	}
	app.Notifier = notify.NewOrderNotifier(buildEmailSender(cfg, awsCfg, logger), cfg.SellerNotifyEmail, biz.ShopName, logger)

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(app.PipelineMetrics),
		pipeline.WithInteractionLog(app.Stores.Interactions),
		pipeline.WithScorer(scoring.NewScorer(rs)),
		pipeline.WithProcessor(orders.NewProcessor(rs)),
	}
	if cfg.ResponseSeed != 0 {
		opts = append(opts, pipeline.WithPicker(pipeline.NewSeededPicker(uint64(cfg.ResponseSeed))))
	}
	if app.Notifier.Enabled() {
		opts = append(opts, pipeline.WithNotifier(app.Notifier))
	}
	if app.Archive.Enabled() {
		opts = append(opts, pipeline.WithJourneyArchiver(app.Archive))
	}
	app.Orchestrator = pipeline.New(analyzer, biz, app.Stores.Repos, opts...)

	burst := int(cfg.MessengerSendRPS)
	app.Messenger = messenger.NewClient(cfg.MessengerPageToken,
		messenger.WithSendRate(cfg.MessengerSendRPS, burst),
		messenger.WithClientMetrics(app.MessengerMetrics),
	)
	return app, nil
}

// HealthChecks returns the readiness probes of the configured backends.
func (a *App) HealthChecks() map[string]func(context.Context) error {
	if a == nil || a.Stores == nil {
		return nil
	}
	return a.Stores.HealthChecks
}

// Close releases the analyzer and store connections.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.closeAnalyzer != nil {
		a.closeAnalyzer()
	}
	if a.Stores != nil {
		a.Stores.Close()
	}
}

func loadBusiness(path string) (*catalog.BusinessConfig, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

// buildEmailSender prefers SendGrid, then SES, then a logging stub.
func buildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if key := strings.TrimSpace(cfg.SendGridAPIKey); key != "" && cfg.SESFromEmail != "" {
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    key,
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.NotifyFromName,
		}, logger)
	}
	if cfg.SESFromEmail != "" {
		if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail:        cfg.SESFromEmail,
			FromName:         cfg.NotifyFromName,
			ConfigurationSet: cfg.SESConfigSet,
		}, logger); sender != nil {
			return sender
		}
	}
	return notify.NewStubEmailSender(logger)
}
