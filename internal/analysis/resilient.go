package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/chat-commerce-agent/internal/catalog"
	"github.com/wolfman30/chat-commerce-agent/internal/observability/metrics"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

const defaultAnalyzerTimeout = 8 * time.Second

// ResilientAnalyzer runs a primary analyzer under a deadline and degrades to a
// rule-based analysis when it errors or times out. It never returns an error
// unless the fallback itself fails.
type ResilientAnalyzer struct {
	primary  Analyzer
	fallback Analyzer
	timeout  time.Duration
	logger   *logging.Logger
	metrics  *metrics.PipelineMetrics
}

type ResilientOption func(*ResilientAnalyzer)

func WithAnalyzerLogger(logger *logging.Logger) ResilientOption {
	return func(r *ResilientAnalyzer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithAnalyzerMetrics(m *metrics.PipelineMetrics) ResilientOption {
	return func(r *ResilientAnalyzer) { r.metrics = m }
}

func NewResilientAnalyzer(primary, fallback Analyzer, timeout time.Duration, opts ...ResilientOption) *ResilientAnalyzer {
	if primary == nil {
		panic("analysis: primary analyzer cannot be nil")
	}
	if fallback == nil {
		panic("analysis: fallback analyzer cannot be nil")
	}
	if timeout <= 0 {
		timeout = defaultAnalyzerTimeout
	}
	r := &ResilientAnalyzer{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ResilientAnalyzer) Analyze(ctx context.Context, text string, biz *catalog.BusinessConfig) (MessageAnalysis, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		analysis MessageAnalysis
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		a, err := r.primary.Analyze(callCtx, text, biz)
		done <- outcome{analysis: a, err: err}
	}()

	var err error
	select {
	case res := <-done:
		if res.err == nil {
			res.analysis.Normalize()
			return res.analysis, nil
		}
		err = res.err
	case <-callCtx.Done():
		err = callCtx.Err()
	}

	reason := "error"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
	}
	r.logger.Warn("analyzer failed, using rule fallback", "reason", reason, "error", err)
	r.metrics.ObserveAnalyzerFallback(reason)

	// The fallback is local and must run even when the caller's deadline hit.
	degraded, ferr := r.fallback.Analyze(context.WithoutCancel(ctx), text, biz)
	if ferr != nil {
		return MessageAnalysis{}, errors.Join(ErrAnalysisFailed, err, ferr)
	}
	degraded.Source = SourceFallback
	degraded.Normalize()
	return degraded, nil
}
