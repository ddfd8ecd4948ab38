package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wolfman30/chat-commerce-agent/internal/analysis"
	appconfig "github.com/wolfman30/chat-commerce-agent/internal/config"
	"github.com/wolfman30/chat-commerce-agent/internal/observability/metrics"
	"github.com/wolfman30/chat-commerce-agent/internal/rules"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

// BuildAnalyzer returns the rule analyzer, or in llm mode an LLM analyzer that
// degrades to the rules on error or timeout. A misconfigured LLM provider logs
// a warning and falls back to rules only.
func BuildAnalyzer(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, rs *rules.RuleSet, m *metrics.PipelineMetrics, logger *logging.Logger) (analysis.Analyzer, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	ruleAnalyzer := analysis.NewRuleAnalyzer(rs)
	noop := func() {}
	if !cfg.UseLLMAnalyzer() {
		logger.Info("using rule analyzer")
		return ruleAnalyzer, noop, nil
	}

	client, closeFn, err := buildLLMClient(ctx, cfg.LLMProvider, cfg, awsCfg)
	if err != nil {
		logger.Warn("llm analyzer not configured; using rule analyzer", "provider", cfg.LLMProvider, "error", err)
		return ruleAnalyzer, noop, nil
	}

	if fb := cfg.LLMFallbackProvider; fb != "" && fb != cfg.LLMProvider {
		fallback, closeFallback, err := buildLLMClient(ctx, fb, cfg, awsCfg)
		if err != nil {
			logger.Warn("fallback llm provider not configured", "provider", fb, "error", err)
		} else {
			client = analysis.NewFallbackLLMClient(client, fallback, logger)
			primaryClose := closeFn
			closeFn = func() {
				primaryClose()
				closeFallback()
			}
		}
	}

	logger.Info("using llm analyzer", "provider", cfg.LLMProvider, "fallback", cfg.LLMFallbackProvider, "timeout", cfg.AnalyzerTimeout)
	llm := analysis.NewLLMAnalyzer(client, "", rs)
	return analysis.NewResilientAnalyzer(llm, ruleAnalyzer, cfg.AnalyzerTimeout,
		analysis.WithAnalyzerLogger(logger),
		analysis.WithAnalyzerMetrics(m),
	), closeFn, nil
}

func buildLLMClient(ctx context.Context, provider string, cfg *appconfig.Config, awsCfg aws.Config) (analysis.LLMClient, func(), error) {
	noop := func() {}
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		c, err := analysis.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		return c, noop, err
	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, noop, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required")
		}
		return analysis.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), noop, nil
	case "gemini":
		c, err := analysis.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		return c, func() { _ = c.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("bootstrap: unknown llm provider %q", provider)
	}
}
