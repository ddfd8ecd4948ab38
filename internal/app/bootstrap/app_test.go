package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chat-commerce-agent/internal/analysis"
	appconfig "github.com/wolfman30/chat-commerce-agent/internal/config"
	"github.com/wolfman30/chat-commerce-agent/internal/events"
	"github.com/wolfman30/chat-commerce-agent/internal/pipeline"
	"github.com/wolfman30/chat-commerce-agent/internal/rules"
	"github.com/wolfman30/chat-commerce-agent/internal/store"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		LogLevel:         "error",
		AnalyzerMode:     "rules",
		MessengerSendRPS: 5,
		ResponseSeed:     1,
		NotifyFromName:   "Shop Assistant",
	}
}

func TestBuild_InMemoryDefaults(t *testing.T) {
	ctx := context.Background()
	app, err := Build(ctx, testConfig(), aws.Config{}, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "My Online Shop", app.Business.ShopName)
	assert.NotNil(t, app.Rules)
	assert.Nil(t, app.Archive)
	assert.False(t, app.Notifier.Enabled())
	assert.Empty(t, app.HealthChecks())
	assert.IsType(t, &store.MemoryStore{}, app.Stores.Repos.Contexts)
	assert.IsType(t, &store.MemoryStore{}, app.Stores.Repos.Orders)
	assert.IsType(t, &events.MemoryDeduper{}, app.Stores.Dedup)

	res, err := app.Orchestrator.ProcessMessage(ctx, pipeline.Inbound{CustomerID: "psid-1", Text: "How much is the sample product?"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Response)

	families, err := app.Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["chatcommerce_pipeline_messages_total"], "pipeline metrics are registered")
}

func TestBuild_MissingBusinessFile(t *testing.T) {
	cfg := testConfig()
	cfg.BusinessConfigFile = "/does/not/exist.yaml"
	_, err := Build(context.Background(), cfg, aws.Config{}, nil)
	require.Error(t, err)
}

func TestBuildAnalyzer_FallsBackToRulesWhenProviderMissing(t *testing.T) {
	rs := rules.Default()
	for _, cfg := range []*appconfig.Config{
		{AnalyzerMode: "rules"},
		{AnalyzerMode: "llm", LLMProvider: "openai"},
		{AnalyzerMode: "llm", LLMProvider: "bedrock"},
		{AnalyzerMode: "llm", LLMProvider: "carrier-pigeon"},
	} {
		a, closeFn, err := BuildAnalyzer(context.Background(), cfg, aws.Config{}, rs, nil, nil)
		require.NoError(t, err)
		assert.IsType(t, &analysis.RuleAnalyzer{}, a, cfg.LLMProvider)
		closeFn()
	}
}

func TestBuildAnalyzer_LLMModeWrapsRules(t *testing.T) {
	cfg := &appconfig.Config{AnalyzerMode: "llm", LLMProvider: "openai", OpenAIAPIKey: "sk-test", LLMFallbackProvider: "gemini"}
	a, closeFn, err := BuildAnalyzer(context.Background(), cfg, aws.Config{}, rules.Default(), nil, nil)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &analysis.ResilientAnalyzer{}, a)

	_, _, err = BuildAnalyzer(context.Background(), nil, aws.Config{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestBuildStores_UsesRedisWhenReachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()

	s, err := BuildStores(context.Background(), cfg, aws.Config{}, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &store.RedisStore{}, s.Repos.Contexts)
	assert.IsType(t, &store.RedisStore{}, s.Repos.Journeys)
	assert.IsType(t, &store.MemoryStore{}, s.Repos.Orders)
	require.Contains(t, s.HealthChecks, "redis")
	assert.NoError(t, s.HealthChecks["redis"](context.Background()))
}

func TestBuildStores_SkipsUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.RedisAddr = addr
	s, err := BuildStores(context.Background(), cfg, aws.Config{}, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &store.MemoryStore{}, s.Repos.Contexts)
	assert.NotContains(t, s.HealthChecks, "redis")
}

func TestBuildDatabase_DisabledWithoutURL(t *testing.T) {
	db, err := BuildDatabase(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Nil(t, db)
	db.Close()
}
