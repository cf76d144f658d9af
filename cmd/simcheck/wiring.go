package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simcheck/internal/config"
	"github.com/kailas-cloud/simcheck/internal/db"
	"github.com/kailas-cloud/simcheck/internal/domain"
	budgetrepo "github.com/kailas-cloud/simcheck/internal/repository/budget"
	localEmb "github.com/kailas-cloud/simcheck/internal/transport/local"
	ollamaEmb "github.com/kailas-cloud/simcheck/internal/transport/ollama"
	openaiEmb "github.com/kailas-cloud/simcheck/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/simcheck/internal/usecase/embedding"
)

const (
	budgetDailyTTL   = 48 * time.Hour
	budgetMonthlyTTL = 62 * 24 * time.Hour
)

// chainEmbedder is what the composition root hands to the analysis and health services.
type chainEmbedder interface {
	domain.Embedder
	domain.BatchEmbedder
	domain.HealthChecker
}

// loadConfig reads an explicit file when given, else config/{env}.yaml.
func loadConfig(path, env string) (config.Config, error) {
	if path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("load %s: %w", path, err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, fmt.Errorf("load env %s: %w", env, err)
	}
	return cfg, nil
}

// buildProvider creates the base embedding provider selected in cfg.
func buildProvider(cfg config.EmbeddingConfig, logger *zap.Logger) (domain.Embedder, error) {
	provCfg := cfg.Active()
	switch cfg.Provider {
	case domain.ProviderOpenAI:
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     provCfg.APIKey,
			BaseURL:    provCfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Logger:     logger,
		}), nil
	case domain.ProviderOllama:
		e, err := ollamaEmb.NewEmbedder(&ollamaEmb.Config{
			BaseURL:  provCfg.BaseURL,
			Model:    cfg.Model,
			Provider: cfg.Provider,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("ollama provider: %w", err)
		}
		return e, nil
	case domain.ProviderLocal:
		e, err := localEmb.NewEmbedder(cfg.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("local provider: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// newBudgetTracker returns nil when the active provider has no limits.
// store may be nil; counters then live in memory only.
func newBudgetTracker(
	ctx context.Context, cfg config.EmbeddingConfig, store db.KVStore, logger *zap.Logger,
) *embeddinguc.BudgetTracker {
	budgetCfg := cfg.Active().Budget
	if budgetCfg.DailyTokenLimit <= 0 && budgetCfg.MonthlyTokenLimit <= 0 {
		return nil
	}
	action := embeddinguc.BudgetActionWarn
	if budgetCfg.Action == string(embeddinguc.BudgetActionReject) {
		action = embeddinguc.BudgetActionReject
	}
	tracker := embeddinguc.NewBudgetTracker(
		cfg.Provider, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
	)
	if store != nil {
		tracker.WithStore(ctx, budgetrepo.New(store, budgetDailyTTL, budgetMonthlyTTL))
	}
	return tracker
}

// buildEmbedder assembles the decorator chain:
// provider -> Instrumented -> Instruction. budget may be nil.
func buildEmbedder(
	cfg config.EmbeddingConfig, budget *embeddinguc.BudgetTracker, logger *zap.Logger,
) (chainEmbedder, error) {
	base, err := buildProvider(cfg, logger)
	if err != nil {
		return nil, err
	}

	// A typed nil *BudgetTracker inside the interface would not compare equal to nil.
	var checker embeddinguc.BudgetChecker
	if budget != nil {
		checker = budget
	}

	provCfg := cfg.Active()
	instrumented := embeddinguc.NewInstrumentedEmbedder(base, cfg.Provider, cfg.Model, checker, logger).
		WithRateLimit(provCfg.RateLimitRPS, provCfg.RateLimitBurst).
		WithConcurrency(cfg.Concurrency)

	if cfg.Instruction != "" {
		return domain.NewInstructionEmbedder(instrumented, cfg.Instruction), nil
	}
	return instrumented, nil
}
