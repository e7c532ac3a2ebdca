package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/ai/gemini"
	"github.com/spigell/interview-coach/internal/ai/openai"
	"github.com/spigell/interview-coach/internal/document"
	"github.com/spigell/interview-coach/internal/interview"
	"github.com/spigell/interview-coach/internal/metrics"
	"github.com/spigell/interview-coach/internal/secrets"
	"github.com/spigell/interview-coach/internal/session"
	"github.com/spigell/interview-coach/internal/skills"
)

// loadExtractor builds the skill extractor from the embedded taxonomy or the
// configured override file.
func loadExtractor(config *Config, logger *zap.Logger) (*skills.Extractor, error) {
	var (
		taxonomy *skills.Taxonomy
		err      error
	)

	if path := strings.TrimSpace(config.TaxonomyFile); path != "" {
		taxonomy, err = skills.LoadTaxonomyFile(path)
	} else {
		taxonomy, err = skills.DefaultTaxonomy()
	}
	if err != nil {
		return nil, fmt.Errorf("loading taxonomy: %w", err)
	}

	for _, conflict := range taxonomy.Conflicts() {
		logger.Warn("taxonomy alias registered twice",
			zap.String("alias", conflict.Alias),
			zap.String("kept", conflict.Kept),
			zap.String("ignored", conflict.Ignored),
		)
	}

	logger.Debug("taxonomy loaded",
		zap.Strings("categories", taxonomy.Categories()),
		zap.Int("roles", len(taxonomy.Roles())),
	)

	return skills.NewExtractor(taxonomy)
}

// newCompleter builds the configured LLM provider, instrumented with metrics.
func newCompleter(ctx context.Context, cfg *AIConfig, m *metrics.Metrics, logger *zap.Logger) (ai.Completer, int, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", gemini.ProviderName:
		gc := cfg.Gemini
		if gc == nil {
			gc = &GeminiConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: gc.APIKey,
			File:  gc.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, 0, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		client, err := gemini.New(ctx, apiKey, gc.Model, gc.MaxRetries, gc.MaxLogLength, logger)
		if err != nil {
			return nil, 0, err
		}
		logger.Info("using ai provider", zap.String("provider", gemini.ProviderName), zap.String("model", client.Model()))

		return metrics.InstrumentCompleter(client, m, gemini.ProviderName), gc.MaxLogLength, nil

	case openai.ProviderName:
		gc := cfg.Groq
		if gc == nil {
			gc = &GroqConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "groq api key",
			Value: gc.APIKey,
			File:  gc.APIKeyFile,
			Env:   "GROQ_API_KEY",
		})
		if err != nil {
			return nil, 0, fmt.Errorf("%w (set ai.groq.api-key-file or GROQ_API_KEY)", err)
		}

		client, err := openai.New(apiKey, gc.BaseURL, gc.Model, gc.MaxRetries, gc.MaxLogLength, logger)
		if err != nil {
			return nil, 0, err
		}
		logger.Info("using ai provider", zap.String("provider", openai.ProviderName), zap.String("model", client.Model()))

		return metrics.InstrumentCompleter(client, m, openai.ProviderName), gc.MaxLogLength, nil

	default:
		return nil, 0, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

// newCoach wires the full pipeline. The registry receives all coach metrics.
func newCoach(ctx context.Context, config *Config, reg prometheus.Registerer, logger *zap.Logger) (*session.Coach, error) {
	m := metrics.New(reg)

	extractor, err := loadExtractor(config, logger)
	if err != nil {
		return nil, err
	}

	completer, maxLogLength, err := newCompleter(ctx, config.AI, m, logger)
	if err != nil {
		return nil, fmt.Errorf("building ai client: %w", err)
	}

	return session.NewCoach(session.Deps{
		Documents: document.NewExtractor(logger, m),
		Skills:    extractor,
		Questions: interview.NewQuestionGenerator(completer, logger, m, maxLogLength),
		Evaluator: interview.NewEvaluator(completer, logger, m, maxLogLength),
		Metrics:   m,
		Logger:    logger,
	})
}
