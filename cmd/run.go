package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobscout/internal/evaluation"
	"jobscout/internal/logger"
	"jobscout/internal/notify"
	"jobscout/internal/pipeline"
	"jobscout/internal/secrets"
	"jobscout/internal/source"
	"jobscout/internal/store"
)

const (
	defaultStoragePath = "data/jobs.db"
	defaultMinScore    = 70
	defaultPacing      = 10 * time.Second
	defaultTimeout     = 60 * time.Second
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the jobscout main command",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("dry-run", false, "evaluate postings but do not notify")
	runCmd.Flags().BoolP("force", "f", false, "re-evaluate postings already in the store")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting jobscout", zap.String("version", version))

	if config == nil {
		logger.Fatal("config is required")
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	resume, err := loadResume(config)
	if err != nil {
		logger.Fatal("loading resume",
			zap.Error(err),
			zap.String("hint", "set resume-file in the configuration file"),
		)
	}

	evaluator, err := newEvaluator(ctx, config.Evaluator, logger)
	if err != nil {
		logger.Fatal("building evaluator", zap.Error(err))
	}

	notifier := newNotifier(config.Notify, logger)
	logger.Info("notification channel selected", zap.String("channel", notifier.Name()))

	storagePath := defaultStoragePath
	if config.Storage != nil && strings.TrimSpace(config.Storage.Path) != "" {
		storagePath = config.Storage.Path
	}

	// Without durable state no further work is safe.
	db, err := store.Open(storagePath, logger)
	if err != nil {
		logger.Fatal("initializing storage", zap.String("path", storagePath), zap.Error(err))
	}
	defer db.Close()

	inputs, err := prepareInputs(config.Sources, logger)
	if err != nil {
		logger.Fatal("preparing sources", zap.Error(err))
	}

	if len(inputs) == 0 {
		logger.Info("exiting", zap.String("reason", "no sources configured"))
		return
	}

	minScore := float64(defaultMinScore)
	if config.Evaluator != nil && config.Evaluator.MinScore > 0 {
		minScore = config.Evaluator.MinScore
	}

	pacing := config.Pacing
	if pacing <= 0 {
		pacing = defaultPacing
	}

	p := pipeline.New(&pipeline.Config{
		MinScore: minScore,
		Pacing:   pacing,
		DryRun:   cmd.Flag("dry-run").Value.String() == "true",
		Force:    cmd.Flag("force").Value.String() == "true",
	}, &pipeline.Deps{
		Store:     db,
		Evaluator: evaluator,
		Notifier:  notifier,
		Logger:    logger,
		Resume:    resume,
		Profile:   config.Profile,
	})

	summary, err := p.Run(ctx, inputs)
	if err != nil {
		logger.Fatal("run aborted", zap.Error(err))
	}

	logger.Info("run finished",
		zap.Int("fetched", summary.Fetched),
		zap.Int("already_seen", summary.Seen),
		zap.Int("evaluated", summary.Evaluated),
		zap.Int("notified", summary.Notified),
		zap.Int("saved", summary.Saved),
		zap.Int("failed", summary.Failed),
	)
}

func loadResume(config *Config) (string, error) {
	if config.ResumeFile == "" {
		return "", fmt.Errorf("resume file is not configured")
	}

	data, err := os.ReadFile(config.ResumeFile)
	if err != nil {
		return "", err
	}

	resume := strings.TrimSpace(string(data))
	if resume == "" {
		return "", fmt.Errorf("resume file %q is empty", config.ResumeFile)
	}

	return resume, nil
}

func newEvaluator(ctx context.Context, cfg *EvaluatorConfig, logger *zap.Logger) (*evaluation.Evaluator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("evaluator configuration is required")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "evaluation api key",
		File: cfg.APIKeyFile,
		Env:  "JOBSCOUT_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set evaluator.api-key-file or JOBSCOUT_API_KEY)", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	providerLogger := logger.With(
		zap.String("provider", providerName(cfg.Provider)),
		zap.String("model", cfg.Model),
	)

	var provider evaluation.Provider
	switch providerName(cfg.Provider) {
	case "openai":
		provider, err = evaluation.NewOpenAI(apiKey, cfg.Model, cfg.BaseURL, timeout, providerLogger)
	case "gemini":
		provider, err = evaluation.NewGemini(ctx, apiKey, cfg.Model, cfg.MaxRetries, providerLogger)
	default:
		return nil, fmt.Errorf("unsupported evaluation provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return evaluation.New(provider, providerLogger, cfg.MaxLogLength), nil
}

func providerName(provider string) string {
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		return "openai"
	}
	return provider
}

// newNotifier selects the chat channel when it is configured and falls back
// to the console otherwise.
func newNotifier(cfg *NotifyConfig, logger *zap.Logger) notify.Notifier {
	if cfg == nil || cfg.Telegram == nil {
		logger.Warn("telegram is not configured, using console notifier")
		return notify.NewConsole(logger)
	}

	token, err := secrets.Load(secrets.Source{
		Name: "telegram bot token",
		File: cfg.Telegram.TokenFile,
		Env:  "TELEGRAM_BOT_TOKEN",
	})
	if err != nil {
		logger.Warn("falling back to console notifier", zap.Error(err))
		return notify.NewConsole(logger)
	}

	telegram, err := notify.NewTelegram(token, cfg.Telegram.ChatID, logger)
	if err != nil {
		logger.Warn("falling back to console notifier", zap.Error(err))
		return notify.NewConsole(logger)
	}

	return telegram
}

func prepareInputs(cfg *SourcesConfig, logger *zap.Logger) ([]pipeline.Input, error) {
	if cfg == nil {
		return nil, nil
	}

	inputs := make([]pipeline.Input, 0, 2)

	if cfg.Board != nil {
		board, err := source.NewBoard(cfg.Board, logger)
		if err != nil {
			return nil, fmt.Errorf("board source: %w", err)
		}

		rubric, err := evaluation.ParseRubric(cfg.Board.Rubric, evaluation.RubricStandard)
		if err != nil {
			return nil, fmt.Errorf("board source: %w", err)
		}

		inputs = append(inputs, pipeline.Input{Source: board, Rubric: rubric})
	}

	if cfg.Feed != nil {
		feed, err := source.NewFeed(cfg.Feed, logger)
		if err != nil {
			return nil, fmt.Errorf("feed source: %w", err)
		}

		// Free-text posts may not even be genuine postings, so the feed
		// defaults to the strict rubric.
		rubric, err := evaluation.ParseRubric(cfg.Feed.Rubric, evaluation.RubricStrict)
		if err != nil {
			return nil, fmt.Errorf("feed source: %w", err)
		}

		inputs = append(inputs, pipeline.Input{Source: feed, Rubric: rubric})
	}

	return inputs, nil
}
