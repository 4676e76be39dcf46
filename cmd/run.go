package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/job"
	"github.com/jobradar/jobradar/internal/logger"
	"github.com/jobradar/jobradar/internal/notify"
	"github.com/jobradar/jobradar/internal/oracle"
	"github.com/jobradar/jobradar/internal/oracle/gemini"
	"github.com/jobradar/jobradar/internal/oracle/ollama"
	"github.com/jobradar/jobradar/internal/pipeline"
	"github.com/jobradar/jobradar/internal/profile"
	"github.com/jobradar/jobradar/internal/score"
	"github.com/jobradar/jobradar/internal/secrets"
	"github.com/jobradar/jobradar/internal/source"
	"github.com/jobradar/jobradar/internal/store"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, score and rank job postings, then send the digest",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSlice("sources", nil, "run only this subset of the enabled sources")
	runCmd.Flags().Bool("dry-run", false, "log the digest instead of emailing it")
	runCmd.Flags().Int("limit", 0, "cap fetched listings per source (overrides max-per-source)")
	runCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation before sending the digest")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	cfg, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting jobradar", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(cfg, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
		cfg.Sources.MaxPerSource = limit
	}

	enabled := cfg.EnabledSources()
	if requested, _ := cmd.Flags().GetStringSlice("sources"); len(requested) > 0 {
		enabled, err = subsetSources(enabled, requested)
		if err != nil {
			logger.Fatal("selecting sources", zap.Error(err))
		}
	}

	fetchers, err := source.Registry(cfg.Sources, enabled, logger)
	if err != nil {
		logger.Fatal("building the source registry", zap.Error(err))
	}

	oracleClient, err := buildOracle(ctx, cfg.Oracle, logger)
	if err != nil {
		// Scoring falls back to keywords; the run still produces output.
		logger.Warn("scoring oracle unavailable, heuristics only", zap.Error(err))
	}

	candidate, err := profile.Load(cfg.Profile, logger)
	if err != nil {
		logger.Fatal("loading the candidate profile", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal("creating the data dir", zap.Error(err))
	}
	db, err := store.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal("opening the database", zap.Error(err))
	}
	defer db.Close()

	notifier, err := buildNotifier(cmd, cfg, logger)
	if err != nil {
		logger.Fatal("building the notifier", zap.Error(err))
	}

	p := pipeline.New(
		cfg,
		fetchers,
		score.NewRelevanceScorer(oracleClient, logger),
		score.NewMatchScorer(oracleClient, candidate, logger),
		db,
		notifier,
		logger,
	)

	report, err := p.Run(ctx, uuid.NewString())
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	logger.Info("done",
		zap.Int("retained", report.Retained),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)),
	)
}

// subsetSources keeps the requested names in declaration order so the
// deterministic join order survives subset runs.
func subsetSources(enabled, requested []string) ([]string, error) {
	want := make(map[string]bool, len(requested))
	for _, name := range requested {
		want[name] = true
	}

	out := make([]string, 0, len(requested))
	for _, name := range enabled {
		if want[name] {
			out = append(out, name)
			delete(want, name)
		}
	}
	for name := range want {
		return nil, fmt.Errorf("source %q is not enabled in the configuration", name)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sources left after --sources selection")
	}
	return out, nil
}

// buildOracle constructs the configured provider wrapped in the
// retrying, rate-limited client.
func buildOracle(ctx context.Context, cfg *config.OracleConfig, baseLogger *zap.Logger) (*oracle.Client, error) {
	var (
		evaluator oracle.Evaluator
		model     string
		err       error
	)

	switch cfg.Provider {
	case "ollama":
		model = cfg.Ollama.Model
		evaluator, err = ollama.New(cfg.Ollama.URL, model, cfg.Ollama.Timeout, baseLogger)
	case "gemini":
		var apiKey string
		apiKey, err = secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: cfg.Gemini.APIKeyFile,
			Env:  "GEMINI_API_KEY",
		})
		if err == nil {
			model = cfg.Gemini.Model
			evaluator, err = gemini.New(ctx, apiKey, model, baseLogger)
		}
	default:
		err = fmt.Errorf("unsupported oracle provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	oracleLogger := logger.WithOracleFields(baseLogger, cfg.Provider, model)
	return oracle.NewClient(evaluator, cfg.MaxRetries, cfg.RequestsPerMinute, oracleLogger), nil
}

func buildNotifier(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger) (pipeline.Notifier, error) {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun || !cfg.Notify.Enabled {
		return notify.NewLog(logger), nil
	}

	email, err := notify.NewEmail(cfg.Notify, logger)
	if err != nil {
		return nil, err
	}

	if autoApprove, _ := cmd.Flags().GetBool("yes"); autoApprove {
		return email, nil
	}
	return &confirmNotifier{email: email, fallback: notify.NewLog(logger), logger: logger}, nil
}

// confirmNotifier asks before mailing. Declining degrades to the log
// notifier instead of dropping the digest.
type confirmNotifier struct {
	email    pipeline.Notifier
	fallback pipeline.Notifier
	logger   *zap.Logger
}

func (c *confirmNotifier) Notify(ctx context.Context, jobs []job.Job, report *pipeline.Report) error {
	prompt := promptui.Select{
		Label: fmt.Sprintf("Send the digest with %d jobs?", len(jobs)),
		Items: []string{PromptYes, PromptNo},
	}

	_, action, err := prompt.Run()
	if err != nil {
		return fmt.Errorf("confirmation prompt: %w", err)
	}
	if action != PromptYes {
		c.logger.Info("digest not sent", zap.String("reason", "declined at prompt"))
		return c.fallback.Notify(ctx, jobs, report)
	}
	return c.email.Notify(ctx, jobs, report)
}
