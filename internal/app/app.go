package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsletterAgent/internal/config"
	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/extract"
	"NewsletterAgent/internal/infrastructure/llm"
	"NewsletterAgent/internal/infrastructure/mail"
	"NewsletterAgent/internal/infrastructure/parser"
	"NewsletterAgent/internal/infrastructure/render"
	"NewsletterAgent/internal/infrastructure/scheduler"
	"NewsletterAgent/internal/infrastructure/storage"
	"NewsletterAgent/internal/infrastructure/telegram"
	"NewsletterAgent/internal/logging"
	"NewsletterAgent/internal/ports"
	"NewsletterAgent/internal/scanner"
	"NewsletterAgent/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	orchestrator *usecase.Orchestrator
	repo         *storage.SQLRepository
}

// New builds the application. The SQL store is opened here; call Close when done.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	chat, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	invoker := extract.NewInvoker(chat, baseLogger.With("component", "invoker"))

	a := &Application{cfg: cfg, logger: baseLogger}

	var repository ports.ArticleRepository
	if strings.TrimSpace(cfg.Storage.DSN) != "" {
		repo, err := storage.OpenSQL(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.repo = repo
		repository = repo
	}

	archiver, err := a.archiver()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	registry := scanner.NewRegistry()
	registry.Register(parser.NewSerperScanner(cfg.Serper, httpClient))
	registry.Register(parser.NewFeedScanner(httpClient))
	registry.Register(parser.NewArxivScanner(httpClient))
	source := parser.NewStrategySource(registry, cfg.Sites, baseLogger.With("component", "source"))

	var mailer ports.Mailer
	if cfg.SendGrid.APIKey != "" {
		mailer = mail.NewSendGrid(cfg.SendGrid, cfg.Newsletter, nil)
	}
	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram); tg.Configured() {
		notifier = tg
	}

	renderer := render.NewMarkdown()

	var observer usecase.Observer
	if dir := strings.TrimSpace(cfg.Pipeline.CheckpointDir); dir != "" {
		observer = usecase.CheckpointObserver(dir, baseLogger.With("component", "checkpoint"))
	}

	a.orchestrator = usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Research: usecase.NewResearchStage(usecase.ResearchDeps{
			Source:     source,
			Repository: repository,
			Config: usecase.ResearchConfig{
				Keywords:      cfg.Research.Keywords,
				MaxArticles:   cfg.Research.MaxArticles,
				Lookback:      time.Duration(cfg.Research.LookbackDays) * 24 * time.Hour,
				SkipPublished: cfg.Research.SkipPublished,
			},
			Logger: baseLogger.With("component", "research"),
		}),
		Extraction: usecase.NewExtractionStage(invoker, usecase.ExtractionConfig{
			MaxSummaryLength: cfg.Extraction.MaxSummaryLength,
			MaxChunkSize:     cfg.Extraction.MaxChunkSize,
			Concurrency:      cfg.Extraction.Concurrency,
		}, baseLogger.With("component", "extraction")),
		Curation: usecase.NewCurationStage(invoker, usecase.CurationConfig{
			MinRelevanceScore: cfg.Curation.MinRelevanceScore,
			Categories:        cfg.Curation.Categories,
			Concurrency:       cfg.Curation.Concurrency,
		}, baseLogger.With("component", "curation"), nil),
		Generation: usecase.NewGenerationStage(invoker, renderer, usecase.GenerationConfig{
			SubjectPrefix: cfg.Newsletter.SubjectPrefix,
		}, baseLogger.With("component", "generation"), nil),
		Review: usecase.NewReviewStage(invoker, baseLogger.With("component", "review")),
		Delivery: usecase.NewDeliveryStage(usecase.DeliveryDeps{
			Renderer:   renderer,
			Inliner:    render.NewInliner(),
			Mailer:     mailer,
			Archiver:   archiver,
			Repository: repository,
			Notifier:   notifier,
			Recipients: cfg.Newsletter.Recipients,
			Logger:     baseLogger.With("component", "delivery"),
		}),
		Gate: usecase.RevisionGate{
			MinQualityScore:     cfg.Editorial.MinQualityScore,
			MaxRevisionAttempts: cfg.Editorial.Attempts(),
		},
		Observer: observer,
		Logger:   baseLogger.With("component", "orchestrator"),
	})

	return a, nil
}

func (a *Application) archiver() (ports.Archiver, error) {
	switch strings.ToLower(strings.TrimSpace(a.cfg.Archive.Backend)) {
	case "sql":
		if a.repo == nil {
			return nil, fmt.Errorf("archive backend sql requires storage.dsn")
		}
		return a.repo, nil
	case "", "file":
		return storage.NewFileArchiver(a.cfg.Archive.Dir), nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", a.cfg.Archive.Backend)
	}
}

// Run performs a single full pipeline execution under a fresh run id.
func (a *Application) Run(ctx context.Context) (domain.PipelineState, error) {
	return a.orchestrator.Run(ctx, domain.NewState(uuid.NewString()))
}

// RunStage executes one named stage against a previously saved state.
func (a *Application) RunStage(ctx context.Context, name string, state domain.PipelineState) (domain.PipelineState, error) {
	if state.RunID == "" {
		state.RunID = uuid.NewString()
	}
	return a.orchestrator.RunStage(ctx, name, state)
}

// Schedule triggers a run every week at the configured time until ctx is done.
func (a *Application) Schedule(ctx context.Context) error {
	weekday, err := config.ParseWeekday(a.cfg.Scheduler.Weekday)
	if err != nil {
		return err
	}
	hour, minute, err := config.ParseClock(a.cfg.Scheduler.Time)
	if err != nil {
		return err
	}
	driver, err := scheduler.NewWeeklyScheduler(weekday, hour, minute, a.cfg.Scheduler.Location())
	if err != nil {
		return err
	}

	sched := usecase.NewScheduler(driver, a.orchestrator, uuid.NewString, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "next_run", driver.Next(time.Now()))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Close releases the storage handle.
func (a *Application) Close() error {
	if a.repo == nil {
		return nil
	}
	return a.repo.Close()
}
