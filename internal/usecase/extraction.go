package usecase

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/extract"
	"NewsletterAgent/internal/prompts"
)

const unprocessedSummary = "Could not process article."

// ExtractionConfig tunes summarization.
type ExtractionConfig struct {
	MaxSummaryLength int
	MaxChunkSize     int
	Concurrency      int
}

// ExtractionStage summarizes every raw article. Articles are processed in
// parallel; each worker writes only its own slot so output order matches input.
type ExtractionStage struct {
	invoker *extract.Invoker
	cfg     ExtractionConfig
	logger  *slog.Logger
}

var _ Stage = (*ExtractionStage)(nil)

// NewExtractionStage constructs the stage.
func NewExtractionStage(invoker *extract.Invoker, cfg ExtractionConfig, logger *slog.Logger) *ExtractionStage {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &ExtractionStage{invoker: invoker, cfg: cfg, logger: orDiscard(logger).With("stage", StageExtraction)}
}

func (s *ExtractionStage) Name() string { return StageExtraction }

// Run writes SummarizedContent. Unparseable or failed extractions degrade to
// the truncated article body; cancellation and fatal model errors stop the stage.
func (s *ExtractionStage) Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error) {
	if err := cancelled(ctx, StageExtraction); err != nil {
		return state, err
	}

	results := make([]domain.SummarizedContent, len(state.RawArticles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, article := range state.RawArticles {
		g.Go(func() error {
			sc, err := s.extractOne(gctx, article)
			if err != nil {
				return err
			}
			results[i] = sc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return state, domain.WithStage(StageExtraction, err)
	}

	s.logger.Info("extraction finished", "articles", len(results))
	state.SummarizedContent = results
	return state, nil
}

func (s *ExtractionStage) extractOne(ctx context.Context, article domain.RawArticle) (domain.SummarizedContent, error) {
	content := truncate(article.Content, s.cfg.MaxChunkSize)
	out := domain.SummarizedContent{
		OriginalURL:      article.URL,
		Title:            article.Title,
		KeyEntities:      []string{},
		TrendsIdentified: []string{},
	}

	prompt := prompts.Extraction(s.cfg.MaxSummaryLength, article.Title, article.URL, content)
	resp, err := extract.Structured[extractionResponse](ctx, s.invoker, prompt)
	if err != nil {
		if stageStopping(err) {
			return out, err
		}
		s.logger.Warn("extraction failed, using article text", "url", article.URL, "kind", domain.KindOf(err), "error", err)
		out.Summary = truncate(fallbackText(content), s.cfg.MaxSummaryLength)
		return out, nil
	}

	out.Summary = s.fitSummary(ctx, strings.TrimSpace(*resp.Summary))
	if resp.KeyEntities != nil {
		out.KeyEntities = resp.KeyEntities
	}
	if resp.TrendsIdentified != nil {
		out.TrendsIdentified = resp.TrendsIdentified
	}
	return out, nil
}

// fitSummary asks once for a shorter summary and truncates whatever remains too long.
func (s *ExtractionStage) fitSummary(ctx context.Context, summary string) string {
	limit := s.cfg.MaxSummaryLength
	if limit <= 0 || utf8.RuneCountInString(summary) <= limit {
		return summary
	}
	shorter, err := s.invoker.Text(ctx, prompts.Resummarize(limit, summary))
	if err == nil {
		summary = strings.TrimSpace(shorter)
	} else {
		s.logger.Debug("resummarize failed", "error", err)
	}
	return truncate(summary, limit)
}

func fallbackText(content string) string {
	if strings.TrimSpace(content) == "" {
		return unprocessedSummary
	}
	return strings.TrimSpace(content)
}

// stageStopping reports errors no per-item fallback may swallow.
func stageStopping(err error) bool {
	switch domain.KindOf(err) {
	case domain.KindCancelled, domain.KindFatalModel:
		return true
	}
	return false
}
