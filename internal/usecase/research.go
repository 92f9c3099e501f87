package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/ports"
)

// ResearchConfig tunes the research pass.
type ResearchConfig struct {
	Keywords      []string
	MaxArticles   int
	Lookback      time.Duration
	SkipPublished bool
}

// ResearchDeps wires the research stage.
type ResearchDeps struct {
	Source     ports.ArticleSource
	Repository ports.ArticleRepository
	Config     ResearchConfig
	Logger     *slog.Logger
	Now        func() time.Time
}

// ResearchStage gathers raw articles from every configured source.
type ResearchStage struct {
	source     ports.ArticleSource
	repository ports.ArticleRepository
	cfg        ResearchConfig
	logger     *slog.Logger
	now        func() time.Time
}

var _ Stage = (*ResearchStage)(nil)

// NewResearchStage constructs the stage.
func NewResearchStage(deps ResearchDeps) *ResearchStage {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &ResearchStage{
		source:     deps.Source,
		repository: deps.Repository,
		cfg:        deps.Config,
		logger:     orDiscard(deps.Logger).With("stage", StageResearch),
		now:        now,
	}
}

func (s *ResearchStage) Name() string { return StageResearch }

// Run writes RawArticles. Source failures with partial results are logged and
// the run continues; only a failure that produced nothing is fatal.
func (s *ResearchStage) Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error) {
	if err := cancelled(ctx, StageResearch); err != nil {
		return state, err
	}
	if s.source == nil {
		return state, domain.NewStageError(StageResearch, domain.KindInvalidState, errors.New("no article source configured"))
	}

	query := domain.ResearchQuery{
		Keywords:    s.cfg.Keywords,
		MaxArticles: s.cfg.MaxArticles,
	}
	if s.cfg.Lookback > 0 {
		query.Since = s.now().Add(-s.cfg.Lookback)
	}

	articles, err := s.source.Fetch(ctx, query)
	if err != nil {
		if domain.IsCancellation(err) || ctx.Err() != nil {
			return state, domain.NewStageError(StageResearch, domain.KindCancelled, err)
		}
		if len(articles) == 0 {
			return state, domain.NewStageError(StageResearch, domain.KindFetch, err)
		}
		s.logger.Warn("some sources failed, continuing with partial results", "fetched", len(articles), "error", err)
	}

	articles = DedupByURL(articles)
	articles = s.dropPublished(ctx, articles)
	if s.cfg.MaxArticles > 0 && len(articles) > s.cfg.MaxArticles {
		articles = articles[:s.cfg.MaxArticles]
	}

	s.logger.Info("research finished", "articles", len(articles))
	state.RawArticles = articles
	return state, nil
}

func (s *ResearchStage) dropPublished(ctx context.Context, articles []domain.RawArticle) []domain.RawArticle {
	if !s.cfg.SkipPublished || s.repository == nil || len(articles) == 0 {
		return articles
	}
	urls := make([]string, len(articles))
	for i, a := range articles {
		urls[i] = a.URL
	}
	seen, err := s.repository.AlreadyPublished(ctx, urls)
	if err != nil {
		s.logger.Warn("load published urls", "error", err)
		return articles
	}
	out := articles[:0:0]
	for _, a := range articles {
		if !seen[a.URL] {
			out = append(out, a)
		}
	}
	if skipped := len(articles) - len(out); skipped > 0 {
		s.logger.Info("skipped already published articles", "count", skipped)
	}
	return out
}

// DedupByURL keeps the first article seen for every URL, preserving order.
// Articles without a URL are dropped.
func DedupByURL(articles []domain.RawArticle) []domain.RawArticle {
	seen := make(map[string]struct{}, len(articles))
	out := make([]domain.RawArticle, 0, len(articles))
	for _, a := range articles {
		key := strings.TrimSpace(a.URL)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}
