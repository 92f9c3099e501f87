package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/extract"
	"NewsletterAgent/internal/prompts"
)

// CurationConfig tunes scoring and selection.
type CurationConfig struct {
	MinRelevanceScore float64
	Categories        []string
	Concurrency       int
}

// CurationStage scores summaries, keeps the relevant ones and asks for an outline.
type CurationStage struct {
	invoker *extract.Invoker
	cfg     CurationConfig
	logger  *slog.Logger
	now     func() time.Time
}

var _ Stage = (*CurationStage)(nil)

// NewCurationStage constructs the stage; an empty category list means domain.DefaultCategories.
func NewCurationStage(invoker *extract.Invoker, cfg CurationConfig, logger *slog.Logger, now func() time.Time) *CurationStage {
	if len(cfg.Categories) == 0 {
		cfg.Categories = domain.DefaultCategories
	}
	if !slices.Contains(cfg.Categories, domain.CategoryMiscellaneous) {
		cfg.Categories = append(slices.Clone(cfg.Categories), domain.CategoryMiscellaneous)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if now == nil {
		now = time.Now
	}
	return &CurationStage{invoker: invoker, cfg: cfg, logger: orDiscard(logger).With("stage", StageCuration), now: now}
}

func (s *CurationStage) Name() string { return StageCuration }

type curatedArticle struct {
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	URL            string   `json:"url"`
	Category       string   `json:"category"`
	RelevanceScore float64  `json:"relevance_score"`
	KeyEntities    []string `json:"key_entities"`
}

// Run writes NewsletterOutline. An outline failure is returned as a StageError
// and leaves the state untouched.
func (s *CurationStage) Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error) {
	if err := cancelled(ctx, StageCuration); err != nil {
		return state, err
	}

	scored, err := s.score(ctx, state.SummarizedContent)
	if err != nil {
		return state, domain.WithStage(StageCuration, err)
	}

	selected := make([]curatedArticle, 0, len(scored))
	for _, a := range scored {
		if a.RelevanceScore >= s.cfg.MinRelevanceScore {
			selected = append(selected, a)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].RelevanceScore > selected[j].RelevanceScore
	})
	s.logger.Info("articles selected", "scored", len(scored), "selected", len(selected), "threshold", s.cfg.MinRelevanceScore)

	day := s.now()
	if len(selected) == 0 {
		empty := domain.EmptyOutline(day)
		state.NewsletterOutline = &empty
		return state, nil
	}

	payload, err := promptJSON(selected)
	if err != nil {
		return state, domain.NewStageError(StageCuration, domain.KindInvalidState, fmt.Errorf("encode selected articles: %w", err))
	}
	resp, err := extract.Structured[outlineResponse](ctx, s.invoker, prompts.Outline(payload))
	if err != nil {
		return state, domain.WithStage(StageCuration, err)
	}

	outline := domain.NewsletterOutline{
		Date:               day,
		IntroductionPoints: nonNil(resp.IntroductionPoints),
		Sections:           s.keepKnown(resp.Sections, selected),
		ConclusionPoints:   nonNil(resp.ConclusionPoints),
		OverallTrends:      nonNil(resp.OverallTrends),
	}
	state.NewsletterOutline = &outline
	return state, nil
}

func (s *CurationStage) score(ctx context.Context, items []domain.SummarizedContent) ([]curatedArticle, error) {
	out := make([]curatedArticle, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, item := range items {
		g.Go(func() error {
			a := curatedArticle{
				Title:       item.Title,
				Summary:     item.Summary,
				URL:         item.OriginalURL,
				Category:    domain.CategoryMiscellaneous,
				KeyEntities: item.KeyEntities,
			}
			prompt := prompts.Scoring(s.cfg.Categories, item.Title, item.Summary, item.KeyEntities)
			resp, err := extract.Structured[scoringResponse](gctx, s.invoker, prompt)
			switch {
			case err != nil && stageStopping(err):
				return err
			case err != nil:
				s.logger.Warn("scoring failed, treating as irrelevant", "url", item.OriginalURL, "error", err)
			default:
				a.RelevanceScore = *resp.RelevanceScore
				a.Category = s.category(resp.Category)
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CurationStage) category(name string) string {
	name = strings.TrimSpace(name)
	for _, c := range s.cfg.Categories {
		if strings.EqualFold(c, name) {
			return c
		}
	}
	return domain.CategoryMiscellaneous
}

// keepKnown drops outline articles whose URL was not among the selected ones
// and sections left empty by that.
func (s *CurationStage) keepKnown(sections []domain.NewsletterSection, selected []curatedArticle) []domain.NewsletterSection {
	known := make(map[string]curatedArticle, len(selected))
	for _, a := range selected {
		known[a.URL] = a
	}
	out := make([]domain.NewsletterSection, 0, len(sections))
	for _, sec := range sections {
		articles := make([]domain.NewsletterArticle, 0, len(sec.Articles))
		for _, a := range sec.Articles {
			src, ok := known[strings.TrimSpace(a.URL)]
			if !ok {
				s.logger.Warn("outline references unknown article", "url", a.URL)
				continue
			}
			a.URL = src.URL
			if strings.TrimSpace(a.Summary) == "" {
				a.Summary = src.Summary
			}
			if a.Category == "" {
				a.Category = src.Category
			}
			articles = append(articles, a)
		}
		if len(articles) > 0 {
			sec.Articles = articles
			out = append(out, sec)
		}
	}
	return out
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
