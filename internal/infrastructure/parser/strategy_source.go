package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"NewsletterAgent/internal/config"
	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/ports"
	"NewsletterAgent/internal/scanner"
)

// StrategySource implements ArticleSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// Fetch iterates over configured sites and executes their scanners. Failing
// sites are reported through an error wrapping domain.ErrFetch while the
// articles of the others are still returned.
func (s *StrategySource) Fetch(ctx context.Context, query domain.ResearchQuery) ([]domain.RawArticle, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured: %w", domain.ErrFetch)
	}

	s.debug("fetch", "sites", len(s.sites), "keywords", len(query.Keywords), "max_articles", query.MaxArticles)

	var (
		aggregated []domain.RawArticle
		failures   []error
	)
	for _, site := range s.sites {
		if err := ctx.Err(); err != nil {
			return aggregated, err
		}
		s.debug("process site", "site", site.Name, "scanner", site.Scanner, "categories", len(site.Categories))
		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			failures = append(failures, fmt.Errorf("site %s: %w", site.Name, err))
			continue
		}

		req := scanner.Request{
			Since:      query.Since,
			SiteName:   site.Name,
			Keywords:   query.Keywords,
			Limit:      query.MaxArticles,
			Options:    site.Options,
			Categories: toScannerCategories(site.Categories),
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			if domain.IsCancellation(err) {
				return append(aggregated, results...), err
			}
			s.warn("site failed", "site", site.Name, "kept", len(results), "error", err)
			failures = append(failures, fmt.Errorf("scan site %s: %w", site.Name, err))
		}

		s.debug("site produced articles", "site", site.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	s.debug("strategy source done", "total_articles", len(aggregated))
	if len(failures) > 0 {
		return aggregated, fmt.Errorf("%w: %w", domain.ErrFetch, errors.Join(failures...))
	}
	return aggregated, nil
}

func toScannerCategories(cfg []config.CategoryConfig) []scanner.Category {
	categories := make([]scanner.Category, 0, len(cfg))
	for _, cat := range cfg {
		categories = append(categories, scanner.Category{
			Name: cat.Name,
			URL:  cat.URL,
		})
	}
	return categories
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
