package parser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/scanner"
)

// FeedScanner reads RSS/Atom feeds listed as site categories.
type FeedScanner struct {
	parser *gofeed.Parser
	strip  *bluemonday.Policy
	now    func() time.Time
}

// NewFeedScanner wires a gofeed parser around client.
func NewFeedScanner(client *http.Client) *FeedScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	fp := gofeed.NewParser()
	fp.Client = client
	fp.UserAgent = userAgent
	return &FeedScanner{parser: fp, strip: bluemonday.StrictPolicy(), now: time.Now}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string {
	return "rss"
}

// Scan reads every feed, keeping at most an even share of req.Limit per feed.
// Items older than req.Since are skipped. A failing feed does not stop the others.
func (f *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawArticle, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}

	perFeed := req.PerUnit(len(req.Categories))
	now := f.now().UTC()
	var (
		results []domain.RawArticle
		failed  []string
	)

	for _, feedCfg := range req.Categories {
		feed, err := f.parser.ParseURLWithContext(feedCfg.URL, ctx)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			failed = append(failed, fmt.Sprintf("%s: %v", feedCfg.Name, err))
			continue
		}

		taken := 0
		for _, item := range feed.Items {
			if perFeed > 0 && taken >= perFeed {
				break
			}
			if strings.TrimSpace(item.Link) == "" {
				continue
			}
			published := itemTime(item)
			if !req.Since.IsZero() && !published.IsZero() && published.Before(req.Since) {
				continue
			}

			body := item.Content
			if strings.TrimSpace(body) == "" {
				body = item.Description
			}

			results = append(results, domain.RawArticle{
				Title:       strings.TrimSpace(item.Title),
				URL:         strings.TrimSpace(item.Link),
				Content:     strings.Join(strings.Fields(f.strip.Sanitize(body)), " "),
				Source:      domain.SourceRSS,
				PublishedAt: published,
				FetchedAt:   now,
			})
			taken++
		}
	}

	if len(failed) > 0 {
		return results, fmt.Errorf("feeds failed: %s", strings.Join(failed, "; "))
	}
	return results, nil
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}
