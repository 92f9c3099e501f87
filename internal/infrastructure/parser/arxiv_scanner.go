package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/scanner"
)

const (
	arxivBaseURL = "https://arxiv.org"
	userAgent    = "NewsletterAgent/1.0"
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivScanner crawls category listing pages and keeps papers matching the research keywords.
type ArxivScanner struct {
	client   *http.Client
	pageSize int
	now      func() time.Time
}

// NewArxivScanner wires an HTTP client; pageSize defaults to 200.
func NewArxivScanner(client *http.Client) *ArxivScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ArxivScanner{client: client, pageSize: 200, now: time.Now}
}

// Name identifies the strategy inside the registry.
func (a *ArxivScanner) Name() string {
	return "arxiv"
}

// Scan walks through each category URL, newest first, and returns matching
// papers published on or after req.Since. Without Since only the first page is read.
func (a *ArxivScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawArticle, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided for site %s", req.SiteName)
	}

	since := req.Since.UTC().Truncate(24 * time.Hour)
	fetchedAt := a.now().UTC()
	results := make([]domain.RawArticle, 0)
	seen := map[string]struct{}{}

	for _, cat := range req.Categories {
		skip := 0
		for {
			pageURL, err := buildPageURL(cat.URL, skip, a.pageSize)
			if err != nil {
				return results, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			doc, err := a.fetchDocument(ctx, pageURL)
			if err != nil {
				return results, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			page, shouldContinue := a.extractArticles(doc, since)
			for _, paper := range page {
				if _, ok := seen[paper.URL]; ok {
					continue
				}
				if !matchesKeywords(paper.Title+" "+paper.Content, req.Keywords) {
					continue
				}
				seen[paper.URL] = struct{}{}
				paper.FetchedAt = fetchedAt
				results = append(results, paper)
				if req.Limit > 0 && len(results) >= req.Limit {
					return results, nil
				}
			}

			if !shouldContinue || since.IsZero() {
				break
			}
			skip += a.pageSize
		}
	}

	return results, nil
}

func (a *ArxivScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (a *ArxivScanner) extractArticles(doc *goquery.Document, since time.Time) ([]domain.RawArticle, bool) {
	var (
		collected    []domain.RawArticle
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		article, ok := parseEntry(dt, dd)
		if !ok {
			return true
		}

		articleDay := article.PublishedAt.UTC().Truncate(24 * time.Hour)
		if !since.IsZero() && articleDay.Before(since) {
			continueScan = false
			return false
		}
		collected = append(collected, article)
		return true
	})

	if processed < a.pageSize {
		continueScan = false
	}

	return collected, continueScan
}

func parseEntry(dt, dd *goquery.Selection) (domain.RawArticle, bool) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, exists := link.Attr("href")
	if !exists || href == "" {
		return domain.RawArticle{}, false
	}
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimPrefix(title, "Title:")
	title = strings.TrimSpace(title)

	summary := dd.Find("p.mathjax").First().Text()
	summary = strings.TrimPrefix(strings.TrimSpace(summary), "Abstract:")
	summary = strings.Join(strings.Fields(summary), " ")

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	var publishedAt time.Time
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			publishedAt = parsed
		}
	}

	return domain.RawArticle{
		Title:       title,
		URL:         href,
		Content:     summary,
		Source:      domain.SourceArxiv,
		PublishedAt: publishedAt,
	}, true
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// matchesKeywords reports whether every word of at least one keyword occurs in text.
// No keywords matches everything.
func matchesKeywords(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	text = strings.ToLower(text)
	for _, kw := range keywords {
		words := strings.Fields(strings.ToLower(kw))
		if len(words) == 0 {
			continue
		}
		all := true
		for _, w := range words {
			if !strings.Contains(text, w) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
