package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/scanner"
)

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	base := "https://export.arxiv.org/list/cs.AI/pastweek"
	u, err := buildPageURL(base, 200, 100)
	if err != nil {
		t.Fatalf("buildPageURL returned error: %v", err)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}

	if parsed.Scheme != "https" || parsed.Host != "export.arxiv.org" {
		t.Fatalf("unexpected host: %s", parsed.Host)
	}

	q := parsed.Query()
	if q.Get("skip") != "200" {
		t.Fatalf("expected skip=200, got %s", q.Get("skip"))
	}
	if q.Get("show") != "100" {
		t.Fatalf("expected show=100, got %s", q.Get("show"))
	}
}

func TestParseEntry(t *testing.T) {
	t.Parallel()

	html := `
	<dl>
	  <dt>
	    <span class="list-identifier"><a href="/abs/1234.56789">arXiv:1234.56789</a></span>
	  </dt>
	  <dd>
	    <div class="list-date">Date: 8 Nov 2025</div>
	    <div class="list-title mathjax">Title: Sample Title</div>
	    <p class="mathjax">Abstract: Sample   abstract
	    text.</p>
	  </dd>
	</dl>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	article, ok := parseEntry(doc.Find("dt").First(), doc.Find("dd").First())
	if !ok {
		t.Fatalf("parseEntry rejected a valid entry")
	}

	if article.URL != "https://arxiv.org/abs/1234.56789" {
		t.Fatalf("unexpected url: %s", article.URL)
	}
	if article.Title != "Sample Title" {
		t.Fatalf("unexpected title: %s", article.Title)
	}
	if article.Content != "Sample abstract text." {
		t.Fatalf("unexpected abstract: %q", article.Content)
	}
	if article.Source != domain.SourceArxiv {
		t.Fatalf("unexpected source: %s", article.Source)
	}
	if article.PublishedAt.Format("2006-01-02") != "2025-11-08" {
		t.Fatalf("unexpected published date: %v", article.PublishedAt)
	}
}

const listingPage = `
<dl>
  <dt><span class="list-identifier"><a href="/abs/2501.00001">arXiv:2501.00001</a></span></dt>
  <dd>
    <div class="list-date">Date: 8 Nov 2025</div>
    <div class="list-title mathjax">Title: Planning for Autonomous Agents</div>
    <p class="mathjax">Abstract: LLM agents that plan.</p>
  </dd>
  <dt><span class="list-identifier"><a href="/abs/2501.00003">arXiv:2501.00003</a></span></dt>
  <dd>
    <div class="list-date">Date: 8 Nov 2025</div>
    <div class="list-title mathjax">Title: Protein Folding</div>
    <p class="mathjax">Abstract: Nothing about the topic.</p>
  </dd>
  <dt><span class="list-identifier"><a href="/abs/2501.00002">arXiv:2501.00002</a></span></dt>
  <dd>
    <div class="list-date">Date: 1 Nov 2025</div>
    <div class="list-title mathjax">Title: Old Agents Paper</div>
    <p class="mathjax">Abstract: autonomous agents, but old.</p>
  </dd>
</dl>`

func TestArxivScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(listingPage))
	}))
	defer server.Close()

	sc := NewArxivScanner(server.Client())
	sc.pageSize = 10

	req := scanner.Request{
		Since:    time.Date(2025, time.November, 5, 12, 0, 0, 0, time.UTC),
		SiteName: "arxiv-ai",
		Keywords: []string{"autonomous agents", "multi-agent systems"},
		Categories: []scanner.Category{
			{Name: "cs.AI", URL: server.URL + "/list/cs.AI"},
		},
	}

	articles, err := sc.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	if articles[0].Title != "Planning for Autonomous Agents" {
		t.Fatalf("unexpected article: %s", articles[0].Title)
	}
	if articles[0].FetchedAt.IsZero() {
		t.Fatalf("fetch timestamp not set")
	}
}

func TestArxivScannerReportsHTTPErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewArxivScanner(server.Client()).Scan(context.Background(), scanner.Request{
		Categories: []scanner.Category{{Name: "cs.AI", URL: server.URL}},
	})
	if err == nil {
		t.Fatalf("expected error for unavailable listing")
	}
}

func TestMatchesKeywords(t *testing.T) {
	t.Parallel()

	if !matchesKeywords("Building LLM Agents with tools", []string{"llm agents"}) {
		t.Fatalf("expected phrase words to match")
	}
	if matchesKeywords("Agents in games", []string{"llm agents"}) {
		t.Fatalf("expected partial match to fail")
	}
	if !matchesKeywords("anything", nil) {
		t.Fatalf("no keywords must match everything")
	}
}
