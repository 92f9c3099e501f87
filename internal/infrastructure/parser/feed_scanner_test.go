package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/scanner"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Agents Weekly</title>
    <link>https://agents.example</link>
    <description>news</description>
    <item>
      <title>New agent framework released</title>
      <link>https://agents.example/framework</link>
      <description><![CDATA[<p>A <b>new</b> framework for   agents.</p>]]></description>
      <pubDate>Mon, 02 Mar 2026 08:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Second story</title>
      <link>https://agents.example/second</link>
      <description>Another one.</description>
      <pubDate>Sun, 01 Mar 2026 08:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Ancient story</title>
      <link>https://agents.example/ancient</link>
      <description>Old news.</description>
      <pubDate>Mon, 02 Feb 2026 08:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestFeedScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	sc := NewFeedScanner(server.Client())
	articles, err := sc.Scan(context.Background(), scanner.Request{
		SiteName: "feeds",
		Since:    time.Date(2026, time.February, 23, 0, 0, 0, 0, time.UTC),
		Categories: []scanner.Category{
			{Name: "agents", URL: server.URL + "/feed.xml"},
			{Name: "broken", URL: server.URL + "/broken"},
		},
	})
	if err == nil {
		t.Fatalf("expected error for broken feed")
	}

	if len(articles) != 2 {
		t.Fatalf("expected 2 recent articles, got %d", len(articles))
	}
	first := articles[0]
	if first.URL != "https://agents.example/framework" || first.Source != domain.SourceRSS {
		t.Fatalf("unexpected article %+v", first)
	}
	if first.Content != "A new framework for agents." {
		t.Fatalf("html not stripped: %q", first.Content)
	}
	if first.PublishedAt.Day() != 2 {
		t.Fatalf("unexpected published date %v", first.PublishedAt)
	}
}

func TestFeedScannerLimitsPerFeed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	articles, err := NewFeedScanner(server.Client()).Scan(context.Background(), scanner.Request{
		Limit: 2,
		Categories: []scanner.Category{
			{Name: "a", URL: server.URL + "/a"},
			{Name: "b", URL: server.URL + "/b"},
		},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected one article per feed, got %d", len(articles))
	}
}

func TestFeedScannerRequiresFeeds(t *testing.T) {
	t.Parallel()

	_, err := NewFeedScanner(nil).Scan(context.Background(), scanner.Request{SiteName: "empty"})
	if err == nil {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
