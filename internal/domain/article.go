package domain

import "time"

// Source kinds reported by the research adapters.
const (
	SourceWebSearch = "web_search"
	SourceRSS       = "rss_feed"
	SourceArxiv     = "arxiv_paper"
)

// RawArticle is a core entity describing metadata fetched from providers.
type RawArticle struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content,omitempty"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	FetchedAt   time.Time `json:"fetch_timestamp"`
}

// SummarizedContent captures extraction output for one article.
type SummarizedContent struct {
	OriginalURL      string   `json:"original_url"`
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	KeyEntities      []string `json:"key_entities"`
	TrendsIdentified []string `json:"trends_identified"`
}

// ResearchQuery carries everything sources need for one research pass.
type ResearchQuery struct {
	Keywords    []string
	MaxArticles int
	Since       time.Time
}
