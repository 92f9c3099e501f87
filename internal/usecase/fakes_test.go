package usecase

import (
	"context"
	"sync"
	"time"

	"NewsletterAgent/internal/domain"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakeSource struct {
	articles []domain.RawArticle
	err      error
	queries  []domain.ResearchQuery
}

func (f *fakeSource) Fetch(_ context.Context, q domain.ResearchQuery) ([]domain.RawArticle, error) {
	f.queries = append(f.queries, q)
	return f.articles, f.err
}

type fakeRepository struct {
	mu        sync.Mutex
	published map[string]bool
	marked    []domain.NewsletterArticle
	markedRun string
}

func (f *fakeRepository) AlreadyPublished(_ context.Context, urls []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, u := range urls {
		if f.published[u] {
			out[u] = true
		}
	}
	return out, nil
}

func (f *fakeRepository) MarkPublished(_ context.Context, runID string, articles []domain.NewsletterArticle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedRun = runID
	f.marked = append(f.marked, articles...)
	return nil
}

type fakeMailer struct {
	err     error
	sent    int
	subject string
	html    string
}

func (f *fakeMailer) Send(_ context.Context, subject, html string, recipients []string) (domain.DeliveryReceipt, error) {
	if f.err != nil {
		return domain.DeliveryReceipt{}, f.err
	}
	f.sent++
	f.subject = subject
	f.html = html
	return domain.DeliveryReceipt{MessageID: "msg-1", Recipients: len(recipients), AcceptedAt: fixedNow}, nil
}

type fakeArchiver struct {
	entries []domain.ArchiveEntry
}

func (f *fakeArchiver) Store(_ context.Context, e domain.ArchiveEntry) (string, error) {
	f.entries = append(f.entries, e)
	return "archive/" + e.RunID, nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.messages = append(f.messages, digest)
	return nil
}

type paragraphRenderer struct{}

func (paragraphRenderer) ToHTML(md string) (string, error) {
	return "<p>" + md + "</p>", nil
}

type taggingInliner struct{}

func (taggingInliner) Inline(html string) (string, error) {
	return "<!-- inlined -->" + html, nil
}
