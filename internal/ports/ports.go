package ports

import (
	"context"
	"time"

	"NewsletterAgent/internal/domain"
)

// ChatClient performs one generative model invocation. Implementations wrap
// domain.ErrTransientModel or domain.ErrFatalModel so callers can decide on retries.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ArticleSource pulls fresh articles from upstream providers. A partial result
// may be returned together with an error wrapping domain.ErrFetch.
type ArticleSource interface {
	Fetch(ctx context.Context, query domain.ResearchQuery) ([]domain.RawArticle, error)
}

// ArticleRepository remembers which article URLs already went out in a newsletter.
type ArticleRepository interface {
	AlreadyPublished(ctx context.Context, urls []string) (map[string]bool, error)
	MarkPublished(ctx context.Context, runID string, articles []domain.NewsletterArticle) error
}

// Renderer turns newsletter markdown into HTML.
type Renderer interface {
	ToHTML(markdown string) (string, error)
}

// StyleInliner moves presentation rules into style attributes for mail clients.
type StyleInliner interface {
	Inline(html string) (string, error)
}

// Mailer delivers rendered HTML to recipients. Failures wrap domain.ErrSend.
type Mailer interface {
	Send(ctx context.Context, subject, html string, recipients []string) (domain.DeliveryReceipt, error)
}

// Archiver stores every produced newsletter regardless of approval.
type Archiver interface {
	Store(ctx context.Context, entry domain.ArchiveEntry) (string, error)
}

// Notifier streams short announcements to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
