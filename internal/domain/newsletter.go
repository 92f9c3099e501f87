package domain

import "time"

// CategoryMiscellaneous is assigned when curation cannot place an article.
const CategoryMiscellaneous = "Miscellaneous"

// DefaultCategories lists the newsletter sections curation may assign.
var DefaultCategories = []string{
	"Top Insights & Breakthroughs",
	"New Frameworks & Tools",
	"Agentic Workflow Spotlights",
	"Ethical & Societal Impact",
	"Research & Academic Highlights",
	"Tutorials & Learning Resources",
	"Industry News & Applications",
	CategoryMiscellaneous,
}

// NewsletterArticle is an article as it appears inside an outline section.
type NewsletterArticle struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

// NewsletterSection groups selected articles under a heading.
type NewsletterSection struct {
	Name     string              `json:"name"`
	Articles []NewsletterArticle `json:"articles"`
}

// NewsletterOutline is the structured plan generation renders into markdown.
type NewsletterOutline struct {
	Date               time.Time           `json:"date"`
	IntroductionPoints []string            `json:"introduction_points"`
	Sections           []NewsletterSection `json:"sections"`
	ConclusionPoints   []string            `json:"conclusion_points"`
	OverallTrends      []string            `json:"overall_trends"`
}

// ArticleCount reports how many articles the outline references.
func (o NewsletterOutline) ArticleCount() int {
	n := 0
	for _, s := range o.Sections {
		n += len(s.Articles)
	}
	return n
}

// Articles flattens the outline sections in order.
func (o NewsletterOutline) Articles() []NewsletterArticle {
	out := make([]NewsletterArticle, 0, o.ArticleCount())
	for _, s := range o.Sections {
		out = append(out, s.Articles...)
	}
	return out
}

// EmptyOutline is used when nothing met the relevance threshold.
func EmptyOutline(day time.Time) NewsletterOutline {
	return NewsletterOutline{
		Date:               day,
		IntroductionPoints: []string{"No significant news found this week. Please check back next time!"},
		Sections:           []NewsletterSection{},
		ConclusionPoints:   []string{"Stay tuned for more updates."},
		OverallTrends:      []string{"Low news volume"},
	}
}

// FallbackOutline replaces an outline that curation failed to produce.
// It only supplies content; revision bookkeeping is untouched.
func FallbackOutline(day time.Time) NewsletterOutline {
	return NewsletterOutline{
		Date:               day,
		IntroductionPoints: []string{"An error occurred while preparing this week's outline."},
		Sections:           []NewsletterSection{},
		ConclusionPoints:   []string{},
		OverallTrends:      []string{},
	}
}

// Draft is the rendered newsletter mutated across generation and review cycles.
type Draft struct {
	Date             time.Time  `json:"date"`
	Subject          string     `json:"subject"`
	Markdown         string     `json:"content_markdown"`
	HTML             string     `json:"content_html,omitempty"`
	IsApproved       bool       `json:"is_approved"`
	QualityScore     float64    `json:"approval_score"`
	Feedback         string     `json:"feedback,omitempty"`
	RevisionAttempts int        `json:"revision_attempts"`
	SentAt           *time.Time `json:"sent_timestamp,omitempty"`
}

// DeliveryReport records the terminal outcome of the delivery stage.
type DeliveryReport struct {
	Sent          bool      `json:"sent"`
	Recipients    int       `json:"recipients"`
	MessageID     string    `json:"message_id,omitempty"`
	ArchiveRef    string    `json:"archive_ref,omitempty"`
	ArchiveError  string    `json:"archive_error,omitempty"`
	SkippedReason string    `json:"skipped_reason,omitempty"`
	SendError     string    `json:"send_error,omitempty"`
	Announced     bool      `json:"announced"`
	CompletedAt   time.Time `json:"completed_at"`
}

// DeliveryReceipt is returned by mailers on success.
type DeliveryReceipt struct {
	MessageID  string
	Recipients int
	AcceptedAt time.Time
}

// ArchiveEntry is what delivery hands to an archiver.
type ArchiveEntry struct {
	RunID        string
	Subject      string
	Markdown     string
	HTML         string
	Approved     bool
	QualityScore float64
	Articles     []NewsletterArticle
	CreatedAt    time.Time
}
