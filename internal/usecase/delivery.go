package usecase

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/ports"
)

// Skip reasons recorded in the delivery report.
const (
	SkipNoDraft      = "no draft produced"
	SkipNotApproved  = "newsletter not approved"
	SkipNoRecipients = "no recipients configured"
	SkipNoMailer     = "mailer not configured"
)

// DeliveryDeps wires the delivery stage. Every collaborator is optional.
type DeliveryDeps struct {
	Renderer   ports.Renderer
	Inliner    ports.StyleInliner
	Mailer     ports.Mailer
	Archiver   ports.Archiver
	Repository ports.ArticleRepository
	Notifier   ports.Notifier
	Recipients []string
	Logger     *slog.Logger
	Now        func() time.Time
}

// DeliveryStage archives every draft and sends approved ones.
type DeliveryStage struct {
	renderer   ports.Renderer
	inliner    ports.StyleInliner
	mailer     ports.Mailer
	archiver   ports.Archiver
	repository ports.ArticleRepository
	notifier   ports.Notifier
	recipients []string
	logger     *slog.Logger
	now        func() time.Time
}

var _ Stage = (*DeliveryStage)(nil)

// NewDeliveryStage constructs the stage.
func NewDeliveryStage(deps DeliveryDeps) *DeliveryStage {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &DeliveryStage{
		renderer:   deps.Renderer,
		inliner:    deps.Inliner,
		mailer:     deps.Mailer,
		archiver:   deps.Archiver,
		repository: deps.Repository,
		notifier:   deps.Notifier,
		recipients: deps.Recipients,
		logger:     orDiscard(deps.Logger).With("stage", StageDelivery),
		now:        now,
	}
}

func (s *DeliveryStage) Name() string { return StageDelivery }

// Run writes DeliveryReport. Send failures are recorded, not returned, since
// the archive has already been written by then.
func (s *DeliveryStage) Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error) {
	if err := cancelled(ctx, StageDelivery); err != nil {
		return state, err
	}

	report := &domain.DeliveryReport{Recipients: len(s.recipients)}
	if state.NewsletterDraft == nil {
		report.SkippedReason = SkipNoDraft
		report.CompletedAt = s.now()
		state.DeliveryReport = report
		return state, nil
	}

	draft := *state.NewsletterDraft
	body := s.inline(s.htmlFor(draft))

	var articles []domain.NewsletterArticle
	if state.NewsletterOutline != nil {
		articles = state.NewsletterOutline.Articles()
	}

	if s.archiver != nil {
		ref, err := s.archiver.Store(ctx, domain.ArchiveEntry{
			RunID:        state.RunID,
			Subject:      draft.Subject,
			Markdown:     draft.Markdown,
			HTML:         body,
			Approved:     draft.IsApproved,
			QualityScore: draft.QualityScore,
			Articles:     articles,
			CreatedAt:    s.now(),
		})
		if err != nil {
			if domain.IsCancellation(err) {
				return state, domain.NewStageError(StageDelivery, domain.KindCancelled, err)
			}
			s.logger.Error("archive newsletter", "error", err)
			report.ArchiveError = err.Error()
		} else {
			report.ArchiveRef = ref
		}
	}

	switch {
	case !draft.IsApproved:
		report.SkippedReason = SkipNotApproved
	case len(s.recipients) == 0:
		report.SkippedReason = SkipNoRecipients
	case s.mailer == nil:
		report.SkippedReason = SkipNoMailer
	default:
		receipt, err := s.mailer.Send(ctx, draft.Subject, body, s.recipients)
		if err != nil {
			if domain.IsCancellation(err) {
				return state, domain.NewStageError(StageDelivery, domain.KindCancelled, err)
			}
			s.logger.Error("send newsletter", "error", err)
			report.SendError = err.Error()
			break
		}
		sentAt := receipt.AcceptedAt
		if sentAt.IsZero() {
			sentAt = s.now()
		}
		draft.SentAt = &sentAt
		report.Sent = true
		report.MessageID = receipt.MessageID
		s.markPublished(ctx, state.RunID, articles)
		report.Announced = s.announce(ctx, draft, len(articles))
	}

	if report.SkippedReason != "" {
		s.logger.Info("newsletter not sent", "reason", report.SkippedReason)
	}
	report.CompletedAt = s.now()
	state.NewsletterDraft = &draft
	state.DeliveryReport = report
	return state, nil
}

func (s *DeliveryStage) htmlFor(draft domain.Draft) string {
	if draft.HTML != "" {
		return draft.HTML
	}
	if s.renderer != nil {
		out, err := s.renderer.ToHTML(draft.Markdown)
		if err == nil {
			return out
		}
		s.logger.Warn("render html, falling back to preformatted text", "error", err)
	}
	return "<pre>" + html.EscapeString(draft.Markdown) + "</pre>"
}

func (s *DeliveryStage) inline(doc string) string {
	if s.inliner == nil {
		return doc
	}
	out, err := s.inliner.Inline(doc)
	if err != nil {
		s.logger.Warn("inline styles", "error", err)
		return doc
	}
	return out
}

func (s *DeliveryStage) markPublished(ctx context.Context, runID string, articles []domain.NewsletterArticle) {
	if s.repository == nil || len(articles) == 0 {
		return
	}
	if err := s.repository.MarkPublished(ctx, runID, articles); err != nil {
		s.logger.Warn("mark articles published", "error", err)
	}
}

func (s *DeliveryStage) announce(ctx context.Context, draft domain.Draft, articles int) bool {
	if s.notifier == nil {
		return false
	}
	msg := buildAnnouncement(draft, articles)
	if err := s.notifier.PublishDigest(ctx, msg); err != nil {
		s.logger.Warn("publish announcement", "error", err)
		return false
	}
	return true
}

func buildAnnouncement(draft domain.Draft, articles int) string {
	var b strings.Builder
	b.WriteString(draft.Subject)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%d articles, editorial score %.2f.", articles, draft.QualityScore)
	return b.String()
}
