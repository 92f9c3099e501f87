package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/extract"
	"NewsletterAgent/internal/prompts"
)

const unparsedReviewFeedback = "Editorial review could not be completed; the reviewer response was unusable."

// ReviewStage scores the draft against the source summaries. It never decides
// approval; that is the gate's job.
type ReviewStage struct {
	invoker *extract.Invoker
	logger  *slog.Logger
}

var _ Stage = (*ReviewStage)(nil)

// NewReviewStage constructs the stage.
func NewReviewStage(invoker *extract.Invoker, logger *slog.Logger) *ReviewStage {
	return &ReviewStage{invoker: invoker, logger: orDiscard(logger).With("stage", StageReview)}
}

func (s *ReviewStage) Name() string { return StageReview }

// Run sets QualityScore and Feedback on the draft. A failed review scores zero
// so the gate treats it as a rejection rather than halting the run.
func (s *ReviewStage) Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error) {
	if err := cancelled(ctx, StageReview); err != nil {
		return state, err
	}
	if state.NewsletterDraft == nil {
		return state, domain.NewStageError(StageReview, domain.KindInvalidState, errors.New("no draft to review"))
	}

	summaries, err := promptJSON(state.SummarizedContent)
	if err != nil {
		return state, domain.NewStageError(StageReview, domain.KindInvalidState, fmt.Errorf("encode summaries: %w", err))
	}

	draft := *state.NewsletterDraft
	resp, err := extract.Structured[reviewResponse](ctx, s.invoker, prompts.Review(draft.Subject, draft.Markdown, summaries))
	if err != nil {
		if stageStopping(err) {
			return state, domain.WithStage(StageReview, err)
		}
		s.logger.Warn("review failed, scoring zero", "kind", domain.KindOf(err), "error", err)
		draft.QualityScore = 0
		draft.Feedback = unparsedReviewFeedback
	} else {
		draft.QualityScore = *resp.QualityScore
		draft.Feedback = composeFeedback(resp)
	}

	s.logger.Info("draft reviewed", "score", draft.QualityScore)
	state.NewsletterDraft = &draft
	return state, nil
}

func composeFeedback(resp reviewResponse) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(resp.Feedback))
	if len(resp.IssuesFound) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Issues found:")
		for _, issue := range resp.IssuesFound {
			kind := strings.TrimSpace(issue.Type)
			if kind == "" {
				kind = "general"
			}
			fmt.Fprintf(&b, "\n- [%s] %s", kind, strings.TrimSpace(issue.Description))
		}
	}
	return b.String()
}
