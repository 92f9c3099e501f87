package usecase

import (
	"log/slog"

	"NewsletterAgent/internal/domain"
)

// Decision is the outcome of one gate evaluation.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRevise   Decision = "revise_requested"
	DecisionRejected Decision = "rejected"
)

// Terminal reports whether the decision ends the revision cycle.
func (d Decision) Terminal() bool {
	return d != DecisionRevise
}

// RevisionGate decides after every review whether the draft is approved,
// sent back to generation, or rejected for good.
type RevisionGate struct {
	MinQualityScore     float64
	MaxRevisionAttempts int
	Logger              *slog.Logger
}

// Evaluate applies the transition rule to the reviewed state. A missing draft
// scores zero. RevisionAttempts is only incremented while below the maximum.
func (g RevisionGate) Evaluate(state domain.PipelineState) (domain.PipelineState, Decision) {
	logger := orDiscard(g.Logger)

	var draft *domain.Draft
	score := 0.0
	if state.NewsletterDraft != nil {
		d := *state.NewsletterDraft
		draft = &d
		score = d.QualityScore
	}

	var decision Decision
	switch {
	case draft != nil && score >= g.MinQualityScore:
		decision = DecisionApproved
		draft.IsApproved = true
		state.RevisionNeeded = false
	case state.RevisionAttempts < g.MaxRevisionAttempts:
		decision = DecisionRevise
		state.RevisionAttempts++
		state.RevisionNeeded = true
	default:
		decision = DecisionRejected
		state.RevisionNeeded = false
	}

	if draft != nil {
		if decision != DecisionApproved {
			draft.IsApproved = false
		}
		draft.RevisionAttempts = state.RevisionAttempts
		state.NewsletterDraft = draft
	}

	logger.Info("revision gate decided",
		"run_id", state.RunID,
		"decision", decision,
		"score", score,
		"threshold", g.MinQualityScore,
		"attempts", state.RevisionAttempts,
		"max_attempts", g.MaxRevisionAttempts,
	)
	return state, decision
}
