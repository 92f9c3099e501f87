package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"unicode/utf8"

	"NewsletterAgent/internal/domain"
)

// Stage names, also used as checkpoint file prefixes.
const (
	StageResearch   = "research"
	StageExtraction = "extraction"
	StageCuration   = "curation"
	StageGeneration = "generation"
	StageReview     = "review"
	StageGate       = "gate"
	StageDelivery   = "delivery"
)

// Stage consumes a pipeline state and returns the updated state. Stages only
// write the fields they own and must tolerate being re-run with the same input.
// Failures are reported as *domain.StageError.
type Stage interface {
	Name() string
	Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error)
}

// StageFunc adapts a function to the Stage interface.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error)
}

func (f StageFunc) Name() string { return f.StageName }

func (f StageFunc) Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error) {
	return f.Fn(ctx, state)
}

func cancelled(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStageError(stage, domain.KindCancelled, err)
	}
	return nil
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}

// truncate cuts s to at most n runes, ending with an ellipsis when shortened.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// promptJSON renders v for inclusion in a prompt, without HTML escaping.
func promptJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
