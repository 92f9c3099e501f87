// Package extract couples model calls with structured parsing. Stages never
// parse raw model output themselves; they go through an Invoker.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/ports"
	"NewsletterAgent/internal/structured"
)

// MaxAttempts is the ceiling of model calls per extraction point.
const MaxAttempts = 2

// ErrEmptyResponse is reported when the model answers with blank text.
var ErrEmptyResponse = errors.New("empty model response")

// Invoker runs "ask the model, parse its answer" as one bounded operation.
type Invoker struct {
	model  ports.ChatClient
	logger *slog.Logger
}

// NewInvoker wires a model client; a nil logger discards output.
func NewInvoker(model ports.ChatClient, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Invoker{model: model, logger: logger}
}

// Structured asks the model and parses the answer into T, retrying the whole
// call-and-parse cycle once. Every failure is a *domain.StageError.
func Structured[T any](ctx context.Context, inv *Invoker, prompt string) (T, error) {
	var zero T
	raws := make([]string, 0, MaxAttempts)
	var lastErr error
	parseFailed := false

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		raw, err := inv.call(ctx, prompt)
		if err != nil {
			if stop := inv.terminal(err, raws); stop != nil {
				return zero, stop
			}
			lastErr = err
			inv.logger.Warn("model call failed", "attempt", attempt, "error", err)
			continue
		}
		raws = append(raws, raw)

		v, res, err := structured.ParseWithResult[T](raw)
		if err == nil {
			if res.Repaired {
				inv.logger.Debug("model output repaired", "attempt", attempt)
			}
			return v, nil
		}
		parseFailed = true
		lastErr = err
		inv.logger.Warn("model output unparseable", "attempt", attempt, "error", err)
	}

	kind := domain.KindTransientModel
	if parseFailed {
		kind = domain.KindUnrecoverableParse
	}
	return zero, &domain.StageError{Kind: kind, Attempts: raws, Err: lastErr}
}

// Text asks the model for free text with the same attempt ceiling as Structured.
// Blank answers count as failed attempts.
func (inv *Invoker) Text(ctx context.Context, prompt string) (string, error) {
	raws := make([]string, 0, MaxAttempts)
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		raw, err := inv.call(ctx, prompt)
		if err != nil {
			if stop := inv.terminal(err, raws); stop != nil {
				return "", stop
			}
			lastErr = err
			inv.logger.Warn("model call failed", "attempt", attempt, "error", err)
			continue
		}
		if strings.TrimSpace(raw) == "" {
			raws = append(raws, raw)
			lastErr = ErrEmptyResponse
			continue
		}
		return raw, nil
	}
	kind := domain.KindTransientModel
	if errors.Is(lastErr, ErrEmptyResponse) {
		kind = domain.KindUnrecoverableParse
	}
	return "", &domain.StageError{Kind: kind, Attempts: raws, Err: lastErr}
}

func (inv *Invoker) call(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if inv == nil || inv.model == nil {
		return "", fmt.Errorf("model client is not configured: %w", domain.ErrFatalModel)
	}
	return inv.model.Complete(ctx, prompt)
}

// terminal returns a StageError for failures that must not be retried.
func (inv *Invoker) terminal(err error, raws []string) error {
	switch domain.KindOf(err) {
	case domain.KindCancelled:
		return &domain.StageError{Kind: domain.KindCancelled, Attempts: raws, Err: err}
	case domain.KindFatalModel:
		return &domain.StageError{Kind: domain.KindFatalModel, Attempts: raws, Err: err}
	}
	return nil
}
