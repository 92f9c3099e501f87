package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/extract"
	"NewsletterAgent/internal/ports"
	"NewsletterAgent/internal/prompts"
)

const dateLayout = "2006-01-02"

// GenerationConfig tunes drafting.
type GenerationConfig struct {
	SubjectPrefix string
}

// GenerationStage turns the outline into a markdown draft. It is re-entered
// on every revision and reads the previous reviewer feedback from the draft.
type GenerationStage struct {
	invoker  *extract.Invoker
	renderer ports.Renderer
	cfg      GenerationConfig
	logger   *slog.Logger
	now      func() time.Time
}

var _ Stage = (*GenerationStage)(nil)

// NewGenerationStage constructs the stage. The renderer is optional.
func NewGenerationStage(invoker *extract.Invoker, renderer ports.Renderer, cfg GenerationConfig, logger *slog.Logger, now func() time.Time) *GenerationStage {
	if now == nil {
		now = time.Now
	}
	return &GenerationStage{
		invoker:  invoker,
		renderer: renderer,
		cfg:      cfg,
		logger:   orDiscard(logger).With("stage", StageGeneration),
		now:      now,
	}
}

func (s *GenerationStage) Name() string { return StageGeneration }

// Run writes NewsletterDraft with approval cleared.
func (s *GenerationStage) Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error) {
	if err := cancelled(ctx, StageGeneration); err != nil {
		return state, err
	}
	if state.NewsletterOutline == nil {
		return state, domain.NewStageError(StageGeneration, domain.KindInvalidState, errors.New("no outline to generate from"))
	}

	outlineJSON, err := promptJSON(state.NewsletterOutline)
	if err != nil {
		return state, domain.NewStageError(StageGeneration, domain.KindInvalidState, fmt.Errorf("encode outline: %w", err))
	}

	var feedback string
	if state.RevisionNeeded && state.NewsletterDraft != nil {
		feedback = state.NewsletterDraft.Feedback
	}

	day := s.now()
	date := day.Format(dateLayout)
	text, err := s.invoker.Text(ctx, prompts.Generation(date, s.cfg.SubjectPrefix, outlineJSON, feedback))
	if err != nil {
		return state, domain.WithStage(StageGeneration, err)
	}

	subject, body := SplitSubject(text, s.cfg.SubjectPrefix, date)
	draft := &domain.Draft{
		Date:             day,
		Subject:          subject,
		Markdown:         body,
		Feedback:         feedback,
		RevisionAttempts: state.RevisionAttempts,
	}
	if s.renderer != nil {
		html, err := s.renderer.ToHTML(body)
		if err != nil {
			s.logger.Warn("render draft html", "error", err)
		} else {
			draft.HTML = html
		}
	}

	s.logger.Info("draft generated", "subject", subject, "revision", state.RevisionAttempts, "with_feedback", feedback != "")
	state.NewsletterDraft = draft
	return state, nil
}

var (
	preambleRe = regexp.MustCompile(`(?i)^(sure|certainly|okay|ok|here is|here's|below is)\b.*:\s*$`)
	subjectRe  = regexp.MustCompile(`(?i)^(?:#+\s*)?(?:\*\*)?(?:subject(?: line)?\s*:\s*(?:\*\*)?\s*)?`)
)

// SplitSubject separates the subject line from the markdown body. The subject
// is the first line starting with prefix; otherwise "<prefix><date> Updates" is used.
// Leading chatter and wrapping code fences are removed from the body.
func SplitSubject(text, prefix, date string) (string, string) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for len(lines) > 0 {
		first := strings.TrimSpace(lines[0])
		if first == "" || (preambleRe.MatchString(first) && !strings.HasPrefix(first, "#")) {
			lines = lines[1:]
			continue
		}
		break
	}
	lines = strings.Split(stripCodeFence(strings.Join(lines, "\n")), "\n")

	subject := prefix + date + " Updates"
	trimmedPrefix := strings.ToLower(strings.TrimSpace(prefix))
	for i, line := range lines {
		candidate := strings.TrimSpace(subjectRe.ReplaceAllString(strings.TrimSpace(line), ""))
		candidate = strings.TrimSpace(strings.TrimSuffix(candidate, "**"))
		if trimmedPrefix != "" && strings.HasPrefix(strings.ToLower(candidate), trimmedPrefix) {
			subject = candidate
			lines = append(lines[:i:i], lines[i+1:]...)
			break
		}
	}

	return subject, strings.TrimSpace(strings.Join(lines, "\n"))
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	nl := strings.IndexByte(text, '\n')
	if nl < 0 {
		return ""
	}
	body := text[nl+1:]
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
