package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/extract"
	"NewsletterAgent/internal/llmtest"
)

const (
	generationMarker = "Write the complete newsletter"
	subjectPrefix    = "AI Agent Weekly Digest: "
)

const generatedReply = "Sure, here is the newsletter:\n```markdown\n# AI Agent Weekly Digest: Frameworks everywhere\n\n## Introduction\nA busy week.\n```\nHope this helps!"

func outlinedState() domain.PipelineState {
	state := domain.NewState("g")
	state.NewsletterOutline = &domain.NewsletterOutline{
		Date:               fixedNow,
		IntroductionPoints: []string{"Busy week"},
		Sections: []domain.NewsletterSection{{
			Name:     "New Frameworks & Tools",
			Articles: []domain.NewsletterArticle{{Title: "Alpha", Summary: "Alpha summary", URL: "https://alpha.example"}},
		}},
	}
	return state
}

func TestGenerationIsIdempotent(t *testing.T) {
	t.Parallel()

	model := llmtest.NewRouter().On(generationMarker, generatedReply)
	stage := NewGenerationStage(extract.NewInvoker(model, nil), paragraphRenderer{}, GenerationConfig{SubjectPrefix: subjectPrefix}, nil, clock)

	in := outlinedState()
	first, err := stage.Run(context.Background(), in)
	require.NoError(t, err)
	second, err := stage.Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Nil(t, in.NewsletterDraft, "input state is not mutated")

	draft := first.NewsletterDraft
	require.NotNil(t, draft)
	assert.Equal(t, "AI Agent Weekly Digest: Frameworks everywhere", draft.Subject)
	assert.Equal(t, "## Introduction\nA busy week.", draft.Markdown)
	assert.Equal(t, "<p>## Introduction\nA busy week.</p>", draft.HTML)
	assert.False(t, draft.IsApproved)
	assert.Equal(t, fixedNow, draft.Date)
}

func TestGenerationPassesReviewerFeedback(t *testing.T) {
	t.Parallel()

	model := llmtest.NewScripted(generatedReply)
	stage := NewGenerationStage(extract.NewInvoker(model, nil), nil, GenerationConfig{SubjectPrefix: subjectPrefix}, nil, clock)

	state := outlinedState()
	state.NewsletterDraft = &domain.Draft{Markdown: "old", QualityScore: 0.4, Feedback: "Tighten the introduction."}
	state.RevisionNeeded = true
	state.RevisionAttempts = 1

	got, err := stage.Run(context.Background(), state)
	require.NoError(t, err)

	prompts := model.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Tighten the introduction.")
	assert.Contains(t, prompts[0], "2026-03-02")
	assert.Equal(t, 1, got.NewsletterDraft.RevisionAttempts)
	assert.Zero(t, got.NewsletterDraft.QualityScore)

	state.RevisionNeeded = false
	_, err = stage.Run(context.Background(), state)
	require.NoError(t, err)
	assert.NotContains(t, model.Prompts()[1], "Tighten the introduction.")
}

func TestGenerationNeedsOutline(t *testing.T) {
	t.Parallel()

	stage := NewGenerationStage(extract.NewInvoker(llmtest.NewScripted("x"), nil), nil, GenerationConfig{}, nil, clock)
	_, err := stage.Run(context.Background(), domain.NewState("g"))
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestSplitSubject(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		text        string
		wantSubject string
		wantBody    string
	}{
		{
			name:        "subject label",
			text:        "Subject: AI Agent Weekly Digest: Big week\n\nBody text",
			wantSubject: "AI Agent Weekly Digest: Big week",
			wantBody:    "Body text",
		},
		{
			name:        "bold label",
			text:        "**Subject:** AI Agent Weekly Digest: Bold\n## Section",
			wantSubject: "AI Agent Weekly Digest: Bold",
			wantBody:    "## Section",
		},
		{
			name:        "heading",
			text:        "Here's the draft:\n\n# AI Agent Weekly Digest: Heading\nBody",
			wantSubject: "AI Agent Weekly Digest: Heading",
			wantBody:    "Body",
		},
		{
			name:        "fallback subject",
			text:        "## Only body",
			wantSubject: "AI Agent Weekly Digest: 2026-03-02 Updates",
			wantBody:    "## Only body",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			subject, body := SplitSubject(tc.text, subjectPrefix, "2026-03-02")
			assert.Equal(t, tc.wantSubject, subject)
			assert.Equal(t, tc.wantBody, body)
		})
	}
}
