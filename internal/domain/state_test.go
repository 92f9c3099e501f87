package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() PipelineState {
	day := time.Date(2025, time.July, 25, 0, 0, 0, 0, time.UTC)
	return PipelineState{
		RunID: "run-1",
		RawArticles: []RawArticle{
			{Title: "A", URL: "https://a.example", Source: SourceRSS, FetchedAt: day},
		},
		SummarizedContent: []SummarizedContent{
			{OriginalURL: "https://a.example", Title: "A", Summary: "sum", KeyEntities: []string{"x"}},
		},
		NewsletterOutline: &NewsletterOutline{
			Date:               day,
			IntroductionPoints: []string{"intro"},
			Sections: []NewsletterSection{
				{Name: "New Frameworks & Tools", Articles: []NewsletterArticle{{Title: "A", URL: "https://a.example"}}},
			},
		},
		NewsletterDraft:  &Draft{Subject: "Digest", Markdown: "## Hi", QualityScore: 0.5, RevisionAttempts: 1},
		RevisionAttempts: 1,
	}
}

func TestStateRoundTripAllFields(t *testing.T) {
	t.Parallel()

	src := sampleState()
	var buf bytes.Buffer
	require.NoError(t, SaveState(&buf, src))

	var dst PipelineState
	require.NoError(t, LoadState(&buf, &dst))
	assert.Equal(t, src, dst)
}

func TestStateSubsetLeavesOtherFieldsUntouched(t *testing.T) {
	t.Parallel()

	src := sampleState()
	var buf bytes.Buffer
	require.NoError(t, SaveState(&buf, src, FieldSummarizedContent))

	var record map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Len(t, record, 1)
	assert.Contains(t, record, "summarized_content")

	dst := PipelineState{RunID: "other", RevisionAttempts: 2}
	require.NoError(t, LoadState(bytes.NewReader(buf.Bytes()), &dst))
	assert.Equal(t, "other", dst.RunID)
	assert.Equal(t, 2, dst.RevisionAttempts)
	assert.Equal(t, src.SummarizedContent, dst.SummarizedContent)
}

func TestStateRejectsUnknownField(t *testing.T) {
	t.Parallel()

	var dst PipelineState
	err := LoadState(bytes.NewReader([]byte(`{"mystery": 1}`)), &dst)
	require.Error(t, err)

	_, err = sampleState().Record(Field("mystery"))
	require.Error(t, err)
}

func TestStateFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/nested/review_state.json"
	src := sampleState()
	require.NoError(t, SaveStateFile(path, src, FieldDraft, FieldRevisionAttempts))

	var dst PipelineState
	require.NoError(t, LoadStateFile(path, &dst))
	assert.Equal(t, src.NewsletterDraft, dst.NewsletterDraft)
	assert.Equal(t, 1, dst.RevisionAttempts)
	assert.Nil(t, dst.RawArticles)
}

func TestCloneDoesNotAlias(t *testing.T) {
	t.Parallel()

	src := sampleState()
	cp := src.Clone()
	cp.NewsletterDraft.Subject = "changed"
	cp.SummarizedContent[0].KeyEntities[0] = "y"
	cp.NewsletterOutline.Sections[0].Articles[0].Title = "B"

	assert.Equal(t, "Digest", src.NewsletterDraft.Subject)
	assert.Equal(t, []string{"x"}, src.SummarizedContent[0].KeyEntities)
	assert.Equal(t, "A", src.NewsletterOutline.Sections[0].Articles[0].Title)
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindTransientModel, KindOf(fmt.Errorf("call: %w", ErrTransientModel)))
	assert.Equal(t, KindFatalModel, KindOf(fmt.Errorf("call: %w", ErrFatalModel)))
	assert.Equal(t, KindCancelled, KindOf(fmt.Errorf("call: %w", context.Canceled)))
	assert.Equal(t, KindSend, KindOf(fmt.Errorf("mail: %w", ErrSend)))

	wrapped := WithStage("review", &StageError{Kind: KindUnrecoverableParse, Err: errors.New("bad json")})
	var se *StageError
	require.True(t, errors.As(wrapped, &se))
	assert.Equal(t, "review", se.Stage)
	assert.Equal(t, KindUnrecoverableParse, se.Kind)
	assert.True(t, IsCancelled(NewStageError("x", KindCancelled, nil)))
}
