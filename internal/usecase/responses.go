package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/structured"
)

// stringList accepts either a JSON array of strings or a comma separated string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*l = trimAll(items)
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("expected list or string: %w", err)
	}
	*l = trimAll(strings.Split(joined, ","))
	return nil
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

type extractionResponse struct {
	Summary          *string    `json:"summary"`
	KeyEntities      stringList `json:"key_entities"`
	TrendsIdentified stringList `json:"trends_identified"`
}

func (r extractionResponse) Validate() error {
	if r.Summary == nil || strings.TrimSpace(*r.Summary) == "" {
		return errors.New("missing summary")
	}
	return nil
}

type scoringResponse struct {
	RelevanceScore *float64 `json:"relevance_score"`
	Category       string   `json:"category"`
}

func (r scoringResponse) Validate() error {
	return structured.CheckScore("relevance_score", r.RelevanceScore)
}

type outlineResponse struct {
	IntroductionPoints []string                   `json:"introduction_points"`
	Sections           []domain.NewsletterSection `json:"sections"`
	ConclusionPoints   []string                   `json:"conclusion_points"`
	OverallTrends      []string                   `json:"overall_trends"`
}

func (r outlineResponse) Validate() error {
	if r.Sections == nil {
		return errors.New("missing sections")
	}
	for i, s := range r.Sections {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("section %d has no name", i)
		}
		for j, a := range s.Articles {
			if strings.TrimSpace(a.URL) == "" || strings.TrimSpace(a.Title) == "" {
				return fmt.Errorf("section %q article %d lacks title or url", s.Name, j)
			}
		}
	}
	return nil
}

type reviewIssue struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type reviewResponse struct {
	QualityScore *float64      `json:"quality_score"`
	Feedback     string        `json:"feedback"`
	IssuesFound  []reviewIssue `json:"issues_found"`
}

func (r reviewResponse) Validate() error {
	return structured.CheckScore("quality_score", r.QualityScore)
}
