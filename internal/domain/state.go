package domain

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
)

// Field names a PipelineState field in its serialized record.
type Field string

const (
	FieldRunID             Field = "run_id"
	FieldRawArticles       Field = "raw_articles"
	FieldSummarizedContent Field = "summarized_content"
	FieldOutline           Field = "newsletter_outline"
	FieldDraft             Field = "newsletter_draft"
	FieldRevisionNeeded    Field = "revision_needed"
	FieldRevisionAttempts  Field = "revision_attempts"
	FieldDeliveryReport    Field = "delivery_report"
)

// AllFields lists every serializable field in declaration order.
var AllFields = []Field{
	FieldRunID,
	FieldRawArticles,
	FieldSummarizedContent,
	FieldOutline,
	FieldDraft,
	FieldRevisionNeeded,
	FieldRevisionAttempts,
	FieldDeliveryReport,
}

// PipelineState is threaded through every stage. Each stage owns a disjoint set of fields.
type PipelineState struct {
	RunID             string              `json:"run_id"`
	RawArticles       []RawArticle        `json:"raw_articles"`
	SummarizedContent []SummarizedContent `json:"summarized_content"`
	NewsletterOutline *NewsletterOutline  `json:"newsletter_outline"`
	NewsletterDraft   *Draft              `json:"newsletter_draft"`
	RevisionNeeded    bool                `json:"revision_needed"`
	RevisionAttempts  int                 `json:"revision_attempts"`
	DeliveryReport    *DeliveryReport     `json:"delivery_report"`
}

// NewState returns an empty state for a fresh run.
func NewState(runID string) PipelineState {
	return PipelineState{
		RunID:             runID,
		RawArticles:       []RawArticle{},
		SummarizedContent: []SummarizedContent{},
	}
}

// Clone deep-copies the parts of the state stages mutate in place.
func (s PipelineState) Clone() PipelineState {
	out := s
	out.RawArticles = slices.Clone(s.RawArticles)
	if s.SummarizedContent != nil {
		out.SummarizedContent = make([]SummarizedContent, len(s.SummarizedContent))
		for i, c := range s.SummarizedContent {
			c.KeyEntities = slices.Clone(c.KeyEntities)
			c.TrendsIdentified = slices.Clone(c.TrendsIdentified)
			out.SummarizedContent[i] = c
		}
	}
	if s.NewsletterOutline != nil {
		o := *s.NewsletterOutline
		o.Sections = make([]NewsletterSection, len(s.NewsletterOutline.Sections))
		for i, sec := range s.NewsletterOutline.Sections {
			sec.Articles = slices.Clone(sec.Articles)
			o.Sections[i] = sec
		}
		o.IntroductionPoints = slices.Clone(o.IntroductionPoints)
		o.ConclusionPoints = slices.Clone(o.ConclusionPoints)
		o.OverallTrends = slices.Clone(o.OverallTrends)
		out.NewsletterOutline = &o
	}
	if s.NewsletterDraft != nil {
		d := *s.NewsletterDraft
		out.NewsletterDraft = &d
	}
	if s.DeliveryReport != nil {
		r := *s.DeliveryReport
		out.DeliveryReport = &r
	}
	return out
}

// Record encodes the selected fields into a record keyed by field name.
// With no fields, every field is encoded.
func (s PipelineState) Record(fields ...Field) (map[Field]json.RawMessage, error) {
	if len(fields) == 0 {
		fields = AllFields
	}
	record := make(map[Field]json.RawMessage, len(fields))
	for _, f := range fields {
		var v any
		switch f {
		case FieldRunID:
			v = s.RunID
		case FieldRawArticles:
			v = s.RawArticles
		case FieldSummarizedContent:
			v = s.SummarizedContent
		case FieldOutline:
			v = s.NewsletterOutline
		case FieldDraft:
			v = s.NewsletterDraft
		case FieldRevisionNeeded:
			v = s.RevisionNeeded
		case FieldRevisionAttempts:
			v = s.RevisionAttempts
		case FieldDeliveryReport:
			v = s.DeliveryReport
		default:
			return nil, fmt.Errorf("unknown state field %q", f)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f, err)
		}
		record[f] = raw
	}
	return record, nil
}

// Apply decodes every field present in record onto the state, leaving absent fields untouched.
func (s *PipelineState) Apply(record map[Field]json.RawMessage) error {
	for f, raw := range record {
		var target any
		switch f {
		case FieldRunID:
			target = &s.RunID
		case FieldRawArticles:
			target = &s.RawArticles
		case FieldSummarizedContent:
			target = &s.SummarizedContent
		case FieldOutline:
			target = &s.NewsletterOutline
		case FieldDraft:
			target = &s.NewsletterDraft
		case FieldRevisionNeeded:
			target = &s.RevisionNeeded
		case FieldRevisionAttempts:
			target = &s.RevisionAttempts
		case FieldDeliveryReport:
			target = &s.DeliveryReport
		default:
			return fmt.Errorf("unknown state field %q", f)
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return fmt.Errorf("decode %s: %w", f, err)
		}
	}
	return nil
}

// SaveState writes the selected fields as an indented JSON record.
func SaveState(w io.Writer, s PipelineState, fields ...Field) error {
	record, err := s.Record(fields...)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// LoadState reads a record produced by SaveState into s.
func LoadState(r io.Reader, s *PipelineState) error {
	var record map[Field]json.RawMessage
	if err := json.NewDecoder(r).Decode(&record); err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	return s.Apply(record)
}

// SaveStateFile writes the state record to path, creating parent directories.
func SaveStateFile(path string, s PipelineState, fields ...Field) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}
	if err := SaveState(f, s, fields...); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadStateFile merges the record stored at path into s.
func LoadStateFile(path string, s *PipelineState) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer f.Close()
	return LoadState(f, s)
}
