// Package render turns newsletter markdown into mail-ready HTML.
package render

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"NewsletterAgent/internal/ports"
)

// Markdown converts CommonMark plus GFM tables and autolinks, then sanitizes the result.
type Markdown struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

var _ ports.Renderer = (*Markdown)(nil)

// NewMarkdown builds a renderer. Links to external sites open in a new tab.
func NewMarkdown() *Markdown {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		policy: policy,
	}
}

// ToHTML renders markdown. Raw HTML in the input is kept only when the policy allows it.
func (m *Markdown) ToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return string(m.policy.SanitizeBytes(buf.Bytes())), nil
}
