package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"NewsletterAgent/internal/ports"
)

// Rule applies Style to every element matching Selector.
type Rule struct {
	Selector string
	Style    string
}

// DefaultRules is a small stylesheet that survives common mail clients.
var DefaultRules = []Rule{
	{Selector: "body", Style: "font-family: Arial, Helvetica, sans-serif; color: #222222; line-height: 1.5;"},
	{Selector: "h1", Style: "font-size: 24px; margin: 0 0 16px;"},
	{Selector: "h2", Style: "font-size: 20px; margin: 24px 0 12px; border-bottom: 1px solid #dddddd;"},
	{Selector: "h3", Style: "font-size: 16px; margin: 16px 0 8px;"},
	{Selector: "p", Style: "margin: 0 0 12px;"},
	{Selector: "a", Style: "color: #1a73e8; text-decoration: none;"},
	{Selector: "li", Style: "margin: 0 0 6px;"},
	{Selector: "blockquote", Style: "margin: 0 0 12px; padding-left: 12px; border-left: 3px solid #dddddd; color: #555555;"},
	{Selector: "code", Style: "font-family: Menlo, Consolas, monospace; background: #f4f4f4;"},
}

// Inliner copies rule styles into style attributes. Existing inline styles win
// because they are kept after the rule declarations.
type Inliner struct {
	rules []Rule
}

var _ ports.StyleInliner = (*Inliner)(nil)

// NewInliner uses DefaultRules when rules is empty.
func NewInliner(rules ...Rule) *Inliner {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Inliner{rules: rules}
}

// Inline returns a full HTML document with styles applied.
func (i *Inliner) Inline(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	for _, rule := range i.rules {
		doc.Find(rule.Selector).Each(func(_ int, s *goquery.Selection) {
			s.SetAttr("style", mergeStyle(rule.Style, s.AttrOr("style", "")))
		})
	}

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return out, nil
}

// mergeStyle prepends the rule declarations whose property is not already set
// inline, so inlining an inlined document is a no-op.
func mergeStyle(rule, existing string) string {
	existing = strings.TrimSpace(existing)
	set := make(map[string]bool)
	for _, decl := range strings.Split(existing, ";") {
		if prop, _, ok := strings.Cut(decl, ":"); ok {
			set[strings.ToLower(strings.TrimSpace(prop))] = true
		}
	}

	var add []string
	for _, decl := range strings.Split(rule, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		prop, _, _ := strings.Cut(decl, ":")
		if set[strings.ToLower(strings.TrimSpace(prop))] {
			continue
		}
		add = append(add, decl)
	}

	switch {
	case len(add) == 0:
		return existing
	case existing == "":
		return strings.Join(add, "; ")
	}
	return strings.Join(add, "; ") + "; " + existing
}
