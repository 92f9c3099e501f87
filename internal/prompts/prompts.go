// Package prompts holds the model instructions used by each stage.
package prompts

import (
	"fmt"
	"strings"
)

const extraction = `You are an analyst for a weekly newsletter about AI agent development.
Extract the key information from the article below.

Respond with ONLY a JSON object of this exact shape:
{"summary": "<at most %d characters>", "key_entities": ["..."], "trends_identified": ["..."]}

Title: %s
URL: %s
Content:
%s`

const resummarize = `Shorten the following summary to at most %d characters.
Respond with ONLY the shortened summary text.

%s`

const scoring = `You curate a weekly newsletter about AI agent development.
Rate how relevant this article is for the newsletter and assign one category.

Allowed categories: %s

Respond with ONLY a JSON object:
{"relevance_score": <number between 0.0 and 1.0>, "category": "<one allowed category>"}

Title: %s
Summary: %s
Key entities: %s`

const outline = `You are the editor of a weekly newsletter about AI agent development.
Build the newsletter outline from the selected articles below. Group articles into
sections named after their category, keep every URL unchanged.

Respond with ONLY a JSON object:
{"introduction_points": ["..."], "sections": [{"name": "...", "articles": [{"title": "...", "summary": "...", "url": "...", "category": "..."}]}], "conclusion_points": ["..."], "overall_trends": ["..."]}

Selected articles (JSON):
%s`

const generation = `You write a weekly newsletter about AI agent development.
Date: %s

Write the complete newsletter in Markdown from the outline below.
Start with a single subject line that begins with "%s".
Then write an introduction, one "##" section per outline section with a "###" heading,
summary and a [Read More](url) link per article, and a conclusion with overall trends.

Outline (JSON):
%s`

const revision = `

The previous draft was rejected by the editor. Address this feedback:
%s`

const review = `You are the editorial reviewer of a weekly newsletter about AI agent development.
Judge the draft for quality, factual accuracy against the source summaries, structure and tone.

Respond with ONLY a JSON object:
{"quality_score": <number between 0.0 and 1.0>, "feedback": "<overall feedback>", "issues_found": [{"type": "...", "description": "..."}]}

Subject: %s

Draft (Markdown):
%s

Source summaries (JSON):
%s`

// Extraction asks for summary, entities and trends of one article.
func Extraction(maxSummary int, title, url, content string) string {
	return fmt.Sprintf(extraction, maxSummary, title, url, content)
}

// Resummarize asks the model to shorten an overlong summary.
func Resummarize(maxSummary int, summary string) string {
	return fmt.Sprintf(resummarize, maxSummary, summary)
}

// Scoring asks for a relevance score and a category.
func Scoring(categories []string, title, summary string, entities []string) string {
	return fmt.Sprintf(scoring, strings.Join(categories, ", "), title, summary, strings.Join(entities, ", "))
}

// Outline asks for the structured newsletter outline.
func Outline(articlesJSON string) string {
	return fmt.Sprintf(outline, articlesJSON)
}

// Generation asks for the markdown newsletter; feedback is appended on revisions.
func Generation(date, subjectPrefix, outlineJSON, feedback string) string {
	prompt := fmt.Sprintf(generation, date, strings.TrimSpace(subjectPrefix), outlineJSON)
	if strings.TrimSpace(feedback) != "" {
		prompt += fmt.Sprintf(revision, feedback)
	}
	return prompt
}

// Review asks the editorial judge for a verdict.
func Review(subject, markdown, summariesJSON string) string {
	return fmt.Sprintf(review, subject, markdown, summariesJSON)
}
