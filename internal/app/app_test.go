package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"NewsletterAgent/internal/config"
	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/usecase"
)

const articleURL = "https://agents.example/framework"

var modelReplies = []struct {
	marker string
	reply  string
}{
	{"Extract the key information", `{"summary": "A new framework for agents.", "key_entities": ["Agents"], "trends_identified": ["frameworks"]}`},
	{"Rate how relevant", "```json\n{\"relevance_score\": 0.9, \"category\": \"New Frameworks & Tools\"}\n```"},
	{"Build the newsletter outline", `{"introduction_points": ["Agents everywhere"], "sections": [{"name": "New Frameworks & Tools", "articles": [{"title": "New agent framework released", "summary": "A new framework for agents.", "url": "` + articleURL + `", "category": "New Frameworks & Tools"}]}], "conclusion_points": ["See you"], "overall_trends": ["frameworks"]}`},
	{"Write the complete newsletter", "AI Agent Weekly Digest: Frameworks take over\n\n## New Frameworks & Tools\n\n### New agent framework released\n\nA new framework for agents. [Read More](" + articleURL + ")\n"},
	{"Judge the draft for quality", `{"quality_score": 0.92, "feedback": "Solid issue.", "issues_found": []}`},
}

func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	rss := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Agents</title><link>https://agents.example</link><description>d</description>
<item><title>New agent framework released</title><link>%s</link><description>A framework for agents.</description><pubDate>%s</pubDate></item>
</channel></rss>`, articleURL, time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z))

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/feed.xml" {
			_, _ = io.WriteString(w, rss)
			return
		}

		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		prompt := req.Messages[len(req.Messages)-1].Content
		for _, m := range modelReplies {
			if strings.Contains(prompt, m.marker) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": m.reply}}},
				})
				return
			}
		}
		http.Error(w, "unexpected prompt", http.StatusBadRequest)
	}))
}

func testConfig(t *testing.T, upstream string) config.Config {
	t.Helper()
	t.Setenv("NEWSLETTER_AGENT_CONFIG", "")

	dir := t.TempDir()
	cfg := config.Load("")
	cfg.LLM.Endpoint = upstream + "/chat"
	cfg.LLM.APIKey = "test-key"
	cfg.SendGrid.APIKey = ""
	cfg.Newsletter.Recipients = nil
	cfg.Notifications.Telegram = config.TelegramConfig{}
	cfg.Storage = config.StorageConfig{Driver: "sqlite", DSN: filepath.Join(dir, "newsletter.db")}
	cfg.Archive = config.ArchiveConfig{Backend: "file", Dir: filepath.Join(dir, "archive")}
	cfg.Pipeline.CheckpointDir = filepath.Join(dir, "checkpoints")
	cfg.Sites = []config.SiteConfig{{
		Name:       "feeds",
		Scanner:    "rss",
		Categories: []config.CategoryConfig{{Name: "agents", URL: upstream + "/feed.xml"}},
	}}
	return cfg
}

func TestApplicationRunEndToEnd(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()

	cfg := testConfig(t, upstream.URL)
	application, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer application.Close()

	state, err := application.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if state.RunID == "" || len(state.RawArticles) != 1 || len(state.SummarizedContent) != 1 {
		t.Fatalf("unexpected research/extraction result: %+v", state)
	}
	if state.NewsletterOutline == nil || state.NewsletterOutline.ArticleCount() != 1 {
		t.Fatalf("unexpected outline %+v", state.NewsletterOutline)
	}

	draft := state.NewsletterDraft
	if draft == nil || !draft.IsApproved || draft.RevisionAttempts != 0 {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if draft.Subject != "AI Agent Weekly Digest: Frameworks take over" {
		t.Fatalf("unexpected subject %q", draft.Subject)
	}
	if !strings.Contains(draft.HTML, "New agent framework released</h3>") || strings.Contains(draft.HTML, `style="`) {
		t.Fatalf("draft html not rendered by generation: %s", draft.HTML)
	}

	report := state.DeliveryReport
	if report == nil || report.Sent || report.SkippedReason != usecase.SkipNoRecipients {
		t.Fatalf("unexpected report %+v", report)
	}
	archived, err := os.ReadFile(report.ArchiveRef)
	if err != nil {
		t.Fatalf("archive not written: %v", err)
	}
	if !strings.Contains(string(archived), "### New agent framework released") {
		t.Fatalf("unexpected archive content %q", archived)
	}
	archivedHTML, err := os.ReadFile(strings.TrimSuffix(report.ArchiveRef, ".md") + ".html")
	if err != nil {
		t.Fatalf("html archive not written: %v", err)
	}
	if !strings.Contains(string(archivedHTML), `<h3 style="`) {
		t.Fatalf("archived html not inlined: %s", archivedHTML)
	}

	if _, err := os.Stat(filepath.Join(cfg.Pipeline.CheckpointDir, "delivery_state.json")); err != nil {
		t.Fatalf("checkpoint missing: %v", err)
	}
}

func TestApplicationRunStage(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()

	cfg := testConfig(t, upstream.URL)
	cfg.Archive.Backend = "sql"
	application, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer application.Close()

	state := domain.NewState("")
	state.NewsletterDraft = &domain.Draft{QualityScore: 0.95}
	next, err := application.RunStage(context.Background(), usecase.StageGate, state)
	if err != nil {
		t.Fatalf("RunStage error: %v", err)
	}
	if next.RunID == "" || !next.NewsletterDraft.IsApproved {
		t.Fatalf("gate not applied: %+v", next.NewsletterDraft)
	}

	if _, err := application.RunStage(context.Background(), "publishing", state); err == nil {
		t.Fatalf("expected unknown stage error")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Archive.Backend = "s3"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected archive backend error")
	}

	cfg = testConfig(t, "http://127.0.0.1:1")
	cfg.LLM.Provider = "bard"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected provider error")
	}
}
