package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "NEWSLETTER_AGENT_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	llmAPIKeyEnv      = "LLM_API_KEY"
	llmModelEnv       = "LLM_MODEL"
	sendGridKeyEnv    = "SENDGRID_API_KEY"
	serperKeyEnv      = "SERPER_API_KEY"
	recipientsEnv     = "NEWSLETTER_RECIPIENTS"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	LLM           LLMConfig          `yaml:"llm"`
	Research      ResearchConfig     `yaml:"research"`
	Serper        SerperConfig       `yaml:"serper"`
	Sites         []SiteConfig       `yaml:"sites"`
	Extraction    ExtractionConfig   `yaml:"extraction"`
	Curation      CurationConfig     `yaml:"curation"`
	Editorial     EditorialConfig    `yaml:"editorial"`
	Newsletter    NewsletterConfig   `yaml:"newsletter"`
	SendGrid      SendGridConfig     `yaml:"sendgrid"`
	Notifications NotificationConfig `yaml:"notifications"`
	Storage       StorageConfig      `yaml:"storage"`
	Archive       ArchiveConfig      `yaml:"archive"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LLMConfig defines how to contact the generative model.
type LLMConfig struct {
	Provider       string `yaml:"provider"`
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"apiKey"`
	SystemPrompt   string `yaml:"systemPrompt"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// Timeout returns the per-call HTTP timeout.
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResearchConfig controls what the research stage asks sources for.
type ResearchConfig struct {
	Keywords      []string `yaml:"keywords"`
	MaxArticles   int      `yaml:"maxArticles"`
	LookbackDays  int      `yaml:"lookbackDays"`
	SkipPublished bool     `yaml:"skipPublished"`
}

// SerperConfig configures the web search API.
type SerperConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// SiteConfig describes a single source with its scanner strategy.
type SiteConfig struct {
	Name       string            `yaml:"name"`
	Scanner    string            `yaml:"scanner"`
	Categories []CategoryConfig  `yaml:"categories"`
	Options    map[string]string `yaml:"options"`
}

// CategoryConfig holds a concrete endpoint to crawl (arXiv listing, RSS feed URL).
type CategoryConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ExtractionConfig bounds summaries and model input.
type ExtractionConfig struct {
	MaxSummaryLength int `yaml:"maxSummaryLength"`
	MaxChunkSize     int `yaml:"maxChunkSize"`
	Concurrency      int `yaml:"concurrency"`
}

// CurationConfig controls article selection.
type CurationConfig struct {
	MinRelevanceScore float64  `yaml:"minRelevanceScore"`
	Categories        []string `yaml:"categories"`
	Concurrency       int      `yaml:"concurrency"`
}

// EditorialConfig drives the revision gate.
type EditorialConfig struct {
	MinQualityScore     float64 `yaml:"minQualityScore"`
	MaxRevisionAttempts *int    `yaml:"maxRevisionAttempts"`
}

// Attempts returns the revision budget.
func (e EditorialConfig) Attempts() int {
	if e.MaxRevisionAttempts == nil {
		return 0
	}
	return *e.MaxRevisionAttempts
}

// NewsletterConfig describes the outgoing mail.
type NewsletterConfig struct {
	SubjectPrefix string   `yaml:"subjectPrefix"`
	SenderEmail   string   `yaml:"senderEmail"`
	SenderName    string   `yaml:"senderName"`
	Recipients    []string `yaml:"recipients"`
}

// SendGridConfig configures the mail API.
type SendGridConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// StorageConfig describes the SQL database holding archives and publish history.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ArchiveConfig selects where finished newsletters are kept.
type ArchiveConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

// SchedulerConfig defines when the weekly run fires.
type SchedulerConfig struct {
	Weekday  string         `yaml:"weekday"`
	Time     string         `yaml:"time"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// PipelineConfig holds orchestration options.
type PipelineConfig struct {
	CheckpointDir string `yaml:"checkpointDir"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
// An explicit path wins over the NEWSLETTER_AGENT_CONFIG variable.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	cfg.clampEditorial()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(sendGridKeyEnv); v != "" {
		c.SendGrid.APIKey = v
	}

	if v := os.Getenv(serperKeyEnv); v != "" {
		c.Serper.APIKey = v
	}

	if v := os.Getenv(recipientsEnv); v != "" {
		c.Newsletter.Recipients = SplitList(v)
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func (c *Config) clampEditorial() {
	if s := c.Editorial.MinQualityScore; s < 0 || s > 1 {
		clamped := min(max(s, 0), 1)
		log.Printf("config: editorial.minQualityScore %v outside [0,1], using %v", s, clamped)
		c.Editorial.MinQualityScore = clamped
	}
	if n := c.Editorial.Attempts(); n < 0 {
		log.Printf("config: editorial.maxRevisionAttempts %d is negative, using 0", n)
		zero := 0
		c.Editorial.MaxRevisionAttempts = &zero
	}
	if s := c.Curation.MinRelevanceScore; s < 0 || s > 1 {
		clamped := min(max(s, 0), 1)
		log.Printf("config: curation.minRelevanceScore %v outside [0,1], using %v", s, clamped)
		c.Curation.MinRelevanceScore = clamped
	}
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseClock parses an "HH:MM" time of day.
func ParseClock(value string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("parse time of day %q: %w", value, err)
	}
	return t.Hour(), t.Minute(), nil
}

// ParseWeekday parses an English weekday name, case-insensitively.
func ParseWeekday(value string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(strings.TrimSpace(value), d.String()) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", value)
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.LLM.Provider != "" {
		base.LLM.Provider = override.LLM.Provider
	}
	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.SystemPrompt != "" {
		base.LLM.SystemPrompt = override.LLM.SystemPrompt
	}
	if override.LLM.TimeoutSeconds != 0 {
		base.LLM.TimeoutSeconds = override.LLM.TimeoutSeconds
	}

	if len(override.Research.Keywords) > 0 {
		base.Research.Keywords = override.Research.Keywords
	}
	if override.Research.MaxArticles != 0 {
		base.Research.MaxArticles = override.Research.MaxArticles
	}
	if override.Research.LookbackDays != 0 {
		base.Research.LookbackDays = override.Research.LookbackDays
	}
	if override.Research.SkipPublished {
		base.Research.SkipPublished = true
	}

	if override.Serper.Endpoint != "" {
		base.Serper.Endpoint = override.Serper.Endpoint
	}
	if override.Serper.APIKey != "" {
		base.Serper.APIKey = override.Serper.APIKey
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	if override.Extraction.MaxSummaryLength != 0 {
		base.Extraction.MaxSummaryLength = override.Extraction.MaxSummaryLength
	}
	if override.Extraction.MaxChunkSize != 0 {
		base.Extraction.MaxChunkSize = override.Extraction.MaxChunkSize
	}
	if override.Extraction.Concurrency != 0 {
		base.Extraction.Concurrency = override.Extraction.Concurrency
	}

	if override.Curation.MinRelevanceScore != 0 {
		base.Curation.MinRelevanceScore = override.Curation.MinRelevanceScore
	}
	if len(override.Curation.Categories) > 0 {
		base.Curation.Categories = override.Curation.Categories
	}
	if override.Curation.Concurrency != 0 {
		base.Curation.Concurrency = override.Curation.Concurrency
	}

	if override.Editorial.MinQualityScore != 0 {
		base.Editorial.MinQualityScore = override.Editorial.MinQualityScore
	}
	if override.Editorial.MaxRevisionAttempts != nil {
		base.Editorial.MaxRevisionAttempts = override.Editorial.MaxRevisionAttempts
	}

	if override.Newsletter.SubjectPrefix != "" {
		base.Newsletter.SubjectPrefix = override.Newsletter.SubjectPrefix
	}
	if override.Newsletter.SenderEmail != "" {
		base.Newsletter.SenderEmail = override.Newsletter.SenderEmail
	}
	if override.Newsletter.SenderName != "" {
		base.Newsletter.SenderName = override.Newsletter.SenderName
	}
	if len(override.Newsletter.Recipients) > 0 {
		base.Newsletter.Recipients = override.Newsletter.Recipients
	}

	if override.SendGrid.Endpoint != "" {
		base.SendGrid.Endpoint = override.SendGrid.Endpoint
	}
	if override.SendGrid.APIKey != "" {
		base.SendGrid.APIKey = override.SendGrid.APIKey
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.APIBase != "" {
		base.Notifications.Telegram.APIBase = override.Notifications.Telegram.APIBase
	}

	if override.Storage.Driver != "" {
		base.Storage.Driver = override.Storage.Driver
	}
	if override.Storage.DSN != "" {
		base.Storage.DSN = override.Storage.DSN
	}

	if override.Archive.Backend != "" {
		base.Archive.Backend = override.Archive.Backend
	}
	if override.Archive.Dir != "" {
		base.Archive.Dir = override.Archive.Dir
	}

	if override.Scheduler.Weekday != "" {
		base.Scheduler.Weekday = override.Scheduler.Weekday
	}
	if override.Scheduler.Time != "" {
		base.Scheduler.Time = override.Scheduler.Time
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Pipeline.CheckpointDir != "" {
		base.Pipeline.CheckpointDir = override.Pipeline.CheckpointDir
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	attempts := 2
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		LLM: LLMConfig{
			Provider:       "openai",
			Endpoint:       "https://api.openai.com/v1/chat/completions",
			Model:          "gpt-4o-mini",
			SystemPrompt:   "You are a meticulous assistant for a weekly newsletter about AI agent development.",
			TimeoutSeconds: 60,
		},
		Research: ResearchConfig{
			Keywords: []string{
				"AI agent development",
				"multi-agent systems",
				"autonomous agents",
				"langchain",
				"langgraph",
				"crewai",
				"agentic workflows",
				"LLM agents",
			},
			MaxArticles:  20,
			LookbackDays: 7,
		},
		Serper: SerperConfig{Endpoint: "https://google.serper.dev/search"},
		Extraction: ExtractionConfig{
			MaxSummaryLength: 300,
			MaxChunkSize:     4000,
			Concurrency:      4,
		},
		Curation:   CurationConfig{MinRelevanceScore: 0.7, Concurrency: 4},
		Editorial:  EditorialConfig{MinQualityScore: 0.7, MaxRevisionAttempts: &attempts},
		Newsletter: NewsletterConfig{SubjectPrefix: "AI Agent Weekly Digest: "},
		SendGrid:   SendGridConfig{Endpoint: "https://api.sendgrid.com/v3/mail/send"},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{APIBase: "https://api.telegram.org"},
		},
		Storage:   StorageConfig{Driver: "sqlite", DSN: "file:newsletter.db"},
		Archive:   ArchiveConfig{Backend: "file", Dir: "newsletters"},
		Scheduler: SchedulerConfig{Weekday: "Friday", Time: "10:00", Timezone: defaultTimezone, location: tz},
		Sites: []SiteConfig{
			{Name: "web-search", Scanner: "serper"},
			{
				Name:    "tech-feeds",
				Scanner: "rss",
				Categories: []CategoryConfig{
					{Name: "hacker-news", URL: "https://news.ycombinator.com/rss"},
					{Name: "techcrunch", URL: "https://techcrunch.com/feed/"},
				},
			},
			{
				Name:    "arxiv-default",
				Scanner: "arxiv",
				Categories: []CategoryConfig{
					{Name: "cs.AI", URL: "https://export.arxiv.org/list/cs.AI/pastweek"},
					{Name: "cs.MA", URL: "https://export.arxiv.org/list/cs.MA/pastweek"},
				},
			},
		},
	}
}
