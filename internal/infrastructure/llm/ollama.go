package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"NewsletterAgent/internal/config"
	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/ports"
)

// OllamaClient sends prompts to a local Ollama chat endpoint.
type OllamaClient struct {
	baseURL      string
	model        string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.ChatClient = (*OllamaClient)(nil)

// NewOllamaClient builds a client from configuration; Endpoint is the server base URL.
func NewOllamaClient(cfg config.LLMConfig) *OllamaClient {
	return &OllamaClient{
		baseURL:      strings.TrimRight(cfg.Endpoint, "/"),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Complete posts a non-streaming chat request and returns the assistant message.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.baseURL == "" || c.model == "" {
		return "", fmt.Errorf("ollama client misconfigured: %w", domain.ErrFatalModel)
	}

	body, err := json.Marshal(ollamaRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: prompt},
		},
		Options: map[string]any{"temperature": 0.2},
	})
	if err != nil {
		return "", fmt.Errorf("marshal ollama payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", domain.ErrFatalModel)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError(ctx, "ollama", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", statusError("ollama", resp.Status, resp.StatusCode, payload)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %v: %w", err, domain.ErrTransientModel)
	}
	return out.Message.Content, nil
}

// New picks the client matching cfg.Provider.
func New(cfg config.LLMConfig) (ports.ChatClient, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai", "chatgpt":
		return NewChatGPTClient(cfg), nil
	case "ollama":
		return NewOllamaClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (valid: openai, ollama)", cfg.Provider)
	}
}
