package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsletterAgent/internal/config"
	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/scanner"
)

// SerperScanner runs one Google search per keyword through the Serper API.
type SerperScanner struct {
	endpoint string
	apiKey   string
	client   *http.Client
	now      func() time.Time
}

// NewSerperScanner builds a scanner from configuration.
func NewSerperScanner(cfg config.SerperConfig, client *http.Client) *SerperScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &SerperScanner{endpoint: cfg.Endpoint, apiKey: cfg.APIKey, client: client, now: time.Now}
}

// Name identifies the strategy inside the registry.
func (s *SerperScanner) Name() string {
	return "serper"
}

type serperRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic"`
}

// Scan searches every keyword; the snippet becomes the article content.
func (s *SerperScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawArticle, error) {
	if s.apiKey == "" || s.endpoint == "" {
		return nil, errors.New("serper scanner misconfigured: missing api key or endpoint")
	}
	if len(req.Keywords) == 0 {
		return nil, nil
	}

	perKeyword := req.PerUnit(len(req.Keywords))
	if perKeyword == 0 {
		perKeyword = 10
	}
	now := s.now().UTC()

	var (
		results []domain.RawArticle
		failed  []string
	)
	for _, keyword := range req.Keywords {
		hits, err := s.search(ctx, keyword, perKeyword)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			failed = append(failed, fmt.Sprintf("%q: %v", keyword, err))
			continue
		}
		for _, hit := range hits.Organic {
			if strings.TrimSpace(hit.Link) == "" {
				continue
			}
			results = append(results, domain.RawArticle{
				Title:     strings.TrimSpace(hit.Title),
				URL:       strings.TrimSpace(hit.Link),
				Content:   strings.TrimSpace(hit.Snippet),
				Source:    domain.SourceWebSearch,
				FetchedAt: now,
			})
		}
	}

	if len(failed) > 0 {
		return results, fmt.Errorf("searches failed: %s", strings.Join(failed, "; "))
	}
	return results, nil
}

func (s *SerperScanner) search(ctx context.Context, query string, num int) (serperResponse, error) {
	var out serperResponse

	body, err := json.Marshal(serperRequest{Query: query, Num: num})
	if err != nil {
		return out, fmt.Errorf("marshal serper payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return out, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return out, fmt.Errorf("serper error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode serper response: %w", err)
	}
	return out, nil
}
