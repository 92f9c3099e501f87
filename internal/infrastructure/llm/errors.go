package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"NewsletterAgent/internal/domain"
)

// statusError classifies an HTTP failure: throttling and server errors are
// transient, every other client error is fatal.
func statusError(provider, status string, code int, payload []byte) error {
	sentinel := domain.ErrFatalModel
	if code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError {
		sentinel = domain.ErrTransientModel
	}
	return fmt.Errorf("%s error %s: %s: %w", provider, status, strings.TrimSpace(string(payload)), sentinel)
}

// transportError keeps context errors intact and marks network failures transient.
func transportError(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s request: %w", provider, ctxErr)
	}
	return fmt.Errorf("%s request: %v: %w", provider, err, domain.ErrTransientModel)
}
