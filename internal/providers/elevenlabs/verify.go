package elevenlabs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// VerifyKey checks an API key against the account endpoint without
// opening a conversation.
func (p *Provider) VerifyKey(ctx context.Context, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return errors.New("voice provider API key is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(p.cfg.APIBaseURL, "/")+"/v1/user", nil)
	if err != nil {
		return fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set("xi-api-key", apiKey)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reach voice service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.New("the voice service rejected the API key")
	default:
		return fmt.Errorf("voice service returned status %d", resp.StatusCode)
	}
}
