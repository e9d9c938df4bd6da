// Package gemini implements ports.TextGenerator against the Google
// generative language REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"

	requestTimeout = 30 * time.Second
)

// Config controls the generative endpoint and model selection.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// MaxOutputTokens caps the reply length when greater than zero.
	MaxOutputTokens int
}

// Client talks to the generateContent endpoint.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type generateRequest struct {
	SystemInstruction *generateContent  `json:"systemInstruction,omitempty"`
	Contents          []generateContent `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text string `json:"text,omitempty"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      generateContent `json:"content"`
		FinishReason string          `json:"finishReason"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends one user message with a system instruction and returns
// the model's text reply.
func (c *Client) Generate(ctx context.Context, systemInstruction string, userMessage string) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", errors.New("generative API key is not configured")
	}

	reqBody := generateRequest{
		Contents: []generateContent{
			{Role: "user", Parts: []generatePart{{Text: userMessage}}},
		},
	}
	if systemInstruction != "" {
		reqBody.SystemInstruction = &generateContent{Parts: []generatePart{{Text: systemInstruction}}}
	}
	if c.cfg.MaxOutputTokens > 0 {
		reqBody.GenerationConfig = &generationConfig{MaxOutputTokens: c.cfg.MaxOutputTokens}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode generative request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build generative request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	query := httpReq.URL.Query()
	query.Set("key", c.cfg.APIKey)
	httpReq.URL.RawQuery = query.Encode()

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generative request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", parseAPIError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read generative response: %w", err)
	}

	text, err := extractText(respBody)
	if err != nil {
		return "", err
	}

	c.logger.Debug("generative request completed",
		"model", c.cfg.Model,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return text, nil
}

// extractText pulls the first candidate's first text part out of a
// generateContent response body.
func extractText(body []byte) (string, error) {
	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode generative response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", errors.New("generative response contained no candidates")
	}
	parts := parsed.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == "" {
		return "", errors.New("generative response contained no text")
	}
	return parts[0].Text, nil
}

func parseAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Message == "" {
		return fmt.Errorf("generative API returned status %d", resp.StatusCode)
	}
	return fmt.Errorf("generative API error: %s (%s)", parsed.Error.Message, parsed.Error.Status)
}
