package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/config"
)

// ErrAINotConfigured indicates no AI endpoint is set; callers treat this as
// "no reply" rather than a failure.
var ErrAINotConfigured = errors.New("AI endpoint not configured")

// AIResponder is the surface the chatbot service depends on for generated
// replies when no keyword rule matches.
type AIResponder interface {
	Reply(ctx context.Context, from, message string) (string, error)
}

// AIClient forwards inbound chat text to the configured AI endpoint
type AIClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewAIClient creates an AI client from config. The endpoint may be empty;
// Reply then returns ErrAINotConfigured.
func NewAIClient(cfg *config.Config) *AIClient {
	timeout := cfg.Chatbot.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AIClient{
		endpoint:   cfg.Chatbot.AIEndpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type aiRequest struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

type aiResponse struct {
	Reply string `json:"reply"`
}

// Reply posts the inbound message and returns the generated reply. An empty
// reply from the endpoint means "stay silent" and is passed through as-is.
func (c *AIClient) Reply(ctx context.Context, from, message string) (string, error) {
	if c.endpoint == "" {
		return "", ErrAINotConfigured
	}

	body, err := json.Marshal(aiRequest{From: from, Message: message})
	if err != nil {
		return "", fmt.Errorf("failed to encode AI request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build AI request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("AI endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI endpoint returned status %d", resp.StatusCode)
	}

	var decoded aiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode AI response: %w", err)
	}

	return decoded.Reply, nil
}
