// Package completion calls an OpenAI-compatible chat completion endpoint to
// produce chatbot replies.
package completion

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

// ErrCompletionFailed reports that the completion provider could not produce
// a reply. Callers map it to an upstream failure, not a client error.
var ErrCompletionFailed = errors.New("completion failed")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client talks to one OpenAI-compatible provider.
type Client struct {
	baseURL string
	apiKey  string
	logger  *slog.Logger
	http    *http.Client
}

// NewClient builds a completion client. baseURL points at the provider root,
// for example "https://api.openai.com/v1".
func NewClient(log *slog.Logger, baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("completion client: base url is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  log.With(slog.String("client", "completion")),
		http: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Complete sends the user's prompt to the model and returns the reply text.
// Any transport, status, or decode failure is wrapped in ErrCompletionFailed.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", fmt.Errorf("%w: model is required", ErrCompletionFailed)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", ErrCompletionFailed)
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("completion request failed", slog.Any("error", err))
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		c.logger.Warn("completion provider error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", strings.TrimSpace(string(b))),
		)
		return "", fmt.Errorf("%w: provider returned %d", ErrCompletionFailed, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: response missing content", ErrCompletionFailed)
	}
	return parsed.Choices[0].Message.Content, nil
}
