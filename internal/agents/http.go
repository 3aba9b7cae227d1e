package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"startupops/internal/stage"
)

// HTTPAgent calls an OpenAI-compatible chat completions endpoint.
type HTTPAgent struct {
	BaseURL     string
	APIKey      string
	Model       func(stage string) string
	MaxRetries  int
	Temperature float64
	MaxTokens   int
	Client      *http.Client
	// Backoff returns the wait before retry attempt n (0-based). Defaults to
	// 2^n seconds.
	Backoff func(attempt int) time.Duration
	Logger  *slog.Logger
}

func (a *HTTPAgent) Name() string {
	return "http"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// statusError is a non-2xx reply.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("chat completion returned %d: %s", e.Code, e.Body)
}

func (a *HTTPAgent) Invoke(ctx context.Context, name stage.Name, input map[string]any) (stage.Result, error) {
	if strings.TrimSpace(a.BaseURL) == "" {
		return nil, errors.New("base url is required")
	}
	user, err := UserPrompt(input)
	if err != nil {
		return nil, err
	}
	model := ""
	if a.Model != nil {
		model = a.Model(string(name))
	}
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(name)},
			{Role: "user", Content: user},
		},
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	attempts := max(a.MaxRetries, 1)
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		content, err := a.post(ctx, body)
		if err == nil {
			return parseContent(content)
		}
		lastErr = err
		if !retryable(err) || attempt == attempts-1 {
			break
		}
		wait := a.backoff(attempt)
		a.logger().Warn("chat completion retry", "stage", name, "attempt", attempt+1, "wait", wait, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("%s stage after %d attempts: %w", name, attempts, lastErr)
}

func (a *HTTPAgent) post(ctx context.Context, body []byte) (string, error) {
	url := strings.TrimSuffix(a.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.APIKey)
	}

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post chat completion: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(data)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return "", &statusError{Code: resp.StatusCode, Body: snippet}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// retryable reports rate limiting and timeouts.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (a *HTTPAgent) backoff(attempt int) time.Duration {
	if a.Backoff != nil {
		return a.Backoff(attempt)
	}
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func (a *HTTPAgent) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
