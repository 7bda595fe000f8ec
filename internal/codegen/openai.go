package codegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultTimeout       = 60 * time.Second
	defaultMaxTokens     = 1500
	defaultTemperature   = 0.7
	defaultRetryAttempts = 3
	defaultRetryBase     = time.Second
	defaultRetryMax      = 10 * time.Second
)

type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	HTTPClient   *http.Client
	// RetryAttempts bounds attempts for 429 and 5xx responses.
	RetryAttempts int
	// Sleep replaces time-based waiting between retries.
	Sleep func(ctx context.Context, d time.Duration) error
}

// OpenAIClient talks to any OpenAI-compatible chat/completions endpoint.
type OpenAIClient struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	temperature  float64
	maxTokens    int
	client       *http.Client
	attempts     int
	sleep        func(ctx context.Context, d time.Duration) error
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("openai status %d", e.Status)
	}
	return fmt.Sprintf("openai status %d: %s", e.Status, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	attempts := opts.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return &OpenAIClient{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		temperature:  temperature,
		maxTokens:    maxTokens,
		client:       client,
		attempts:     attempts,
		sleep:        sleep,
	}, nil
}

// Complete sends one system and one user message and returns the first
// choice's content. Rate limits and server errors are retried with backoff.
func (o *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	payload := chatRequest{
		Model:       o.model,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= o.attempts; attempt++ {
		content, err := o.send(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		var se *StatusError
		if !errors.As(err, &se) || !se.retryable() || attempt == o.attempts {
			break
		}
		if err := o.sleep(ctx, backoff(attempt, se.RetryAfter)); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (o *OpenAIClient) send(ctx context.Context, body []byte) (string, error) {
	endpoint := o.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		req.Header.Set("OpenAI-Organization", o.organization)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{
			Status:     resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return min(retryAfter, defaultRetryMax)
	}
	d := defaultRetryBase << (attempt - 1)
	return min(d, defaultRetryMax)
}

func parseRetryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Completer = (*OpenAIClient)(nil)
