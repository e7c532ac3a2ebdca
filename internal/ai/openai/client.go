package openai

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/utils"
)

const (
	ProviderName = "groq"

	DefaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "llama-3.3-70b-versatile"
	userAgent      = "spigell/interview-coach"

	defaultMaxRetries   = 3
	defaultMaxLogLength = 200
	baseRetryDelay      = time.Second
	maxRetryDelay       = 20 * time.Second
	maxErrorBody        = 512
)

var wait = utils.WaitFor

var retryStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusRequestTimeout:      true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Client talks to an OpenAI-compatible chat completions endpoint (Groq by default).
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	UserAgent  string

	apiKey     string
	model      string
	maxRetries int
	maxLogLen  int
	logger     *zap.Logger
}

// New creates a Client. An empty baseURL selects the Groq endpoint.
func New(apiKey, baseURL, model string, maxRetries, maxLogLength int, log *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("groq api key is required")
	}

	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Client{
		HTTPClient: &http.Client{},
		BaseURL:    baseURL,
		UserAgent:  userAgent,
		apiKey:     apiKey,
		model:      model,
		maxRetries: maxRetries,
		maxLogLen:  maxLogLength,
		logger:     logger.WithCommonFields(log, ProviderName, model),
	}, nil
}

// Complete sends a system+user chat completion and returns the first choice content.
func (c *Client) Complete(ctx context.Context, req ai.Request) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	model := c.model
	if m := strings.TrimSpace(req.Model); m != "" {
		model = m
	}

	payload := ChatCompletionRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if system := strings.TrimSpace(req.System); system != "" {
		payload.Messages = append(payload.Messages, ChatMessage{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, ChatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat completion request: %w", err)
	}

	log := logger.WithOperation(c.logger, string(req.Operation))

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		log.Debug("chat completion request",
			zap.Int("attempt", attempt),
			zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
			zap.String("prompt_preview", utils.TruncateForLog(prompt, c.maxLogLen)),
		)

		resp, err := c.post(ctx, body)
		if err == nil {
			output, err := firstChoice(resp)
			if err != nil {
				return "", err
			}
			log.Debug("chat completion response",
				zap.Int("response_length", utf8.RuneCountInString(output)),
				zap.String("response_preview", utils.TruncateForLog(output, c.maxLogLen)),
				zap.Int("total_tokens", resp.Usage.TotalTokens),
			)
			return output, nil
		}

		lastErr = err
		if !retryable(err) || attempt == c.maxRetries {
			break
		}

		delay := backoff(attempt)
		log.Warn("chat completion failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := wait(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

// Model returns the default model identifier.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) post(ctx context.Context, body []byte) (*ChatCompletionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read chat completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       utils.TruncateForLog(string(data), maxErrorBody),
		}
	}

	var decoded ChatCompletionResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode chat completion response: %w", err)
	}

	return &decoded, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)
}

func firstChoice(resp *ChatCompletionResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", ai.ErrEmptyResponse
	}

	output := strings.TrimSpace(resp.Choices[0].Message.Content)
	if output == "" {
		return "", ai.ErrEmptyResponse
	}
	return output, nil
}

func retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return retryStatuses[httpErr.StatusCode]
	}
	// Transport errors other than cancellation are worth another attempt.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func backoff(attempt int) time.Duration {
	delay := baseRetryDelay << (attempt - 1)
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}
