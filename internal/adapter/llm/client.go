package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/boshilin123/chatbot-circuit-diagram/config"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/logger"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
)

const (
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	OpenAIBaseURL   = "https://api.openai.com/v1"

	defaultTemperature = 0.1
	defaultMaxTokens   = 800
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	retry       RetryConfig
	client      *http.Client
	log         logger.ILogger

	calls    atomic.Int64
	failures atomic.Int64
}

type ClientOptions struct {
	Timeout     time.Duration
	Retry       RetryConfig
	Temperature float64
	MaxTokens   int
	Logger      logger.ILogger
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
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func NewDeepSeekClient(apiKeyEnv, model string, opts ClientOptions) (*Client, error) {
	return NewOpenAICompatibleClient(apiKeyEnv, model, DeepSeekBaseURL, opts)
}

func NewOpenAIClient(apiKeyEnv, model string, opts ClientOptions) (*Client, error) {
	return NewOpenAICompatibleClient(apiKeyEnv, model, OpenAIBaseURL, opts)
}

func NewOpenAICompatibleClient(apiKeyEnv, model, baseURL string, opts ClientOptions) (*Client, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	return NewClient(apiKey, model, baseURL, opts), nil
}

// NewClient builds a client from an explicit key. Zero options take defaults.
func NewClient(apiKey, model, baseURL string, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.InitialBackoff <= 0 {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.Temperature <= 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Client{
		apiKey:      apiKey,
		model:       model,
		baseURL:     baseURL,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		timeout:     opts.Timeout,
		retry:       opts.Retry,
		client:      &http.Client{},
		log:         opts.Logger,
	}
}

// NewFromConfig returns the configured model, or nil when the external model
// is disabled.
func NewFromConfig(cfg config.LLMConfig, log logger.ILogger) (port.LLM, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts := ClientOptions{
		Timeout: cfg.Timeout,
		Retry: RetryConfig{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.Backoff,
			MaxBackoff:     cfg.MaxBackoff,
		},
		Logger: log,
	}
	baseURL := cfg.BaseURL
	switch cfg.Provider {
	case "mock":
		return NewMockLLM(), nil
	case "openai":
		if baseURL == "" {
			baseURL = OpenAIBaseURL
		}
	case "deepseek", "":
		if baseURL == "" {
			baseURL = DeepSeekBaseURL
		}
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	c, err := NewOpenAICompatibleClient(cfg.APIKeyEnv, cfg.Model, baseURL, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, []chatMessage{{Role: "user", Content: prompt}})
}

func (c *Client) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.chat(ctx, []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
}

func (c *Client) ModelName() string {
	return c.model
}

// Stats returns the number of calls made and how many of them failed.
func (c *Client) Stats() (calls, failures int64) {
	return c.calls.Load(), c.failures.Load()
}

func (c *Client) chat(ctx context.Context, messages []chatMessage) (string, error) {
	c.calls.Add(1)
	out, err := c.complete(ctx, messages)
	if err != nil {
		c.failures.Add(1)
		return "", err
	}
	return out, nil
}

func (c *Client) complete(ctx context.Context, messages []chatMessage) (string, error) {
	jsonData, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.retryWithBackoff(ctx, func(ctx context.Context) (int, []byte, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return 0, nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
		}
		return resp.StatusCode, b, nil
	})
	if err != nil {
		return "", err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response (body: %s): %w", preview(body), err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}
	return chatResp.Choices[0].Message.Content, nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
