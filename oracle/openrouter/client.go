// Package openrouter implements the oracle boundary against the
// OpenRouter.ai chat completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clinsight/takforge/errors"
	"github.com/clinsight/takforge/internal/httpclient"
	"github.com/clinsight/takforge/oracle"
)

// DefaultModel is the fallback model when none is configured
const DefaultModel = "openai/gpt-4o-mini"

// Config holds OpenRouter client configuration
type Config struct {
	APIKey            string
	BaseURL           string // defaults to https://openrouter.ai/api/v1
	Model             string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration      // per-call deadline (default: 120s)
	RequestsPerMinute int                // 0 = unlimited
	Logger            *zap.SugaredLogger // nil = nop logger
}

// Client is an OpenRouter.ai API client implementing oracle.Oracle.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     Config
	limiter    *rate.Limiter
	logger     *zap.SugaredLogger
}

// NewClient creates a new OpenRouter client with TAKForge defaults.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://openrouter.ai/api/v1"
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 4000
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	var limiter *rate.Limiter
	if config.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), 1)
	}

	return &Client{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpclient.New(config.Timeout),
		config:     config,
		limiter:    limiter,
		logger:     logger,
	}
}

// chatCompletionRequest is the wire request for the chat completions endpoint
type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the wire response from chat completions
type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Generate implements oracle.Oracle. Transport and service failures map to
// oracle.ErrUnavailable; unparseable or empty responses map to
// oracle.ErrMalformed. Both consume one engine attempt.
func (c *Client) Generate(ctx context.Context, req oracle.Request) (*oracle.Response, error) {
	if c.apiKey == "" {
		return nil, errors.WithHint(
			errors.Wrap(oracle.ErrUnavailable, "OpenRouter API key not configured"),
			"set TAKFORGE_OPENROUTER_API_KEY",
		)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(oracle.ErrUnavailable, err.Error())
		}
	}

	messages := make([]message, 0, 2)
	if req.System != "" {
		messages = append(messages, message{Role: "system", Content: req.System})
	}
	messages = append(messages, message{Role: "user", Content: req.Prompt})

	wireReq := chatCompletionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}

	start := time.Now()
	wireResp, err := c.createChatCompletion(ctx, wireReq)
	if err != nil {
		return nil, err
	}

	if len(wireResp.Choices) == 0 {
		return nil, errors.Wrap(oracle.ErrMalformed, "response contains no choices")
	}

	artifact := strings.TrimSpace(wireResp.Choices[0].Message.Content)
	if artifact == "" {
		return nil, errors.Wrap(oracle.ErrMalformed, "response contains empty artifact")
	}

	c.logger.Debugw("Oracle call completed",
		"model", wireResp.Model,
		"prompt_tokens", wireResp.Usage.PromptTokens,
		"completion_tokens", wireResp.Usage.CompletionTokens,
		"duration", time.Since(start),
	)

	return &oracle.Response{
		Artifact:         artifact,
		TokenCost:        wireResp.Usage.TotalTokens,
		PromptTokens:     wireResp.Usage.PromptTokens,
		CompletionTokens: wireResp.Usage.CompletionTokens,
		Model:            wireResp.Model,
	}, nil
}

func (c *Client) createChatCompletion(ctx context.Context, req chatCompletionRequest) (*chatCompletionResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Title", "takforge")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(oracle.ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(oracle.ErrUnavailable, err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		err := errors.Wrapf(oracle.ErrUnavailable, "API request failed with status %d", resp.StatusCode)
		return nil, errors.WithDetail(err, string(respBody))
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, errors.Wrap(oracle.ErrMalformed, err.Error())
	}

	return &chatResp, nil
}
