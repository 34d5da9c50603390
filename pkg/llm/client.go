package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"dreamcatcher-llm-go/pkg/log"
)

const defaultRetryDelay = time.Second

// StatusError 表示模型接口返回了非 200 状态码。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat api returned non-200 status: %d, body: %s", e.StatusCode, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Client 是绑定到单个提供商/模型的 OpenAI 兼容客户端。
type Client struct {
	provider    string
	model       ModelConfig
	httpClient  *http.Client
	temperature *float64
	nextKey     atomic.Uint64
}

// Option 配置 Client。
type Option func(*Client)

// WithHTTPClient 替换底层 HTTP 客户端。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout 设置单次请求的超时时间。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithTemperature 设置生成温度，0 表示使用服务端默认值。
func WithTemperature(t float64) Option {
	return func(c *Client) {
		if t != 0 {
			c.temperature = &t
		}
	}
}

// NewClient 创建一个新的客户端。
func NewClient(provider string, model ModelConfig, opts ...Option) *Client {
	c := &Client{
		provider:   provider,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name 返回 "provider/model"。
func (c *Client) Name() string {
	return c.provider + "/" + c.model.ModelName
}

type chatRequest struct {
	Model          string           `json:"model"`
	Messages       []Message        `json:"messages"`
	Stream         bool             `json:"stream"`
	Temperature    *float64         `json:"temperature,omitempty"`
	Tools          []ToolDefinition `json:"tools,omitempty"`
	ResponseFormat *responseFormat  `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// Complete 调用 chat completions 接口，按 provider.json 中的 max_retries 对
// 网络错误、429 与 5xx 进行重试，并在多个 api_keys 之间轮换。
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*Message, error) {
	reqBody := chatRequest{
		Model:       c.model.ModelName,
		Messages:    req.Messages,
		Temperature: c.temperature,
		Tools:       req.Tools,
	}
	if req.JSONOutput {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	attempts := c.model.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	delay := defaultRetryDelay
	if c.model.RetryDelay > 0 {
		delay = time.Duration(c.model.RetryDelay * float64(time.Second))
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		msg, err := c.do(ctx, reqBytes)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
		if ctx.Err() != nil || attempt == attempts {
			break
		}
		log.Warnw("LLM 调用失败，准备重试", "model", c.Name(), "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, body []byte) (*Message, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, chatURL(c.model.BaseURL), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key := c.apiKey(); key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return nil, errors.New("chat api returned no choices")
	}
	msg := payload.Choices[0].Message
	if msg.Role == "" {
		msg.Role = RoleAssistant
	}
	return &msg, nil
}

// apiKey 在配置的多个 key 之间轮换。
func (c *Client) apiKey() string {
	if len(c.model.APIKeys) == 0 {
		return ""
	}
	i := c.nextKey.Add(1) - 1
	return c.model.APIKeys[i%uint64(len(c.model.APIKeys))]
}

func chatURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/chat/completions"
}
