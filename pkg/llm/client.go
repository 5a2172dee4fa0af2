// Package llm provides a client for OpenAI-compatible chat completion APIs.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"roofsite-go/internal/config"
	"strings"
	"sync/atomic"
	"time"
)

// ErrIdleTimeout is returned when the upstream stream stays silent longer than the idle timeout.
var ErrIdleTimeout = errors.New("llm stream idle timeout")

// DeltaWriter receives streamed token text.
type DeltaWriter interface {
	WriteDelta(content string) error
}

// DeltaWriterFunc adapts a function to DeltaWriter.
type DeltaWriterFunc func(content string) error

func (f DeltaWriterFunc) WriteDelta(content string) error { return f(content) }

// Client defines the interface for an LLM client.
type Client interface {
	// StreamChatMessages 以 role-based 消息调用聊天接口，并将每个增量写入 writer。
	StreamChatMessages(ctx context.Context, messages []Message, gen *GenerationParams, writer DeltaWriter) error
	// Complete 调用聊天接口并返回完整回答。
	Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
}

// StatusError 表示上游返回了非 200 状态码。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat api returned status %d: %s", e.StatusCode, e.Body)
}

type openAIClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client from config.
func NewClient(cfg config.LLMConfig) Client {
	return &openAIClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// DefaultGenerationParams 从配置构造生成参数，全部为零值时返回 nil。
func DefaultGenerationParams(cfg config.LLMGenerationConfig) *GenerationParams {
	var gp GenerationParams
	if cfg.Temperature != 0 {
		t := cfg.Temperature
		gp.Temperature = &t
	}
	if cfg.TopP != 0 {
		p := cfg.TopP
		gp.TopP = &p
	}
	if cfg.MaxTokens != 0 {
		m := cfg.MaxTokens
		gp.MaxTokens = &m
	}
	if gp.Temperature == nil && gp.TopP == nil && gp.MaxTokens == nil {
		return nil
	}
	return &gp
}

func (c *openAIClient) Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	var sb strings.Builder
	err := c.StreamChatMessages(ctx, messages, gen, DeltaWriterFunc(func(content string) error {
		sb.WriteString(content)
		return nil
	}))
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (c *openAIClient) StreamChatMessages(ctx context.Context, messages []Message, gen *GenerationParams, writer DeltaWriter) error {
	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   true,
	}
	// 传参优先，其次使用全局配置
	if gen == nil {
		gen = DefaultGenerationParams(c.cfg.Generation)
	}
	if gen != nil {
		reqBody.Temperature = gen.Temperature
		reqBody.TopP = gen.TopP
		reqBody.MaxTokens = gen.MaxTokens
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal chat request: %w", err)
	}

	// 空闲超时：超过 idle 没有读到任何数据就取消请求。
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var idleFired atomic.Bool
	idle := c.cfg.IdleTimeout()
	var timer *time.Timer
	if idle > 0 {
		timer = time.AfterFunc(idle, func() {
			idleFired.Store(true)
			cancel()
		})
		defer timer.Stop()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		if idleFired.Load() {
			return ErrIdleTimeout
		}
		return fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, readErr := reader.ReadString('\n')
		if timer != nil {
			timer.Reset(idle)
		}

		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			if data == "[DONE]" {
				break
			}

			var chunk chatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err == nil &&
				len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				if err := writer.WriteDelta(chunk.Choices[0].Delta.Content); err != nil {
					return fmt.Errorf("failed to write delta: %w", err)
				}
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			if idleFired.Load() {
				return ErrIdleTimeout
			}
			return fmt.Errorf("failed to read from stream: %w", readErr)
		}
	}
	return nil
}
