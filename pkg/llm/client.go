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
	"strings"

	"ai-edu-go/internal/config"
)

// TokenWriter receives streamed completion fragments one at a time.
type TokenWriter interface {
	WriteToken(token string) error
}

// Client defines the interface for an LLM client.
type Client interface {
	// Chat 发送一次非流式请求并返回第一条候选的原始文本。
	Chat(ctx context.Context, req ChatRequest) (string, error)
	// StreamChatMessages 以流式方式调用聊天接口，只把非空的增量内容写入 writer。
	StreamChatMessages(ctx context.Context, model string, messages []Message, writer TokenWriter) error
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 描述一次非流式调用。JSONObject 为 true 时要求模型只返回一个 JSON 对象。
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	JSONObject  bool
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Stream         bool            `json:"stream,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ErrEmptyChoices is returned when the API answers without any choice.
var ErrEmptyChoices = errors.New("chat api returned no choices")

type openAIClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client. No timeout is set; callers bound the call with ctx.
func NewClient(cfg config.LLMConfig) Client {
	return &openAIClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

func (c *openAIClient) post(ctx context.Context, body completionRequest, stream bool) (*http.Response, error) {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat api: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}
	return resp, nil
}

func (c *openAIClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	body := completionRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}
	if req.JSONObject {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	resp, err := c.post(ctx, body, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyChoices
	}
	return out.Choices[0].Message.Content, nil
}

func (c *openAIClient) StreamChatMessages(ctx context.Context, model string, messages []Message, writer TokenWriter) error {
	if model == "" {
		model = c.cfg.Model
	}
	resp, err := c.post(ctx, completionRequest{Model: model, Messages: messages, Stream: true}, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("failed to read from stream: %w", readErr)
		}

		done, err := forwardLine(line, writer)
		if err != nil {
			return err
		}
		if done || readErr == io.EOF {
			return nil
		}
	}
}

// forwardLine 解析一行 SSE 数据，返回是否遇到 [DONE]。
func forwardLine(line string, writer TokenWriter) (bool, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "data:") {
		return false, nil
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "[DONE]" {
		return true, nil
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return false, nil
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return false, nil
	}
	if err := writer.WriteToken(chunk.Choices[0].Delta.Content); err != nil {
		return false, fmt.Errorf("failed to forward token: %w", err)
	}
	return false, nil
}
