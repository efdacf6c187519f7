package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// 聊天模式。
const (
	ModeNormal   = "normal"
	ModeCreative = "creative"
)

// ChatRequest 是 /chat 的请求体。除 chat_id 与 user_id 外均为可选字段。
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	// History 是客户端直接携带的历史消息，位于持久化历史之后、本轮消息之前。
	History  []ChatMessage `json:"history"`
	ChatID   string        `json:"chat_id"`
	UserID   string        `json:"user_id"`
	Mode     string        `json:"mode"`
	Model    string        `json:"model"`
	QuizType string        `json:"quiz_type"`
	Level    string        `json:"level"`
	Tags     []string      `json:"tags"`
	Layout   string        `json:"layout"`
	Count    int           `json:"count"`
}

// UnmarshalJSON 宽松解析 chat_id、user_id 与 count：ID 可以是字符串或数字，count 可以是数字或数字字符串。
func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	type plain ChatRequest
	aux := struct {
		*plain
		ChatID json.RawMessage `json:"chat_id"`
		UserID json.RawMessage `json:"user_id"`
		Count  json.RawMessage `json:"count"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if r.ChatID, err = looseID(aux.ChatID); err != nil {
		return fmt.Errorf("chat_id: %w", err)
	}
	if r.UserID, err = looseID(aux.UserID); err != nil {
		return fmt.Errorf("user_id: %w", err)
	}
	if r.Count, err = looseCount(aux.Count); err != nil {
		return fmt.Errorf("count: %w", err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func looseID(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("must be a string or number, got %s", raw)
	}
	return n.String(), nil
}

func looseCount(raw json.RawMessage) (int, error) {
	if isNull(raw) {
		return 0, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(text)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", text)
		}
		return n, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("must be a number, got %s", raw)
	}
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("invalid number %s", n)
	}
	return int(f), nil
}

// Question 返回最后一条消息的内容，没有消息时返回空串。
func (r *ChatRequest) Question() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

// StreamRequest 是流式接口的请求体，只读取 messages。
type StreamRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// ChatReply 是 /chat 的响应体。
type ChatReply struct {
	Reply    string          `json:"reply"`
	Emotion  string          `json:"emotion"`
	Creative *CreativeResult `json:"creative"`
}

// CreativeResult 是常驻 AI 根据用户画像给出的创意建议。
type CreativeResult struct {
	Creative  bool   `json:"creative"`
	Idea      string `json:"idea"`
	Reasoning string `json:"reasoning"`
}
