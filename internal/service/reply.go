package service

import (
	"bytes"
	"encoding/json"
)

// ModelReply 是对模型原始文本的一次解析结果：StructuredReply 或 RawReply。
type ModelReply interface {
	// Normalize 返回最终的 reply 与 emotion。
	Normalize() (reply, emotion string)
}

// StructuredReply 表示模型返回了 JSON 对象。
type StructuredReply struct {
	Reply   string
	Emotion string
}

func (r StructuredReply) Normalize() (string, string) { return r.Reply, r.Emotion }

// RawReply 表示模型文本不是 JSON 对象，原文即回复。
type RawReply struct {
	Text    string
	Emotion string
}

func (r RawReply) Normalize() (string, string) { return r.Text, r.Emotion }

type replyPayload struct {
	Reply   *string `json:"reply"`
	Emotion *string `json:"emotion"`
}

// ParseModelReply 尝试把文本解析为 {reply, emotion} 对象。
// 只有顶层为对象且字段类型正确时返回 StructuredReply；缺失的 reply 为空串，缺失的 emotion 取 neutral。
// 其余情况返回 RawReply，不会返回错误。
func ParseModelReply(text, neutral string) ModelReply {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return RawReply{Text: text, Emotion: neutral}
	}
	var payload replyPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return RawReply{Text: text, Emotion: neutral}
	}
	out := StructuredReply{Emotion: neutral}
	if payload.Reply != nil {
		out.Reply = *payload.Reply
	}
	if payload.Emotion != nil {
		out.Emotion = *payload.Emotion
	}
	return out
}
