// Package model 包含了应用的数据模型定义。
package model

import "time"

// 会话中的角色。
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage 代表一轮对话消息（turn）。
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageRecord 对应 messages 表，每行保存会话中的一条消息。
// 同一 chat_id 下按 created_at 追加，读取时按创建顺序返回。
type MessageRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID    string    `gorm:"type:varchar(128);index;not null" json:"chatId"`
	Sender    string    `gorm:"type:varchar(16);not null" json:"sender"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (MessageRecord) TableName() string {
	return "messages"
}

// Contents 返回消息内容列表，顺序不变。
func Contents(messages []ChatMessage) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Content)
	}
	return out
}
