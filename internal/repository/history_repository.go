// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"fmt"

	"ai-edu-go/internal/model"

	"gorm.io/gorm"
)

// HistoryRepository 定义了会话历史的持久化操作。
type HistoryRepository interface {
	// Append 追加一批消息，保持传入顺序。
	Append(ctx context.Context, chatID string, messages []model.ChatMessage) error
	// FindByChatID 按创建顺序返回会话的全部消息。
	FindByChatID(ctx context.Context, chatID string) ([]model.ChatMessage, error)
}

type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository 创建一个新的 HistoryRepository 实例。
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

// Append 将消息写入 messages 表。角色或内容为空的消息会被跳过。
func (r *historyRepository) Append(ctx context.Context, chatID string, messages []model.ChatMessage) error {
	if chatID == "" {
		return fmt.Errorf("chat id is empty")
	}
	rows := make([]model.MessageRecord, 0, len(messages))
	for _, m := range messages {
		if m.Role == "" || m.Content == "" {
			continue
		}
		rows = append(rows, model.MessageRecord{ChatID: chatID, Sender: m.Role, Content: m.Content})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert messages: %w", err)
	}
	return nil
}

// FindByChatID 查询指定会话的消息，按 created_at、id 排序后投影为 {role, content}。
func (r *historyRepository) FindByChatID(ctx context.Context, chatID string) ([]model.ChatMessage, error) {
	var rows []model.MessageRecord
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at asc").Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	messages := make([]model.ChatMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, model.ChatMessage{Role: row.Sender, Content: row.Content})
	}
	return messages, nil
}
