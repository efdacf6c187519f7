// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import "ai-edu-go/internal/model"

// HistoryPersistTask carries conversation turns that must be appended to the history store.
type HistoryPersistTask struct {
	ChatID   string              `json:"chat_id"`
	Messages []model.ChatMessage `json:"messages"`
}
