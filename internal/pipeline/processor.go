// Package pipeline 负责处理从 Kafka 消费到的会话历史写入任务。
package pipeline

import (
	"context"
	"fmt"

	"ai-edu-go/internal/repository"
	"ai-edu-go/pkg/log"
	"ai-edu-go/pkg/tasks"
)

// Processor 把任务中的消息追加到历史存储。
type Processor struct {
	historyRepo repository.HistoryRepository
}

// NewProcessor 创建一个新的 Processor。
func NewProcessor(historyRepo repository.HistoryRepository) *Processor {
	return &Processor{historyRepo: historyRepo}
}

// Process 处理单个任务。
func (p *Processor) Process(ctx context.Context, task tasks.HistoryPersistTask) error {
	if task.ChatID == "" {
		return fmt.Errorf("history task without chat id")
	}
	if err := p.historyRepo.Append(ctx, task.ChatID, task.Messages); err != nil {
		return fmt.Errorf("append history for chat %s: %w", task.ChatID, err)
	}
	log.Infow("会话历史已写入", "chatID", task.ChatID, "messages", len(task.Messages))
	return nil
}
