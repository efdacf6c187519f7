package service

import (
	"context"
	"sync"
	"time"

	"ai-edu-go/internal/model"
	"ai-edu-go/internal/repository"
	"ai-edu-go/pkg/log"
)

// HistoryWriter 以发后即忘的方式保存会话消息，失败只记录日志。
type HistoryWriter interface {
	Save(chatID string, messages []model.ChatMessage)
}

const historyWriteTimeout = 10 * time.Second

// AsyncHistoryWriter 在独立 goroutine 中直接写库。
type AsyncHistoryWriter struct {
	repo repository.HistoryRepository
	wg   sync.WaitGroup
}

// NewAsyncHistoryWriter 创建一个直接写库的 HistoryWriter。
func NewAsyncHistoryWriter(repo repository.HistoryRepository) *AsyncHistoryWriter {
	return &AsyncHistoryWriter{repo: repo}
}

// Save 异步追加消息。使用后台上下文，请求结束后仍会写入。
func (w *AsyncHistoryWriter) Save(chatID string, messages []model.ChatMessage) {
	if chatID == "" || len(messages) == 0 {
		return
	}
	batch := append([]model.ChatMessage(nil), messages...)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := w.repo.Append(ctx, chatID, batch); err != nil {
			log.Errorf("保存会话历史失败, chatID=%s: %v", chatID, err)
		}
	}()
}

// Wait 等待所有进行中的写入完成，用于停机。
func (w *AsyncHistoryWriter) Wait() {
	w.wg.Wait()
}
