package pipeline

import (
	"context"
	"errors"
	"testing"

	"ai-edu-go/internal/model"
	"ai-edu-go/pkg/tasks"
)

type stubHistoryRepo struct {
	appended map[string][]model.ChatMessage
	err      error
}

func (r *stubHistoryRepo) Append(ctx context.Context, chatID string, messages []model.ChatMessage) error {
	if r.err != nil {
		return r.err
	}
	if r.appended == nil {
		r.appended = make(map[string][]model.ChatMessage)
	}
	r.appended[chatID] = append(r.appended[chatID], messages...)
	return nil
}

func (r *stubHistoryRepo) FindByChatID(ctx context.Context, chatID string) ([]model.ChatMessage, error) {
	return r.appended[chatID], nil
}

func TestProcessAppendsMessages(t *testing.T) {
	repo := &stubHistoryRepo{}
	p := NewProcessor(repo)
	task := tasks.HistoryPersistTask{ChatID: "c1", Messages: []model.ChatMessage{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "yo"}}}
	if err := p.Process(context.Background(), task); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(repo.appended["c1"]) != 2 {
		t.Errorf("expected 2 appended messages, got %d", len(repo.appended["c1"]))
	}
}

func TestProcessRejectsMissingChatID(t *testing.T) {
	if err := NewProcessor(&stubHistoryRepo{}).Process(context.Background(), tasks.HistoryPersistTask{}); err == nil {
		t.Fatal("expected error for missing chat id")
	}
}

func TestProcessWrapsRepositoryError(t *testing.T) {
	dbErr := errors.New("db down")
	err := NewProcessor(&stubHistoryRepo{err: dbErr}).Process(context.Background(), tasks.HistoryPersistTask{ChatID: "c1"})
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped repository error, got %v", err)
	}
}
