package service

import (
	"context"
	"errors"
	"sync"

	"ai-edu-go/internal/config"
	"ai-edu-go/internal/model"
	"ai-edu-go/internal/prompt"
	"ai-edu-go/pkg/llm"
)

type fakeLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	calls    []llm.ChatRequest
	tokens   []string
	streamed []llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.reply, f.err
}

func (f *fakeLLM) StreamChatMessages(ctx context.Context, model string, messages []llm.Message, writer llm.TokenWriter) error {
	f.streamed = messages
	if f.err != nil {
		return f.err
	}
	for _, tok := range f.tokens {
		if tok == "" {
			continue
		}
		if err := writer.WriteToken(tok); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	rows    map[string][]model.ChatMessage
	findErr error
	finds   int
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{rows: make(map[string][]model.ChatMessage)}
}

func (r *fakeHistoryRepo) Append(ctx context.Context, chatID string, messages []model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[chatID] = append(r.rows[chatID], messages...)
	return nil
}

func (r *fakeHistoryRepo) FindByChatID(ctx context.Context, chatID string) ([]model.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	if r.findErr != nil {
		return nil, r.findErr
	}
	return append([]model.ChatMessage(nil), r.rows[chatID]...), nil
}

type fakeAnswerRepo struct {
	mu       sync.Mutex
	entries  []model.CachedAnswer
	findErr  error
	findCall int
}

func (r *fakeAnswerRepo) Find(ctx context.Context, key model.AnswerKey) (*model.CachedAnswer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCall++
	if r.findErr != nil {
		return nil, r.findErr
	}
	for i := range r.entries {
		e := r.entries[i]
		if e.UserID != key.UserID || e.Model != key.Model || e.Question != key.Question ||
			e.TurnCount != key.TurnCount || e.Layout != key.Layout {
			continue
		}
		if key.Tags != "" && e.Tags != key.Tags {
			continue
		}
		if key.Context != "" && e.Context != key.Context {
			continue
		}
		return &e, nil
	}
	return nil, nil
}

func (r *fakeAnswerRepo) Create(ctx context.Context, entry *model.CachedAnswer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == 0 {
		entry.ID = uint(len(r.entries) + 1)
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAnswerRepo) ListEmotions(ctx context.Context, afterID uint) ([]model.UserEmotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	out := make([]model.UserEmotion, 0, len(r.entries))
	for _, e := range r.entries {
		if e.ID <= afterID {
			continue
		}
		out = append(out, model.UserEmotion{ID: e.ID, UserID: e.UserID, Emotion: e.Emotion})
	}
	return out, nil
}

type syncHistoryWriter struct {
	repo *fakeHistoryRepo
}

func (w syncHistoryWriter) Save(chatID string, messages []model.ChatMessage) {
	_ = w.repo.Append(context.Background(), chatID, messages)
}

var errBoom = errors.New("boom")

type harness struct {
	llm      *fakeLLM
	history  *fakeHistoryRepo
	answers  *fakeAnswerRepo
	store    *ProfileStore
	resident ResidentService
	svc      ChatService
}

func newHarness() *harness {
	h := &harness{
		llm:     &fakeLLM{reply: `{"reply":"了解です","emotion":"喜び"}`},
		history: newFakeHistoryRepo(),
		answers: &fakeAnswerRepo{},
		store:   NewProfileStore(nil),
	}
	h.resident = NewResidentService(h.store)
	opts := ChatOptions{
		Chat: config.ChatConfig{
			DefaultModel:    "gpt-4o",
			LocalAgentModel: "higash-ai",
			NeutralEmotion:  "ニュートラル",
			DefaultQuizType: "multiple_choice",
			DefaultLevel:    "中級",
			DefaultLayout:   "quiz_card_v1",
		},
		Temperature:  0.7,
		StreamModel:  "gpt-4o",
		CacheEnabled: true,
	}
	assembler := prompt.NewAssembler(prompt.NewClassifier(config.DefaultQuizTriggers))
	h.svc = NewChatService(opts, assembler, h.llm, h.history, h.answers, syncHistoryWriter{repo: h.history}, h.resident)
	return h
}
