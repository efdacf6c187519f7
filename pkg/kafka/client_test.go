package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-edu-go/internal/config"
	"ai-edu-go/internal/model"
	"ai-edu-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

const defaultTestTimeout = 5 * time.Second

type fakeWriter struct {
	mu      sync.Mutex
	msgs    []kafka.Message
	err     error
	release chan struct{}
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.release != nil {
		<-w.release
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	fetchErrs []error
	queue     []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if len(r.queue) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type recordingProcessor struct {
	tasks []tasks.HistoryPersistTask
	err   error
}

func (p *recordingProcessor) Process(ctx context.Context, task tasks.HistoryPersistTask) error {
	p.tasks = append(p.tasks, task)
	return p.err
}

func TestHistoryProducerSaveKeysByChatID(t *testing.T) {
	w := &fakeWriter{}
	p := &HistoryProducer{writer: w, timeout: defaultTestTimeout}
	p.Save("c1", []model.ChatMessage{{Role: "user", Content: "こんにちは"}})
	p.Save("", []model.ChatMessage{{Role: "user", Content: "skip"}})
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "c1" {
		t.Errorf("unexpected key %q", w.msgs[0].Key)
	}
	var task tasks.HistoryPersistTask
	if err := json.Unmarshal(w.msgs[0].Value, &task); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if task.ChatID != "c1" || len(task.Messages) != 1 || task.Messages[0].Content != "こんにちは" {
		t.Errorf("unexpected task %+v", task)
	}
}

func TestHistoryProducerSaveSwallowsErrors(t *testing.T) {
	p := &HistoryProducer{writer: &fakeWriter{err: errors.New("broker down")}, timeout: defaultTestTimeout}
	p.Save("c1", []model.ChatMessage{{Role: "user", Content: "x"}})
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestHistoryProducerSaveDoesNotWaitForBroker(t *testing.T) {
	w := &fakeWriter{release: make(chan struct{})}
	p := &HistoryProducer{writer: w, timeout: defaultTestTimeout}

	start := time.Now()
	for i := 0; i < 3; i++ {
		p.Save("c1", []model.ChatMessage{{Role: "user", Content: "hi"}})
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Save blocked the caller for %s", elapsed)
	}

	closed := make(chan struct{})
	go func() {
		_ = p.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close must wait for in-flight messages")
	case <-time.After(20 * time.Millisecond):
	}

	close(w.release)
	select {
	case <-closed:
	case <-time.After(defaultTestTimeout):
		t.Fatal("Close did not return after the broker acknowledged")
	}
	if len(w.msgs) != 3 {
		t.Errorf("expected 3 delivered messages, got %d", len(w.msgs))
	}
}

func TestNewHistoryProducerUsesShortBatchTimeout(t *testing.T) {
	p := NewHistoryProducer(config.KafkaConfig{Brokers: "localhost:9092", Topic: "chat-history"})
	w, ok := p.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("expected *kafka.Writer, got %T", p.writer)
	}
	if w.BatchTimeout <= 0 || w.BatchTimeout > 50*time.Millisecond {
		t.Errorf("expected a short batch timeout, got %s", w.BatchTimeout)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestStartConsumerProcessesAndCommits(t *testing.T) {
	valid, _ := json.Marshal(tasks.HistoryPersistTask{ChatID: "c1", Messages: []model.ChatMessage{{Role: "user", Content: "hi"}}})
	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{
		queue: []kafka.Message{
			{Offset: 1, Value: valid},
			{Offset: 2, Value: []byte("not json")},
			{Offset: 3, Value: valid},
		},
		cancel: cancel,
	}
	processor := &recordingProcessor{err: errors.New("db down")}

	StartConsumer(ctx, reader, processor)

	if len(processor.tasks) != 2 {
		t.Errorf("expected 2 processed tasks, got %d", len(processor.tasks))
	}
	if len(reader.committed) != 3 {
		t.Errorf("expected all 3 messages committed, got %v", reader.committed)
	}
}

func TestStartConsumerRetriesAfterFetchError(t *testing.T) {
	backoff := fetchRetryBackoff
	fetchRetryBackoff = time.Millisecond
	defer func() { fetchRetryBackoff = backoff }()

	valid, _ := json.Marshal(tasks.HistoryPersistTask{ChatID: "c1", Messages: []model.ChatMessage{{Role: "user", Content: "hi"}}})
	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{
		fetchErrs: []error{errors.New("leader not available"), errors.New("connection reset")},
		queue:     []kafka.Message{{Offset: 1, Value: valid}},
		cancel:    cancel,
	}
	processor := &recordingProcessor{}

	done := make(chan struct{})
	go func() {
		StartConsumer(ctx, reader, processor)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(defaultTestTimeout):
		t.Fatal("consumer did not stop after cancel")
	}

	if len(processor.tasks) != 1 || processor.tasks[0].ChatID != "c1" {
		t.Errorf("expected the task after transient errors to be processed, got %+v", processor.tasks)
	}
	if len(reader.committed) != 1 {
		t.Errorf("expected 1 commit, got %v", reader.committed)
	}
}
