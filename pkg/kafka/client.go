// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ai-edu-go/internal/config"
	"ai-edu-go/internal/model"
	"ai-edu-go/pkg/log"
	"ai-edu-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// TaskProcessor defines the interface for any service that can process a history task.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.HistoryPersistTask) error
}

// messageWriter 是 kafka.Writer 的最小接口，便于替换。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// batchTimeout 覆盖 kafka-go 默认的 1 秒攒批等待。
const batchTimeout = 10 * time.Millisecond

// HistoryProducer 把会话历史写入任务投递到 Kafka，实现 service.HistoryWriter。
type HistoryProducer struct {
	writer  messageWriter
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewHistoryProducer 初始化 Kafka 生产者。
func NewHistoryProducer(cfg config.KafkaConfig) *HistoryProducer {
	log.Info("Kafka 生产者初始化成功")
	return &HistoryProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: batchTimeout,
		},
		timeout: 10 * time.Second,
	}
}

// Save 在后台投递一个历史写入任务并立即返回，失败只记录日志。以 chat_id 为消息键保证同一会话有序。
func (p *HistoryProducer) Save(chatID string, messages []model.ChatMessage) {
	if chatID == "" || len(messages) == 0 {
		return
	}
	task := tasks.HistoryPersistTask{ChatID: chatID, Messages: append([]model.ChatMessage(nil), messages...)}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Produce(context.Background(), task); err != nil {
			log.Errorf("投递会话历史任务失败, chatID=%s: %v", chatID, err)
		}
	}()
}

// Produce 同步发送一个任务。
func (p *HistoryProducer) Produce(ctx context.Context, task tasks.HistoryPersistTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal history task: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(task.ChatID), Value: taskBytes})
}

// Close 等待进行中的投递完成后关闭生产者。
func (p *HistoryProducer) Close() error {
	p.wg.Wait()
	return p.writer.Close()
}

// messageReader 是 kafka.Reader 的最小接口。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewHistoryReader 创建消费会话历史任务的 Reader。
func NewHistoryReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
}

// fetchRetryBackoff 是读取失败后重试前的等待时间。
var fetchRetryBackoff = time.Second

// StartConsumer 启动消费循环，直到 ctx 被取消。读取失败时等待 fetchRetryBackoff 后重试。
func StartConsumer(ctx context.Context, reader messageReader, processor TaskProcessor) {
	defer reader.Close()
	log.Info("Kafka 消费者已启动")

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败，稍后重试", err)
			select {
			case <-ctx.Done():
				log.Info("Kafka 消费者已停止")
				return
			case <-time.After(fetchRetryBackoff):
			}
			continue
		}

		var task tasks.HistoryPersistTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			// 消息格式错误，直接提交，避免阻塞队列
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			commit(ctx, reader, m)
			continue
		}

		if err := processor.Process(ctx, task); err != nil {
			// 写库失败不重试，与直接写库的行为一致
			log.Errorf("处理会话历史任务失败, chatID=%s: %v", task.ChatID, err)
		}
		commit(ctx, reader, m)
	}
}

func commit(ctx context.Context, reader messageReader, m kafka.Message) {
	if err := reader.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息失败, offset=%d: %v", m.Offset, err)
	}
}
