// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ai-edu-go/internal/config"
	"ai-edu-go/internal/model"
	"ai-edu-go/internal/prompt"
	"ai-edu-go/internal/repository"
	"ai-edu-go/pkg/llm"
	"ai-edu-go/pkg/log"
)

var (
	// ErrMissingIdentifiers 表示请求缺少 chat_id 或 user_id。
	ErrMissingIdentifiers = errors.New("missing chat_id or user_id")
	// ErrUpstream 表示上游模型调用失败。
	ErrUpstream = errors.New("upstream model call failed")
	// ErrClientGone 表示流式输出写回客户端失败，通常是客户端已断开。
	ErrClientGone = errors.New("stream client write failed")
)

// ChatService 定义了聊天编排的接口。
type ChatService interface {
	// Handle 处理一次非流式聊天请求。
	Handle(ctx context.Context, req model.ChatRequest) (*model.ChatReply, error)
	// Stream 把上游的增量内容逐条写入 writer，结束标记由传输层负责。
	Stream(ctx context.Context, messages []model.ChatMessage, writer llm.TokenWriter) error
}

// ChatOptions 汇总编排所需的配置。
type ChatOptions struct {
	Chat         config.ChatConfig
	Temperature  float64
	StreamModel  string
	CacheEnabled bool
}

// NewChatOptions 从全局配置构造 ChatOptions。
func NewChatOptions(cfg config.Config) ChatOptions {
	return ChatOptions{
		Chat:         cfg.Chat,
		Temperature:  cfg.LLM.Generation.Temperature,
		StreamModel:  cfg.LLM.Model,
		CacheEnabled: cfg.Cache.Enabled,
	}
}

type chatService struct {
	opts          ChatOptions
	assembler     *prompt.Assembler
	llmClient     llm.Client
	historyRepo   repository.HistoryRepository
	answerRepo    repository.AnswerRepository
	historyWriter HistoryWriter
	resident      ResidentService
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	opts ChatOptions,
	assembler *prompt.Assembler,
	llmClient llm.Client,
	historyRepo repository.HistoryRepository,
	answerRepo repository.AnswerRepository,
	historyWriter HistoryWriter,
	resident ResidentService,
) ChatService {
	return &chatService{
		opts:          opts,
		assembler:     assembler,
		llmClient:     llmClient,
		historyRepo:   historyRepo,
		answerRepo:    answerRepo,
		historyWriter: historyWriter,
		resident:      resident,
	}
}

// Handle 依次执行：缓存查询、历史拼装、创意模式、模型选择、结果归一化、持久化。
func (s *chatService) Handle(ctx context.Context, req model.ChatRequest) (*model.ChatReply, error) {
	if req.ChatID == "" || req.UserID == "" {
		log.Warnw("请求缺少 chat_id 或 user_id", "chatID", req.ChatID, "userID", req.UserID)
		return nil, ErrMissingIdentifiers
	}
	s.applyDefaults(&req)
	question := req.Question()

	// 1. 缓存
	key := s.answerKey(req, question)
	if cached := s.lookupCache(ctx, key); cached != nil {
		log.Infow("答案缓存命中", "chatID", req.ChatID, "userID", req.UserID, "model", req.Model)
		return cached, nil
	}

	// 2. system -> 持久化历史 -> 客户端携带的历史 -> 本轮消息
	persisted := s.loadHistory(ctx, req.ChatID)
	prior := make([]model.ChatMessage, 0, len(persisted)+len(req.History))
	prior = append(prior, persisted...)
	prior = append(prior, req.History...)

	params := prompt.QuizParams{
		QuizType: req.QuizType,
		Level:    req.Level,
		Tags:     req.Tags,
		Layout:   req.Layout,
		Count:    req.Count,
	}
	system := s.assembler.Assemble(question, params, s.resident.Profile(req.UserID), prior)
	full := make([]model.ChatMessage, 0, len(prior)+len(req.Messages)+1)
	full = append(full, system)
	full = append(full, prior...)
	full = append(full, req.Messages...)

	// 3. 创意模式
	var creative *model.CreativeResult
	if req.Mode == model.ModeCreative {
		creative = s.resident.CreativeThinking(question, full, req.UserID)
	}

	// 4. 本地常驻 AI 不调用上游，也不写缓存
	if req.Model == s.opts.Chat.LocalAgentModel {
		return s.answerLocally(ctx, req, question, full), nil
	}

	temperature := s.opts.Temperature
	raw, err := s.llmClient.Chat(ctx, llm.ChatRequest{
		Model:       req.Model,
		Messages:    toLLMMessages(full),
		Temperature: &temperature,
		JSONObject:  true,
	})
	if err != nil {
		log.Errorf("调用上游模型失败, chatID=%s, model=%s: %v", req.ChatID, req.Model, err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	// 5. 归一化
	reply, emotion := ParseModelReply(raw, s.opts.Chat.NeutralEmotion).Normalize()

	// 6. 持久化：只追加尚未落库的消息，避免重复写入已持久化的历史
	unsaved := make([]model.ChatMessage, 0, len(req.History)+len(req.Messages)+1)
	unsaved = append(unsaved, req.History...)
	unsaved = append(unsaved, req.Messages...)
	unsaved = append(unsaved, model.ChatMessage{Role: model.RoleAssistant, Content: reply})
	s.historyWriter.Save(req.ChatID, unsaved)
	s.storeCache(ctx, key, reply, emotion, creative)

	return &model.ChatReply{Reply: reply, Emotion: emotion, Creative: creative}, nil
}

func (s *chatService) answerLocally(ctx context.Context, req model.ChatRequest, question string, full []model.ChatMessage) *model.ChatReply {
	s.resident.AnalyzeUser(ctx, req.UserID, req.Messages)
	creative := s.resident.CreativeThinking(question, full, req.UserID)
	reply := LocalAgentPlaceholder
	if creative != nil && creative.Idea != "" {
		reply = creative.Idea
	}
	return &model.ChatReply{Reply: reply, Emotion: s.opts.Chat.NeutralEmotion, Creative: creative}
}

func (s *chatService) Stream(ctx context.Context, messages []model.ChatMessage, writer llm.TokenWriter) error {
	tw := &trackingWriter{TokenWriter: writer}
	if err := s.llmClient.StreamChatMessages(ctx, s.opts.StreamModel, toLLMMessages(messages), tw); err != nil {
		if tw.err != nil {
			return fmt.Errorf("%w: %v", ErrClientGone, tw.err)
		}
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return nil
}

// trackingWriter 记录写回客户端时的错误，用来区分客户端断开与上游失败。
type trackingWriter struct {
	llm.TokenWriter
	err error
}

func (w *trackingWriter) WriteToken(token string) error {
	if err := w.TokenWriter.WriteToken(token); err != nil {
		w.err = err
		return err
	}
	return nil
}

func (s *chatService) applyDefaults(req *model.ChatRequest) {
	if req.Mode == "" {
		req.Mode = model.ModeNormal
	}
	if req.Model == "" {
		req.Model = s.opts.Chat.DefaultModel
	}
	if req.QuizType == "" {
		req.QuizType = s.opts.Chat.DefaultQuizType
	}
	if req.Level == "" {
		req.Level = s.opts.Chat.DefaultLevel
	}
	if req.Layout == "" {
		req.Layout = s.opts.Chat.DefaultLayout
	}
	if req.Count < 1 {
		req.Count = 1
	}
}

// answerKey 只使用请求本身的字段，保证相同请求得到相同的键。
func (s *chatService) answerKey(req model.ChatRequest, question string) model.AnswerKey {
	return model.AnswerKey{
		UserID:    req.UserID,
		Model:     req.Model,
		Question:  question,
		TurnCount: len(req.Messages),
		Layout:    req.Layout,
		Tags:      strings.Join(req.Tags, ","),
		Context:   strings.Join(model.Contents(req.History), "\n"),
	}
}

func (s *chatService) lookupCache(ctx context.Context, key model.AnswerKey) *model.ChatReply {
	if !s.opts.CacheEnabled {
		return nil
	}
	entry, err := s.answerRepo.Find(ctx, key)
	if err != nil {
		log.Errorf("查询答案缓存失败, userID=%s: %v", key.UserID, err)
		return nil
	}
	if entry == nil {
		return nil
	}
	reply := &model.ChatReply{Reply: entry.Answer, Emotion: entry.Emotion}
	if len(entry.Creative) > 0 {
		var creative model.CreativeResult
		if err := json.Unmarshal(entry.Creative, &creative); err == nil && string(entry.Creative) != "null" {
			reply.Creative = &creative
		}
	}
	return reply
}

func (s *chatService) storeCache(ctx context.Context, key model.AnswerKey, reply, emotion string, creative *model.CreativeResult) {
	if !s.opts.CacheEnabled {
		return
	}
	entry := &model.CachedAnswer{
		UserID:    key.UserID,
		Model:     key.Model,
		Question:  key.Question,
		TurnCount: key.TurnCount,
		Layout:    key.Layout,
		Tags:      key.Tags,
		Context:   key.Context,
		Answer:    reply,
		Emotion:   emotion,
	}
	if creative != nil {
		data, err := json.Marshal(creative)
		if err == nil {
			entry.Creative = data
		}
	}
	if err := s.answerRepo.Create(ctx, entry); err != nil {
		log.Errorf("写入答案缓存失败, userID=%s: %v", key.UserID, err)
	}
}

func (s *chatService) loadHistory(ctx context.Context, chatID string) []model.ChatMessage {
	history, err := s.historyRepo.FindByChatID(ctx, chatID)
	if err != nil {
		log.Errorf("读取会话历史失败, chatID=%s: %v", chatID, err)
		return nil
	}
	return history
}

func toLLMMessages(messages []model.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
