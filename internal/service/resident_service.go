package service

import (
	"context"
	"fmt"
	"sync"

	"ai-edu-go/internal/model"
	"ai-edu-go/internal/repository"
	"ai-edu-go/pkg/log"
)

// 常驻 AI 的固定画像与文案。
const (
	stubPersonality     = "おおらか"
	stubTendency        = "夜型・返信早い・ポジティブ多め"
	fallbackPersonality = "ユニーク"
	fallbackTendency    = "データ不足"
	// LocalAgentPlaceholder 是本地模型没有创意结果时的回复。
	LocalAgentPlaceholder = "ResidentAI: 準備中です。"
)

var stubEmotionHistory = []string{"喜び", "驚き", "ニュートラル"}

// DefaultProfile 返回分析器使用的固定画像。
func DefaultProfile() model.UserProfile {
	return model.UserProfile{
		Personality:    stubPersonality,
		Tendency:       stubTendency,
		EmotionHistory: append([]string(nil), stubEmotionHistory...),
	}
}

// ProfileStore 在内存中保存 userID -> 画像，并尽力同步到 Redis。
// 写入总是整体替换，读写并发时以最后一次写入为准。
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]model.UserProfile
	repo     repository.ProfileRepository
	// refreshMark 是画像刷新已处理到的答案缓存 ID
	refreshMark uint
}

// NewProfileStore 创建画像存储。repo 为 nil 时只保存在内存中。
func NewProfileStore(repo repository.ProfileRepository) *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]model.UserProfile),
		repo:     repo,
	}
}

// Get 返回画像的副本。
func (s *ProfileStore) Get(userID string) (model.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return model.UserProfile{}, false
	}
	return p.Clone(), true
}

// Put 覆盖写入画像。Redis 写入失败只记录日志。
func (s *ProfileStore) Put(ctx context.Context, userID string, profile model.UserProfile) {
	profile = profile.Clone()
	s.mu.Lock()
	s.profiles[userID] = profile
	s.mu.Unlock()

	if s.repo == nil {
		return
	}
	if err := s.repo.Save(ctx, userID, profile); err != nil {
		log.Errorf("保存用户画像到 Redis 失败, userID=%s: %v", userID, err)
	}
}

// Snapshot 返回全部画像的副本。
func (s *ProfileStore) Snapshot() map[string]model.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.UserProfile, len(s.profiles))
	for id, p := range s.profiles {
		out[id] = p.Clone()
	}
	return out
}

// RefreshMark 返回画像刷新的水位。
func (s *ProfileStore) RefreshMark() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshMark
}

// SetRefreshMark 更新刷新水位并尽力同步到 Redis。
func (s *ProfileStore) SetRefreshMark(ctx context.Context, answerID uint) {
	s.mu.Lock()
	s.refreshMark = answerID
	s.mu.Unlock()

	if s.repo == nil {
		return
	}
	if err := s.repo.SaveRefreshMark(ctx, answerID); err != nil {
		log.Errorf("保存画像刷新水位失败, mark=%d: %v", answerID, err)
	}
}

// Warm 从 Redis 载入已持久化的画像与刷新水位，内存中已有的记录不会被覆盖。
func (s *ProfileStore) Warm(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}
	stored, err := s.repo.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load profiles: %w", err)
	}
	mark, err := s.repo.LoadRefreshMark(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load refresh mark: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if mark > s.refreshMark {
		s.refreshMark = mark
	}
	loaded := 0
	for id, p := range stored {
		if _, exists := s.profiles[id]; exists {
			continue
		}
		s.profiles[id] = p
		loaded++
	}
	return loaded, nil
}

// ResidentService 是常驻 AI：维护用户画像并给出创意建议。
type ResidentService interface {
	// AnalyzeUser 生成画像并无条件覆盖该用户之前的画像。
	AnalyzeUser(ctx context.Context, userID string, history []model.ChatMessage) model.UserProfile
	// CreativeThinking 在 userID 为空时返回 nil。
	CreativeThinking(input string, conversation []model.ChatMessage, userID string) *model.CreativeResult
	// Profile 返回用户画像，不存在时返回 nil。
	Profile(userID string) *model.UserProfile
}

type residentService struct {
	store *ProfileStore
}

// NewResidentService 创建一个基于给定 ProfileStore 的 ResidentService。
func NewResidentService(store *ProfileStore) ResidentService {
	return &residentService{store: store}
}

// AnalyzeUser 目前是固定实现：性格与倾向固定，情绪历史取消息内容，没有消息时使用默认序列。
func (s *residentService) AnalyzeUser(ctx context.Context, userID string, history []model.ChatMessage) model.UserProfile {
	profile := DefaultProfile()
	var emotions []string
	for _, m := range history {
		if m.Content != "" {
			emotions = append(emotions, m.Content)
		}
	}
	if len(emotions) > 0 {
		profile.EmotionHistory = emotions
	}
	s.store.Put(ctx, userID, profile)
	return profile.Clone()
}

func (s *residentService) CreativeThinking(input string, conversation []model.ChatMessage, userID string) *model.CreativeResult {
	if userID == "" {
		return nil
	}
	personality, tendency := fallbackPersonality, fallbackTendency
	if p, ok := s.store.Get(userID); ok {
		personality, tendency = p.Personality, p.Tendency
	}
	return &model.CreativeResult{
		Creative:  true,
		Idea:      fmt.Sprintf("%sさんは%sな方なので、こういう提案も面白いかも！", userID, personality),
		Reasoning: fmt.Sprintf("過去の傾向: %s", tendency),
	}
}

func (s *residentService) Profile(userID string) *model.UserProfile {
	p, ok := s.store.Get(userID)
	if !ok {
		return nil
	}
	return &p
}
