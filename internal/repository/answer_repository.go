package repository

import (
	"context"
	"errors"
	"fmt"

	"ai-edu-go/internal/model"

	"gorm.io/gorm"
)

// AnswerRepository 定义了答案缓存的读写操作。
type AnswerRepository interface {
	// Find 精确匹配组合键，未命中时返回 (nil, nil)。
	Find(ctx context.Context, key model.AnswerKey) (*model.CachedAnswer, error)
	Create(ctx context.Context, entry *model.CachedAnswer) error
	// ListEmotions 按写入顺序返回 ID 大于 afterID 的 {id, user_id, emotion}。
	ListEmotions(ctx context.Context, afterID uint) ([]model.UserEmotion, error)
}

type answerRepository struct {
	db *gorm.DB
}

// NewAnswerRepository 创建一个新的 AnswerRepository 实例。
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

// Find 查询缓存。Tags 与 Context 为空时不加入查询条件，而不是按空值匹配。
func (r *answerRepository) Find(ctx context.Context, key model.AnswerKey) (*model.CachedAnswer, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND model = ? AND question = ? AND turn_count = ? AND layout = ?",
			key.UserID, key.Model, key.Question, key.TurnCount, key.Layout)
	if key.Tags != "" {
		query = query.Where("tags = ?", key.Tags)
	}
	if key.Context != "" {
		query = query.Where("context = ?", key.Context)
	}

	var entry model.CachedAnswer
	err := query.Order("id asc").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query answer cache: %w", err)
	}
	return &entry, nil
}

// Create 写入一条缓存记录。
func (r *answerRepository) Create(ctx context.Context, entry *model.CachedAnswer) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to insert answer cache: %w", err)
	}
	return nil
}

// ListEmotions 读取 afterID 之后新增的缓存记录的用户与情绪。自增 ID 即写入顺序。
func (r *answerRepository) ListEmotions(ctx context.Context, afterID uint) ([]model.UserEmotion, error) {
	var rows []model.UserEmotion
	err := r.db.WithContext(ctx).
		Model(&model.CachedAnswer{}).
		Select("id, user_id, emotion").
		Where("id > ?", afterID).
		Order("id asc").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list emotions: %w", err)
	}
	return rows, nil
}
