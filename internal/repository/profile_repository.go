package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"ai-edu-go/internal/model"

	"github.com/go-redis/redis/v8"
)

const (
	profileKeyPrefix = "profile:"
	// refreshMarkKey 不以 profile: 开头，不会被 LoadAll 扫描到。
	refreshMarkKey = "refresh:answer_mark"
)

// ProfileRepository 定义了用户画像在 Redis 中的持久化操作。
type ProfileRepository interface {
	Save(ctx context.Context, userID string, profile model.UserProfile) error
	Get(ctx context.Context, userID string) (*model.UserProfile, error)
	LoadAll(ctx context.Context) (map[string]model.UserProfile, error)
	// SaveRefreshMark 记录画像刷新已处理到的答案缓存 ID。
	SaveRefreshMark(ctx context.Context, answerID uint) error
	// LoadRefreshMark 读取刷新水位，不存在时返回 0。
	LoadRefreshMark(ctx context.Context) (uint, error)
}

type redisProfileRepository struct {
	redisClient *redis.Client
}

// NewProfileRepository 创建一个新的 ProfileRepository 实例。
func NewProfileRepository(redisClient *redis.Client) ProfileRepository {
	return &redisProfileRepository{redisClient: redisClient}
}

func profileKey(userID string) string {
	return profileKeyPrefix + userID
}

// Save 以 JSON 覆盖写入画像，不设置过期时间。
func (r *redisProfileRepository) Save(ctx context.Context, userID string, profile model.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := r.redisClient.Set(ctx, profileKey(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set profile: %w", err)
	}
	return nil
}

// Get 读取画像，不存在时返回 (nil, nil)。
func (r *redisProfileRepository) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	data, err := r.redisClient.Get(ctx, profileKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	var profile model.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &profile, nil
}

// LoadAll 通过 SCAN 遍历 profile:* 读取全部画像，单条解析失败时跳过。
func (r *redisProfileRepository) LoadAll(ctx context.Context) (map[string]model.UserProfile, error) {
	result := make(map[string]model.UserProfile)
	iter := r.redisClient.Scan(ctx, 0, profileKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.redisClient.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var profile model.UserProfile
		if err := json.Unmarshal(data, &profile); err != nil {
			continue
		}
		result[strings.TrimPrefix(key, profileKeyPrefix)] = profile
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan profile keys: %w", err)
	}
	return result, nil
}

func (r *redisProfileRepository) SaveRefreshMark(ctx context.Context, answerID uint) error {
	if err := r.redisClient.Set(ctx, refreshMarkKey, strconv.FormatUint(uint64(answerID), 10), 0).Err(); err != nil {
		return fmt.Errorf("failed to set refresh mark: %w", err)
	}
	return nil
}

func (r *redisProfileRepository) LoadRefreshMark(ctx context.Context) (uint, error) {
	v, err := r.redisClient.Get(ctx, refreshMarkKey).Uint64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get refresh mark: %w", err)
	}
	return uint(v), nil
}
