package service

import (
	"context"
	"fmt"
	"time"

	"ai-edu-go/internal/repository"
	"ai-edu-go/pkg/log"
)

// ProfileRefresher 定期根据答案缓存中的情绪记录重算用户画像。
type ProfileRefresher struct {
	store    *ProfileStore
	answers  repository.AnswerRepository
	interval time.Duration
	done     chan struct{}
}

// NewProfileRefresher 创建刷新任务，interval 非正时使用 60 秒。
func NewProfileRefresher(store *ProfileStore, answers repository.AnswerRepository, interval time.Duration) *ProfileRefresher {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &ProfileRefresher{
		store:    store,
		answers:  answers,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Run 阻塞运行直到 ctx 被取消。单次刷新的错误只记录日志。
func (r *ProfileRefresher) Run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Infof("用户画像刷新任务已启动，间隔 %s", r.interval)
	for {
		select {
		case <-ctx.Done():
			log.Info("用户画像刷新任务已停止")
			return
		case <-ticker.C:
			if err := r.safeRefresh(ctx); err != nil {
				log.Errorf("刷新用户画像失败: %v", err)
			}
		}
	}
}

// Done 在 Run 返回后关闭。
func (r *ProfileRefresher) Done() <-chan struct{} {
	return r.done
}

func (r *ProfileRefresher) safeRefresh(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during refresh: %v", p)
		}
	}()
	_, err = r.RefreshOnce(ctx)
	return err
}

// RefreshOnce 读取水位之后新增的 {user_id, emotion}，按用户分组追加到各自的情绪历史末尾。
// 已有画像的其余字段保持不变，没有画像的用户以默认画像为基础。返回更新的用户数。
func (r *ProfileRefresher) RefreshOnce(ctx context.Context) (int, error) {
	rows, err := r.answers.ListEmotions(ctx, r.store.RefreshMark())
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	grouped := make(map[string][]string)
	var order []string
	for _, row := range rows {
		if row.UserID == "" || row.Emotion == "" {
			continue
		}
		if _, seen := grouped[row.UserID]; !seen {
			order = append(order, row.UserID)
		}
		grouped[row.UserID] = append(grouped[row.UserID], row.Emotion)
	}

	for _, userID := range order {
		profile, ok := r.store.Get(userID)
		if !ok {
			profile = DefaultProfile()
		}
		profile.EmotionHistory = append(profile.EmotionHistory, grouped[userID]...)
		r.store.Put(ctx, userID, profile)
	}
	r.store.SetRefreshMark(ctx, rows[len(rows)-1].ID)
	return len(order), nil
}
