package model

import (
	"time"

	"gorm.io/datatypes"
)

// AnswerKey 是答案缓存的组合键。Tags 与 Context 为空时不参与匹配。
type AnswerKey struct {
	UserID    string
	Model     string
	Question  string
	TurnCount int
	Layout    string
	Tags      string
	Context   string
}

// CachedAnswer 对应 answer_cache 表。条目写入后不会过期。
type CachedAnswer struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string         `gorm:"type:varchar(128);index;not null" json:"userId"`
	Model     string         `gorm:"type:varchar(64);not null" json:"model"`
	Question  string         `gorm:"type:text;not null" json:"question"`
	TurnCount int            `gorm:"not null" json:"turnCount"`
	Layout    string         `gorm:"type:varchar(64)" json:"layout"`
	Tags      string         `gorm:"type:text" json:"tags"`
	Context   string         `gorm:"type:text" json:"context"`
	Answer    string         `gorm:"type:text;not null" json:"answer"`
	Emotion   string         `gorm:"type:varchar(64)" json:"emotion"`
	Creative  datatypes.JSON `json:"creative"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (CachedAnswer) TableName() string {
	return "answer_cache"
}

// UserEmotion 是画像刷新时读取的 {id, user_id, emotion} 投影，ID 用作增量读取的水位。
type UserEmotion struct {
	ID      uint
	UserID  string
	Emotion string
}
