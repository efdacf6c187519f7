package model

// UserProfile 是常驻 AI 持有的用户画像，只做整体替换。
type UserProfile struct {
	Personality    string   `json:"personality"`
	Tendency       string   `json:"tendency"`
	EmotionHistory []string `json:"emotion_history"`
}

// Clone 返回深拷贝，避免调用方修改共享的切片。
func (p UserProfile) Clone() UserProfile {
	p.EmotionHistory = append([]string(nil), p.EmotionHistory...)
	return p
}
