// Package prompt builds the system turn that precedes every chat request:
// either the quiz-generation template or the conversational context template.
package prompt

import (
	"fmt"
	"strings"

	"ai-edu-go/internal/model"
)

// 画像缺失时的占位文本。
const (
	defaultPersonality    = "柔軟型"
	defaultTendency       = "ひらめき重視"
	defaultEmotionHistory = "データなし"
	defaultTagsText       = "一般的な教養・論理・言語・数理・創造性"
)

// Classifier 通过触发词的子串包含判断是否为出题请求。
// 不做分词，触发词出现在无关单词中也会命中（如 "quizzical"）。
type Classifier struct {
	Triggers []string
}

// NewClassifier 创建分类器，触发词为空时不会命中任何输入。
func NewClassifier(triggers []string) Classifier {
	return Classifier{Triggers: append([]string(nil), triggers...)}
}

// IsQuiz 判断文本是否包含任一触发词。
func (c Classifier) IsQuiz(text string) bool {
	for _, t := range c.Triggers {
		if t != "" && strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// QuizParams 是出题模板的参数。
type QuizParams struct {
	QuizType string
	Level    string
	Tags     []string
	Layout   string
	Count    int
}

// QuizPrompt 渲染出题模板，要求模型返回 Count 道题的 JSON 数组。
func QuizPrompt(p QuizParams, profile *model.UserProfile) model.ChatMessage {
	personality, tendency, emotions := defaultPersonality, defaultTendency, defaultEmotionHistory
	if profile != nil {
		personality = orDefault(profile.Personality, defaultPersonality)
		tendency = orDefault(profile.Tendency, defaultTendency)
		emotions = strings.Join(profile.EmotionHistory, ", ")
	}
	tagsText := defaultTagsText
	if len(p.Tags) > 0 {
		tagsText = strings.Join(p.Tags, ", ")
	}

	var b strings.Builder
	b.WriteString("あなたはあらゆる分野の出題に対応できる汎用問題生成AIです。\n")
	fmt.Fprintf(&b, "以下の条件で、受験・学習・知的探究に役立つ高品質な問題を%d問作成してください。\n\n", p.Count)
	b.WriteString("【出題設定】\n")
	fmt.Fprintf(&b, "- 出題タイプ: %s\n", p.QuizType)
	fmt.Fprintf(&b, "- 難易度: %s\n", p.Level)
	fmt.Fprintf(&b, "- 出題対象テーマ・分野: %s\n", tagsText)
	fmt.Fprintf(&b, "- 出題レイアウト形式: %s\n\n", p.Layout)
	b.WriteString("【ユーザー情報（問題難易度やテーマに影響してもよい）】\n")
	fmt.Fprintf(&b, "- 性格: %s\n", personality)
	fmt.Fprintf(&b, "- 学習傾向: %s\n", tendency)
	fmt.Fprintf(&b, "- 感情履歴: %s\n\n", emotions)
	b.WriteString("【出題ガイドライン】\n")
	b.WriteString("1. 暗記ではなく、考えることで理解が深まるよう設計してください。\n")
	b.WriteString("2. 文脈・例・ひっかけ・誤答誘導を意識した設問構成にしてください。\n")
	b.WriteString("3. 正答だけでなく、なぜ他の選択肢が誤りなのかも解説に必ず含めてください。\n")
	b.WriteString("4. 各問題は以下のJSON構造で返答してください。\n\n")
	b.WriteString("[{\n")
	fmt.Fprintf(&b, "  \"type\": \"%s\",\n", p.QuizType)
	fmt.Fprintf(&b, "  \"layout\": \"%s\",\n", p.Layout)
	b.WriteString("  \"title\": \"タイトル\",\n")
	b.WriteString("  \"question\": \"問題文\",\n")
	b.WriteString("  \"options\": [\"選択肢1\", \"選択肢2\", \"選択肢3\", \"選択肢4\"],\n")
	b.WriteString("  \"answer\": \"正解の選択肢\",\n")
	b.WriteString("  \"explanation\": \"各選択肢の違いや誤答理由を含む詳しい解説\",\n")
	fmt.Fprintf(&b, "  \"difficulty\": \"%s\",\n", p.Level)
	b.WriteString("  \"tags\": [\"タグ1\", \"タグ2\"]\n")
	b.WriteString("}]\n\n")
	fmt.Fprintf(&b, "上記の形式に完全準拠し、%d問分のJSON配列を返してください。", p.Count)

	return model.ChatMessage{Role: model.RoleSystem, Content: b.String()}
}

// ConversationPrompt 把此前所有消息的内容按换行拼接为上下文，画像存在时附加一行摘要。
func ConversationPrompt(prior []model.ChatMessage, profile *model.UserProfile) model.ChatMessage {
	var b strings.Builder
	b.WriteString("以下はこれまでの会話の文脈です:\n")
	b.WriteString(strings.Join(model.Contents(prior), "\n"))
	b.WriteString("\nこれを踏まえて、以下の質問に答えてください。")
	if profile != nil {
		fmt.Fprintf(&b, "\n\nユーザープロファイル: 性格: %s / 傾向: %s", profile.Personality, profile.Tendency)
	}
	return model.ChatMessage{Role: model.RoleSystem, Content: b.String()}
}

// Assembler 根据最新问题选择出题模板或会话模板，二者互斥。
type Assembler struct {
	classifier Classifier
}

// NewAssembler 创建一个使用给定分类器的 Assembler。
func NewAssembler(classifier Classifier) *Assembler {
	return &Assembler{classifier: classifier}
}

// IsQuiz 暴露分类结果，便于调用方记录日志。
func (a *Assembler) IsQuiz(question string) bool {
	return a.classifier.IsQuiz(question)
}

// Assemble 返回唯一的一条 system 消息。
func (a *Assembler) Assemble(question string, params QuizParams, profile *model.UserProfile, prior []model.ChatMessage) model.ChatMessage {
	if a.classifier.IsQuiz(question) {
		return QuizPrompt(params, profile)
	}
	return ConversationPrompt(prior, profile)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
