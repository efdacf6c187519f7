package prompt

import (
	"strings"
	"testing"

	"ai-edu-go/internal/model"
)

var testTriggers = []string{"問題生成", "問題を作って", "quiz", "問題を出して", "問題作成", "問題を自動生成"}

func TestClassifierTriggers(t *testing.T) {
	c := NewClassifier(testTriggers)
	cases := []struct {
		text string
		want bool
	}{
		{"問題生成をお願いします", true},
		{"問題を作って", true},
		{"give me a quiz", true},
		{"数学の問題を出して", true},
		{"問題作成して", true},
		{"問題を自動生成してほしい", true},
		// 子串匹配的误判保持现状
		{"that was quizzical", true},
		{"Quiz me", false},
		{"今日の天気は？", false},
		{"問題", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := c.IsQuiz(tc.text); got != tc.want {
			t.Errorf("IsQuiz(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestClassifierIgnoresEmptyTrigger(t *testing.T) {
	c := NewClassifier([]string{""})
	if c.IsQuiz("anything") {
		t.Error("empty trigger must not match")
	}
}

func TestQuizPromptScenario(t *testing.T) {
	a := NewAssembler(NewClassifier(testTriggers))
	params := QuizParams{QuizType: "multiple_choice", Level: "中級", Layout: "quiz_card_v1", Count: 2}
	prior := []model.ChatMessage{{Role: model.RoleUser, Content: "前の話"}}

	msg := a.Assemble("問題を作って", params, nil, prior)
	if msg.Role != model.RoleSystem {
		t.Fatalf("expected system role, got %q", msg.Role)
	}
	for _, want := range []string{"2問", "JSON配列", "\"options\"", "\"explanation\"", "一般的な教養・論理・言語・数理・創造性", "柔軟型", "ひらめき重視", "データなし", "quiz_card_v1"} {
		if !strings.Contains(msg.Content, want) {
			t.Errorf("quiz prompt missing %q", want)
		}
	}
	if strings.Contains(msg.Content, "以下はこれまでの会話の文脈です") || strings.Contains(msg.Content, "前の話") {
		t.Error("quiz prompt must not carry the conversational template")
	}
}

func TestQuizPromptUsesProfileAndTags(t *testing.T) {
	profile := &model.UserProfile{Personality: "おおらか", Tendency: "夜型", EmotionHistory: []string{"喜び", "驚き"}}
	msg := QuizPrompt(QuizParams{QuizType: "true_false", Level: "上級", Tags: []string{"歴史", "地理"}, Layout: "card_v2", Count: 3}, profile)
	for _, want := range []string{"3問", "true_false", "上級", "歴史, 地理", "card_v2", "おおらか", "夜型", "喜び, 驚き"} {
		if !strings.Contains(msg.Content, want) {
			t.Errorf("quiz prompt missing %q", want)
		}
	}
	if strings.Contains(msg.Content, "データなし") {
		t.Error("placeholder must not appear when profile exists")
	}
}

func TestConversationPromptJoinsPriorTurnsInOrder(t *testing.T) {
	a := NewAssembler(NewClassifier(testTriggers))
	prior := []model.ChatMessage{
		{Role: model.RoleUser, Content: "first"},
		{Role: model.RoleAssistant, Content: "second"},
		{Role: model.RoleUser, Content: "third"},
	}
	msg := a.Assemble("how are you?", QuizParams{Count: 1}, nil, prior)
	want := "以下はこれまでの会話の文脈です:\nfirst\nsecond\nthird\nこれを踏まえて、以下の質問に答えてください。"
	if msg.Content != want {
		t.Errorf("unexpected content:\n%q\nwant\n%q", msg.Content, want)
	}
}

func TestConversationPromptAppendsProfile(t *testing.T) {
	profile := &model.UserProfile{Personality: "おおらか", Tendency: "夜型"}
	msg := ConversationPrompt(nil, profile)
	if !strings.Contains(msg.Content, "性格: おおらか") || !strings.Contains(msg.Content, "傾向: 夜型") {
		t.Errorf("profile summary missing: %q", msg.Content)
	}
}
