package service

import "ai-edu-go/internal/model"

// KnowledgeService 提供知识图谱与性格分析。两者目前都返回固定数据。
type KnowledgeService interface {
	Graph() model.KnowledgeGraph
	AnalyzePersonality(userID string) model.PersonalityAnalysis
}

type knowledgeService struct{}

// NewKnowledgeService 创建一个新的 KnowledgeService。
func NewKnowledgeService() KnowledgeService {
	return knowledgeService{}
}

func (knowledgeService) Graph() model.KnowledgeGraph {
	return model.KnowledgeGraph{
		Nodes: []model.KnowledgeNode{
			{ID: "math", Label: "数学"},
			{ID: "logic", Label: "論理"},
			{ID: "language", Label: "言語"},
		},
		Edges: []model.KnowledgeEdge{
			{From: "logic", To: "math", Relation: "基礎"},
			{From: "language", To: "logic", Relation: "表現"},
		},
	}
}

func (knowledgeService) AnalyzePersonality(userID string) model.PersonalityAnalysis {
	return model.PersonalityAnalysis{
		UserID:      userID,
		Personality: stubPersonality,
		Traits:      []string{"好奇心旺盛", "ポジティブ"},
		Summary:     "分析機能は準備中です。",
	}
}
