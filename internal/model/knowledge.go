package model

// KnowledgeNode 是知识图谱中的节点。
type KnowledgeNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// KnowledgeEdge 是知识图谱中的有向边。
type KnowledgeEdge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Relation string `json:"relation"`
}

// KnowledgeGraph 是知识图谱接口的响应体。
type KnowledgeGraph struct {
	Nodes []KnowledgeNode `json:"nodes"`
	Edges []KnowledgeEdge `json:"edges"`
}

// PersonalityAnalysis 是性格分析接口的响应体。
type PersonalityAnalysis struct {
	UserID      string   `json:"user_id"`
	Personality string   `json:"personality"`
	Traits      []string `json:"traits"`
	Summary     string   `json:"summary"`
}
