package handler

import (
	"net/http"

	"ai-edu-go/internal/service"

	"github.com/gin-gonic/gin"
)

// KnowledgeHandler 处理知识图谱与性格分析接口。
type KnowledgeHandler struct {
	knowledgeService service.KnowledgeService
}

// NewKnowledgeHandler 创建一个新的 KnowledgeHandler。
func NewKnowledgeHandler(knowledgeService service.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{knowledgeService: knowledgeService}
}

// Graph 返回知识图谱。
func (h *KnowledgeHandler) Graph(c *gin.Context) {
	c.PureJSON(http.StatusOK, h.knowledgeService.Graph())
}

type personalityRequest struct {
	UserID string `json:"user_id"`
}

// Personality 返回性格分析。请求体可以为空。
func (h *KnowledgeHandler) Personality(c *gin.Context) {
	var req personalityRequest
	_ = c.ShouldBindJSON(&req)
	c.PureJSON(http.StatusOK, h.knowledgeService.AnalyzePersonality(req.UserID))
}

// Health 用于存活探测。
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
