package handler

import (
	"net/http"

	"ai-edu-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ProfileHandler 暴露常驻 AI 当前持有的用户画像。
type ProfileHandler struct {
	resident service.ResidentService
}

// NewProfileHandler 创建一个新的 ProfileHandler。
func NewProfileHandler(resident service.ResidentService) *ProfileHandler {
	return &ProfileHandler{resident: resident}
}

// Get 返回指定用户的画像，不存在时返回 404。
func (h *ProfileHandler) Get(c *gin.Context) {
	profile := h.resident.Profile(c.Param("userId"))
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found."})
		return
	}
	c.PureJSON(http.StatusOK, profile)
}
