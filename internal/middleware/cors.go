package middleware

import (
	"regexp"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS 只放行匹配 pattern 的来源，并允许携带凭证。
func CORS(pattern string) gin.HandlerFunc {
	allowed := regexp.MustCompile(pattern)
	return cors.New(cors.Config{
		AllowOriginFunc:  allowed.MatchString,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
