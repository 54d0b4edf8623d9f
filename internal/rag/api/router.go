package api

import (
	"net/http"

	"Hermes_RAG/pkg/ratelimiter"
	"github.com/gin-gonic/gin"
)

// RateLimit 将限流器包装为 Gin 中间件。
func RateLimit(limiter ratelimiter.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too Many Requests"})
			return
		}
		c.Next()
	}
}

// SetupRouter 配置和返回一个 Gin 引擎实例。limiter 为 nil 时不限流。
func SetupRouter(h *Handler, limiter ratelimiter.RateLimiter) *gin.Engine {
	// 使用默认中间件 (logger, recovery) 创建一个 Gin 引擎。
	r := gin.Default()
	if limiter != nil {
		r.Use(RateLimit(limiter))
	}

	// v1: 每个项目一个独立集合
	apiV1 := r.Group("/api/v1/nlp/index")
	{
		apiV1.POST("/push/:project_id", h.PushHandler)
		apiV1.GET("/info/:project_id", h.InfoHandler)
		apiV1.POST("/search/:project_id", h.SearchHandler)
		apiV1.POST("/answer/:project_id", h.AnswerHandler)
		apiV1.POST("/reset/:project_id", h.ResetHandler)
	}

	// v2: 共享集合 + 标签过滤，以及多轮会话问答
	apiV2 := r.Group("/api/v2/nlp/index")
	{
		apiV2.POST("/push-tagged", h.PushTaggedHandler)
		apiV2.POST("/search-tagged", h.SearchTaggedHandler)
		apiV2.POST("/answer-tagged", h.AnswerTaggedHandler)
		apiV2.POST("/answer-with-history/:project_id", h.AnswerWithHistoryHandler)
		apiV2.POST("/answer-tagged-with-history", h.AnswerTaggedWithHistoryHandler)
	}

	return r
}
