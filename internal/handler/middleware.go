package handler

import (
	"log"
	"strconv"
	"time"

	"wagerhub/internal/repository"
	"wagerhub/pkg/response"

	"github.com/gin-gonic/gin"
)

const ctxUserIDKey = "userID"

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// 处理请求
		c.Next()

		// 记录日志
		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[HTTP] %d | %13v | %15s | %-7s %s",
			status,
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// AuthMiddleware 身份中间件
// 会话解析由外部网关完成，这里只信任它注入的 X-User-ID 头
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDStr := c.GetHeader("X-User-ID")
		userID, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil || userID <= 0 {
			response.Error(c, response.CodeUnauthorized, "缺少有效的用户身份")
			c.Abort()
			return
		}
		c.Set(ctxUserIDKey, userID)
		c.Next()
	}
}

// AdminMiddleware 管理员中间件：要求管理员级别 ≥ 1
func AdminMiddleware(userRepo *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := CurrentUserID(c)
		user, err := userRepo.GetByID(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, response.CodeUserNotFound, "用户不存在")
			c.Abort()
			return
		}
		if !user.IsAdmin() {
			response.Forbidden(c, "需要管理员权限")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUserID 取出身份中间件注入的用户ID
func CurrentUserID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserIDKey)
}
