package middleware

import (
	"fmt"
	"net/http"
	"roofsite-go/pkg/log"
	"roofsite-go/pkg/ratelimit"
	"strconv"

	"github.com/gin-gonic/gin"
)

// KeyFunc 从请求中提取限流身份。
type KeyFunc func(c *gin.Context) string

// UserOrAnonymous 按登录用户 ID 计数，未登录时统一使用 "anonymous"。
// 需在 AuthMiddleware 或 OptionalAuth 之后使用。
func UserOrAnonymous(prefix string) KeyFunc {
	return func(c *gin.Context) string {
		if user := CurrentUser(c); user != nil {
			return fmt.Sprintf("%s:%d", prefix, user.ID)
		}
		return prefix + ":anonymous"
	}
}

// ClientIP 按客户端 IP 计数。
func ClientIP(prefix string) KeyFunc {
	return func(c *gin.Context) string {
		return prefix + ":" + c.ClientIP()
	}
}

// RateLimit 返回一个限流中间件。被拒绝时返回 429、Retry-After 头和 {"error","retryAfter"}。
func RateLimit(limiter *ratelimit.Limiter, keyFunc KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		res := limiter.Allow(c.Request.Context(), key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Config().MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			retryAfter := res.RetryAfter()
			log.Infow("请求被限流", "key", key, "retryAfter", retryAfter)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Too many requests. Please try again later.",
				"retryAfter": retryAfter,
			})
			return
		}
		c.Next()
	}
}
