// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"roofsite-go/internal/model"
	"roofsite-go/internal/service"
	"roofsite-go/pkg/token"
	"strings"

	"github.com/gin-gonic/gin"
)

const bearerPrefix = "Bearer "

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 它会从请求头中提取 token，验证其有效性，并将完整的 User 对象存入 Gin 的上下文中。
func AuthMiddleware(jwtManager *token.JWTManager, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含授权头"})
			return
		}
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的授权头格式"})
			return
		}

		user, claims, err := authenticate(c, jwtManager, userService, strings.TrimPrefix(authHeader, bearerPrefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set("user", user)
		c.Set("claims", claims)
		c.Next()
	}
}

// OptionalAuth 在携带有效 token 时设置用户，否则以匿名身份继续。
func OptionalAuth(jwtManager *token.JWTManager, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, bearerPrefix) {
			if user, claims, err := authenticate(c, jwtManager, userService, strings.TrimPrefix(authHeader, bearerPrefix)); err == nil {
				c.Set("user", user)
				c.Set("claims", claims)
			}
		}
		c.Next()
	}
}

// authenticate 校验 token、黑名单，并加载对应的用户。
func authenticate(c *gin.Context, jwtManager *token.JWTManager, userService service.UserService, tokenString string) (*model.User, *token.CustomClaims, error) {
	claims, err := jwtManager.VerifyToken(tokenString)
	if err != nil {
		return nil, nil, errInvalidToken
	}
	if userService.IsRevoked(c.Request.Context(), tokenString) {
		return nil, nil, errRevokedToken
	}
	user, err := userService.GetProfile(claims.Username)
	if err != nil {
		return nil, nil, errUnknownUser
	}
	return user, claims, nil
}

type authError string

func (e authError) Error() string { return string(e) }

const (
	errInvalidToken authError = "无效或已过期的 token"
	errRevokedToken authError = "token 已注销"
	errUnknownUser  authError = "用户不存在"
)

// CurrentUser 返回 AuthMiddleware 或 OptionalAuth 设置的用户，匿名请求返回 nil。
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get("user")
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}
