// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"roofsite-go/internal/middleware"
	"roofsite-go/internal/model"
	"roofsite-go/internal/service"
	"roofsite-go/pkg/llm"
	"roofsite-go/pkg/log"
	"strconv"

	"github.com/gin-gonic/gin"
)

// 上游错误对客户端展示的信息。
const (
	msgUpstreamRateLimited = "rate limited, retry shortly"
	msgQuotaExhausted      = "quota/credits exhausted"
	msgUpstreamFailed      = "AI service is temporarily unavailable"
)

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"code": status, "message": "success", "data": data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": nil})
}

// errorStatus 将业务错误与上游错误映射为 HTTP 状态码和提示信息。
func errorStatus(err error) (int, string) {
	var statusErr *llm.StatusError
	switch {
	case errors.Is(err, service.ErrSiteNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrInvalidLead):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &statusErr):
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return http.StatusTooManyRequests, msgUpstreamRateLimited
		case http.StatusPaymentRequired:
			return http.StatusPaymentRequired, msgQuotaExhausted
		}
		return http.StatusBadGateway, msgUpstreamFailed + ": " + statusErr.Body
	case errors.Is(err, llm.ErrIdleTimeout):
		return http.StatusBadGateway, msgUpstreamFailed + ": " + err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

func respondError(c *gin.Context, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s %s 失败: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	fail(c, status, message)
}

// currentUser 返回认证中间件注入的用户，匿名请求返回 nil。
func currentUser(c *gin.Context) *model.User {
	return middleware.CurrentUser(c)
}

// mustUser 返回当前用户，缺失时写入 401 并返回 nil。
func mustUser(c *gin.Context) *model.User {
	user := currentUser(c)
	if user == nil {
		fail(c, http.StatusUnauthorized, "未认证用户或无法获取用户信息")
	}
	return user
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "无效的 "+name)
		return 0, false
	}
	return uint(id), true
}
