package handler

import (
	"net/http"
	"roofsite-go/internal/service"
	"roofsite-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AuthHandler 处理 token 续期。
type AuthHandler struct {
	userService service.UserService
}

func NewAuthHandler(userService service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken 用 refresh token 换取一对新的 token，已登出的 token 不能续期。
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "refreshToken 不能为空")
		return
	}
	if h.userService.IsRevoked(c.Request.Context(), req.RefreshToken) {
		fail(c, http.StatusUnauthorized, service.ErrTokenRevoked.Error())
		return
	}

	access, refresh, err := h.userService.RefreshToken(req.RefreshToken)
	if err != nil {
		log.Warnf("刷新 token 失败: %v", err)
		fail(c, http.StatusUnauthorized, "无效的 refresh token")
		return
	}
	success(c, http.StatusOK, gin.H{"token": access, "refreshToken": refresh})
}
