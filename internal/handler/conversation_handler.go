package handler

import (
	"net/http"
	"roofsite-go/internal/prompt"
	"roofsite-go/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理与对话相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// GetConversations 返回当前用户在某个模式（及站点）下保存的对话历史。
// 查询参数：mode（默认 onboarding）、siteId（可选）。
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}

	mode := c.DefaultQuery("mode", prompt.ModeOnboarding)
	if mode != prompt.ModeOnboarding && mode != prompt.ModeEdit {
		fail(c, http.StatusBadRequest, "无效的 mode")
		return
	}
	var siteID uint64
	if raw := c.Query("siteId"); raw != "" {
		var err error
		if siteID, err = strconv.ParseUint(raw, 10, 64); err != nil {
			fail(c, http.StatusBadRequest, "无效的 siteId")
			return
		}
	}
	scope := service.ConversationScope(mode, uint(siteID))

	history, err := h.service.GetConversationHistory(c.Request.Context(), user.ID, scope)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to retrieve conversation history")
		return
	}
	success(c, http.StatusOK, history)
}
