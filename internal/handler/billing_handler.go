package handler

import (
	"net/http"
	"roofsite-go/internal/service"

	"github.com/gin-gonic/gin"
)

// BillingHandler 处理订阅计费相关请求。
type BillingHandler struct {
	billingService service.BillingService
}

// NewBillingHandler 创建一个新的 BillingHandler。
func NewBillingHandler(billingService service.BillingService) *BillingHandler {
	return &BillingHandler{billingService: billingService}
}

// Portal 创建客户门户会话并返回跳转地址。
func (h *BillingHandler) Portal(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	url, err := h.billingService.PortalURL(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"url": url})
}
