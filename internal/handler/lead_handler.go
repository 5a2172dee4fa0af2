package handler

import (
	"net/http"
	"roofsite-go/internal/service"
	"roofsite-go/pkg/log"
	"strconv"

	"github.com/gin-gonic/gin"
)

// LeadHandler 处理线索提交与查询。
type LeadHandler struct {
	leadService service.LeadService
}

// NewLeadHandler 创建一个新的 LeadHandler。
func NewLeadHandler(leadService service.LeadService) *LeadHandler {
	return &LeadHandler{leadService: leadService}
}

// SubmitLeadRequest 是访客提交报价请求的请求体。
type SubmitLeadRequest struct {
	SiteID  uint   `json:"siteId" binding:"required"`
	Name    string `json:"name" binding:"required,max=255"`
	Email   string `json:"email" binding:"omitempty,email,max=255"`
	Phone   string `json:"phone" binding:"max=64"`
	Address string `json:"address" binding:"max=512"`
	Message string `json:"message" binding:"max=5000"`
}

// Submit 处理公开的线索提交接口。
func (h *LeadHandler) Submit(c *gin.Context) {
	var req SubmitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("SubmitLead: Invalid request payload, error: %v", err)
		fail(c, http.StatusBadRequest, "无效的请求负载："+err.Error())
		return
	}

	lead, err := h.leadService.Submit(c.Request.Context(), service.LeadInput{
		SiteID:  req.SiteID,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Message: req.Message,
	}, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusCreated, gin.H{"id": lead.PublicID})
}

// List 分页列出站点的线索。
func (h *LeadHandler) List(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	siteID, valid := idParam(c, "id")
	if !valid {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	leads, total, err := h.leadService.ListForSite(user.ID, siteID, page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"content": leads, "totalElements": total, "page": page, "size": size})
}
