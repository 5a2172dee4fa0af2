package handler

import (
	"net/http"
	"roofsite-go/internal/service"
	"roofsite-go/pkg/log"
	"roofsite-go/pkg/siteconfig"

	"github.com/gin-gonic/gin"
)

// SiteHandler 处理站点的创建、查询、配置更新与发布。
type SiteHandler struct {
	siteService service.SiteService
}

// NewSiteHandler 创建一个新的 SiteHandler。
func NewSiteHandler(siteService service.SiteService) *SiteHandler {
	return &SiteHandler{siteService: siteService}
}

// SiteConfigRequest 携带一份（可能不完整的）站点配置。
type SiteConfigRequest struct {
	Config siteconfig.SiteConfig `json:"config"`
}

// Create 创建一个草稿站点。
func (h *SiteHandler) Create(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	var req SiteConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	site, err := h.siteService.Create(user.ID, req.Config)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusCreated, site)
}

// List 列出当前用户的所有站点。
func (h *SiteHandler) List(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	sites, err := h.siteService.List(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, sites)
}

// Get 获取单个站点。
func (h *SiteHandler) Get(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	site, err := h.siteService.Get(user.ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, site)
}

// UpdateConfig 将请求中的配置浅合并到站点草稿。
func (h *SiteHandler) UpdateConfig(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req SiteConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Config == nil {
		fail(c, http.StatusBadRequest, "无效的请求负载：config 不能为空")
		return
	}
	site, err := h.siteService.ApplyConfig(user.ID, id, req.Config)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, site)
}

// Publish 发布站点并返回快照的访问地址。
func (h *SiteHandler) Publish(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	res, err := h.siteService.Publish(c.Request.Context(), user.ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Infof("User '%s' published site %d", user.Username, id)
	success(c, http.StatusOK, res)
}
