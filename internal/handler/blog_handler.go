package handler

import (
	"net/http"
	"roofsite-go/internal/service"
	"roofsite-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// BlogHandler 处理博客文章生成。
type BlogHandler struct {
	blogService service.BlogService
}

// NewBlogHandler 创建一个新的 BlogHandler。
func NewBlogHandler(blogService service.BlogService) *BlogHandler {
	return &BlogHandler{blogService: blogService}
}

// GenerateBlogRequest 是生成博客文章的请求体。
type GenerateBlogRequest struct {
	Topic  string `json:"topic" binding:"required,max=255"`
	SiteID uint   `json:"siteId"`
}

// Generate 生成一篇博客草稿。
func (h *BlogHandler) Generate(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	var req GenerateBlogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载：topic 不能为空")
		return
	}

	post, err := h.blogService.Generate(c.Request.Context(), user.ID, req.SiteID, req.Topic)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Infof("User '%s' generated blog post %d", user.Username, post.ID)
	success(c, http.StatusCreated, post)
}

// List 列出当前用户的博客文章。
func (h *BlogHandler) List(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	posts, err := h.blogService.List(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, http.StatusOK, posts)
}
