package service

import (
	"context"
	"errors"
	"roofsite-go/internal/model"
	"roofsite-go/internal/prompt"
	"roofsite-go/internal/repository"
	"roofsite-go/pkg/llm"
	"roofsite-go/pkg/siteconfig"
	"strings"
)

// ErrEmptyGeneration 表示模型没有返回任何内容。
var ErrEmptyGeneration = errors.New("model returned an empty post")

// BlogService 定义了博客生成相关的业务操作。
type BlogService interface {
	Generate(ctx context.Context, userID, siteID uint, topic string) (*model.BlogPost, error)
	List(userID uint) ([]model.BlogPost, error)
}

type blogService struct {
	llmClient   llm.Client
	blogRepo    repository.BlogRepository
	siteService SiteService
	gen         *llm.GenerationParams
}

// NewBlogService 创建一个新的 BlogService 实例。
func NewBlogService(llmClient llm.Client, blogRepo repository.BlogRepository, siteService SiteService, gen *llm.GenerationParams) BlogService {
	return &blogService{
		llmClient:   llmClient,
		blogRepo:    blogRepo,
		siteService: siteService,
		gen:         gen,
	}
}

// Generate 调用模型生成一篇博客文章并保存为草稿。siteID 非零时使用站点配置作为上下文。
func (s *blogService) Generate(ctx context.Context, userID, siteID uint, topic string) (*model.BlogPost, error) {
	var cfg siteconfig.SiteConfig
	if siteID != 0 {
		site, err := s.siteService.Get(userID, siteID)
		if err != nil {
			return nil, err
		}
		cfg = site.DraftConfig
	}

	systemPrompt, err := prompt.BlogPost(topic, cfg)
	if err != nil {
		return nil, err
	}
	messages := []llm.Message{
		{Role: model.RoleSystem, Content: systemPrompt},
		{Role: model.RoleUser, Content: topic},
	}
	text, err := s.llmClient.Complete(ctx, messages, s.gen)
	if err != nil {
		return nil, err
	}
	title, body := splitTitle(text)
	if body == "" {
		return nil, ErrEmptyGeneration
	}
	if title == "" {
		title = topic
	}

	post := &model.BlogPost{
		UserID:  userID,
		SiteID:  siteID,
		Topic:   topic,
		Title:   title,
		Content: body,
		Status:  "DRAFT",
	}
	if err := s.blogRepo.Create(post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *blogService) List(userID uint) ([]model.BlogPost, error) {
	return s.blogRepo.FindByUserID(userID)
}

// splitTitle 取出开头的 "# " 标题行，返回标题与正文。
func splitTitle(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "# ") {
		return "", text
	}
	line, rest, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(strings.TrimPrefix(line, "# ")), strings.TrimSpace(rest)
}
