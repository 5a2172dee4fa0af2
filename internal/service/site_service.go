package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"roofsite-go/internal/model"
	"roofsite-go/internal/repository"
	"roofsite-go/pkg/log"
	"roofsite-go/pkg/siteconfig"
	"roofsite-go/pkg/storage"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// PublishResult 是发布操作的返回值。
type PublishResult struct {
	Site *model.Site `json:"site"`
	URL  string      `json:"url"`
}

// SiteService 定义了站点相关的业务操作。
type SiteService interface {
	Create(userID uint, cfg siteconfig.SiteConfig) (*model.Site, error)
	List(userID uint) ([]model.Site, error)
	Get(userID, siteID uint) (*model.Site, error)
	ApplyConfig(userID, siteID uint, update siteconfig.SiteConfig) (*model.Site, error)
	Publish(ctx context.Context, userID, siteID uint) (*PublishResult, error)
}

type siteService struct {
	siteRepo      repository.SiteRepository
	store         storage.ObjectStore
	presignExpiry time.Duration
}

// NewSiteService 创建一个新的 SiteService 实例。
func NewSiteService(siteRepo repository.SiteRepository, store storage.ObjectStore, presignExpiry time.Duration) SiteService {
	return &siteService{
		siteRepo:      siteRepo,
		store:         store,
		presignExpiry: presignExpiry,
	}
}

// Create 创建一个草稿站点，slug 由商家名称加随机后缀组成。
func (s *siteService) Create(userID uint, cfg siteconfig.SiteConfig) (*model.Site, error) {
	if cfg == nil {
		cfg = siteconfig.SiteConfig{}
	}
	site := &model.Site{
		UserID:      userID,
		Slug:        Slugify(cfg.BusinessName()) + "-" + uuid.NewString()[:8],
		Status:      model.SiteStatusDraft,
		DraftConfig: cfg,
	}
	if err := s.siteRepo.Create(site); err != nil {
		return nil, err
	}
	log.Infof("站点创建成功: id=%d, slug=%s, user=%d", site.ID, site.Slug, userID)
	return site, nil
}

func (s *siteService) List(userID uint) ([]model.Site, error) {
	return s.siteRepo.FindByUserID(userID)
}

// Get 获取站点并校验归属。
func (s *siteService) Get(userID, siteID uint) (*model.Site, error) {
	site, err := s.siteRepo.FindByID(siteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, err
	}
	if site.UserID != userID {
		return nil, ErrForbidden
	}
	return site, nil
}

// ApplyConfig 将提取出的配置浅合并到草稿配置。
func (s *siteService) ApplyConfig(userID, siteID uint, update siteconfig.SiteConfig) (*model.Site, error) {
	site, err := s.Get(userID, siteID)
	if err != nil {
		return nil, err
	}
	site.DraftConfig = siteconfig.Merge(site.DraftConfig, update)
	if err := s.siteRepo.Update(site); err != nil {
		return nil, err
	}
	return site, nil
}

// Publish 将草稿配置快照上传到对象存储，标记站点为已发布，并返回预签名访问地址。
func (s *siteService) Publish(ctx context.Context, userID, siteID uint) (*PublishResult, error) {
	site, err := s.Get(userID, siteID)
	if err != nil {
		return nil, err
	}

	snapshot, err := json.Marshal(site.DraftConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal site snapshot: %w", err)
	}
	objectName := fmt.Sprintf("sites/%s/site.json", site.Slug)
	if err := s.store.Put(ctx, objectName, snapshot, "application/json"); err != nil {
		return nil, err
	}

	now := time.Now()
	site.Status = model.SiteStatusPublished
	site.PublishedConfig = siteconfig.Merge(nil, site.DraftConfig)
	site.PublishedObject = objectName
	site.PublishedAt = &now
	if err := s.siteRepo.Update(site); err != nil {
		return nil, err
	}

	url, err := s.store.PresignedURL(ctx, objectName, s.presignExpiry)
	if err != nil {
		return nil, err
	}
	log.Infof("站点发布成功: id=%d, object=%s", site.ID, objectName)
	return &PublishResult{Site: site, URL: url}, nil
}

// maxSlugLength 不含 uuid 后缀。
const maxSlugLength = 40

// Slugify 将名称音译为小写、以连字符分隔的 ASCII slug，空名称返回 "site"。
func Slugify(name string) string {
	out := slug.Make(name)
	if len(out) > maxSlugLength {
		out = strings.TrimRight(out[:maxSlugLength], "-_")
	}
	if out == "" {
		return "site"
	}
	return out
}
