package repository

import (
	"roofsite-go/internal/model"

	"gorm.io/gorm"
)

// SiteRepository 定义了站点的持久化操作。
type SiteRepository interface {
	Create(site *model.Site) error
	FindByID(id uint) (*model.Site, error)
	FindByUserID(userID uint) ([]model.Site, error)
	Update(site *model.Site) error
}

type siteRepository struct {
	db *gorm.DB
}

// NewSiteRepository 创建一个新的 SiteRepository 实例。
func NewSiteRepository(db *gorm.DB) SiteRepository {
	return &siteRepository{db: db}
}

func (r *siteRepository) Create(site *model.Site) error {
	return r.db.Create(site).Error
}

func (r *siteRepository) FindByID(id uint) (*model.Site, error) {
	var site model.Site
	if err := r.db.First(&site, id).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *siteRepository) FindByUserID(userID uint) ([]model.Site, error) {
	var sites []model.Site
	err := r.db.Where("user_id = ?", userID).Order("id desc").Find(&sites).Error
	return sites, err
}

func (r *siteRepository) Update(site *model.Site) error {
	return r.db.Save(site).Error
}
