package repository

import (
	"roofsite-go/internal/model"

	"gorm.io/gorm"
)

// LeadRepository 定义了线索的持久化操作。
type LeadRepository interface {
	Create(lead *model.Lead) error
	FindByPublicID(publicID string) (*model.Lead, error)
	FindBySiteID(siteID uint, offset, limit int) ([]model.Lead, int64, error)
	UpdateStatus(publicID, status string) error
}

type leadRepository struct {
	db *gorm.DB
}

// NewLeadRepository 创建一个新的 LeadRepository 实例。
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &leadRepository{db: db}
}

func (r *leadRepository) Create(lead *model.Lead) error {
	return r.db.Create(lead).Error
}

func (r *leadRepository) FindByPublicID(publicID string) (*model.Lead, error) {
	var lead model.Lead
	if err := r.db.Where("public_id = ?", publicID).First(&lead).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

// FindBySiteID 分页查询站点的线索，返回列表与总数。
func (r *leadRepository) FindBySiteID(siteID uint, offset, limit int) ([]model.Lead, int64, error) {
	var leads []model.Lead
	var total int64

	db := r.db.Model(&model.Lead{}).Where("site_id = ?", siteID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("id desc").Offset(offset).Limit(limit).Find(&leads).Error; err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

func (r *leadRepository) UpdateStatus(publicID, status string) error {
	return r.db.Model(&model.Lead{}).Where("public_id = ?", publicID).Update("status", status).Error
}
