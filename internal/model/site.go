package model

import (
	"time"

	"roofsite-go/pkg/siteconfig"
)

// 站点状态。
const (
	SiteStatusDraft     = "DRAFT"
	SiteStatusPublished = "PUBLISHED"
)

// Site 是承包商的营销站点。DraftConfig 是编辑中的配置，
// PublishedConfig 是最近一次发布时的快照。
type Site struct {
	ID              uint                  `gorm:"primaryKey" json:"id"`
	UserID          uint                  `gorm:"index;not null" json:"userId"`
	Slug            string                `gorm:"type:varchar(64);uniqueIndex;not null" json:"slug"`
	Status          string                `gorm:"type:varchar(16);not null;default:DRAFT" json:"status"`
	DraftConfig     siteconfig.SiteConfig `gorm:"type:json" json:"draftConfig"`
	PublishedConfig siteconfig.SiteConfig `gorm:"type:json" json:"publishedConfig,omitempty"`
	PublishedObject string                `gorm:"type:varchar(255)" json:"publishedObject,omitempty"`
	PublishedAt     *time.Time            `json:"publishedAt,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

func (Site) TableName() string {
	return "sites"
}
