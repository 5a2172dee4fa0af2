package model

import "time"

// BlogPost 是 AI 生成的博客文章，生成后为草稿状态。
type BlogPost struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	SiteID    uint      `gorm:"index" json:"siteId"`
	Topic     string    `gorm:"type:varchar(255);not null" json:"topic"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Content   string    `gorm:"type:longtext;not null" json:"content"`
	Status    string    `gorm:"type:varchar(16);not null;default:DRAFT" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func (BlogPost) TableName() string {
	return "blog_posts"
}
