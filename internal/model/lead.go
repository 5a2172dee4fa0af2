package model

import "time"

// 线索状态。
const (
	LeadStatusNew      = "NEW"
	LeadStatusNotified = "NOTIFIED"
)

// Lead 是访客在站点上提交的报价/联系请求。
type Lead struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PublicID  string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"publicId"`
	SiteID    uint      `gorm:"index;not null" json:"siteId"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	Phone     string    `gorm:"type:varchar(64)" json:"phone"`
	Address   string    `gorm:"type:varchar(512)" json:"address"`
	Message   string    `gorm:"type:text" json:"message"`
	ClientIP  string    `gorm:"type:varchar(64)" json:"-"`
	Status    string    `gorm:"type:varchar(16);not null;default:NEW" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Lead) TableName() string {
	return "leads"
}

// LeadSubmittedEvent 是线索提交后写入 Kafka 的消息体。
type LeadSubmittedEvent struct {
	LeadID      string    `json:"leadId"`
	SiteID      uint      `json:"siteId"`
	OwnerUserID uint      `json:"ownerUserId"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	SubmittedAt LocalTime `json:"submittedAt"`
}
