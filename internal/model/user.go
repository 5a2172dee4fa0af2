package model

import "time"

// User 代表一个承包商账号。
type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Username          string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Password          string    `gorm:"type:varchar(255);not null" json:"-"`
	Role              string    `gorm:"type:varchar(32);not null;default:USER" json:"role"`
	BillingCustomerID string    `gorm:"type:varchar(255)" json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
