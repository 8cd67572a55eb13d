package model

import (
	"time"
)

// CheckInDateLayout 打卡日期格式
const CheckInDateLayout = "2006-01-02"

// CheckIn 每日情绪打卡，创建后不可修改
type CheckIn struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	UserID         int64     `gorm:"not null;uniqueIndex:uidx_checkin_user_date" json:"user_id"`
	CheckInDate    string    `gorm:"size:10;not null;uniqueIndex:uidx_checkin_user_date" json:"date"`
	Mood           int       `gorm:"not null" json:"mood"`
	Highlight      string    `gorm:"type:text;not null" json:"highlight"`
	Challenge      string    `gorm:"type:text;not null" json:"challenge"`
	Gratitude      string    `gorm:"type:text;not null" json:"gratitude"`
	NeedsSupport   bool      `gorm:"default:false" json:"needs_support"`
	SupportDetails *string   `gorm:"type:text" json:"support_details,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (CheckIn) TableName() string {
	return "check_ins"
}
