package models

import "time"

type RecordModel struct {
	Id          int         `json:"id" gorm:"primaryKey;autoIncrement"`
	Title       string      `json:"title" gorm:"type:varchar(120);not null"`
	Description string      `json:"description" gorm:"type:text"`
	GroupName   string      `json:"groupName" gorm:"column:group_name;type:varchar(120)"`
	CreatedAt   time.Time   `json:"createdAt" gorm:"column:created_at"`
	Files       []FileModel `json:"files,omitempty" gorm:"foreignKey:RecordId;constraint:OnDelete:CASCADE;"`
}
