package models

type FileModel struct {
	Id       int    `json:"id" gorm:"primaryKey;autoIncrement"`
	Filename string `json:"filename" gorm:"type:varchar(255);not null"`
	RecordId int    `json:"recordId" gorm:"column:record_id;not null"`
}
