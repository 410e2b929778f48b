package models

import (
	"time"
)

// Comment is a text note left on an upload.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	UploadID  uint      `gorm:"not null;index" json:"upload_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"created"`

	Author User `gorm:"foreignKey:AuthorID" json:"author"`
}

// TableName specifies the table name for GORM
func (Comment) TableName() string {
	return "comments"
}
