package models

import (
	"time"
)

// Upload is a media item owned by one user and filed in one bucket.
type Upload struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	BucketID     uint       `gorm:"not null;index" json:"bucket_id"`
	Filename     string     `gorm:"not null" json:"-"`
	DisplayTitle string     `gorm:"not null" json:"display_title"`
	Visibility   Visibility `gorm:"type:varchar(32);not null;default:'private'" json:"-"`
	MediaJobID   *string    `gorm:"size:128" json:"-"`
	StreamReady  bool       `gorm:"not null;default:false" json:"stream_ready"`
	CreatedAt    time.Time  `json:"created"`
}

// TableName specifies the table name for GORM
func (Upload) TableName() string {
	return "uploads"
}

// UploadShare is one explicit grant row: UserID may view UploadID
// regardless of the upload's tier.
type UploadShare struct {
	UploadID uint `gorm:"primaryKey"`
	UserID   uint `gorm:"primaryKey;index"`
}

// TableName specifies the table name for GORM
func (UploadShare) TableName() string {
	return "upload_shared_with"
}
