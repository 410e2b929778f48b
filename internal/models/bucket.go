package models

import (
	"time"
)

// Bucket groups a user's uploads. Names are unique per owner.
type Bucket struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_bucket_owner_name" json:"user_id"`
	Name      string    `gorm:"not null;uniqueIndex:idx_bucket_owner_name" json:"name"`
	CreatedAt time.Time `json:"created"`

	Uploads []Upload `gorm:"foreignKey:BucketID" json:"-"`
}

// TableName specifies the table name for GORM
func (Bucket) TableName() string {
	return "buckets"
}
