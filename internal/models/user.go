// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User is an identity record. Username is the unique handle generated at
// registration; credentials live with the external identity provider.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"uniqueIndex;not null;size:64" json:"username"`
	DisplayName string    `gorm:"not null" json:"display_name"`
	Biography   string    `gorm:"not null;default:''" json:"biography"`
	Email       string    `gorm:"uniqueIndex;not null" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}
