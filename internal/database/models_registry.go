package database

import "courtside/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Relationship{},
		&models.Bucket{},
		&models.Upload{},
		&models.UploadShare{},
		&models.Comment{},
	}
}
