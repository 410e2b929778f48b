// Package testutil provides shared fixtures for tests that need a real database.
package testutil

import (
	"fmt"
	"testing"

	"courtside/internal/database"
	"courtside/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLiteDB opens a migrated in-memory database private to the test.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a user with a unique email derived from username.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:    username,
		DisplayName: username,
		Email:       fmt.Sprintf("%s@courtside.test", username),
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Relate stores an edge a -> b of the given kind.
func Relate(t testing.TB, db *gorm.DB, a, b *models.User, kind models.RelationshipKind) *models.Relationship {
	t.Helper()
	rel := &models.Relationship{UserAID: a.ID, UserBID: b.ID, Kind: kind}
	require.NoError(t, db.Create(rel).Error)
	return rel
}

// CreateBucket inserts a bucket owned by owner.
func CreateBucket(t testing.TB, db *gorm.DB, owner *models.User, name string) *models.Bucket {
	t.Helper()
	b := &models.Bucket{UserID: owner.ID, Name: name}
	require.NoError(t, db.Create(b).Error)
	return b
}

// CreateUpload inserts an upload in bucket with the given tier.
func CreateUpload(t testing.TB, db *gorm.DB, bucket *models.Bucket, tier models.Visibility) *models.Upload {
	t.Helper()
	u := &models.Upload{
		UserID:       bucket.UserID,
		BucketID:     bucket.ID,
		Filename:     "clip.mp4",
		DisplayTitle: "clip",
		Visibility:   tier,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Share grants viewer an explicit share on upload.
func Share(t testing.TB, db *gorm.DB, upload *models.Upload, viewer *models.User) {
	t.Helper()
	require.NoError(t, db.Create(&models.UploadShare{UploadID: upload.ID, UserID: viewer.ID}).Error)
}
