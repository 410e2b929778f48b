package repository

import (
	"context"
	"errors"
	"time"

	"courtside/internal/models"
	"courtside/internal/observability"

	"gorm.io/gorm"
)

// BucketStats summarizes a bucket's contents.
type BucketStats struct {
	Size         int64
	LastModified *time.Time
}

// BucketRepository defines persistence operations for buckets.
type BucketRepository interface {
	Create(ctx context.Context, bucket *models.Bucket) error
	GetByID(ctx context.Context, id uint) (*models.Bucket, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]models.Bucket, error)
	Rename(ctx context.Context, id uint, name string) error
	// Delete removes the bucket and its uploads, grants and comments in one
	// transaction, returning the removed upload ids.
	Delete(ctx context.Context, id uint) ([]uint, error)
	Stats(ctx context.Context, id uint) (BucketStats, error)
}

type bucketRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewBucketRepository creates a new bucket repository
func NewBucketRepository(db *gorm.DB) BucketRepository {
	return &bucketRepository{db: db, log: observability.NewRepoLogger("buckets")}
}

func (r *bucketRepository) Create(ctx context.Context, bucket *models.Bucket) error {
	if err := r.db.WithContext(ctx).Create(bucket).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Bucket name already in use.")
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"id": bucket.ID, "user_id": bucket.UserID})
	return nil
}

func (r *bucketRepository) GetByID(ctx context.Context, id uint) (*models.Bucket, error) {
	var bucket models.Bucket
	if err := r.db.WithContext(ctx).First(&bucket, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Bucket", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &bucket, nil
}

func (r *bucketRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.Bucket, error) {
	var buckets []models.Bucket
	if err := r.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("name").Find(&buckets).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return buckets, nil
}

func (r *bucketRepository) Rename(ctx context.Context, id uint, name string) error {
	res := r.db.WithContext(ctx).Model(&models.Bucket{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return models.NewConflictError("Bucket name already in use.")
		}
		r.log.LogError(ctx, res.Error, "rename")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Bucket", id)
	}
	r.log.LogUpdate(ctx, map[string]any{"id": id, "name": name})
	return nil
}

func (r *bucketRepository) Delete(ctx context.Context, id uint) ([]uint, error) {
	var uploadIDs []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Upload{}).Where("bucket_id = ?", id).Pluck("id", &uploadIDs).Error; err != nil {
			return err
		}
		if len(uploadIDs) > 0 {
			if err := tx.Where("upload_id IN ?", uploadIDs).Delete(&models.UploadShare{}).Error; err != nil {
				return err
			}
			if err := tx.Where("upload_id IN ?", uploadIDs).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("bucket_id = ?", id).Delete(&models.Upload{}).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.Bucket{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Bucket", id)
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		r.log.LogError(ctx, err, "delete")
		return nil, models.NewInternalError(err)
	}
	r.log.LogDelete(ctx, map[string]any{"id": id, "uploads": len(uploadIDs)})
	return uploadIDs, nil
}

// Stats counts the bucket's uploads and finds the newest one's creation time.
func (r *bucketRepository) Stats(ctx context.Context, id uint) (BucketStats, error) {
	var stats BucketStats
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Upload{}).Where("bucket_id = ?", id).Count(&stats.Size).Error; err != nil {
		return stats, models.NewInternalError(err)
	}
	if stats.Size == 0 {
		return stats, nil
	}
	var newest models.Upload
	if err := db.Where("bucket_id = ?", id).Order("created_at DESC").First(&newest).Error; err != nil {
		return stats, models.NewInternalError(err)
	}
	stats.LastModified = &newest.CreatedAt
	return stats, nil
}
