package repository

import (
	"context"
	"errors"

	"courtside/internal/models"
	"courtside/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UploadRepository defines persistence operations for uploads and their share grants.
type UploadRepository interface {
	// Create inserts the upload and its grants in one transaction.
	Create(ctx context.Context, upload *models.Upload, userIDs []uint) error
	GetByID(ctx context.Context, id uint) (*models.Upload, error)
	UpdateDetails(ctx context.Context, upload *models.Upload) error
	SetMediaJob(ctx context.Context, id uint, jobID string) error
	SetStreamReady(ctx context.Context, id uint) error
	Delete(ctx context.Context, id uint) error
	ListByOwner(ctx context.Context, ownerID uint, bucketID *uint) ([]models.Upload, error)
	ListByBucket(ctx context.Context, bucketID uint) ([]models.Upload, error)

	AddShares(ctx context.Context, uploadID uint, userIDs []uint) error
	ClearShares(ctx context.Context, uploadID uint) error
	// ReplaceVisibility swaps the tier and the grant list in one transaction.
	ReplaceVisibility(ctx context.Context, uploadID uint, tier models.Visibility, userIDs []uint) error
	// UpdateWithVisibility persists the title, bucket and tier of upload and
	// replaces its grants in one transaction.
	UpdateWithVisibility(ctx context.Context, upload *models.Upload, userIDs []uint) error
	IsSharedWith(ctx context.Context, uploadID, userID uint) (bool, error)
	ListShareIDs(ctx context.Context, uploadID uint) ([]uint, error)

	CountViewableInBucket(ctx context.Context, bucketID, viewerID uint) (int64, error)
	CountViewableByOwner(ctx context.Context, ownerID, viewerID uint) (int64, error)
}

type uploadRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUploadRepository creates a new upload repository
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db, log: observability.NewRepoLogger("uploads")}
}

// viewableClause is the storage form of the upload view rule: owner,
// explicit grant, public tier, or a tier satisfied by the viewer's
// courtship with the owner.
const viewableClause = `(
	uploads.user_id = @viewer
	OR EXISTS (SELECT 1 FROM upload_shared_with s WHERE s.upload_id = uploads.id AND s.user_id = @viewer)
	OR uploads.visibility = @public
	OR (uploads.visibility IN (@friendsAndCoaches, @coachesOnly) AND EXISTS (
		SELECT 1 FROM relationships r
		WHERE r.kind = @coaches AND r.user_a_id = @viewer AND r.user_b_id = uploads.user_id))
	OR (uploads.visibility IN (@friendsAndCoaches, @friendsOnly) AND EXISTS (
		SELECT 1 FROM relationships r
		WHERE r.kind = @friends AND (
			(r.user_a_id = @viewer AND r.user_b_id = uploads.user_id)
			OR (r.user_b_id = @viewer AND r.user_a_id = uploads.user_id))))
)`

func viewableArgs(viewerID uint) map[string]interface{} {
	return map[string]interface{}{
		"viewer":            viewerID,
		"public":            models.VisibilityPublic,
		"friendsAndCoaches": models.VisibilityFriendsAndCoaches,
		"coachesOnly":       models.VisibilityCoachesOnly,
		"friendsOnly":       models.VisibilityFriendsOnly,
		"coaches":           models.KindACoachesB,
		"friends":           models.KindFriends,
	}
}

func (r *uploadRepository) Create(ctx context.Context, upload *models.Upload, userIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(upload).Error; err != nil {
			return err
		}
		return addShares(tx, upload.ID, userIDs)
	})
	if err != nil {
		upload.ID = 0
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{
		"id": upload.ID, "user_id": upload.UserID, "bucket_id": upload.BucketID, "shared_with": len(userIDs),
	})
	return nil
}

func (r *uploadRepository) GetByID(ctx context.Context, id uint) (*models.Upload, error) {
	var upload models.Upload
	if err := r.db.WithContext(ctx).First(&upload, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Upload", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &upload, nil
}

// UpdateDetails persists the display title and bucket.
func (r *uploadRepository) UpdateDetails(ctx context.Context, upload *models.Upload) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Upload{}).
		Where("id = ?", upload.ID).
		Updates(map[string]interface{}{
			"display_title": upload.DisplayTitle,
			"bucket_id":     upload.BucketID,
		}).Error; err != nil {
		r.log.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	r.log.LogUpdate(ctx, map[string]any{"id": upload.ID})
	return nil
}

func (r *uploadRepository) SetMediaJob(ctx context.Context, id uint, jobID string) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Upload{}).
		Where("id = ?", id).
		Update("media_job_id", jobID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *uploadRepository) SetStreamReady(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Upload{}).
		Where("id = ?", id).
		Update("stream_ready", true).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes the upload with its grants and comments.
func (r *uploadRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("upload_id = ?", id).Delete(&models.UploadShare{}).Error; err != nil {
			return err
		}
		if err := tx.Where("upload_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Upload{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Upload", id)
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		r.log.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	r.log.LogDelete(ctx, map[string]any{"id": id})
	return nil
}

func (r *uploadRepository) ListByOwner(ctx context.Context, ownerID uint, bucketID *uint) ([]models.Upload, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", ownerID)
	if bucketID != nil {
		q = q.Where("bucket_id = ?", *bucketID)
	}
	var uploads []models.Upload
	if err := q.Order("created_at DESC").Order("id DESC").Find(&uploads).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return uploads, nil
}

func (r *uploadRepository) ListByBucket(ctx context.Context, bucketID uint) ([]models.Upload, error) {
	var uploads []models.Upload
	if err := r.db.WithContext(ctx).
		Where("bucket_id = ?", bucketID).
		Order("created_at DESC").Order("id DESC").
		Find(&uploads).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return uploads, nil
}

// AddShares grants each user view access. Existing grants are left alone.
func (r *uploadRepository) AddShares(ctx context.Context, uploadID uint, userIDs []uint) error {
	if err := addShares(r.db.WithContext(ctx), uploadID, userIDs); err != nil {
		r.log.LogError(ctx, err, "add_shares")
		return models.NewInternalError(err)
	}
	return nil
}

func addShares(tx *gorm.DB, uploadID uint, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]models.UploadShare, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, models.UploadShare{UploadID: uploadID, UserID: id})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *uploadRepository) ClearShares(ctx context.Context, uploadID uint) error {
	if err := r.db.WithContext(ctx).Where("upload_id = ?", uploadID).Delete(&models.UploadShare{}).Error; err != nil {
		r.log.LogError(ctx, err, "clear_shares")
		return models.NewInternalError(err)
	}
	return nil
}

func (r *uploadRepository) ReplaceVisibility(ctx context.Context, uploadID uint, tier models.Visibility, userIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceVisibility(tx, uploadID, map[string]interface{}{"visibility": tier}, userIDs)
	})
	if err != nil {
		return r.visibilityError(ctx, err)
	}
	r.log.LogUpdate(ctx, map[string]any{"id": uploadID, "visibility": tier, "shared_with": len(userIDs)})
	return nil
}

func (r *uploadRepository) UpdateWithVisibility(ctx context.Context, upload *models.Upload, userIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceVisibility(tx, upload.ID, map[string]interface{}{
			"display_title": upload.DisplayTitle,
			"bucket_id":     upload.BucketID,
			"visibility":    upload.Visibility,
		}, userIDs)
	})
	if err != nil {
		return r.visibilityError(ctx, err)
	}
	r.log.LogUpdate(ctx, map[string]any{"id": upload.ID, "visibility": upload.Visibility, "shared_with": len(userIDs)})
	return nil
}

// replaceVisibility writes columns and swaps the grant list inside tx.
func replaceVisibility(tx *gorm.DB, uploadID uint, columns map[string]interface{}, userIDs []uint) error {
	res := tx.Model(&models.Upload{}).Where("id = ?", uploadID).Updates(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Upload", uploadID)
	}
	if err := tx.Where("upload_id = ?", uploadID).Delete(&models.UploadShare{}).Error; err != nil {
		return err
	}
	return addShares(tx, uploadID, userIDs)
}

func (r *uploadRepository) visibilityError(ctx context.Context, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	r.log.LogError(ctx, err, "replace_visibility")
	return models.NewInternalError(err)
}

func (r *uploadRepository) IsSharedWith(ctx context.Context, uploadID, userID uint) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&models.UploadShare{}).
		Where("upload_id = ? AND user_id = ?", uploadID, userID).
		Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *uploadRepository) ListShareIDs(ctx context.Context, uploadID uint) ([]uint, error) {
	ids := []uint{}
	if err := r.db.WithContext(ctx).
		Model(&models.UploadShare{}).
		Where("upload_id = ?", uploadID).
		Order("user_id").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// CountViewableInBucket counts the bucket's uploads viewerID may see,
// evaluated entirely in storage.
func (r *uploadRepository) CountViewableInBucket(ctx context.Context, bucketID, viewerID uint) (int64, error) {
	defer observability.TrackQuery("count_viewable", "uploads")()

	var n int64
	if err := r.db.WithContext(ctx).
		Model(&models.Upload{}).
		Where("uploads.bucket_id = ?", bucketID).
		Where(viewableClause, viewableArgs(viewerID)).
		Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// CountViewableByOwner counts ownerID's uploads that viewerID may see.
func (r *uploadRepository) CountViewableByOwner(ctx context.Context, ownerID, viewerID uint) (int64, error) {
	defer observability.TrackQuery("count_viewable", "uploads")()

	var n int64
	if err := r.db.WithContext(ctx).
		Model(&models.Upload{}).
		Where("uploads.user_id = ?", ownerID).
		Where(viewableClause, viewableArgs(viewerID)).
		Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
