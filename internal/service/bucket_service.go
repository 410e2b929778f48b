package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"courtside/internal/media"
	"courtside/internal/middleware"
	"courtside/internal/models"
	"courtside/internal/repository"
	"courtside/internal/validation"
)

// BucketView is the outward shape of a bucket.
type BucketView struct {
	ID           uint      `json:"id"`
	UserID       uint      `json:"user_id"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// BucketService manages buckets.
type BucketService struct {
	buckets repository.BucketRepository
	users   repository.UserRepository
	policy  *VisibilityPolicy
	media   media.Provider
}

// NewBucketService returns a new BucketService. provider may be nil.
func NewBucketService(buckets repository.BucketRepository, users repository.UserRepository, policy *VisibilityPolicy, provider media.Provider) *BucketService {
	if provider == nil {
		provider = media.Disabled{}
	}
	return &BucketService{buckets: buckets, users: users, policy: policy, media: provider}
}

// Create makes a bucket named name for owner.
func (s *BucketService) Create(ctx context.Context, owner uint, name string) (*BucketView, error) {
	name = strings.TrimSpace(name)
	if err := validation.RequireText("Bucket name", name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	bucket := &models.Bucket{UserID: owner, Name: name}
	if err := s.buckets.Create(ctx, bucket); err != nil {
		return nil, err
	}
	return s.view(ctx, bucket)
}

// ListForOwner returns owner's buckets that viewer may see.
func (s *BucketService) ListForOwner(ctx context.Context, viewer, owner uint) ([]BucketView, error) {
	if _, err := s.users.GetByID(ctx, owner); err != nil {
		return nil, err
	}
	buckets, err := s.buckets.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	views := make([]BucketView, 0, len(buckets))
	for i := range buckets {
		if !s.policy.CanViewBucket(ctx, viewer, &buckets[i]) {
			continue
		}
		v, err := s.view(ctx, &buckets[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// Rename changes a bucket's name. Only the owner may rename.
func (s *BucketService) Rename(ctx context.Context, actor, id uint, name string) (*BucketView, error) {
	bucket, err := s.modifiable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validation.RequireText("Bucket name", name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if name != bucket.Name {
		if err := s.buckets.Rename(ctx, id, name); err != nil {
			return nil, err
		}
		bucket.Name = name
	}
	return s.view(ctx, bucket)
}

// Delete removes a bucket together with its uploads.
func (s *BucketService) Delete(ctx context.Context, actor, id uint) error {
	if _, err := s.modifiable(ctx, actor, id); err != nil {
		return err
	}
	uploadIDs, err := s.buckets.Delete(ctx, id)
	if err != nil {
		return err
	}
	if err := s.media.DeleteObjects(ctx, uploadIDs...); err != nil {
		middleware.Logger.WarnContext(ctx, "media cleanup failed",
			slog.Uint64("bucket_id", uint64(id)),
			slog.String("error", err.Error()))
	}
	return nil
}

func (s *BucketService) modifiable(ctx context.Context, actor, id uint) (*models.Bucket, error) {
	bucket, err := s.buckets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanModifyBucket(actor, bucket) {
		return nil, models.NewForbiddenError("User forbidden to modify bucket.")
	}
	return bucket, nil
}

func (s *BucketService) view(ctx context.Context, bucket *models.Bucket) (*BucketView, error) {
	stats, err := s.buckets.Stats(ctx, bucket.ID)
	if err != nil {
		return nil, err
	}
	v := &BucketView{
		ID:           bucket.ID,
		UserID:       bucket.UserID,
		Name:         bucket.Name,
		Size:         stats.Size,
		LastModified: bucket.CreatedAt,
	}
	if stats.LastModified != nil {
		v.LastModified = *stats.LastModified
	}
	return v, nil
}
