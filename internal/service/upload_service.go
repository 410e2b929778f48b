package service

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"

	"courtside/internal/media"
	"courtside/internal/middleware"
	"courtside/internal/models"
	"courtside/internal/repository"
	"courtside/internal/validation"
)

// CreateUploadInput describes a new upload.
type CreateUploadInput struct {
	Filename     string                  `json:"filename"`
	DisplayTitle string                  `json:"display_title"`
	BucketID     uint                    `json:"bucket_id"`
	Visibility   *models.VisibilityBlock `json:"visibility"`
}

// UpdateUploadInput carries the upload fields to change. Nil fields are left alone.
type UpdateUploadInput struct {
	DisplayTitle *string                 `json:"display_title"`
	BucketID     *uint                   `json:"bucket_id"`
	Visibility   *models.VisibilityBlock `json:"visibility"`
}

// UploadView is an upload as seen by a viewer. Visibility is only filled
// in for the owner.
type UploadView struct {
	ID           uint                    `json:"id"`
	UserID       uint                    `json:"user_id"`
	BucketID     uint                    `json:"bucket_id"`
	Created      time.Time               `json:"created"`
	DisplayTitle string                  `json:"display_title"`
	StreamReady  bool                    `json:"stream_ready"`
	Visibility   *models.VisibilityBlock `json:"visibility,omitempty"`
	URL          string                  `json:"url,omitempty"`
	Thumbnail    string                  `json:"thumbnail,omitempty"`
	UploadURL    string                  `json:"upload_url,omitempty"`
}

// UploadService manages uploads and their visibility.
type UploadService struct {
	uploads repository.UploadRepository
	buckets repository.BucketRepository
	users   repository.UserRepository
	shares  *ShareSet
	policy  *VisibilityPolicy
	media   media.Provider
}

// NewUploadService returns a new UploadService. provider may be nil.
func NewUploadService(
	uploads repository.UploadRepository,
	buckets repository.BucketRepository,
	users repository.UserRepository,
	shares *ShareSet,
	policy *VisibilityPolicy,
	provider media.Provider,
) *UploadService {
	if provider == nil {
		provider = media.Disabled{}
	}
	return &UploadService{uploads: uploads, buckets: buckets, users: users, shares: shares, policy: policy, media: provider}
}

// Create records a new upload in one of owner's buckets and returns it with
// a presigned URL for sending the original file.
func (s *UploadService) Create(ctx context.Context, owner uint, input CreateUploadInput) (*UploadView, error) {
	filename := path.Base(strings.TrimSpace(input.Filename))
	switch filename {
	case ".", "..", "/":
		filename = ""
	}
	if err := validation.RequireText("Filename", filename); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	title := strings.TrimSpace(input.DisplayTitle)
	if err := validation.RequireText("Display title", title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if _, err := s.destination(ctx, owner, input.BucketID); err != nil {
		return nil, err
	}

	upload := &models.Upload{
		UserID:       owner,
		BucketID:     input.BucketID,
		Filename:     filename,
		DisplayTitle: title,
		Visibility:   models.VisibilityPrivate,
	}
	var grants []uint
	if input.Visibility != nil {
		ids, err := s.shares.checkBlock(ctx, upload, *input.Visibility)
		if err != nil {
			return nil, err
		}
		upload.Visibility = input.Visibility.Default
		grants = ids
	}

	if err := s.uploads.Create(ctx, upload, grants); err != nil {
		return nil, err
	}

	v, err := s.view(ctx, owner, upload)
	if err != nil {
		return nil, err
	}
	v.UploadURL, err = s.media.UploadURL(ctx, upload)
	if err != nil {
		// an upload is kept only once its send URL is issued
		if delErr := s.uploads.Delete(ctx, upload.ID); delErr != nil {
			middleware.Logger.ErrorContext(ctx, "orphaned upload after signing failure",
				slog.Uint64("upload_id", uint64(upload.ID)),
				slog.String("error", delErr.Error()))
		}
		return nil, models.NewInternalError(err)
	}
	return v, nil
}

// Get returns upload id as viewer sees it.
func (s *UploadService) Get(ctx context.Context, viewer, id uint) (*UploadView, error) {
	upload, err := s.viewable(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, viewer, upload)
}

// ListByOwner returns owner's uploads that viewer may see, optionally
// restricted to one bucket.
func (s *UploadService) ListByOwner(ctx context.Context, viewer, owner uint, bucketID *uint) ([]UploadView, error) {
	if _, err := s.users.GetByID(ctx, owner); err != nil {
		return nil, err
	}
	uploads, err := s.uploads.ListByOwner(ctx, owner, bucketID)
	if err != nil {
		return nil, err
	}

	views := make([]UploadView, 0, len(uploads))
	for i := range uploads {
		if !s.policy.CanViewUpload(ctx, viewer, &uploads[i]) {
			continue
		}
		v, err := s.view(ctx, viewer, &uploads[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// Update changes an upload's title, bucket or visibility. Only the owner may update.
func (s *UploadService) Update(ctx context.Context, actor, id uint, input UpdateUploadInput) (*UploadView, error) {
	upload, err := s.modifiable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	next := *upload
	changed := false
	if input.DisplayTitle != nil {
		title := strings.TrimSpace(*input.DisplayTitle)
		if err := validation.RequireText("Display title", title); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		next.DisplayTitle = title
		changed = true
	}
	if input.BucketID != nil && *input.BucketID != upload.BucketID {
		if _, err := s.destination(ctx, actor, *input.BucketID); err != nil {
			return nil, err
		}
		next.BucketID = *input.BucketID
		changed = true
	}
	var grants []uint
	if input.Visibility != nil {
		if grants, err = s.shares.checkBlock(ctx, upload, *input.Visibility); err != nil {
			return nil, err
		}
		next.Visibility = input.Visibility.Default
	}

	switch {
	case input.Visibility != nil:
		err = s.uploads.UpdateWithVisibility(ctx, &next, grants)
	case changed:
		err = s.uploads.UpdateDetails(ctx, &next)
	}
	if err != nil {
		return nil, err
	}
	return s.view(ctx, actor, &next)
}

// Delete removes an upload, its grants, comments and stored media.
func (s *UploadService) Delete(ctx context.Context, actor, id uint) error {
	if _, err := s.modifiable(ctx, actor, id); err != nil {
		return err
	}
	if err := s.uploads.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.media.DeleteObjects(ctx, id); err != nil {
		middleware.Logger.WarnContext(ctx, "media cleanup failed",
			slog.Uint64("upload_id", uint64(id)),
			slog.String("error", err.Error()))
	}
	return nil
}

// DownloadURL signs a link to the original file for a viewer allowed to see it.
func (s *UploadService) DownloadURL(ctx context.Context, viewer, id uint) (string, error) {
	upload, err := s.viewable(ctx, viewer, id)
	if err != nil {
		return "", err
	}
	url, err := s.media.DownloadURL(ctx, upload)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return url, nil
}

// StartConvert submits the original for streaming conversion and records the job.
func (s *UploadService) StartConvert(ctx context.Context, actor, id uint) (*UploadView, error) {
	upload, err := s.modifiable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	jobID, err := s.media.StartConvert(ctx, upload)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, models.NewInternalError(err)
	}
	if err := s.uploads.SetMediaJob(ctx, id, jobID); err != nil {
		return nil, err
	}
	upload.MediaJobID = &jobID
	return s.view(ctx, actor, upload)
}

func (s *UploadService) viewable(ctx context.Context, viewer, id uint) (*models.Upload, error) {
	upload, err := s.uploads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanViewUpload(ctx, viewer, upload) {
		return nil, models.NewForbiddenError("User forbidden to view upload.")
	}
	return upload, nil
}

func (s *UploadService) modifiable(ctx context.Context, actor, id uint) (*models.Upload, error) {
	upload, err := s.uploads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanModifyUpload(actor, upload) {
		return nil, models.NewForbiddenError("User forbidden to modify upload.")
	}
	return upload, nil
}

func (s *UploadService) destination(ctx context.Context, actor, bucketID uint) (*models.Bucket, error) {
	bucket, err := s.buckets.GetByID(ctx, bucketID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanModifyBucket(actor, bucket) {
		return nil, models.NewForbiddenError("User forbidden to modify bucket.")
	}
	return bucket, nil
}

// view shapes upload for viewer, refreshing stream readiness from storage
// the first time the converted stream shows up.
func (s *UploadService) view(ctx context.Context, viewer uint, upload *models.Upload) (*UploadView, error) {
	v := &UploadView{
		ID:           upload.ID,
		UserID:       upload.UserID,
		BucketID:     upload.BucketID,
		Created:      upload.CreatedAt,
		DisplayTitle: upload.DisplayTitle,
		StreamReady:  upload.StreamReady,
	}
	if upload.UserID == viewer {
		block, err := s.shares.Block(ctx, upload)
		if err != nil {
			return nil, err
		}
		v.Visibility = &block
	}

	if !v.StreamReady {
		ready, err := s.media.StreamReady(ctx, upload)
		if err != nil {
			s.mediaFailed(ctx, upload.ID, "stream_ready", err)
		} else if ready {
			if err := s.uploads.SetStreamReady(ctx, upload.ID); err != nil {
				return nil, err
			}
			upload.StreamReady = true
			v.StreamReady = true
		}
	}
	if !v.StreamReady {
		return v, nil
	}

	var err error
	if v.URL, err = s.media.ViewURL(ctx, upload); err != nil {
		s.mediaFailed(ctx, upload.ID, "view_url", err)
	}
	if v.Thumbnail, err = s.media.ThumbnailURL(ctx, upload); err != nil {
		s.mediaFailed(ctx, upload.ID, "thumbnail_url", err)
	}
	return v, nil
}

func (s *UploadService) mediaFailed(ctx context.Context, uploadID uint, op string, err error) {
	middleware.Logger.WarnContext(ctx, "media lookup failed",
		slog.String("op", op),
		slog.Uint64("upload_id", uint64(uploadID)),
		slog.String("error", err.Error()))
}
