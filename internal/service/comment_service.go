package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"courtside/internal/middleware"
	"courtside/internal/models"
	"courtside/internal/observability"
	"courtside/internal/repository"
	"courtside/internal/validation"
)

// CommentService manages comments on uploads.
type CommentService struct {
	comments repository.CommentRepository
	uploads  repository.UploadRepository
	users    repository.UserRepository
	policy   *VisibilityPolicy
}

// NewCommentService returns a new CommentService.
func NewCommentService(comments repository.CommentRepository, uploads repository.UploadRepository, users repository.UserRepository, policy *VisibilityPolicy) *CommentService {
	return &CommentService{comments: comments, uploads: uploads, users: users, policy: policy}
}

// Create posts text on uploadID as author.
func (s *CommentService) Create(ctx context.Context, author, uploadID uint, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if err := validation.ValidateCommentText(text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	upload, err := s.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanCommentOnUpload(ctx, author, upload) {
		return nil, models.NewForbiddenError("User forbidden to comment on upload.")
	}

	comment := &models.Comment{AuthorID: author, UploadID: uploadID, Text: text}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// ListForUpload returns the comments on uploadID that viewer may see, oldest first.
func (s *CommentService) ListForUpload(ctx context.Context, viewer, uploadID uint) ([]models.Comment, error) {
	upload, err := s.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanViewUpload(ctx, viewer, upload) {
		return nil, models.NewForbiddenError("User forbidden to view upload.")
	}
	comments, err := s.comments.ListByUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	visible := make([]models.Comment, 0, len(comments))
	for i := range comments {
		if s.policy.CanViewCommentOn(ctx, viewer, &comments[i], upload) {
			visible = append(visible, comments[i])
		}
	}
	return visible, nil
}

// ListByAuthor returns author's comments that viewer may see, newest first.
func (s *CommentService) ListByAuthor(ctx context.Context, viewer, author uint) ([]models.Comment, error) {
	if _, err := s.users.GetByID(ctx, author); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByAuthor(ctx, author)
	if err != nil {
		return nil, err
	}

	uploads := make(map[uint]*models.Upload)
	visible := make([]models.Comment, 0, len(comments))
	for i := range comments {
		upload, seen := uploads[comments[i].UploadID]
		if !seen {
			// a missing upload stays nil and denies
			upload = s.commentUpload(ctx, comments[i].UploadID)
			uploads[comments[i].UploadID] = upload
		}
		if s.policy.CanViewCommentOn(ctx, viewer, &comments[i], upload) {
			visible = append(visible, comments[i])
		}
	}
	return visible, nil
}

func (s *CommentService) commentUpload(ctx context.Context, id uint) *models.Upload {
	upload, err := s.uploads.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			observability.VisibilityLookupErrors.Inc()
			middleware.Logger.ErrorContext(ctx, "comment upload lookup failed, hiding comments",
				slog.Uint64("upload_id", uint64(id)),
				slog.String("error", err.Error()))
		}
		return nil
	}
	return upload
}

// Delete removes a comment. The upload's owner and the comment's author may delete.
func (s *CommentService) Delete(ctx context.Context, actor, id uint) error {
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.policy.CanModifyComment(ctx, actor, comment) {
		return models.NewForbiddenError("User forbidden to delete comment.")
	}
	return s.comments.Delete(ctx, id)
}
