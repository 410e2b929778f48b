package service

import (
	"context"
	"log/slog"

	"courtside/internal/featureflags"
	"courtside/internal/middleware"
	"courtside/internal/models"
	"courtside/internal/observability"
	"courtside/internal/repository"
)

// CourtshipReader answers the two derived courtship predicates the policy needs.
type CourtshipReader interface {
	FriendsWith(ctx context.Context, u, other uint) (bool, error)
	Coaches(ctx context.Context, coach, student uint) (bool, error)
}

// GrantReader reports explicit upload grants.
type GrantReader interface {
	Contains(ctx context.Context, uploadID, userID uint) (bool, error)
}

// CommentFilter may further hide a comment the viewer could otherwise see.
// Returning false hides it.
type CommentFilter func(ctx context.Context, viewer uint, comment *models.Comment, upload *models.Upload) bool

// VisibilityPolicy decides who may see or change uploads, comments and
// buckets. Every decision is a plain bool; a failed lookup denies.
type VisibilityPolicy struct {
	courtships CourtshipReader
	grants     GrantReader
	uploads    repository.UploadRepository
	flags      *featureflags.Manager

	// CommentFilter is consulted after the upload view check. Nil keeps
	// every comment on a viewable upload visible.
	CommentFilter CommentFilter
}

// NewVisibilityPolicy returns a policy. flags may be nil.
func NewVisibilityPolicy(courtships CourtshipReader, grants GrantReader, uploads repository.UploadRepository, flags *featureflags.Manager) *VisibilityPolicy {
	return &VisibilityPolicy{courtships: courtships, grants: grants, uploads: uploads, flags: flags}
}

// CanViewUpload applies the owner, grant and tier rules in that order.
func (p *VisibilityPolicy) CanViewUpload(ctx context.Context, viewer uint, upload *models.Upload) bool {
	allowed := p.canViewUpload(ctx, viewer, upload)
	observability.RecordDecision("upload", allowed)
	return allowed
}

func (p *VisibilityPolicy) canViewUpload(ctx context.Context, viewer uint, upload *models.Upload) bool {
	if upload == nil {
		return false
	}
	if upload.UserID == viewer {
		return true
	}

	shared, err := p.grants.Contains(ctx, upload.ID, viewer)
	if err != nil {
		p.lookupFailed(ctx, "share", err)
		return false
	}
	if shared {
		return true
	}

	owner := upload.UserID
	switch upload.Visibility {
	case models.VisibilityPublic:
		return true
	case models.VisibilityFriendsAndCoaches:
		return p.coaches(ctx, viewer, owner) || p.friends(ctx, viewer, owner)
	case models.VisibilityCoachesOnly:
		return p.coaches(ctx, viewer, owner)
	case models.VisibilityFriendsOnly:
		return p.friends(ctx, viewer, owner)
	default:
		return false
	}
}

// CanModifyUpload allows only the owner.
func (p *VisibilityPolicy) CanModifyUpload(user uint, upload *models.Upload) bool {
	return upload != nil && upload.UserID == user
}

// CanCommentOnUpload is the view rule.
func (p *VisibilityPolicy) CanCommentOnUpload(ctx context.Context, user uint, upload *models.Upload) bool {
	return p.CanViewUpload(ctx, user, upload)
}

// CanViewComment requires the comment's upload to be viewable and the
// optional filter to pass.
func (p *VisibilityPolicy) CanViewComment(ctx context.Context, viewer uint, comment *models.Comment) bool {
	upload, ok := p.commentUpload(ctx, comment)
	if !ok {
		observability.RecordDecision("comment", false)
		return false
	}
	return p.CanViewCommentOn(ctx, viewer, comment, upload)
}

// CanViewCommentOn is CanViewComment with the comment's upload already loaded.
func (p *VisibilityPolicy) CanViewCommentOn(ctx context.Context, viewer uint, comment *models.Comment, upload *models.Upload) bool {
	allowed := p.canViewUpload(ctx, viewer, upload)
	if allowed && p.CommentFilter != nil {
		allowed = p.CommentFilter(ctx, viewer, comment, upload)
	}
	observability.RecordDecision("comment", allowed)
	return allowed
}

// CanModifyComment allows the upload's owner and the comment's author.
func (p *VisibilityPolicy) CanModifyComment(ctx context.Context, user uint, comment *models.Comment) bool {
	if comment == nil {
		return false
	}
	if comment.AuthorID == user {
		return true
	}
	upload, ok := p.commentUpload(ctx, comment)
	return ok && upload.UserID == user
}

// CanViewBucket allows the owner, or anyone who can view at least one
// upload in it.
func (p *VisibilityPolicy) CanViewBucket(ctx context.Context, viewer uint, bucket *models.Bucket) bool {
	allowed := p.canViewBucket(ctx, viewer, bucket)
	observability.RecordDecision("bucket", allowed)
	return allowed
}

func (p *VisibilityPolicy) canViewBucket(ctx context.Context, viewer uint, bucket *models.Bucket) bool {
	if bucket == nil {
		return false
	}
	if bucket.UserID == viewer {
		return true
	}

	if p.flags.Enabled(featureflags.BucketVisibilityPushdown, viewer) {
		n, err := p.uploads.CountViewableInBucket(ctx, bucket.ID, viewer)
		if err != nil {
			p.lookupFailed(ctx, "bucket_pushdown", err)
			return false
		}
		return n > 0
	}

	uploads, err := p.uploads.ListByBucket(ctx, bucket.ID)
	if err != nil {
		p.lookupFailed(ctx, "bucket_uploads", err)
		return false
	}
	for i := range uploads {
		if p.canViewUpload(ctx, viewer, &uploads[i]) {
			return true
		}
	}
	return false
}

// CanModifyBucket allows only the owner.
func (p *VisibilityPolicy) CanModifyBucket(user uint, bucket *models.Bucket) bool {
	return bucket != nil && bucket.UserID == user
}

func (p *VisibilityPolicy) coaches(ctx context.Context, coach, student uint) bool {
	ok, err := p.courtships.Coaches(ctx, coach, student)
	if err != nil {
		p.lookupFailed(ctx, "coaches", err)
		return false
	}
	return ok
}

func (p *VisibilityPolicy) friends(ctx context.Context, u, other uint) bool {
	ok, err := p.courtships.FriendsWith(ctx, u, other)
	if err != nil {
		p.lookupFailed(ctx, "friends", err)
		return false
	}
	return ok
}

func (p *VisibilityPolicy) commentUpload(ctx context.Context, comment *models.Comment) (*models.Upload, bool) {
	if comment == nil {
		return nil, false
	}
	upload, err := p.uploads.GetByID(ctx, comment.UploadID)
	if err != nil {
		p.lookupFailed(ctx, "comment_upload", err)
		return nil, false
	}
	return upload, true
}

func (p *VisibilityPolicy) lookupFailed(ctx context.Context, lookup string, err error) {
	observability.VisibilityLookupErrors.Inc()
	middleware.Logger.ErrorContext(ctx, "visibility lookup failed, denying",
		slog.String("lookup", lookup),
		slog.String("error", err.Error()))
}
