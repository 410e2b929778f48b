package service

import (
	"context"
	"fmt"

	"courtside/internal/models"
	"courtside/internal/repository"
)

// ShareSet manages the explicit per-upload grant list.
type ShareSet struct {
	uploads repository.UploadRepository
	users   repository.UserRepository
}

// NewShareSet returns a new ShareSet.
func NewShareSet(uploads repository.UploadRepository, users repository.UserRepository) *ShareSet {
	return &ShareSet{uploads: uploads, users: users}
}

// Contains reports whether userID holds an explicit grant on uploadID.
func (s *ShareSet) Contains(ctx context.Context, uploadID, userID uint) (bool, error) {
	return s.uploads.IsSharedWith(ctx, uploadID, userID)
}

// Members lists the users granted access to uploadID, ordered by id.
func (s *ShareSet) Members(ctx context.Context, uploadID uint) ([]uint, error) {
	return s.uploads.ListShareIDs(ctx, uploadID)
}

// ShareWith grants access to userIDs. Granting an existing member again is a no-op.
func (s *ShareSet) ShareWith(ctx context.Context, upload *models.Upload, userIDs []uint) error {
	ids, err := s.checkMembers(ctx, upload, userIDs)
	if err != nil {
		return err
	}
	return s.uploads.AddShares(ctx, upload.ID, ids)
}

// UnshareWithAll empties the grant list.
func (s *ShareSet) UnshareWithAll(ctx context.Context, upload *models.Upload) error {
	return s.uploads.ClearShares(ctx, upload.ID)
}

// Replace validates block, then swaps the tier and the grant list together.
// The new list replaces the old one outright.
func (s *ShareSet) Replace(ctx context.Context, upload *models.Upload, block models.VisibilityBlock) error {
	ids, err := s.checkBlock(ctx, upload, block)
	if err != nil {
		return err
	}
	if err := s.uploads.ReplaceVisibility(ctx, upload.ID, block.Default, ids); err != nil {
		return err
	}
	upload.Visibility = block.Default
	return nil
}

// Block returns the outward visibility shape of upload.
func (s *ShareSet) Block(ctx context.Context, upload *models.Upload) (models.VisibilityBlock, error) {
	ids, err := s.Members(ctx, upload.ID)
	if err != nil {
		return models.VisibilityBlock{}, err
	}
	return models.VisibilityBlock{Default: upload.Visibility, AlsoSharedWith: ids}, nil
}

// checkBlock validates the tier and the grant list of block without writing.
func (s *ShareSet) checkBlock(ctx context.Context, upload *models.Upload, block models.VisibilityBlock) ([]uint, error) {
	if !block.Default.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("Invalid visibility %q.", block.Default))
	}
	return s.checkMembers(ctx, upload, block.AlsoSharedWith)
}

// checkMembers dedupes userIDs and rejects the owner and unknown users.
func (s *ShareSet) checkMembers(ctx context.Context, upload *models.Upload, userIDs []uint) ([]uint, error) {
	seen := make(map[uint]struct{}, len(userIDs))
	ids := make([]uint, 0, len(userIDs))
	for _, id := range userIDs {
		if id == upload.UserID {
			return nil, models.NewForbiddenError("Cannot share an upload with its owner.")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ids, nil
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(users) != len(ids) {
		found := make(map[uint]struct{}, len(users))
		for _, u := range users {
			found[u.ID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				return nil, models.NewNotFoundError("User", id)
			}
		}
	}
	return ids, nil
}
