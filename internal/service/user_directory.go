package service

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"

	"courtside/internal/media"
	"courtside/internal/middleware"
	"courtside/internal/models"
	"courtside/internal/observability"
	"courtside/internal/repository"
	"courtside/internal/validation"
)

// maxHandleAttempts bounds GenerateUniqueHandle. Each failed attempt makes
// the candidate one digit longer.
const maxHandleAttempts = 16

const searchLimit = 20

var handleIllegal = regexp.MustCompile(`[^A-Za-z0-9_.]`)

// NewUserInput is what registration needs from the identity provider.
type NewUserInput struct {
	DisplayName string
	Email       string
}

// UpdateProfileInput carries the profile fields to change. Nil fields are left alone.
type UpdateProfileInput struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
	Biography   *string `json:"biography"`
}

// ProfileView is a user as seen by a particular viewer.
type ProfileView struct {
	ID          uint                        `json:"id"`
	Username    string                      `json:"username"`
	DisplayName string                      `json:"display_name"`
	Biography   string                      `json:"biography"`
	Email       string                      `json:"email,omitempty"`
	NUploads    int64                       `json:"n_uploads"`
	NCourtships models.CourtshipCounts      `json:"n_courtships"`
	Courtship   *models.RelationshipSummary `json:"courtship"`
}

// UserDirectory owns user identity records and their outward profile shape.
type UserDirectory struct {
	users   repository.UserRepository
	graph   *RelationshipGraph
	uploads repository.UploadRepository
	media   media.Provider

	// intN returns a value in [0, n). Tests replace it.
	intN func(n int) int
}

// NewUserDirectory returns a new UserDirectory. provider may be nil.
func NewUserDirectory(users repository.UserRepository, graph *RelationshipGraph, uploads repository.UploadRepository, provider media.Provider) *UserDirectory {
	if provider == nil {
		provider = media.Disabled{}
	}
	return &UserDirectory{users: users, graph: graph, uploads: uploads, media: provider, intN: rand.IntN}
}

// GenerateUniqueHandle derives an unused username from displayName.
func (d *UserDirectory) GenerateUniqueHandle(ctx context.Context, displayName string) (string, error) {
	base := strings.ToLower(handleIllegal.ReplaceAllString(displayName, ""))
	if base == "" {
		var b strings.Builder
		for range 3 {
			b.WriteByte(byte('a' + d.intN(26)))
		}
		base = b.String()
	}
	if limit := validation.MaxUsernameLength - maxHandleAttempts; len(base) > limit {
		base = base[:limit]
	}

	candidate := base
	for attempt := 1; attempt <= maxHandleAttempts; attempt++ {
		candidate += string(rune('0' + d.intN(10)))
		taken, err := d.users.UsernameTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			observability.HandleGenerationAttempts.Observe(float64(attempt))
			return candidate, nil
		}
	}
	observability.HandleGenerationAttempts.Observe(maxHandleAttempts)
	return "", models.NewDirectoryExhaustedError(maxHandleAttempts)
}

// Register creates a user with a generated handle.
func (d *UserDirectory) Register(ctx context.Context, input NewUserInput) (*models.User, error) {
	if err := validation.ValidateDisplayName(input.DisplayName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	handle, err := d.GenerateUniqueHandle(ctx, input.DisplayName)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:    handle,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Email:       email,
	}
	if err := d.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Get returns the user with id.
func (d *UserDirectory) Get(ctx context.Context, id uint) (*models.User, error) {
	return d.users.GetByID(ctx, id)
}

// GetByUsername returns the user holding username.
func (d *UserDirectory) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := d.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return user, nil
}

// Profile returns userID as viewer sees it.
func (d *UserDirectory) Profile(ctx context.Context, viewer, userID uint) (*ProfileView, error) {
	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return d.view(ctx, viewer, user)
}

// Profiles shapes several users for viewer, keeping the order of ids.
// Ids that no longer exist are skipped.
func (d *UserDirectory) Profiles(ctx context.Context, viewer uint, ids []uint) ([]ProfileView, error) {
	users, err := d.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	views := make([]ProfileView, 0, len(ids))
	for _, id := range ids {
		user, ok := byID[id]
		if !ok {
			continue
		}
		v, err := d.view(ctx, viewer, user)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func (d *UserDirectory) view(ctx context.Context, viewer uint, user *models.User) (*ProfileView, error) {
	nUploads, err := d.uploads.CountViewableByOwner(ctx, user.ID, viewer)
	if err != nil {
		return nil, err
	}
	counts, err := d.graph.Counts(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	v := &ProfileView{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Biography:   user.Biography,
		NUploads:    nUploads,
		NCourtships: counts,
	}
	if viewer == user.ID {
		v.Email = user.Email
		return v, nil
	}
	rel, err := d.graph.Lookup(ctx, viewer, user.ID)
	if err != nil {
		return nil, err
	}
	v.Courtship = rel.SummaryFor(viewer)
	return v, nil
}

// UpdateProfile applies input to userID's profile.
func (d *UserDirectory) UpdateProfile(ctx context.Context, userID uint, input UpdateProfileInput) (*ProfileView, error) {
	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Username != nil && *input.Username != user.Username {
		if err := validation.ValidateUsername(*input.Username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		taken, err := d.users.UsernameTaken(ctx, *input.Username)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, models.NewConflictError("Username unavailable.")
		}
		user.Username = *input.Username
	}
	if input.DisplayName != nil {
		if err := validation.ValidateDisplayName(*input.DisplayName); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.DisplayName = strings.TrimSpace(*input.DisplayName)
	}
	if input.Biography != nil {
		user.Biography = strings.TrimSpace(*input.Biography)
	}

	if err := d.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return d.view(ctx, userID, user)
}

// SearchByPrefix finds users whose username or display name starts with
// query, leaving out viewer.
func (d *UserDirectory) SearchByPrefix(ctx context.Context, viewer uint, query string) ([]ProfileView, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []ProfileView{}, nil
	}
	users, err := d.users.SearchByPrefix(ctx, query, searchLimit+1)
	if err != nil {
		return nil, err
	}

	views := make([]ProfileView, 0, len(users))
	for i := range users {
		if users[i].ID == viewer {
			continue
		}
		if len(views) == searchLimit {
			break
		}
		v, err := d.view(ctx, viewer, &users[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// Delete removes userID and everything they own, then their stored media.
func (d *UserDirectory) Delete(ctx context.Context, userID uint) error {
	uploadIDs, err := d.users.DeleteCascade(ctx, userID)
	if err != nil {
		return err
	}
	if err := d.media.DeleteObjects(ctx, uploadIDs...); err != nil {
		middleware.Logger.WarnContext(ctx, "media cleanup failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.Int("uploads", len(uploadIDs)),
			slog.String("error", err.Error()))
	}
	return nil
}
