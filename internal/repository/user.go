package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"courtside/internal/cache"
	"courtside/internal/models"
	"courtside/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SearchByPrefix(ctx context.Context, prefix string, limit int) ([]models.User, error)
	// DeleteCascade removes the user and everything hanging off them in one
	// transaction. It returns the ids of the uploads that were removed.
	DeleteCascade(ctx context.Context, id uint) ([]uint, error)
}

type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

// cachedUser mirrors models.User with every field serialized.
type cachedUser struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Biography   string    `json:"biography"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c cachedUser) user() *models.User {
	return &models.User{
		ID:          c.ID,
		Username:    c.Username,
		DisplayName: c.DisplayName,
		Biography:   c.Biography,
		Email:       c.Email,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	cached, err := cache.Aside(ctx, cache.UserKey(id), cache.UserTTL, func(ctx context.Context) (cachedUser, error) {
		var user models.User
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return cachedUser{}, models.NewNotFoundError("User", id)
			}
			return cachedUser{}, models.NewInternalError(err)
		}
		return cachedUser(user), nil
	})
	if err != nil {
		return nil, err
	}
	return cached.user(), nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists")
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"id": user.ID, "username": user.Username})
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).
		Model(user).
		Select("username", "display_name", "biography").
		Updates(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Username unavailable.")
		}
		r.log.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	r.log.LogUpdate(ctx, map[string]any{"id": user.ID})
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

// SearchByPrefix matches usernames and display names starting with prefix.
func (r *userRepository) SearchByPrefix(ctx context.Context, prefix string, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	pattern := escapeLike(strings.ToLower(prefix)) + "%"

	var users []models.User
	if err := r.db.WithContext(ctx).
		Where(`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(display_name) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("username").
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) DeleteCascade(ctx context.Context, id uint) ([]uint, error) {
	defer observability.TrackQuery("delete_cascade", "users")()

	var uploadIDs, counterparts []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return models.NewNotFoundError("User", id)
		}

		if err := tx.Model(&models.Upload{}).Where("user_id = ?", id).Pluck("id", &uploadIDs).Error; err != nil {
			return err
		}

		var rels []models.Relationship
		if err := tx.Where("user_a_id = ? OR user_b_id = ?", id, id).Find(&rels).Error; err != nil {
			return err
		}
		for _, rel := range rels {
			counterparts = append(counterparts, rel.Other(id))
		}
		if err := tx.Where("user_a_id = ? OR user_b_id = ?", id, id).Delete(&models.Relationship{}).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ? OR upload_id IN (?)", id, ownedUploads(tx, id)).
			Delete(&models.UploadShare{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ? OR upload_id IN (?)", id, ownedUploads(tx, id)).
			Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Upload{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Bucket{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		r.log.LogError(ctx, err, "delete_cascade")
		return nil, models.NewInternalError(err)
	}

	r.log.LogDelete(ctx, map[string]any{"id": id, "uploads": len(uploadIDs), "relationships": len(counterparts)})
	cache.InvalidateUser(ctx, id)
	cache.InvalidateCounts(ctx, append(counterparts, id)...)
	return uploadIDs, nil
}

// ownedUploads is a subquery selecting the ids of a user's uploads.
func ownedUploads(tx *gorm.DB, userID uint) *gorm.DB {
	return tx.Session(&gorm.Session{NewDB: true}).Model(&models.Upload{}).Select("id").Where("user_id = ?", userID)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
