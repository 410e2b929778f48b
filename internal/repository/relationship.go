package repository

import (
	"context"
	"errors"
	"time"

	"courtside/internal/cache"
	"courtside/internal/models"
	"courtside/internal/observability"

	"gorm.io/gorm"
)

// Position restricts which endpoint of an edge a user must occupy.
type Position int

const (
	PositionAny Position = iota
	PositionA
	PositionB
)

// RelationshipFilter selects edges touching one user.
type RelationshipFilter struct {
	Kinds    []models.RelationshipKind
	Position Position
}

// RelationshipRepository stores the single edge kept per unordered user pair.
type RelationshipRepository interface {
	Lookup(ctx context.Context, userID1, userID2 uint) (*models.Relationship, error)
	Create(ctx context.Context, rel *models.Relationship) error
	Mutate(ctx context.Context, rel *models.Relationship, kind models.RelationshipKind, swap bool) error
	Remove(ctx context.Context, rel *models.Relationship) error
	ListForUser(ctx context.Context, userID uint, filter RelationshipFilter) ([]models.Relationship, error)
	Counts(ctx context.Context, userID uint) (models.CourtshipCounts, error)
}

type relationshipRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewRelationshipRepository creates a new relationship repository
func NewRelationshipRepository(db *gorm.DB) RelationshipRepository {
	return &relationshipRepository{db: db, log: observability.NewRepoLogger("relationships")}
}

// Lookup finds the edge between two users in either order. It returns
// nil, nil when the users are unrelated.
func (r *relationshipRepository) Lookup(ctx context.Context, userID1, userID2 uint) (*models.Relationship, error) {
	defer observability.TrackQuery("lookup", "relationships")()

	var rel models.Relationship
	if err := r.db.WithContext(ctx).
		Where("(user_a_id = ? AND user_b_id = ?) OR (user_a_id = ? AND user_b_id = ?)",
			userID1, userID2, userID2, userID1).
		First(&rel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.LogError(ctx, err, "lookup")
		return nil, models.NewInternalError(err)
	}
	return &rel, nil
}

func (r *relationshipRepository) Create(ctx context.Context, rel *models.Relationship) error {
	defer observability.TrackQuery("create", "relationships")()

	if err := r.db.WithContext(ctx).Create(rel).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewDuplicateRelationshipError()
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"id": rel.ID, "user_a_id": rel.UserAID, "user_b_id": rel.UserBID, "kind": rel.Kind})
	cache.InvalidateCounts(ctx, rel.UserAID, rel.UserBID)
	return nil
}

// Mutate changes the kind in place and optionally swaps the endpoints. The
// update is conditioned on the kind rel was read with, so a concurrent
// transition makes this one fail instead of overwriting it.
func (r *relationshipRepository) Mutate(ctx context.Context, rel *models.Relationship, kind models.RelationshipKind, swap bool) error {
	defer observability.TrackQuery("mutate", "relationships")()

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"kind":         kind,
		"last_changed": now,
	}
	userA, userB := rel.UserAID, rel.UserBID
	if swap {
		userA, userB = userB, userA
		updates["user_a_id"] = userA
		updates["user_b_id"] = userB
	}

	res := r.db.WithContext(ctx).
		Model(&models.Relationship{}).
		Where("id = ? AND kind = ?", rel.ID, rel.Kind).
		Updates(updates)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "mutate")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewInvalidTransitionError("relationship changed concurrently")
	}

	r.log.LogUpdate(ctx, map[string]any{"id": rel.ID, "from": rel.Kind, "to": kind, "swapped": swap})
	rel.Kind = kind
	rel.UserAID, rel.UserBID = userA, userB
	rel.LastChanged = now
	cache.InvalidateCounts(ctx, userA, userB)
	return nil
}

func (r *relationshipRepository) Remove(ctx context.Context, rel *models.Relationship) error {
	defer observability.TrackQuery("remove", "relationships")()

	res := r.db.WithContext(ctx).Delete(&models.Relationship{}, rel.ID)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "remove")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Relationship", rel.ID)
	}
	r.log.LogDelete(ctx, map[string]any{"id": rel.ID, "kind": rel.Kind})
	cache.InvalidateCounts(ctx, rel.UserAID, rel.UserBID)
	return nil
}

func (r *relationshipRepository) ListForUser(ctx context.Context, userID uint, filter RelationshipFilter) ([]models.Relationship, error) {
	defer observability.TrackQuery("list", "relationships")()

	q := r.db.WithContext(ctx).Model(&models.Relationship{})
	switch filter.Position {
	case PositionA:
		q = q.Where("user_a_id = ?", userID)
	case PositionB:
		q = q.Where("user_b_id = ?", userID)
	default:
		q = q.Where("user_a_id = ? OR user_b_id = ?", userID, userID)
	}
	if len(filter.Kinds) > 0 {
		q = q.Where("kind IN ?", filter.Kinds)
	}

	var rels []models.Relationship
	if err := q.Order("last_changed DESC").Find(&rels).Error; err != nil {
		r.log.LogError(ctx, err, "list")
		return nil, models.NewInternalError(err)
	}
	return rels, nil
}

// Counts tallies friends (either endpoint), coaches (user is B of
// A_COACHES_B) and students (user is A of A_COACHES_B).
func (r *relationshipRepository) Counts(ctx context.Context, userID uint) (models.CourtshipCounts, error) {
	return cache.Aside(ctx, cache.CountsKey(userID), cache.CountsTTL, func(ctx context.Context) (models.CourtshipCounts, error) {
		defer observability.TrackQuery("counts", "relationships")()

		var counts models.CourtshipCounts
		db := r.db.WithContext(ctx).Model(&models.Relationship{})
		if err := db.Session(&gorm.Session{}).
			Where("kind = ? AND (user_a_id = ? OR user_b_id = ?)", models.KindFriends, userID, userID).
			Count(&counts.Friends).Error; err != nil {
			return counts, models.NewInternalError(err)
		}
		if err := db.Session(&gorm.Session{}).
			Where("kind = ? AND user_b_id = ?", models.KindACoachesB, userID).
			Count(&counts.Coaches).Error; err != nil {
			return counts, models.NewInternalError(err)
		}
		if err := db.Session(&gorm.Session{}).
			Where("kind = ? AND user_a_id = ?", models.KindACoachesB, userID).
			Count(&counts.Students).Error; err != nil {
			return counts, models.NewInternalError(err)
		}
		return counts, nil
	})
}
