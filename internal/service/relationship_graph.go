// Package service holds the courtship state machine, the visibility
// resolver and the content services built on them.
package service

import (
	"context"

	"courtside/internal/models"
	"courtside/internal/repository"
)

// RelationshipGraph keeps at most one edge per unordered pair of users.
type RelationshipGraph struct {
	repo repository.RelationshipRepository
}

// NewRelationshipGraph returns a graph backed by repo.
func NewRelationshipGraph(repo repository.RelationshipRepository) *RelationshipGraph {
	return &RelationshipGraph{repo: repo}
}

// Lookup returns the edge between u1 and u2 in whichever order it was
// stored, or nil when there is none.
func (g *RelationshipGraph) Lookup(ctx context.Context, u1, u2 uint) (*models.Relationship, error) {
	return g.repo.Lookup(ctx, u1, u2)
}

// Create inserts the edge (userA, userB, kind).
func (g *RelationshipGraph) Create(ctx context.Context, userA, userB uint, kind models.RelationshipKind) (*models.Relationship, error) {
	if userA == userB {
		return nil, models.NewSelfRelationshipError()
	}
	existing, err := g.repo.Lookup(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewDuplicateRelationshipError()
	}

	rel := &models.Relationship{UserAID: userA, UserBID: userB, Kind: kind}
	// a concurrent insert for the same pair loses on the pair index
	if err := g.repo.Create(ctx, rel); err != nil {
		return nil, err
	}
	return rel, nil
}

// Mutate changes rel's kind in place, swapping the endpoints when swap is set.
func (g *RelationshipGraph) Mutate(ctx context.Context, rel *models.Relationship, kind models.RelationshipKind, swap bool) error {
	return g.repo.Mutate(ctx, rel, kind, swap)
}

// Remove deletes rel.
func (g *RelationshipGraph) Remove(ctx context.Context, rel *models.Relationship) error {
	return g.repo.Remove(ctx, rel)
}

// FriendsWith reports whether u and other are friends, in either stored order.
func (g *RelationshipGraph) FriendsWith(ctx context.Context, u, other uint) (bool, error) {
	rel, err := g.repo.Lookup(ctx, u, other)
	if err != nil || rel == nil {
		return false, err
	}
	return rel.Kind == models.KindFriends, nil
}

// Coaches reports whether coach is recorded as student's coach. The
// predicate is directional.
func (g *RelationshipGraph) Coaches(ctx context.Context, coach, student uint) (bool, error) {
	rel, err := g.repo.Lookup(ctx, coach, student)
	if err != nil || rel == nil {
		return false, err
	}
	return rel.Kind == models.KindACoachesB && rel.UserAID == coach && rel.UserBID == student, nil
}

// Counts tallies userID's established courtships by role.
func (g *RelationshipGraph) Counts(ctx context.Context, userID uint) (models.CourtshipCounts, error) {
	return g.repo.Counts(ctx, userID)
}

// List returns the edges touching userID that match filter.
func (g *RelationshipGraph) List(ctx context.Context, userID uint, filter repository.RelationshipFilter) ([]models.Relationship, error) {
	return g.repo.ListForUser(ctx, userID, filter)
}
