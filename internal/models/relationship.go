package models

import (
	"time"

	"gorm.io/gorm"
)

// RelationshipKind is the state of the edge between two users.
type RelationshipKind string

const (
	// KindFriendRequested means A asked B to become friends.
	KindFriendRequested RelationshipKind = "FRIEND_REQUESTED"
	// KindCoachRequested means A asked B to become A's coach.
	KindCoachRequested RelationshipKind = "COACH_REQUESTED"
	// KindStudentRequested means A asked B to become A's student.
	KindStudentRequested RelationshipKind = "STUDENT_REQUESTED"
	// KindFriends means A and B are mutual friends.
	KindFriends RelationshipKind = "FRIENDS"
	// KindACoachesB means A is B's coach.
	KindACoachesB RelationshipKind = "A_COACHES_B"

	// Block states are storable but no courtship transition leads into them.
	KindABlockedB     RelationshipKind = "A_BLOCKED_B"
	KindBBlockedA     RelationshipKind = "B_BLOCKED_A"
	KindMutualBlocked RelationshipKind = "MUTUAL_BLOCKED"
)

// IsRequest reports whether the kind is a pending request.
func (k RelationshipKind) IsRequest() bool {
	switch k {
	case KindFriendRequested, KindCoachRequested, KindStudentRequested:
		return true
	}
	return false
}

// IsEstablished reports whether the kind is an accepted courtship.
func (k RelationshipKind) IsEstablished() bool {
	return k == KindFriends || k == KindACoachesB
}

// Courtship type names used on the wire.
const (
	CourtshipFriend     = "friend"
	CourtshipCoach      = "coach"
	CourtshipStudent    = "student"
	CourtshipFriendReq  = "friend-req"
	CourtshipCoachReq   = "coach-req"
	CourtshipStudentReq = "student-req"

	DirIn  = "in"
	DirOut = "out"
)

// RequestKindOf parses a request type. Both the bare form ("coach") and the
// request form ("coach-req") are accepted.
func RequestKindOf(s string) (RelationshipKind, bool) {
	switch s {
	case CourtshipFriend, CourtshipFriendReq:
		return KindFriendRequested, true
	case CourtshipCoach, CourtshipCoachReq:
		return KindCoachRequested, true
	case CourtshipStudent, CourtshipStudentReq:
		return KindStudentRequested, true
	}
	return "", false
}

// Relationship is the single edge stored for an unordered pair of users.
// The (UserAID, UserBID) order carries meaning for coaching and requests and
// is never normalized. PairLow/PairHigh hold min/max of the two ids and exist
// only so storage can enforce one edge per unordered pair.
type Relationship struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	UserAID     uint             `gorm:"not null;uniqueIndex:idx_relationship_users;index" json:"user_a_id"`
	UserBID     uint             `gorm:"not null;uniqueIndex:idx_relationship_users;index" json:"user_b_id"`
	PairLow     uint             `gorm:"not null;uniqueIndex:idx_relationship_pair" json:"-"`
	PairHigh    uint             `gorm:"not null;uniqueIndex:idx_relationship_pair" json:"-"`
	Kind        RelationshipKind `gorm:"type:varchar(32);not null;index:idx_relationships_kind" json:"kind"`
	LastChanged time.Time        `gorm:"not null" json:"last_changed"`
	CreatedAt   time.Time        `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Relationship) TableName() string {
	return "relationships"
}

// BeforeCreate fills the unordered pair key and the change timestamp.
func (r *Relationship) BeforeCreate(_ *gorm.DB) error {
	r.PairLow, r.PairHigh = PairKey(r.UserAID, r.UserBID)
	if r.LastChanged.IsZero() {
		r.LastChanged = time.Now().UTC()
	}
	return nil
}

// PairKey returns the two ids ordered low, high.
func PairKey(u1, u2 uint) (uint, uint) {
	if u1 < u2 {
		return u1, u2
	}
	return u2, u1
}

// Involves reports whether userID is one of the two endpoints.
func (r *Relationship) Involves(userID uint) bool {
	return r.UserAID == userID || r.UserBID == userID
}

// Other returns the endpoint that is not userID.
func (r *Relationship) Other(userID uint) uint {
	if r.UserAID == userID {
		return r.UserBID
	}
	return r.UserAID
}

// RelationshipSummary is the edge as seen by one of its endpoints.
type RelationshipSummary struct {
	Type string `json:"type"`
	Dir  string `json:"dir,omitempty"`
}

// SummaryFor describes the role of the other user from viewer's side.
// It returns nil when viewer is not an endpoint or the kind has no
// outward representation.
func (r *Relationship) SummaryFor(viewer uint) *RelationshipSummary {
	if r == nil || !r.Involves(viewer) {
		return nil
	}

	var typ string
	switch r.Kind {
	case KindFriends:
		typ = CourtshipFriend
	case KindACoachesB:
		if r.UserAID == viewer {
			typ = CourtshipStudent
		} else {
			typ = CourtshipCoach
		}
	case KindFriendRequested:
		typ = CourtshipFriendReq
	case KindCoachRequested:
		typ = CourtshipCoachReq
	case KindStudentRequested:
		typ = CourtshipStudentReq
	default:
		return nil
	}

	s := &RelationshipSummary{Type: typ}
	if r.Kind.IsRequest() {
		if r.UserAID == viewer {
			s.Dir = DirOut
		} else {
			s.Dir = DirIn
		}
	}
	return s
}

// CourtshipCounts tallies a user's established courtships by role.
type CourtshipCounts struct {
	Friends  int64 `json:"friends"`
	Coaches  int64 `json:"coaches"`
	Students int64 `json:"students"`
}
