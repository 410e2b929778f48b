package models

// Visibility is the default tier applied to an upload when no explicit
// share grants the viewer access.
type Visibility string

const (
	VisibilityPrivate           Visibility = "private"
	VisibilityCoachesOnly       Visibility = "coaches-only"
	VisibilityFriendsOnly       Visibility = "friends-only"
	VisibilityFriendsAndCoaches Visibility = "friends-and-coaches"
	VisibilityPublic            Visibility = "public"
)

// Valid reports whether v is one of the known tiers.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityCoachesOnly, VisibilityFriendsOnly,
		VisibilityFriendsAndCoaches, VisibilityPublic:
		return true
	}
	return false
}

// VisibilityBlock is the outward visibility shape of an upload.
type VisibilityBlock struct {
	Default        Visibility `json:"default"`
	AlsoSharedWith []uint     `json:"also_shared_with"`
}
