package service

import (
	"context"
	"sync"
	"testing"

	"courtside/internal/media"
	"courtside/internal/models"
	"courtside/internal/notifications"
	"courtside/internal/repository"
	"courtside/internal/testutil"

	"gorm.io/gorm"
)

type relRepoStub struct {
	lookupFn      func(context.Context, uint, uint) (*models.Relationship, error)
	createFn      func(context.Context, *models.Relationship) error
	mutateFn      func(context.Context, *models.Relationship, models.RelationshipKind, bool) error
	removeFn      func(context.Context, *models.Relationship) error
	listForUserFn func(context.Context, uint, repository.RelationshipFilter) ([]models.Relationship, error)
	countsFn      func(context.Context, uint) (models.CourtshipCounts, error)
}

func (s *relRepoStub) Lookup(ctx context.Context, u1, u2 uint) (*models.Relationship, error) {
	return s.lookupFn(ctx, u1, u2)
}
func (s *relRepoStub) Create(ctx context.Context, rel *models.Relationship) error {
	return s.createFn(ctx, rel)
}
func (s *relRepoStub) Mutate(ctx context.Context, rel *models.Relationship, kind models.RelationshipKind, swap bool) error {
	return s.mutateFn(ctx, rel, kind, swap)
}
func (s *relRepoStub) Remove(ctx context.Context, rel *models.Relationship) error {
	return s.removeFn(ctx, rel)
}
func (s *relRepoStub) ListForUser(ctx context.Context, userID uint, filter repository.RelationshipFilter) ([]models.Relationship, error) {
	return s.listForUserFn(ctx, userID, filter)
}
func (s *relRepoStub) Counts(ctx context.Context, userID uint) (models.CourtshipCounts, error) {
	return s.countsFn(ctx, userID)
}

func noopRelRepo() *relRepoStub {
	return &relRepoStub{
		lookupFn: func(context.Context, uint, uint) (*models.Relationship, error) { return nil, nil },
		createFn: func(context.Context, *models.Relationship) error { return nil },
		mutateFn: func(_ context.Context, rel *models.Relationship, kind models.RelationshipKind, swap bool) error {
			rel.Kind = kind
			if swap {
				rel.UserAID, rel.UserBID = rel.UserBID, rel.UserAID
			}
			return nil
		},
		removeFn: func(context.Context, *models.Relationship) error { return nil },
		listForUserFn: func(context.Context, uint, repository.RelationshipFilter) ([]models.Relationship, error) {
			return nil, nil
		},
		countsFn: func(context.Context, uint) (models.CourtshipCounts, error) { return models.CourtshipCounts{}, nil },
	}
}

type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getByIDsFn       func(context.Context, []uint) ([]models.User, error)
	getByUsernameFn  func(context.Context, string) (*models.User, error)
	usernameTakenFn  func(context.Context, string) (bool, error)
	createFn         func(context.Context, *models.User) error
	updateFn         func(context.Context, *models.User) error
	searchByPrefixFn func(context.Context, string, int) ([]models.User, error)
	deleteCascadeFn  func(context.Context, uint) ([]uint, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	return s.getByIDsFn(ctx, ids)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return s.usernameTakenFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) SearchByPrefix(ctx context.Context, prefix string, limit int) ([]models.User, error) {
	return s.searchByPrefixFn(ctx, prefix, limit)
}
func (s *userRepoStub) DeleteCascade(ctx context.Context, id uint) ([]uint, error) {
	return s.deleteCascadeFn(ctx, id)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByIDsFn: func(_ context.Context, ids []uint) ([]models.User, error) {
			users := make([]models.User, 0, len(ids))
			for _, id := range ids {
				users = append(users, models.User{ID: id})
			}
			return users, nil
		},
		getByUsernameFn:  func(context.Context, string) (*models.User, error) { return nil, nil },
		usernameTakenFn:  func(context.Context, string) (bool, error) { return false, nil },
		createFn:         func(context.Context, *models.User) error { return nil },
		updateFn:         func(context.Context, *models.User) error { return nil },
		searchByPrefixFn: func(context.Context, string, int) ([]models.User, error) { return nil, nil },
		deleteCascadeFn:  func(context.Context, uint) ([]uint, error) { return nil, nil },
	}
}

// uploadRepoStub embeds the interface so tests only set what they exercise.
type uploadRepoStub struct {
	repository.UploadRepository
	getByIDFn               func(context.Context, uint) (*models.Upload, error)
	listByBucketFn          func(context.Context, uint) ([]models.Upload, error)
	countViewableInBucketFn func(context.Context, uint, uint) (int64, error)
}

func (s *uploadRepoStub) GetByID(ctx context.Context, id uint) (*models.Upload, error) {
	return s.getByIDFn(ctx, id)
}
func (s *uploadRepoStub) ListByBucket(ctx context.Context, bucketID uint) ([]models.Upload, error) {
	return s.listByBucketFn(ctx, bucketID)
}
func (s *uploadRepoStub) CountViewableInBucket(ctx context.Context, bucketID, viewerID uint) (int64, error) {
	return s.countViewableInBucketFn(ctx, bucketID, viewerID)
}

type courtshipReaderStub struct {
	friendsWithFn func(context.Context, uint, uint) (bool, error)
	coachesFn     func(context.Context, uint, uint) (bool, error)
}

func (s *courtshipReaderStub) FriendsWith(ctx context.Context, u, other uint) (bool, error) {
	return s.friendsWithFn(ctx, u, other)
}
func (s *courtshipReaderStub) Coaches(ctx context.Context, coach, student uint) (bool, error) {
	return s.coachesFn(ctx, coach, student)
}

type grantReaderStub struct {
	containsFn func(context.Context, uint, uint) (bool, error)
}

func (s *grantReaderStub) Contains(ctx context.Context, uploadID, userID uint) (bool, error) {
	return s.containsFn(ctx, uploadID, userID)
}

type publishedEvent struct {
	to    uint
	event notifications.Event
}

type eventRecorder struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (r *eventRecorder) PublishUser(_ context.Context, userID uint, event notifications.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{to: userID, event: event})
	return nil
}

func (r *eventRecorder) types(to uint) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.to == to {
			out = append(out, e.event.Type)
		}
	}
	return out
}

// stack wires every service over one in-memory database.
type stack struct {
	db         *gorm.DB
	events     *eventRecorder
	graph      *RelationshipGraph
	courtships *CourtshipService
	shares     *ShareSet
	policy     *VisibilityPolicy
	users      *UserDirectory
	buckets    *BucketService
	uploads    *UploadService
	comments   *CommentService
}

func newStack(t *testing.T) *stack {
	t.Helper()
	db := testutil.NewSQLiteDB(t)

	userRepo := repository.NewUserRepository(db)
	relRepo := repository.NewRelationshipRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	bucketRepo := repository.NewBucketRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	s := &stack{db: db, events: &eventRecorder{}}
	s.graph = NewRelationshipGraph(relRepo)
	s.courtships = NewCourtshipService(s.graph, userRepo, s.events)
	s.shares = NewShareSet(uploadRepo, userRepo)
	s.policy = NewVisibilityPolicy(s.graph, s.shares, uploadRepo, nil)
	s.users = NewUserDirectory(userRepo, s.graph, uploadRepo, media.Disabled{})
	s.buckets = NewBucketService(bucketRepo, userRepo, s.policy, media.Disabled{})
	s.uploads = NewUploadService(uploadRepo, bucketRepo, userRepo, s.shares, s.policy, media.Disabled{})
	s.comments = NewCommentService(commentRepo, uploadRepo, userRepo, s.policy)
	return s
}
