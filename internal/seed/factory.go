// Package seed populates a database with demo users, content and
// courtships. Everything is created through the service layer so seeded
// data obeys the same rules as API traffic.
package seed

import (
	"context"
	"fmt"
	"strings"

	"courtside/internal/models"
	"courtside/internal/repository"
	"courtside/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

var tiers = []string{
	string(models.VisibilityPrivate),
	string(models.VisibilityCoachesOnly),
	string(models.VisibilityFriendsOnly),
	string(models.VisibilityFriendsAndCoaches),
	string(models.VisibilityPublic),
}

var courtshipTypes = []string{
	models.CourtshipFriend,
	models.CourtshipCoach,
	models.CourtshipStudent,
}

// Factory builds domain entities through the services.
type Factory struct {
	faker      *gofakeit.Faker
	users      *service.UserDirectory
	buckets    *service.BucketService
	uploads    *service.UploadService
	comments   *service.CommentService
	courtships *service.CourtshipService
}

// NewFactory wires a Factory over db. The same seed yields the same data.
func NewFactory(db *gorm.DB, seed int64) *Factory {
	userRepo := repository.NewUserRepository(db)
	relRepo := repository.NewRelationshipRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	bucketRepo := repository.NewBucketRepository(db)

	graph := service.NewRelationshipGraph(relRepo)
	shares := service.NewShareSet(uploadRepo, userRepo)
	policy := service.NewVisibilityPolicy(graph, shares, uploadRepo, nil)

	return &Factory{
		faker:      gofakeit.New(seed),
		users:      service.NewUserDirectory(userRepo, graph, uploadRepo, nil),
		buckets:    service.NewBucketService(bucketRepo, userRepo, policy, nil),
		uploads:    service.NewUploadService(uploadRepo, bucketRepo, userRepo, shares, policy, nil),
		comments:   service.NewCommentService(repository.NewCommentRepository(db), uploadRepo, userRepo, policy),
		courtships: service.NewCourtshipService(graph, userRepo, nil),
	}
}

// CreateUser registers a user with a generated display name. The handle
// comes from the directory like any other signup.
func (f *Factory) CreateUser(ctx context.Context, n int) (*models.User, error) {
	name := f.faker.Name()
	local := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		return -1
	}, strings.ToLower(f.faker.FirstName()))
	if local == "" {
		local = "user"
	}
	email := fmt.Sprintf("%s.%d@courtside.test", local, n)
	return f.users.Register(ctx, service.NewUserInput{DisplayName: name, Email: email})
}

// CreateBucket creates a bucket for owner named after a random noun.
func (f *Factory) CreateBucket(ctx context.Context, owner *models.User, n int) (*service.BucketView, error) {
	name := fmt.Sprintf("%s %s %d", f.faker.Adjective(), f.faker.Noun(), n)
	return f.buckets.Create(ctx, owner.ID, name)
}

// CreateUpload files an upload in bucket with a random tier, shared with
// up to two of candidates.
func (f *Factory) CreateUpload(ctx context.Context, owner *models.User, bucket *service.BucketView, candidates []*models.User) (*service.UploadView, error) {
	block := &models.VisibilityBlock{Default: models.Visibility(f.faker.RandomString(tiers))}
	for _, u := range f.pick(candidates, f.faker.IntRange(0, 2)) {
		if u.ID != owner.ID {
			block.AlsoSharedWith = append(block.AlsoSharedWith, u.ID)
		}
	}
	return f.uploads.Create(ctx, owner.ID, service.CreateUploadInput{
		Filename:     f.faker.Word() + ".mp4",
		DisplayTitle: f.faker.Sentence(4),
		BucketID:     bucket.ID,
		Visibility:   block,
	})
}

// CreateComment posts a comment by author. It fails with Forbidden when
// author cannot see the upload.
func (f *Factory) CreateComment(ctx context.Context, author *models.User, upload *service.UploadView) (*models.Comment, error) {
	return f.comments.Create(ctx, author.ID, upload.ID, f.faker.Sentence(f.faker.IntRange(4, 14)))
}

// Court sends a request of a random type from a to b and, when accept is
// set, has b accept it.
func (f *Factory) Court(ctx context.Context, a, b *models.User, accept bool) (*models.Relationship, error) {
	rel, err := f.courtships.SendRequest(ctx, a.ID, b.ID, f.faker.RandomString(courtshipTypes))
	if err != nil || !accept {
		return rel, err
	}
	return f.courtships.Accept(ctx, b.ID, a.ID)
}

func (f *Factory) pick(users []*models.User, n int) []*models.User {
	if n > len(users) {
		n = len(users)
	}
	out := make([]*models.User, 0, n)
	seen := make(map[int]bool, n)
	for len(out) < n {
		i := f.faker.IntRange(0, len(users)-1)
		if seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, users[i])
	}
	return out
}
