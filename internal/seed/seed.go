package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"courtside/internal/middleware"
	"courtside/internal/models"
	"courtside/internal/service"

	"gorm.io/gorm"
)

// Options controls how much data Seed creates.
type Options struct {
	Users            int
	BucketsPerUser   int
	UploadsPerBucket int
	CommentsPerUser  int
	// CourtshipRatio is the chance in percent that any two users are courting.
	CourtshipRatio int
	Clean          bool
	RandSeed       int64
}

// DefaultOptions returns the settings used by cmd/seed when no flags are given.
func DefaultOptions() Options {
	return Options{
		Users:            20,
		BucketsPerUser:   2,
		UploadsPerBucket: 3,
		CommentsPerUser:  4,
		CourtshipRatio:   25,
		Clean:            true,
		RandSeed:         1,
	}
}

// Summary reports what Seed created.
type Summary struct {
	Users      int
	Buckets    int
	Uploads    int
	Comments   int
	Courtships int
	Requests   int
}

// Seed fills db according to opts.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (Summary, error) {
	var sum Summary
	if opts.Clean {
		if err := ClearAll(db); err != nil {
			return sum, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	f := NewFactory(db, opts.RandSeed)

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u, err := f.CreateUser(ctx, i)
		if err != nil {
			return sum, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)
	middleware.Logger.Info("seeded users", slog.Int("count", sum.Users))

	for i, a := range users {
		for _, b := range users[i+1:] {
			if f.faker.IntRange(1, 100) > opts.CourtshipRatio {
				continue
			}
			accept := f.faker.Bool()
			if _, err := f.Court(ctx, a, b, accept); err != nil {
				return sum, fmt.Errorf("failed to court: %w", err)
			}
			if accept {
				sum.Courtships++
			} else {
				sum.Requests++
			}
		}
	}
	middleware.Logger.Info("seeded courtships",
		slog.Int("established", sum.Courtships),
		slog.Int("pending", sum.Requests))

	var uploads []*service.UploadView
	for _, owner := range users {
		for b := 0; b < opts.BucketsPerUser; b++ {
			bucket, err := f.CreateBucket(ctx, owner, b)
			if err != nil {
				return sum, fmt.Errorf("failed to create bucket: %w", err)
			}
			sum.Buckets++
			for u := 0; u < opts.UploadsPerBucket; u++ {
				view, err := f.CreateUpload(ctx, owner, bucket, users)
				if err != nil {
					return sum, fmt.Errorf("failed to create upload: %w", err)
				}
				uploads = append(uploads, view)
			}
		}
	}
	sum.Uploads = len(uploads)

	if len(uploads) > 0 {
		for _, author := range users {
			for c := 0; c < opts.CommentsPerUser; c++ {
				target := uploads[f.faker.IntRange(0, len(uploads)-1)]
				_, err := f.CreateComment(ctx, author, target)
				if errors.Is(err, models.ErrForbidden) {
					continue
				}
				if err != nil {
					return sum, fmt.Errorf("failed to create comment: %w", err)
				}
				sum.Comments++
			}
		}
	}

	middleware.Logger.Info("seeded content",
		slog.Int("buckets", sum.Buckets),
		slog.Int("uploads", sum.Uploads),
		slog.Int("comments", sum.Comments))
	return sum, nil
}

// ClearAll removes every row the seeder can create, children first.
func ClearAll(db *gorm.DB) error {
	tx := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []interface{}{
		&models.Comment{},
		&models.UploadShare{},
		&models.Upload{},
		&models.Bucket{},
		&models.Relationship{},
		&models.User{},
	} {
		if err := tx.Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
