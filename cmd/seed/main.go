// Command seed fills the configured database with demo data.
package main

import (
	"context"
	"flag"
	"log"

	"courtside/internal/config"
	"courtside/internal/database"
	"courtside/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	buckets := flag.Int("buckets", defaults.BucketsPerUser, "Buckets per user")
	uploads := flag.Int("uploads", defaults.UploadsPerBucket, "Uploads per bucket")
	comments := flag.Int("comments", defaults.CommentsPerUser, "Comment attempts per user")
	ratio := flag.Int("courtship-ratio", defaults.CourtshipRatio, "Percent chance that two users court")
	shouldClean := flag.Bool("clean", defaults.Clean, "Clean database before seeding")
	randSeed := flag.Int64("seed", defaults.RandSeed, "Random seed")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sum, err := seed.Seed(context.Background(), db, seed.Options{
		Users:            *numUsers,
		BucketsPerUser:   *buckets,
		UploadsPerBucket: *uploads,
		CommentsPerUser:  *comments,
		CourtshipRatio:   *ratio,
		Clean:            *shouldClean,
		RandSeed:         *randSeed,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d buckets, %d uploads, %d comments, %d courtships, %d pending requests",
		sum.Users, sum.Buckets, sum.Uploads, sum.Comments, sum.Courtships, sum.Requests)
}
