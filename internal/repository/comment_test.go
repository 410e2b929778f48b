package repository

import (
	"context"
	"testing"

	"courtside/internal/models"
	"courtside/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	author := testutil.CreateUser(t, db, "author")
	up := testutil.CreateUpload(t, db, testutil.CreateBucket(t, db, owner, "b"), models.VisibilityPublic)

	c := &models.Comment{AuthorID: author.ID, UploadID: up.ID, Text: "great footwork"}
	require.NoError(t, repo.Create(ctx, c))
	assert.NotZero(t, c.ID)
	assert.Equal(t, "author", c.Author.Username)

	require.NoError(t, repo.Create(ctx, &models.Comment{AuthorID: owner.ID, UploadID: up.ID, Text: "thanks"}))

	onUpload, err := repo.ListByUpload(ctx, up.ID)
	require.NoError(t, err)
	require.Len(t, onUpload, 2)
	assert.Equal(t, c.ID, onUpload[0].ID)
	assert.Equal(t, "owner", onUpload[1].Author.Username)

	byAuthor, err := repo.ListByAuthor(ctx, author.ID)
	require.NoError(t, err)
	assert.Len(t, byAuthor, 1)

	require.NoError(t, repo.Delete(ctx, c.ID))
	_, err = repo.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, c.ID), models.ErrNotFound)
}
