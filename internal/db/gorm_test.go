package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sujalbistaa/postwall/internal/models"
	"github.com/sujalbistaa/postwall/internal/posts"
)

func openTestStore(t *testing.T) *GormStore {
	t.Helper()
	store, err := OpenGorm(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), false)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func seedPost(t *testing.T, repo posts.Repository, id, author string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &models.Post{
		ID:        id,
		AuthorID:  author,
		Content:   "post " + id,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}))
}

func TestOpen_RejectsUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), Options{URL: "redis://localhost:6379"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid DATABASE_URL prefix")
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, Options{URL: "sqlite://" + filepath.Join(t.TempDir(), "open.db")})
	require.NoError(t, err)
	defer store.Close(ctx)

	require.NoError(t, store.Migrate(ctx))
	assert.NoError(t, store.Ping(ctx))
}

func TestGormPostRepo_ListNewestFirstWithAuthors(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	repo := store.Posts()
	require.NoError(t, store.Users().Upsert(ctx, models.User{ID: "u1", Username: "alice", Email: "a@example.com"}))

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	seedPost(t, repo, "p1", "u1", base)
	seedPost(t, repo, "p2", "u2", base.Add(time.Minute))
	seedPost(t, repo, "p3", "u1", base.Add(2*time.Minute))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "p3", list[0].ID)
	assert.Equal(t, "p2", list[1].ID)
	assert.Equal(t, "p1", list[2].ID)

	assert.Equal(t, "alice", list[0].Author.Username)
	assert.Equal(t, "a@example.com", list[0].Author.Email)
	// u2 never authenticated, so only the bare ID is known.
	assert.Equal(t, &models.User{ID: "u2"}, list[1].Author)
}

func TestGormPostRepo_ToggleLike(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Posts()
	seedPost(t, repo, "p1", "u1", time.Now())

	liked, err := repo.ToggleLike(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.True(t, liked)

	p, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, p.LikedBy.Sorted())

	liked, err = repo.ToggleLike(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.False(t, liked)

	p, err = repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.LikedBy.Len())

	_, err = repo.ToggleLike(ctx, "missing", "u2")
	assert.True(t, posts.IsNotFound(err))
}

func TestGormPostRepo_CommentsKeepAppendOrder(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Posts()
	seedPost(t, repo, "p1", "u1", time.Now())

	for _, text := range []string{"first", "second", "third"} {
		require.NoError(t, repo.AppendComment(ctx, "p1", models.Comment{AuthorID: "u2", Text: text, CreatedAt: time.Now()}))
	}

	p, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, p.Comments, 3)
	assert.Equal(t, "first", p.Comments[0].Text)
	assert.Equal(t, "second", p.Comments[1].Text)
	assert.Equal(t, "third", p.Comments[2].Text)

	err = repo.AppendComment(ctx, "missing", models.Comment{AuthorID: "u2", Text: "x"})
	assert.True(t, posts.IsNotFound(err))
}

func TestGormPostRepo_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Posts()
	seedPost(t, repo, "p1", "u1", time.Now())
	_, err := repo.ToggleLike(ctx, "p1", "u2")
	require.NoError(t, err)
	require.NoError(t, repo.AppendComment(ctx, "p1", models.Comment{AuthorID: "u2", Text: "hi", CreatedAt: time.Now()}))

	content, image := "edited", "/uploads/a.png"
	require.NoError(t, repo.Update(ctx, "p1", posts.Changes{Content: &content, ImageRef: &image}))

	p, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "edited", p.Content)
	assert.Equal(t, "/uploads/a.png", p.ImageRef)

	require.NoError(t, repo.Delete(ctx, "p1"))
	_, err = repo.Get(ctx, "p1")
	assert.True(t, posts.IsNotFound(err))
	assert.True(t, posts.IsNotFound(repo.Delete(ctx, "p1")))
	assert.True(t, posts.IsNotFound(repo.Update(ctx, "p1", posts.Changes{Content: &content})))

	// Children go with the post.
	seedPost(t, repo, "p1", "u1", time.Now())
	p, err = repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, p.Comments)
	assert.Equal(t, 0, p.LikedBy.Len())
}

func TestGormUserRepo_UpsertOverwritesProfile(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	users := store.Users()

	require.NoError(t, users.Upsert(ctx, models.User{ID: "u1", Username: "old"}))
	require.NoError(t, users.Upsert(ctx, models.User{ID: "u1", Username: "new", Email: "n@example.com"}))

	repo := store.Posts()
	seedPost(t, repo, "p1", "u1", time.Now())
	p, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "new", p.Author.Username)
	assert.Equal(t, "n@example.com", p.Author.Email)
}
