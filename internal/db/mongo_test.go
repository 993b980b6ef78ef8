package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/sujalbistaa/postwall/internal/models"
	"github.com/sujalbistaa/postwall/internal/posts"
)

const mockNS = "test.posts"

func mockRepo(mt *mtest.T) *mongoPostRepo {
	return &mongoPostRepo{posts: mt.Coll, users: mt.DB.Collection("users")}
}

func updated(n int32) bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: n},
		bson.E{Key: "nModified", Value: n},
	)
}

func postDocument(id, author string, createdAt time.Time, likedBy bson.A, comments bson.A) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "authorId", Value: author},
		{Key: "content", Value: "post " + id},
		{Key: "likedBy", Value: likedBy},
		{Key: "comments", Value: comments},
		{Key: "createdAt", Value: createdAt},
		{Key: "updatedAt", Value: createdAt},
	}
}

func TestMongoPostRepo_Mock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	mt.Run("get maps document and resolves authors", func(mt *mtest.T) {
		comments := bson.A{
			bson.D{{Key: "authorId", Value: "u2"}, {Key: "text", Value: "first"}, {Key: "createdAt", Value: created}},
			bson.D{{Key: "authorId", Value: "u3"}, {Key: "text", Value: "second"}, {Key: "createdAt", Value: created}},
		}
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, mockNS, mtest.FirstBatch,
				postDocument("p1", "u1", created, bson.A{"u3", "u2"}, comments)),
			mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "u1"}, {Key: "username", Value: "alice"}},
				bson.D{{Key: "_id", Value: "u2"}, {Key: "username", Value: "bob"}},
			),
		)

		p, err := mockRepo(mt).Get(ctx, "p1")
		require.NoError(mt, err)
		assert.Equal(mt, "p1", p.ID)
		assert.True(mt, p.CreatedAt.Equal(created))
		assert.Equal(mt, []string{"u2", "u3"}, p.LikedBy.Sorted())
		assert.Equal(mt, "alice", p.Author.Username)
		require.Len(mt, p.Comments, 2)
		assert.Equal(mt, "first", p.Comments[0].Text)
		assert.Equal(mt, "bob", p.Comments[0].Author.Username)
		assert.Equal(mt, "second", p.Comments[1].Text)
		assert.Equal(mt, &models.User{ID: "u3"}, p.Comments[1].Author)
	})

	mt.Run("get missing post", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mockNS, mtest.FirstBatch))

		_, err := mockRepo(mt).Get(ctx, "nope")
		assert.True(mt, posts.IsNotFound(err))
	})

	mt.Run("list keeps server order", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, mockNS, mtest.FirstBatch,
				postDocument("p2", "u1", created.Add(time.Minute), bson.A{}, bson.A{}),
				postDocument("p1", "u1", created, bson.A{}, bson.A{}),
			),
			mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "u1"}, {Key: "username", Value: "alice"}},
			),
		)

		list, err := mockRepo(mt).List(ctx)
		require.NoError(mt, err)
		require.Len(mt, list, 2)
		assert.Equal(mt, "p2", list[0].ID)
		assert.Equal(mt, "p1", list[1].ID)
		assert.Equal(mt, "alice", list[1].Author.Username)
	})

	mt.Run("toggle removes an existing like", func(mt *mtest.T) {
		mt.AddMockResponses(updated(1))

		liked, err := mockRepo(mt).ToggleLike(ctx, "p1", "u2")
		require.NoError(mt, err)
		assert.False(mt, liked)
	})

	mt.Run("toggle adds a missing like", func(mt *mtest.T) {
		mt.AddMockResponses(updated(0), updated(1))

		liked, err := mockRepo(mt).ToggleLike(ctx, "p1", "u2")
		require.NoError(mt, err)
		assert.True(mt, liked)
	})

	mt.Run("toggle on missing post", func(mt *mtest.T) {
		mt.AddMockResponses(updated(0), updated(0))

		_, err := mockRepo(mt).ToggleLike(ctx, "nope", "u2")
		assert.True(mt, posts.IsNotFound(err))
	})

	mt.Run("comment and update on missing post", func(mt *mtest.T) {
		mt.AddMockResponses(updated(0), updated(0))
		repo := mockRepo(mt)
		content := "x"

		err := repo.AppendComment(ctx, "nope", models.Comment{AuthorID: "u2", Text: "hi", CreatedAt: created})
		assert.True(mt, posts.IsNotFound(err))
		err = repo.Update(ctx, "nope", posts.Changes{Content: &content})
		assert.True(mt, posts.IsNotFound(err))
	})

	mt.Run("comment and update on existing post", func(mt *mtest.T) {
		mt.AddMockResponses(updated(1), updated(1))
		repo := mockRepo(mt)
		content := "x"

		assert.NoError(mt, repo.AppendComment(ctx, "p1", models.Comment{AuthorID: "u2", Text: "hi", CreatedAt: created}))
		assert.NoError(mt, repo.Update(ctx, "p1", posts.Changes{Content: &content}))
	})

	mt.Run("delete", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}),
		)
		repo := mockRepo(mt)

		assert.NoError(mt, repo.Delete(ctx, "p1"))
		assert.True(mt, posts.IsNotFound(repo.Delete(ctx, "p1")))
	})
}

// TestMongoStore_Integration runs against a real server when MONGO_TEST_URL is set.
func TestMongoStore_Integration(t *testing.T) {
	url := os.Getenv("MONGO_TEST_URL")
	if url == "" {
		t.Skip("MONGO_TEST_URL not set")
	}
	ctx := context.Background()

	database := fmt.Sprintf("postwall_test_%s", uuid.NewString()[:8])
	store, err := OpenMongo(ctx, url, database)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.client.Database(database).Drop(context.Background())
		_ = store.Close(context.Background())
	})
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Users().Upsert(ctx, models.User{ID: "u1", Username: "alice"}))

	repo := store.Posts()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	seedPost(t, repo, "p1", "u1", base)
	seedPost(t, repo, "p2", "u1", base.Add(time.Minute))

	t.Run("newest first", func(t *testing.T) {
		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "p2", list[0].ID)
		assert.Equal(t, "alice", list[0].Author.Username)
	})

	t.Run("toggle is its own inverse", func(t *testing.T) {
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

		_, err = repo.ToggleLike(ctx, "nope", "u2")
		assert.True(t, posts.IsNotFound(err))
	})

	t.Run("comments append at the end", func(t *testing.T) {
		for _, text := range []string{"one", "two", "three"} {
			require.NoError(t, repo.AppendComment(ctx, "p1", models.Comment{AuthorID: "u2", Text: text, CreatedAt: base}))
		}
		p, err := repo.Get(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, p.Comments, 3)
		assert.Equal(t, "one", p.Comments[0].Text)
		assert.Equal(t, "three", p.Comments[2].Text)
	})

	t.Run("update and delete", func(t *testing.T) {
		ref := "/uploads/new.png"
		require.NoError(t, repo.Update(ctx, "p2", posts.Changes{ImageRef: &ref}))
		p, err := repo.Get(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, ref, p.ImageRef)

		require.NoError(t, repo.Delete(ctx, "p2"))
		_, err = repo.Get(ctx, "p2")
		assert.True(t, posts.IsNotFound(err))
		assert.True(t, posts.IsNotFound(repo.Delete(ctx, "p2")))
	})
}
