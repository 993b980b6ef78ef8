package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sujalbistaa/postwall/internal/models"
	"github.com/sujalbistaa/postwall/internal/posts"
)

const defaultMongoDatabase = "postwall"

// postDoc keeps comments and likers embedded in the post document.
type postDoc struct {
	ID        string       `bson:"_id"`
	AuthorID  string       `bson:"authorId"`
	Content   string       `bson:"content"`
	ImageRef  string       `bson:"image,omitempty"`
	LikedBy   []string     `bson:"likedBy"`
	Comments  []commentDoc `bson:"comments"`
	CreatedAt time.Time    `bson:"createdAt"`
	UpdatedAt time.Time    `bson:"updatedAt"`
}

type commentDoc struct {
	AuthorID  string    `bson:"authorId"`
	Text      string    `bson:"text"`
	CreatedAt time.Time `bson:"createdAt"`
}

type userDoc struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	Email     string    `bson:"email"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoStore is the document Store: one posts collection with embedded comments.
type MongoStore struct {
	client *mongo.Client
	posts  *mongo.Collection
	users  *mongo.Collection
}

func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = defaultMongoDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	slog.Info("Database connection established.", "database", database)
	mdb := client.Database(database)
	return &MongoStore{
		client: client,
		posts:  mdb.Collection("posts"),
		users:  mdb.Collection("users"),
	}, nil
}

func (s *MongoStore) Posts() posts.Repository { return &mongoPostRepo{posts: s.posts, users: s.users} }

func (s *MongoStore) Users() UserStore { return &mongoUserRepo{users: s.users} }

func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "authorId", Value: 1}}},
	})
	return err
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type mongoUserRepo struct {
	users *mongo.Collection
}

func (r *mongoUserRepo) Upsert(ctx context.Context, user models.User) error {
	_, err := r.users.UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{"username": user.Username, "email": user.Email, "updatedAt": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	return err
}

type mongoPostRepo struct {
	posts *mongo.Collection
	users *mongo.Collection
}

func (r *mongoPostRepo) Create(ctx context.Context, post *models.Post) error {
	doc := postDoc{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		Content:   post.Content,
		ImageRef:  post.ImageRef,
		LikedBy:   []string{},
		Comments:  []commentDoc{},
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
	_, err := r.posts.InsertOne(ctx, doc)
	return err
}

func (r *mongoPostRepo) List(ctx context.Context) ([]*models.Post, error) {
	cur, err := r.posts.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	list := make([]*models.Post, 0, len(docs))
	ids := models.NewUserSet()
	for i := range docs {
		p := docs[i].toModel()
		for _, id := range p.AuthorIDs() {
			ids.Add(id)
		}
		list = append(list, p)
	}

	users, err := r.lookupUsers(ctx, ids.Sorted())
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		p.ResolveAuthors(users)
	}
	return list, nil
}

func (r *mongoPostRepo) Get(ctx context.Context, postID string) (*models.Post, error) {
	var doc postDoc
	if err := r.posts.FindOne(ctx, bson.M{"_id": postID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, posts.NewNotFoundError("post", postID)
		}
		return nil, err
	}
	p := doc.toModel()
	users, err := r.lookupUsers(ctx, p.AuthorIDs())
	if err != nil {
		return nil, err
	}
	p.ResolveAuthors(users)
	return p, nil
}

// ToggleLike pulls the user when present, otherwise adds it. Each step is a
// single-document update, so concurrent toggles resolve last-write-wins.
func (r *mongoPostRepo) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	now := time.Now().UTC()
	res, err := r.posts.UpdateOne(ctx,
		bson.M{"_id": postID, "likedBy": userID},
		bson.M{"$pull": bson.M{"likedBy": userID}, "$set": bson.M{"updatedAt": now}},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return false, nil
	}

	res, err = r.posts.UpdateOne(ctx,
		bson.M{"_id": postID},
		bson.M{"$addToSet": bson.M{"likedBy": userID}, "$set": bson.M{"updatedAt": now}},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, posts.NewNotFoundError("post", postID)
	}
	return true, nil
}

func (r *mongoPostRepo) AppendComment(ctx context.Context, postID string, comment models.Comment) error {
	doc := commentDoc{AuthorID: comment.AuthorID, Text: comment.Text, CreatedAt: comment.CreatedAt}
	res, err := r.posts.UpdateOne(ctx,
		bson.M{"_id": postID},
		bson.M{"$push": bson.M{"comments": doc}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return posts.NewNotFoundError("post", postID)
	}
	return nil
}

func (r *mongoPostRepo) Update(ctx context.Context, postID string, changes posts.Changes) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if changes.Content != nil {
		set["content"] = *changes.Content
	}
	if changes.ImageRef != nil {
		set["image"] = *changes.ImageRef
	}
	res, err := r.posts.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return posts.NewNotFoundError("post", postID)
	}
	return nil
}

func (r *mongoPostRepo) Delete(ctx context.Context, postID string) error {
	res, err := r.posts.DeleteOne(ctx, bson.M{"_id": postID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return posts.NewNotFoundError("post", postID)
	}
	return nil
}

func (r *mongoPostRepo) lookupUsers(ctx context.Context, ids []string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, u := range docs {
		out[u.ID] = models.User{ID: u.ID, Username: u.Username, Email: u.Email}
	}
	return out, nil
}

func (d *postDoc) toModel() *models.Post {
	p := &models.Post{
		ID:        d.ID,
		AuthorID:  d.AuthorID,
		Content:   d.Content,
		ImageRef:  d.ImageRef,
		LikedBy:   models.NewUserSet(d.LikedBy...),
		Comments:  make([]models.Comment, 0, len(d.Comments)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, c := range d.Comments {
		p.Comments = append(p.Comments, models.Comment{
			AuthorID:  c.AuthorID,
			Text:      c.Text,
			CreatedAt: c.CreatedAt,
		})
	}
	return p
}
