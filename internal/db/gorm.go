package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/postwall/internal/models"
	"github.com/sujalbistaa/postwall/internal/posts"
)

type userRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	Username  string `gorm:"size:100"`
	Email     string `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRow) TableName() string { return "users" }

type postRow struct {
	ID        string       `gorm:"primaryKey;size:36"`
	AuthorID  string       `gorm:"not null;index;size:64"`
	Content   string       `gorm:"type:text;not null;default:''"`
	ImageRef  string       `gorm:"not null;default:''"`
	Likes     []likeRow    `gorm:"foreignKey:PostID"`
	Comments  []commentRow `gorm:"foreignKey:PostID"`
	CreatedAt time.Time    `gorm:"index"`
	UpdatedAt time.Time
}

func (postRow) TableName() string { return "posts" }

// likeRow is one member of a post's liker set; the composite key keeps it unique.
type likeRow struct {
	PostID    string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"primaryKey;size:64"`
	CreatedAt time.Time
}

func (likeRow) TableName() string { return "post_likes" }

type commentRow struct {
	ID        uint   `gorm:"primaryKey"`
	PostID    string `gorm:"not null;index;size:36"`
	AuthorID  string `gorm:"not null;size:64"`
	Text      string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

func (commentRow) TableName() string { return "comments" }

// GormStore is the relational Store used for SQLite and PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

// OpenGorm opens a GORM connection on dialector.
func OpenGorm(dialector gorm.Dialector, verbose bool) (*GormStore, error) {
	level := logger.Silent
	if verbose {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(level),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	slog.Info("Database connection established.")
	return &GormStore{db: db}, nil
}

func (s *GormStore) Posts() posts.Repository { return &gormPostRepo{db: s.db} }

func (s *GormStore) Users() UserStore { return &gormUserRepo{db: s.db} }

func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&userRow{}, &postRow{}, &likeRow{}, &commentRow{})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormUserRepo struct {
	db *gorm.DB
}

func (r *gormUserRepo) Upsert(ctx context.Context, user models.User) error {
	row := userRow{ID: user.ID, Username: user.Username, Email: user.Email}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "email", "updated_at"}),
	}).Create(&row).Error
}

type gormPostRepo struct {
	db *gorm.DB
}

func (r *gormPostRepo) Create(ctx context.Context, post *models.Post) error {
	row := postRow{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		Content:   post.Content,
		ImageRef:  post.ImageRef,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *gormPostRepo) List(ctx context.Context) ([]*models.Post, error) {
	var rows []postRow
	if err := r.withChildren(ctx).Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}

	list := make([]*models.Post, 0, len(rows))
	ids := models.NewUserSet()
	for i := range rows {
		p := rows[i].toModel()
		for _, id := range p.AuthorIDs() {
			ids.Add(id)
		}
		list = append(list, p)
	}

	users, err := r.users(ctx, ids.Sorted())
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		p.ResolveAuthors(users)
	}
	return list, nil
}

func (r *gormPostRepo) Get(ctx context.Context, postID string) (*models.Post, error) {
	var row postRow
	if err := r.withChildren(ctx).First(&row, "id = ?", postID).Error; err != nil {
		return nil, notFound(err, postID)
	}
	p := row.toModel()
	users, err := r.users(ctx, p.AuthorIDs())
	if err != nil {
		return nil, err
	}
	p.ResolveAuthors(users)
	return p, nil
}

func (r *gormPostRepo) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	var liked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postID); err != nil {
			return err
		}

		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&likeRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			liked = true
			like := likeRow{PostID: postID, UserID: userID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
				return err
			}
		}
		return touch(tx, postID)
	})
	return liked, err
}

func (r *gormPostRepo) AppendComment(ctx context.Context, postID string, comment models.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postID); err != nil {
			return err
		}
		row := commentRow{
			PostID:    postID,
			AuthorID:  comment.AuthorID,
			Text:      comment.Text,
			CreatedAt: comment.CreatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return touch(tx, postID)
	})
}

func (r *gormPostRepo) Update(ctx context.Context, postID string, changes posts.Changes) error {
	values := map[string]interface{}{}
	if changes.Content != nil {
		values["content"] = *changes.Content
	}
	if changes.ImageRef != nil {
		values["image_ref"] = *changes.ImageRef
	}
	if len(values) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).Model(&postRow{}).Where("id = ?", postID).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return posts.NewNotFoundError("post", postID)
	}
	return nil
}

func (r *gormPostRepo) Delete(ctx context.Context, postID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", postID).Delete(&postRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return posts.NewNotFoundError("post", postID)
		}
		if err := tx.Where("post_id = ?", postID).Delete(&likeRow{}).Error; err != nil {
			return err
		}
		return tx.Where("post_id = ?", postID).Delete(&commentRow{}).Error
	})
}

func (r *gormPostRepo) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Likes").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("id asc")
		})
}

func (r *gormPostRepo) users(ctx context.Context, ids []string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []userRow
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, u := range rows {
		out[u.ID] = models.User{ID: u.ID, Username: u.Username, Email: u.Email}
	}
	return out, nil
}

// lockPost takes a row lock on the post for the rest of the transaction.
// SQLite ignores the locking clause and serializes writers instead.
func lockPost(tx *gorm.DB, postID string) error {
	var row postRow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&row, "id = ?", postID).Error
	return notFound(err, postID)
}

func touch(tx *gorm.DB, postID string) error {
	return tx.Model(&postRow{}).Where("id = ?", postID).UpdateColumn("updated_at", time.Now().UTC()).Error
}

func notFound(err error, postID string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return posts.NewNotFoundError("post", postID)
	}
	return err
}

func (row *postRow) toModel() *models.Post {
	p := &models.Post{
		ID:        row.ID,
		AuthorID:  row.AuthorID,
		Content:   row.Content,
		ImageRef:  row.ImageRef,
		LikedBy:   models.NewUserSet(),
		Comments:  make([]models.Comment, 0, len(row.Comments)),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	for _, l := range row.Likes {
		p.LikedBy.Add(l.UserID)
	}
	for _, c := range row.Comments {
		p.Comments = append(p.Comments, models.Comment{
			AuthorID:  c.AuthorID,
			Text:      c.Text,
			CreatedAt: c.CreatedAt,
		})
	}
	return p
}
