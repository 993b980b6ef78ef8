package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sujalbistaa/postwall/internal/models"
	"github.com/sujalbistaa/postwall/internal/posts"
)

// Store owns the database connection for the lifetime of the process.
// It is opened once at start-up, handed to the services that need it and
// closed at shutdown.
type Store interface {
	Posts() posts.Repository
	Users() UserStore
	// Migrate creates the tables or indexes the store needs.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// UserStore keeps the display identity of users seen on authenticated requests.
type UserStore interface {
	Upsert(ctx context.Context, user models.User) error
}

type Options struct {
	// URL selects the backend by scheme: sqlite://, postgres://, mongodb://.
	URL string
	// MongoDatabase names the database used with a mongodb:// URL.
	MongoDatabase string
	// Verbose turns on SQL statement logging.
	Verbose bool
}

// Open connects to the backend named by opts.URL.
func Open(ctx context.Context, opts Options) (Store, error) {
	url := opts.URL
	if url == "" {
		url = "sqlite://postwall.db"
		slog.Info("DATABASE_URL not set, defaulting to 'sqlite://postwall.db'")
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		dialector = postgres.Open(url)
		slog.Info("Connecting to PostgreSQL database...")
	case strings.HasPrefix(url, "sqlite://"):
		dsn := strings.TrimPrefix(url, "sqlite://")
		dialector = sqlite.Open(dsn)
		slog.Info("Connecting to SQLite database", "path", dsn)
	case strings.HasPrefix(url, "mongodb://"), strings.HasPrefix(url, "mongodb+srv://"):
		slog.Info("Connecting to MongoDB...")
		return OpenMongo(ctx, url, opts.MongoDatabase)
	default:
		return nil, fmt.Errorf("invalid DATABASE_URL prefix: must start with 'postgres://', 'sqlite://' or 'mongodb://'")
	}

	return OpenGorm(dialector, opts.Verbose)
}
