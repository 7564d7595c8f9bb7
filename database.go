package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrDuplicateUser = errors.New("username already exists")
	ErrNotFound      = errors.New("not found")
)

// Store is the persistence layer behind the handlers. Lookups return a nil
// result and a nil error when nothing matches; updates and deletes of a
// missing record return ErrNotFound.
type Store interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, username string) (*User, error)

	CreatePost(ctx context.Context, post Post) error
	GetPosts(ctx context.Context) ([]Post, error)
	GetPostByID(ctx context.Context, id string) (*Post, error)
	UpdatePost(ctx context.Context, id, title, content string) error
	DeletePost(ctx context.Context, id string) error

	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// openStore picks a backend from the connection string: MongoDB URLs go to
// the document store, anything else is treated as a SQLite path.
func openStore(ctx context.Context, url string) (Store, error) {
	if strings.HasPrefix(url, "mongodb://") || strings.HasPrefix(url, "mongodb+srv://") {
		store, err := openMongo(ctx, url)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	db, err := openDB(strings.TrimPrefix(url, "sqlite:"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := initDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	return newSQLiteStore(db), nil
}

type SQLiteStore struct {
	db *sql.DB
}

func newSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Every connection to :memory: gets its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func initDB(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS blogs (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		author TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_blogs_created_at ON blogs(created_at DESC, id DESC);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		expires_at DATETIME NOT NULL
	);`

	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
