// Package store is the data-access layer: typed CRUD over the portfolio
// schema with tiered read-through caching and write-path invalidation.
package store

import (
	"context"
	"errors"
	"time"

	"portfolio/internal/cache"
	"portfolio/internal/db"
	"portfolio/internal/logger"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

// Cache key families. A write invalidates its whole family so every filtered
// listing variant goes at once.
const (
	familyProjects  = "projects"
	familyAbout     = "about"
	familySkills    = "skills"
	familyInterests = "interests"
	familyPosts     = "posts"
)

// Store bundles the query wrapper and tiered cache behind typed accessors.
type Store struct {
	db    *db.DB
	cache *cache.Tiered
	ttl   time.Duration
	log   *logger.Logger
}

// New creates a Store. ttl <= 0 falls back to the cache default.
func New(database *db.DB, tiered *cache.Tiered, ttl time.Duration, log *logger.Logger) *Store {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{db: database, cache: tiered, ttl: ttl, log: log}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		featured BOOLEAN NOT NULL DEFAULT 0,
		repo_url TEXT NOT NULL DEFAULT '',
		live_url TEXT NOT NULL DEFAULT '',
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS project_tags (
		project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (project_id, tag_id)
	)`,
	`CREATE TABLE IF NOT EXISTS project_images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		caption TEXT NOT NULL DEFAULT '',
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS personal_info (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		name TEXT NOT NULL DEFAULT '',
		headline TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS skills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'general',
		level INTEGER NOT NULL DEFAULT 0,
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS interests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS blog_posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		published BOOLEAN NOT NULL DEFAULT 0,
		published_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`INSERT OR IGNORE INTO personal_info (id) VALUES (1)`,
}

// Migrate applies the idempotent schema. Safe to run on every boot.
func (s *Store) Migrate(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.db.Exec(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}
