package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"portfolio/internal/cache"
)

// BlogPost is one article. Unpublished posts are only visible when a listing
// explicitly asks for them.
type BlogPost struct {
	ID          int64      `db:"id" json:"id"`
	Slug        string     `db:"slug" json:"slug"`
	Title       string     `db:"title" json:"title"`
	Summary     string     `db:"summary" json:"summary"`
	Content     string     `db:"content" json:"content"`
	Published   bool       `db:"published" json:"published"`
	PublishedAt *time.Time `db:"published_at" json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

const postColumns = "id, slug, title, summary, content, published, published_at, created_at, updated_at"

// ListPosts returns posts newest first. includeDrafts widens the listing to
// unpublished posts; the two variants cache under distinct keys.
func (s *Store) ListPosts(ctx context.Context, includeDrafts bool) ([]BlogPost, error) {
	key := cache.Key(familyPosts, map[string]bool{"drafts": includeDrafts})
	return cache.Fetch(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]BlogPost, error) {
		query := "SELECT " + postColumns + " FROM blog_posts"
		if !includeDrafts {
			query += " WHERE published = 1"
		}
		query += " ORDER BY COALESCE(published_at, created_at) DESC"

		posts := []BlogPost{}
		err := s.db.Select(ctx, &posts, query)
		return posts, err
	})
}

// GetPostBySlug returns one published-or-not post, or ErrNotFound.
func (s *Store) GetPostBySlug(ctx context.Context, slug string) (BlogPost, error) {
	key := cache.Key(familyPosts, map[string]string{"slug": slug})
	return cache.Fetch(ctx, s.cache, key, s.ttl, func(ctx context.Context) (BlogPost, error) {
		var p BlogPost
		err := s.db.Get(ctx, &p, "SELECT "+postColumns+" FROM blog_posts WHERE slug = ?", slug)
		if errors.Is(err, sql.ErrNoRows) {
			return BlogPost{}, ErrNotFound
		}
		return p, err
	})
}

// CreatePost inserts a post. PublishedAt is stamped when the post arrives
// already published.
func (s *Store) CreatePost(ctx context.Context, p *BlogPost) error {
	if p.Published && p.PublishedAt == nil {
		now := time.Now().UTC()
		p.PublishedAt = &now
	}
	res, err := s.db.Exec(ctx,
		"INSERT INTO blog_posts (slug, title, summary, content, published, published_at) VALUES (?, ?, ?, ?, ?, ?)",
		p.Slug, p.Title, p.Summary, p.Content, p.Published, p.PublishedAt)
	if err != nil {
		return err
	}
	p.ID = res.LastInsertID
	s.cache.Invalidate(ctx, familyPosts)
	s.log.Activity("post created", zap.String("slug", p.Slug))
	return nil
}

// UpdatePost rewrites a post by id. Publishing for the first time stamps
// PublishedAt. ErrNotFound when the id does not exist.
func (s *Store) UpdatePost(ctx context.Context, p *BlogPost) error {
	if p.Published && p.PublishedAt == nil {
		now := time.Now().UTC()
		p.PublishedAt = &now
	}
	res, err := s.db.Exec(ctx,
		"UPDATE blog_posts SET slug = ?, title = ?, summary = ?, content = ?, published = ?, published_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		p.Slug, p.Title, p.Summary, p.Content, p.Published, p.PublishedAt, p.ID)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.cache.Invalidate(ctx, familyPosts)
	s.log.Activity("post updated", zap.Int64("id", p.ID))
	return nil
}

// DeletePost removes a post by id. ErrNotFound when the id does not exist.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.Exec(ctx, "DELETE FROM blog_posts WHERE id = ?", id)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.cache.Invalidate(ctx, familyPosts)
	s.log.Activity("post deleted", zap.Int64("id", id))
	return nil
}
