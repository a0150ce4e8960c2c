package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"portfolio/internal/cache"
)

// Project is a portfolio project with its tags and images eager-loaded.
type Project struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Status      string    `db:"status" json:"status"`
	Featured    bool      `db:"featured" json:"featured"`
	RepoURL     string    `db:"repo_url" json:"repoUrl"`
	LiveURL     string    `db:"live_url" json:"liveUrl"`
	SortOrder   int       `db:"sort_order" json:"sortOrder"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`

	Tags   []string       `db:"-" json:"tags"`
	Images []ProjectImage `db:"-" json:"images"`
}

// ProjectImage is one screenshot/asset attached to a project.
type ProjectImage struct {
	ID        int64  `db:"id" json:"id"`
	ProjectID int64  `db:"project_id" json:"projectId"`
	URL       string `db:"url" json:"url"`
	Caption   string `db:"caption" json:"caption"`
	SortOrder int    `db:"sort_order" json:"sortOrder"`
}

// ProjectFilter narrows a project listing. Zero-valued fields are ignored.
type ProjectFilter struct {
	Featured *bool  `json:"featured,omitempty"`
	Status   string `json:"status,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Search   string `json:"search,omitempty"`
}

// buildWhere turns the optional filters into a parameterized WHERE clause.
// Every value goes through a placeholder; filter text never reaches the SQL.
func (f ProjectFilter) buildWhere() (string, []any) {
	var conds []string
	var args []any
	if f.Featured != nil {
		conds = append(conds, "p.featured = ?")
		args = append(args, *f.Featured)
	}
	if f.Status != "" {
		conds = append(conds, "p.status = ?")
		args = append(args, f.Status)
	}
	if f.Tag != "" {
		conds = append(conds, "p.id IN (SELECT pt.project_id FROM project_tags pt JOIN tags t ON t.id = pt.tag_id WHERE t.name = ?)")
		args = append(args, f.Tag)
	}
	if f.Search != "" {
		conds = append(conds, "(p.title LIKE ? OR p.description LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListProjects returns projects matching the filter, featured first, with
// tags and images attached. Results are served read-through from the tiered
// cache; each distinct filter combination gets its own key.
func (s *Store) ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, error) {
	key := cache.Key(familyProjects, filter)
	return cache.Fetch(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]Project, error) {
		where, args := filter.buildWhere()
		query := "SELECT p.id, p.title, p.description, p.status, p.featured, p.repo_url, p.live_url, p.sort_order, p.created_at, p.updated_at FROM projects p" +
			where + " ORDER BY p.featured DESC, p.sort_order ASC, p.created_at DESC"

		var projects []Project
		if err := s.db.Select(ctx, &projects, query, args...); err != nil {
			return nil, err
		}
		for i := range projects {
			if err := s.attachRelations(ctx, &projects[i]); err != nil {
				return nil, err
			}
		}
		if projects == nil {
			projects = []Project{}
		}
		return projects, nil
	})
}

// GetProject returns one project by id with relations, or ErrNotFound.
func (s *Store) GetProject(ctx context.Context, id int64) (Project, error) {
	key := cache.Key(familyProjects, map[string]int64{"id": id})
	return cache.Fetch(ctx, s.cache, key, s.ttl, func(ctx context.Context) (Project, error) {
		var p Project
		err := s.db.Get(ctx, &p, "SELECT id, title, description, status, featured, repo_url, live_url, sort_order, created_at, updated_at FROM projects WHERE id = ?", id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return Project{}, ErrNotFound
			}
			return Project{}, err
		}
		if err := s.attachRelations(ctx, &p); err != nil {
			return Project{}, err
		}
		return p, nil
	})
}

// CreateProject inserts a project with its tags and images in one
// transaction and invalidates the project cache family.
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	err := s.db.ExecuteTransaction(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO projects (title, description, status, featured, repo_url, live_url, sort_order) VALUES (?, ?, ?, ?, ?, ?, ?)",
			p.Title, p.Description, orDefault(p.Status, "active"), p.Featured, p.RepoURL, p.LiveURL, p.SortOrder)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		p.ID = id
		if err := replaceTags(ctx, tx, id, p.Tags); err != nil {
			return err
		}
		return replaceImages(ctx, tx, id, p.Images)
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, familyProjects)
	s.log.Activity("project created", zap.Int64("id", p.ID), zap.String("title", p.Title))
	return nil
}

// UpdateProject rewrites a project and its relations. ErrNotFound when the
// id does not exist.
func (s *Store) UpdateProject(ctx context.Context, p *Project) error {
	err := s.db.ExecuteTransaction(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE projects SET title = ?, description = ?, status = ?, featured = ?, repo_url = ?, live_url = ?, sort_order = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
			p.Title, p.Description, orDefault(p.Status, "active"), p.Featured, p.RepoURL, p.LiveURL, p.SortOrder, p.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if err := replaceTags(ctx, tx, p.ID, p.Tags); err != nil {
			return err
		}
		return replaceImages(ctx, tx, p.ID, p.Images)
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, familyProjects)
	s.log.Activity("project updated", zap.Int64("id", p.ID))
	return nil
}

// DeleteProject removes a project; relations cascade. ErrNotFound when the
// id does not exist.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.Exec(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.cache.Invalidate(ctx, familyProjects)
	s.log.Activity("project deleted", zap.Int64("id", id))
	return nil
}

func (s *Store) attachRelations(ctx context.Context, p *Project) error {
	tags := []string{}
	err := s.db.Select(ctx, &tags,
		"SELECT t.name FROM tags t JOIN project_tags pt ON pt.tag_id = t.id WHERE pt.project_id = ? ORDER BY t.name", p.ID)
	if err != nil {
		return err
	}
	p.Tags = tags

	images := []ProjectImage{}
	err = s.db.Select(ctx, &images,
		"SELECT id, project_id, url, caption, sort_order FROM project_images WHERE project_id = ? ORDER BY sort_order, id", p.ID)
	if err != nil {
		return err
	}
	p.Images = images
	return nil
}

// replaceTags rewrites the tag set for a project, creating tag rows on
// first use.
func replaceTags(ctx context.Context, tx *sqlx.Tx, projectID int64, tags []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM project_tags WHERE project_id = ?", projectID); err != nil {
		return err
	}
	for _, name := range tags {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO tags (name) VALUES (?)", name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO project_tags (project_id, tag_id) SELECT ?, id FROM tags WHERE name = ?", projectID, name); err != nil {
			return err
		}
	}
	return nil
}

func replaceImages(ctx context.Context, tx *sqlx.Tx, projectID int64, images []ProjectImage) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM project_images WHERE project_id = ?", projectID); err != nil {
		return err
	}
	for i, img := range images {
		if img.URL == "" {
			return fmt.Errorf("store: project image %d missing url", i)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO project_images (project_id, url, caption, sort_order) VALUES (?, ?, ?, ?)",
			projectID, img.URL, img.Caption, img.SortOrder); err != nil {
			return err
		}
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
