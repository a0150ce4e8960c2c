package store

import (
	"context"

	"go.uber.org/zap"

	"portfolio/internal/cache"
)

// Skill is one entry on the skills page. Level is 0-100.
type Skill struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Category  string `db:"category" json:"category"`
	Level     int    `db:"level" json:"level"`
	SortOrder int    `db:"sort_order" json:"sortOrder"`
}

// Interest is a free-form personal interest entry.
type Interest struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// ListSkills returns all skills grouped by category name, cached.
func (s *Store) ListSkills(ctx context.Context) (map[string][]Skill, error) {
	key := cache.Key(familySkills, "all")
	return cache.Fetch(ctx, s.cache, key, s.ttl, func(ctx context.Context) (map[string][]Skill, error) {
		var skills []Skill
		err := s.db.Select(ctx, &skills,
			"SELECT id, name, category, level, sort_order FROM skills ORDER BY category, sort_order, name")
		if err != nil {
			return nil, err
		}
		grouped := make(map[string][]Skill)
		for _, sk := range skills {
			grouped[sk.Category] = append(grouped[sk.Category], sk)
		}
		return grouped, nil
	})
}

// CreateSkill inserts a skill and returns its id.
func (s *Store) CreateSkill(ctx context.Context, sk *Skill) error {
	res, err := s.db.Exec(ctx,
		"INSERT INTO skills (name, category, level, sort_order) VALUES (?, ?, ?, ?)",
		sk.Name, orDefault(sk.Category, "general"), sk.Level, sk.SortOrder)
	if err != nil {
		return err
	}
	sk.ID = res.LastInsertID
	s.cache.Invalidate(ctx, familySkills)
	return nil
}

// UpdateSkill rewrites a skill row. ErrNotFound when the id does not exist.
func (s *Store) UpdateSkill(ctx context.Context, sk Skill) error {
	res, err := s.db.Exec(ctx,
		"UPDATE skills SET name = ?, category = ?, level = ?, sort_order = ? WHERE id = ?",
		sk.Name, orDefault(sk.Category, "general"), sk.Level, sk.SortOrder, sk.ID)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.cache.Invalidate(ctx, familySkills)
	return nil
}

// DeleteSkill removes a skill. ErrNotFound when the id does not exist.
func (s *Store) DeleteSkill(ctx context.Context, id int64) error {
	res, err := s.db.Exec(ctx, "DELETE FROM skills WHERE id = ?", id)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.cache.Invalidate(ctx, familySkills)
	return nil
}

// ListInterests returns all interests, cached.
func (s *Store) ListInterests(ctx context.Context) ([]Interest, error) {
	key := cache.Key(familyInterests, "all")
	return cache.Fetch(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]Interest, error) {
		interests := []Interest{}
		err := s.db.Select(ctx, &interests,
			"SELECT id, name, description FROM interests ORDER BY name")
		return interests, err
	})
}

// CreateInterest inserts an interest and returns its id.
func (s *Store) CreateInterest(ctx context.Context, in *Interest) error {
	res, err := s.db.Exec(ctx,
		"INSERT INTO interests (name, description) VALUES (?, ?)", in.Name, in.Description)
	if err != nil {
		return err
	}
	in.ID = res.LastInsertID
	s.cache.Invalidate(ctx, familyInterests)
	s.log.Activity("interest added", zap.String("name", in.Name))
	return nil
}

// DeleteInterest removes an interest. ErrNotFound when the id does not exist.
func (s *Store) DeleteInterest(ctx context.Context, id int64) error {
	res, err := s.db.Exec(ctx, "DELETE FROM interests WHERE id = ?", id)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.cache.Invalidate(ctx, familyInterests)
	return nil
}
