package store

import (
	"context"
	"time"

	"portfolio/internal/cache"
)

// PersonalInfo is the single about-me row.
type PersonalInfo struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Headline  string    `db:"headline" json:"headline"`
	Bio       string    `db:"bio" json:"bio"`
	Email     string    `db:"email" json:"email"`
	Location  string    `db:"location" json:"location"`
	AvatarURL string    `db:"avatar_url" json:"avatarUrl"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// GetPersonalInfo returns the about-me row, read-through cached.
func (s *Store) GetPersonalInfo(ctx context.Context) (PersonalInfo, error) {
	key := cache.Key(familyAbout, "info")
	return cache.Fetch(ctx, s.cache, key, s.ttl, func(ctx context.Context) (PersonalInfo, error) {
		var info PersonalInfo
		err := s.db.Get(ctx, &info,
			"SELECT id, name, headline, bio, email, location, avatar_url, updated_at FROM personal_info WHERE id = 1")
		return info, err
	})
}

// UpdatePersonalInfo overwrites the about-me row and invalidates its cache.
func (s *Store) UpdatePersonalInfo(ctx context.Context, info PersonalInfo) error {
	_, err := s.db.Exec(ctx,
		"UPDATE personal_info SET name = ?, headline = ?, bio = ?, email = ?, location = ?, avatar_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1",
		info.Name, info.Headline, info.Bio, info.Email, info.Location, info.AvatarURL)
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, familyAbout)
	s.log.Activity("personal info updated")
	return nil
}
