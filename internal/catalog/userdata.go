package catalog

import (
	"context"
	"fmt"
)

// SetMediaFavorite toggles the favorite flag on an item and returns the
// resulting state.
func (s *Store) SetMediaFavorite(ctx context.Context, mediaID string, favorite bool) error {
	var err error
	if favorite {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO media_favorites (media_id, created_at_ms) VALUES (?, ?)
			 ON CONFLICT(media_id) DO NOTHING`, mediaID, nowMs())
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM media_favorites WHERE media_id = ?`, mediaID)
	}
	if err != nil {
		return fmt.Errorf("setting media favorite: %w", err)
	}
	return nil
}

func (s *Store) IsMediaFavorite(ctx context.Context, mediaID string) (bool, error) {
	var n int
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM media_favorites WHERE media_id = ?`, mediaID)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("checking media favorite: %w", err)
	}
	return n > 0, nil
}

func (s *Store) SetPersonFavorite(ctx context.Context, personID string, favorite bool) error {
	var err error
	if favorite {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO person_favorites (person_id, created_at_ms) VALUES (?, ?)
			 ON CONFLICT(person_id) DO NOTHING`, personID, nowMs())
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM person_favorites WHERE person_id = ?`, personID)
	}
	if err != nil {
		return fmt.Errorf("setting person favorite: %w", err)
	}
	return nil
}

func (s *Store) FavoritePersonIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT person_id FROM person_favorites ORDER BY created_at_ms DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing person favorites: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning person favorite: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddMediaTag attaches a tag to an item; duplicates are ignored.
func (s *Store) AddMediaTag(ctx context.Context, mediaID, tag string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO media_tags (media_id, tag, created_at_ms) VALUES (?, ?, ?)
		 ON CONFLICT(media_id, tag) DO NOTHING`, mediaID, tag, nowMs())
	if err != nil {
		return fmt.Errorf("adding media tag: %w", err)
	}
	return nil
}

func (s *Store) RemoveMediaTag(ctx context.Context, mediaID, tag string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM media_tags WHERE media_id = ? AND tag = ?`, mediaID, tag)
	if err != nil {
		return fmt.Errorf("removing media tag: %w", err)
	}
	return requireRow(res)
}

func (s *Store) MediaTags(ctx context.Context, mediaID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag FROM media_tags WHERE media_id = ? ORDER BY tag ASC`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("loading media tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning media tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// AllTags returns every distinct tag with its usage count.
func (s *Store) AllTags(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag, COUNT(*) FROM media_tags GROUP BY tag ORDER BY tag ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		out[t] = n
	}
	return out, rows.Err()
}
