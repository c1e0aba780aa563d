package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Settings values are stored as JSON so the table can hold strings,
// numbers and booleans without a type column.

// SeedSettings inserts any default not already present, leaving stored
// values untouched.
func (s *Store) SeedSettings(ctx context.Context, defaults map[string]any) error {
	for key, value := range defaults {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encoding default setting %q: %w", key, err)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
			key, string(raw)); err != nil {
			return fmt.Errorf("seeding setting %q: %w", key, err)
		}
	}
	return nil
}

// AllSettings returns every stored setting decoded from JSON.
func (s *Store) AllSettings(ctx context.Context) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	defer rows.Close()

	out := map[string]any{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			// A hand-edited row should not take the whole map down.
			value = raw
		}
		out[key] = value
	}
	return out, rows.Err()
}

// SetSetting stores one value as JSON, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding setting %q: %w", key, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(raw)); err != nil {
		return fmt.Errorf("storing setting %q: %w", key, err)
	}
	return nil
}

func (s *Store) getSetting(ctx context.Context, key string, out any) (bool, error) {
	var raw string
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("loading setting %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decoding setting %q: %w", key, err)
	}
	return true, nil
}

// SettingString returns a string setting, or fallback when unset.
func (s *Store) SettingString(ctx context.Context, key, fallback string) string {
	var v string
	ok, err := s.getSetting(ctx, key, &v)
	if err != nil || !ok {
		return fallback
	}
	return v
}

// SettingInt returns an integer setting, or fallback when unset.
// JSON numbers decode as float64, so the stored value is truncated.
func (s *Store) SettingInt(ctx context.Context, key string, fallback int) int {
	var v float64
	ok, err := s.getSetting(ctx, key, &v)
	if err != nil || !ok {
		return fallback
	}
	return int(v)
}

// SettingFloat returns a float setting, or fallback when unset.
func (s *Store) SettingFloat(ctx context.Context, key string, fallback float64) float64 {
	var v float64
	ok, err := s.getSetting(ctx, key, &v)
	if err != nil || !ok {
		return fallback
	}
	return v
}

// SettingBool returns a boolean setting, or fallback when unset.
func (s *Store) SettingBool(ctx context.Context, key string, fallback bool) bool {
	var v bool
	ok, err := s.getSetting(ctx, key, &v)
	if err != nil || !ok {
		return fallback
	}
	return v
}
