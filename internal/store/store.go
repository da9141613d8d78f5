// Package store persists server settings and named, reusable injector
// presets in SQLite. Persistence of audio data itself is out of scope
// (spec.md Non-goals); this is purely operator-facing configuration.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrPresetNotFound is returned when no injector preset exists for an ID.
var ErrPresetNotFound = errors.New("injector preset not found")

// InjectorPreset is a named, persisted injector source configuration:
// a reusable stream-id, default pose, and attenuation ratio an
// operator can re-attach to a running injector without retyping it.
type InjectorPreset struct {
	ID               string
	DisplayName      string
	StreamID         string
	PosX, PosY, PosZ float64
	BearingDeg       float64
	AttenuationRatio float64
	CreatedAt        time.Time
}

// Store persists server state in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database and runs migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("sqlite store opened", "path", path)
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS injector_presets (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	stream_id TEXT NOT NULL UNIQUE,
	pos_x REAL NOT NULL DEFAULT 0,
	pos_y REAL NOT NULL DEFAULT 0,
	pos_z REAL NOT NULL DEFAULT 0,
	bearing_deg REAL NOT NULL DEFAULT 0,
	attenuation_ratio REAL NOT NULL DEFAULT 1,
	created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_injector_presets_created_at ON injector_presets(created_at_unix_ms);
`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run sqlite migrations: %w", err)
	}

	// Idempotent — ignore errors for already-existing columns.
	for _, stmt := range []string{
		`ALTER TABLE injector_presets ADD COLUMN loopback INTEGER NOT NULL DEFAULT 0`,
	} {
		_, _ = s.db.ExecContext(ctx, stmt)
	}

	slog.Debug("sqlite migrations applied")
	return nil
}

// GetSetting returns a setting's value and whether it existed.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query setting %q: %w", key, err)
	}
	return value, true, nil
}

// SetSetting upserts a setting value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	const q = `INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	slog.Debug("setting updated", "key", key)
	return nil
}

// GetAllSettings returns every persisted setting.
func (s *Store) GetAllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// CreateInjectorPreset persists a new named injector preset.
func (s *Store) CreateInjectorPreset(ctx context.Context, p InjectorPreset) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("injector preset id is required")
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		return fmt.Errorf("injector preset display name is required")
	}
	if strings.TrimSpace(p.StreamID) == "" {
		return fmt.Errorf("injector preset stream id is required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	const q = `
INSERT INTO injector_presets (
	id, display_name, stream_id, pos_x, pos_y, pos_z, bearing_deg, attenuation_ratio, created_at_unix_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	_, err := s.db.ExecContext(ctx, q,
		p.ID, p.DisplayName, p.StreamID, p.PosX, p.PosY, p.PosZ, p.BearingDeg, p.AttenuationRatio, p.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert injector preset: %w", err)
	}
	slog.Info("injector preset created", "id", p.ID, "stream_id", p.StreamID)
	return nil
}

// GetInjectorPreset returns one preset by ID.
func (s *Store) GetInjectorPreset(ctx context.Context, id string) (InjectorPreset, error) {
	const q = `
SELECT id, display_name, stream_id, pos_x, pos_y, pos_z, bearing_deg, attenuation_ratio, created_at_unix_ms
FROM injector_presets WHERE id = ?
`
	var (
		p         InjectorPreset
		createdMs int64
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.DisplayName, &p.StreamID, &p.PosX, &p.PosY, &p.PosZ, &p.BearingDeg, &p.AttenuationRatio, &createdMs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return InjectorPreset{}, ErrPresetNotFound
		}
		return InjectorPreset{}, fmt.Errorf("query injector preset: %w", err)
	}
	p.CreatedAt = time.UnixMilli(createdMs).UTC()
	return p, nil
}

// ListInjectorPresets returns every persisted preset, newest first.
func (s *Store) ListInjectorPresets(ctx context.Context) ([]InjectorPreset, error) {
	const q = `
SELECT id, display_name, stream_id, pos_x, pos_y, pos_z, bearing_deg, attenuation_ratio, created_at_unix_ms
FROM injector_presets ORDER BY created_at_unix_ms DESC
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query injector presets: %w", err)
	}
	defer rows.Close()

	var out []InjectorPreset
	for rows.Next() {
		var (
			p         InjectorPreset
			createdMs int64
		)
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.StreamID, &p.PosX, &p.PosY, &p.PosZ, &p.BearingDeg, &p.AttenuationRatio, &createdMs); err != nil {
			return nil, fmt.Errorf("scan injector preset: %w", err)
		}
		p.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteInjectorPreset removes a preset by ID.
func (s *Store) DeleteInjectorPreset(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM injector_presets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete injector preset: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrPresetNotFound
	}
	slog.Info("injector preset deleted", "id", id)
	return nil
}
