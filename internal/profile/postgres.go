package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/starlinehq/starline/internal/tier"
)

// Schema is the SQL DDL for the profiles and call_history tables.
const Schema = `
CREATE TABLE IF NOT EXISTS profiles (
    user_id           TEXT PRIMARY KEY,
    nickname          TEXT NOT NULL DEFAULT 'Caller',
    avatar            TEXT NOT NULL DEFAULT '',
    level             INT NOT NULL DEFAULT 1,
    xp                INT NOT NULL DEFAULT 0,
    total_calls       INT NOT NULL DEFAULT 0,
    total_minutes     INT NOT NULL DEFAULT 0,
    tier              TEXT NOT NULL DEFAULT 'free',
    favorites         JSONB NOT NULL DEFAULT '[]',
    unlocked_personas JSONB NOT NULL DEFAULT '[]',
    called_categories JSONB NOT NULL DEFAULT '[]',
    achievements      JSONB NOT NULL DEFAULT '[]',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS call_history (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    persona_id       TEXT NOT NULL DEFAULT '',
    persona_name     TEXT NOT NULL DEFAULT '',
    category         TEXT NOT NULL DEFAULT '',
    duration_seconds INT NOT NULL DEFAULT 0,
    started_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_call_history_user ON call_history(user_id, started_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both
// *pgxpool.Pool and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store using the given connection or pool.
// The caller is responsible for calling [PostgresStore.Migrate] before
// issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("profile: migrate: %w", err)
	}
	return nil
}

// Get retrieves a profile, creating the starting profile on first
// access.
func (s *PostgresStore) Get(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("profile: user id is required")
	}

	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	p = NewProfile(userID)
	if err := s.insert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Put replaces a profile's mutable presentation fields.
func (s *PostgresStore) Put(ctx context.Context, p *Profile) error {
	if p == nil || p.UserID == "" {
		return fmt.Errorf("profile: user id is required")
	}

	favJSON, err := json.Marshal(emptySlice(p.Favorites))
	if err != nil {
		return fmt.Errorf("profile: marshal favorites: %w", err)
	}

	const query = `
		UPDATE profiles SET
			nickname = $2, avatar = $3, tier = $4, favorites = $5,
			updated_at = now()
		WHERE user_id = $1
		RETURNING updated_at`

	err = s.db.QueryRow(ctx, query,
		p.UserID, p.Nickname, p.Avatar, p.Tier, favJSON,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.insert(ctx, p)
		}
		return fmt.Errorf("profile: put: %w", err)
	}
	return nil
}

// RecordCall folds one finished call into the profile and appends it to
// the history.
func (s *PostgresStore) RecordCall(ctx context.Context, userID string, rec CallRecord) (*Profile, []Achievement, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	fresh := applyCall(p, rec)

	if err := s.save(ctx, p); err != nil {
		return nil, nil, err
	}

	const query = `
		INSERT INTO call_history (
			id, user_id, persona_id, persona_name, category,
			duration_seconds, started_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	startedAt := rec.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	_, err = s.db.Exec(ctx, query,
		rec.ID, userID, rec.PersonaID, rec.PersonaName, rec.Category,
		int(rec.Duration.Seconds()), startedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("profile: record call: %w", err)
	}
	return p, fresh, nil
}

// History returns the caller's most recent calls, newest first.
func (s *PostgresStore) History(ctx context.Context, userID string, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	const query = `
		SELECT id, persona_id, persona_name, category, duration_seconds, started_at
		FROM call_history
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("profile: history: %w", err)
	}
	defer rows.Close()

	var records []CallRecord
	for rows.Next() {
		var rec CallRecord
		var seconds int
		if err := rows.Scan(
			&rec.ID, &rec.PersonaID, &rec.PersonaName, &rec.Category,
			&seconds, &rec.StartedAt,
		); err != nil {
			return nil, fmt.Errorf("profile: history scan: %w", err)
		}
		rec.Duration = time.Duration(seconds) * time.Second
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profile: history: %w", err)
	}
	return records, nil
}

// load reads a profile row. Returns (nil, nil) when the row does not
// exist.
func (s *PostgresStore) load(ctx context.Context, userID string) (*Profile, error) {
	const query = `
		SELECT user_id, nickname, avatar, level, xp, total_calls,
		       total_minutes, tier, favorites, unlocked_personas,
		       called_categories, achievements, created_at, updated_at
		FROM profiles
		WHERE user_id = $1`

	var p Profile
	var tierStr string
	var favJSON, upJSON, ccJSON, achJSON []byte
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.Nickname, &p.Avatar, &p.Level, &p.XP, &p.TotalCalls,
		&p.TotalMinutes, &tierStr, &favJSON, &upJSON,
		&ccJSON, &achJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("profile: load %q: %w", userID, err)
	}
	p.Tier = tier.Normalize(tierStr)

	for _, f := range []struct {
		data []byte
		dst  any
		name string
	}{
		{favJSON, &p.Favorites, "favorites"},
		{upJSON, &p.UnlockedPersonas, "unlocked_personas"},
		{ccJSON, &p.CalledCategories, "called_categories"},
		{achJSON, &p.Achievements, "achievements"},
	} {
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return nil, fmt.Errorf("profile: unmarshal %s: %w", f.name, err)
		}
	}
	return &p, nil
}

// insert writes a new profile row.
func (s *PostgresStore) insert(ctx context.Context, p *Profile) error {
	favJSON, upJSON, ccJSON, achJSON, err := marshalProfileFields(p)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO profiles (
			user_id, nickname, avatar, level, xp, total_calls,
			total_minutes, tier, favorites, unlocked_personas,
			called_categories, achievements
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		p.UserID, p.Nickname, p.Avatar, p.Level, p.XP, p.TotalCalls,
		p.TotalMinutes, p.Tier, favJSON, upJSON, ccJSON, achJSON,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("profile: insert: %w", err)
	}
	return nil
}

// save writes the full bookkeeping state back after a call.
func (s *PostgresStore) save(ctx context.Context, p *Profile) error {
	favJSON, upJSON, ccJSON, achJSON, err := marshalProfileFields(p)
	if err != nil {
		return err
	}

	const query = `
		UPDATE profiles SET
			nickname = $2, avatar = $3, level = $4, xp = $5,
			total_calls = $6, total_minutes = $7, tier = $8,
			favorites = $9, unlocked_personas = $10,
			called_categories = $11, achievements = $12,
			updated_at = now()
		WHERE user_id = $1
		RETURNING updated_at`

	err = s.db.QueryRow(ctx, query,
		p.UserID, p.Nickname, p.Avatar, p.Level, p.XP,
		p.TotalCalls, p.TotalMinutes, p.Tier,
		favJSON, upJSON, ccJSON, achJSON,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("profile: save: %w", err)
	}
	return nil
}

func marshalProfileFields(p *Profile) (fav, up, cc, ach []byte, err error) {
	if fav, err = json.Marshal(emptySlice(p.Favorites)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("profile: marshal favorites: %w", err)
	}
	if up, err = json.Marshal(emptySlice(p.UnlockedPersonas)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("profile: marshal unlocked_personas: %w", err)
	}
	if cc, err = json.Marshal(emptySlice(p.CalledCategories)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("profile: marshal called_categories: %w", err)
	}
	achievements := p.Achievements
	if achievements == nil {
		achievements = []Achievement{}
	}
	if ach, err = json.Marshal(achievements); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("profile: marshal achievements: %w", err)
	}
	return fav, up, cc, ach, nil
}

// emptySlice returns s if non-nil, otherwise an empty non-nil slice.
// This ensures JSON marshalling produces "[]" instead of "null".
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
