package persona

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the personas table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS personas (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    category      TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    tagline       TEXT NOT NULL DEFAULT '',
    voice         TEXT NOT NULL DEFAULT '',
    personality   TEXT NOT NULL DEFAULT '',
    system_prompt TEXT NOT NULL,
    rarity        TEXT NOT NULL DEFAULT 'common',
    tags          JSONB NOT NULL DEFAULT '[]',
    mood          TEXT NOT NULL DEFAULT '',
    color         TEXT NOT NULL DEFAULT '',
    emoji         TEXT NOT NULL DEFAULT '',
    min_level     INT NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_personas_category ON personas(category);
CREATE INDEX IF NOT EXISTS idx_personas_name ON personas(name);
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

// Compile-time interface check.
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
		return fmt.Errorf("persona: migrate: %w", err)
	}
	return nil
}

// Get retrieves a persona by ID. Returns (nil, nil) if not found.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Persona, error) {
	const query = `
		SELECT id, name, category, description, tagline, voice,
		       personality, system_prompt, rarity, tags, mood, color,
		       emoji, min_level, created_at, updated_at
		FROM personas
		WHERE id = $1`

	var p Persona
	var tagsJSON []byte
	err := s.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Category, &p.Description, &p.Tagline, &p.Voice,
		&p.Personality, &p.SystemPrompt, &p.Rarity, &tagsJSON, &p.Mood,
		&p.Color, &p.Emoji, &p.MinLevel, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("persona: get %q: %w", id, err)
	}
	if err := json.Unmarshal(tagsJSON, &p.Tags); err != nil {
		return nil, fmt.Errorf("persona: unmarshal tags: %w", err)
	}
	return &p, nil
}

// List returns all personas, optionally filtered by category, ordered
// by name.
func (s *PostgresStore) List(ctx context.Context, category Category) ([]Persona, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if category == "" {
		const query = `
			SELECT id, name, category, description, tagline, voice,
			       personality, system_prompt, rarity, tags, mood, color,
			       emoji, min_level, created_at, updated_at
			FROM personas
			ORDER BY name`
		rows, err = s.db.Query(ctx, query)
	} else {
		const query = `
			SELECT id, name, category, description, tagline, voice,
			       personality, system_prompt, rarity, tags, mood, color,
			       emoji, min_level, created_at, updated_at
			FROM personas
			WHERE category = $1
			ORDER BY name`
		rows, err = s.db.Query(ctx, query, category)
	}
	if err != nil {
		return nil, fmt.Errorf("persona: list: %w", err)
	}
	defer rows.Close()

	var personas []Persona
	for rows.Next() {
		var p Persona
		var tagsJSON []byte
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Category, &p.Description, &p.Tagline, &p.Voice,
			&p.Personality, &p.SystemPrompt, &p.Rarity, &tagsJSON, &p.Mood,
			&p.Color, &p.Emoji, &p.MinLevel, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("persona: list scan: %w", err)
		}
		if err := json.Unmarshal(tagsJSON, &p.Tags); err != nil {
			return nil, fmt.Errorf("persona: unmarshal tags: %w", err)
		}
		personas = append(personas, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("persona: list: %w", err)
	}
	return personas, nil
}

// Upsert creates or replaces a persona. The persona is validated before
// persistence.
func (s *PostgresStore) Upsert(ctx context.Context, p *Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}

	tagsJSON, err := json.Marshal(emptySlice(p.Tags))
	if err != nil {
		return fmt.Errorf("persona: marshal tags: %w", err)
	}

	const query = `
		INSERT INTO personas (
			id, name, category, description, tagline, voice,
			personality, system_prompt, rarity, tags, mood, color,
			emoji, min_level
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			tagline = EXCLUDED.tagline,
			voice = EXCLUDED.voice,
			personality = EXCLUDED.personality,
			system_prompt = EXCLUDED.system_prompt,
			rarity = EXCLUDED.rarity,
			tags = EXCLUDED.tags,
			mood = EXCLUDED.mood,
			color = EXCLUDED.color,
			emoji = EXCLUDED.emoji,
			min_level = EXCLUDED.min_level,
			updated_at = now()
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		p.ID, p.Name, p.Category, p.Description, p.Tagline, p.Voice,
		p.Personality, p.SystemPrompt, defaultRarity(p.Rarity), tagsJSON,
		p.Mood, p.Color, p.Emoji, p.MinLevel,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("persona: upsert: %w", err)
	}
	return nil
}

// Delete removes a persona by ID. Deleting a non-existent persona is
// not an error.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM personas WHERE id = $1`
	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("persona: delete %q: %w", id, err)
	}
	return nil
}

// defaultRarity returns the rarity value, defaulting to common.
func defaultRarity(r Rarity) Rarity {
	if r == "" {
		return Common
	}
	return r
}

// emptySlice returns s if non-nil, otherwise an empty non-nil slice.
// This ensures JSON marshalling produces "[]" instead of "null".
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
