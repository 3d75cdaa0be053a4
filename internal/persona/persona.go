// Package persona provides the conversational character catalog. A
// [Persona] is the full declarative configuration for one character —
// display metadata, behavior prompt, requested synthetic voice, rarity
// and unlock gating — and can be loaded from YAML seed files, stored in
// a PostgreSQL database, or both.
//
// The [Catalog] is the in-memory lookup the matching flow uses: uniform
// random draw, category filtering, and fuzzy search.
package persona

import (
	"errors"
	"fmt"
	"time"
)

// Category groups personas by conversational theme.
type Category string

// The sixteen launch categories.
const (
	Healing      Category = "healing"
	Romance      Category = "romance"
	Comedy       Category = "comedy"
	Horror       Category = "horror"
	Idol         Category = "idol"
	Intellectual Category = "intellectual"
	Adventure    Category = "adventure"
	Mystic       Category = "mystic"
	ASMR         Category = "asmr"
	Motivation   Category = "motivation"
	Language     Category = "language"
	SciFi        Category = "scifi"
	Fantasy      Category = "fantasy"
	Villain      Category = "villain"
	Historical   Category = "historical"
	Chaos        Category = "chaos"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	Healing, Romance, Comedy, Horror, Idol, Intellectual, Adventure,
	Mystic, ASMR, Motivation, Language, SciFi, Fantasy, Villain,
	Historical, Chaos,
}

// Rarity controls how often a persona appears in random draws and how
// it is presented.
type Rarity string

const (
	Common    Rarity = "common"
	Rare      Rarity = "rare"
	Epic      Rarity = "epic"
	Legendary Rarity = "legendary"
)

// Persona is the full declarative configuration for one character.
type Persona struct {
	// ID is the unique identifier for this persona.
	ID string `yaml:"id" json:"id"`

	// Name is the persona's display name.
	Name string `yaml:"name" json:"name"`

	// Category groups the persona on the explore screen.
	Category Category `yaml:"category" json:"category"`

	// Description is the longer blurb shown on the persona card.
	Description string `yaml:"description" json:"description"`

	// Tagline is the one-line hook shown while connecting.
	Tagline string `yaml:"tagline" json:"tagline"`

	// Voice is the prebuilt synthetic voice requested for this persona.
	// Empty falls back to the service default.
	Voice string `yaml:"voice" json:"voice"`

	// Personality is a free-text description of character and speech
	// patterns, shown to the user.
	Personality string `yaml:"personality" json:"personality"`

	// SystemPrompt is the behavior prompt sent to the model.
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`

	// Rarity defaults to common.
	Rarity Rarity `yaml:"rarity" json:"rarity"`

	// Tags are free-form search keywords.
	Tags []string `yaml:"tags" json:"tags"`

	// Mood is the persona's baseline emotional register.
	Mood string `yaml:"mood" json:"mood"`

	// Color is the accent color hex used by the UI.
	Color string `yaml:"color" json:"color"`

	// Emoji is the avatar glyph.
	Emoji string `yaml:"emoji" json:"emoji"`

	// MinLevel gates the persona behind a caller level. Zero means
	// available from the start.
	MinLevel int `yaml:"min_level" json:"min_level"`

	// CreatedAt is the time the persona was first persisted.
	CreatedAt time.Time `yaml:"-" json:"created_at"`

	// UpdatedAt is the time the persona was last modified.
	UpdatedAt time.Time `yaml:"-" json:"updated_at"`
}

var validCategories = func() map[Category]struct{} {
	m := make(map[Category]struct{}, len(Categories))
	for _, c := range Categories {
		m[c] = struct{}{}
	}
	return m
}()

var validRarities = map[Rarity]struct{}{
	Common: {}, Rare: {}, Epic: {}, Legendary: {},
}

// Validate checks that the persona is complete enough to put on a call.
func (p *Persona) Validate() error {
	if p.ID == "" {
		return errors.New("persona: id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("persona %q: name is required", p.ID)
	}
	if p.SystemPrompt == "" {
		return fmt.Errorf("persona %q: system_prompt is required", p.ID)
	}
	if _, ok := validCategories[p.Category]; !ok {
		return fmt.Errorf("persona %q: unknown category %q", p.ID, p.Category)
	}
	if p.Rarity != "" {
		if _, ok := validRarities[p.Rarity]; !ok {
			return fmt.Errorf("persona %q: unknown rarity %q", p.ID, p.Rarity)
		}
	}
	if p.MinLevel < 0 {
		return fmt.Errorf("persona %q: min_level must not be negative", p.ID)
	}
	return nil
}
