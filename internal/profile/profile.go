// Package profile keeps per-caller bookkeeping: nickname, XP and
// level, call totals, favorites, unlocked achievements, and call
// history. The call core only reads the tier and reports finished
// calls; everything else is presentation data for the client.
package profile

import (
	"time"

	"github.com/starlinehq/starline/internal/tier"
)

// Profile is one caller's persistent state.
type Profile struct {
	UserID           string    `json:"user_id"`
	Nickname         string    `json:"nickname"`
	Avatar           string    `json:"avatar"`
	Level            int       `json:"level"`
	XP               int       `json:"xp"`
	TotalCalls       int       `json:"total_calls"`
	TotalMinutes     int       `json:"total_minutes"`
	Tier             tier.Tier `json:"tier"`
	Favorites        []string  `json:"favorites"`
	UnlockedPersonas []string  `json:"unlocked_personas"`
	// CalledCategories records every persona category the caller has
	// talked to, for the explorer achievement.
	CalledCategories []string      `json:"called_categories"`
	Achievements     []Achievement `json:"achievements"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NewProfile returns the starting profile for a caller.
func NewProfile(userID string) *Profile {
	return &Profile{
		UserID:   userID,
		Nickname: "Caller",
		Avatar:   "🌙",
		Level:    1,
		Tier:     tier.Free,
	}
}

// CallRecord is one finished call.
type CallRecord struct {
	ID          string        `json:"id"`
	PersonaID   string        `json:"persona_id"`
	PersonaName string        `json:"persona_name"`
	Category    string        `json:"category"`
	Duration    time.Duration `json:"duration"`
	StartedAt   time.Time     `json:"started_at"`
}

// applyCall folds one finished call into the profile: XP, level, call
// totals, category coverage, then achievement evaluation. Returns the
// achievements newly unlocked by this call.
func applyCall(p *Profile, rec CallRecord) []Achievement {
	seconds := int(rec.Duration.Seconds())
	p.XP += seconds/10 + 5
	p.Level = p.XP/100 + 1
	p.TotalCalls++
	p.TotalMinutes += seconds / 60

	if rec.Category != "" && !contains(p.CalledCategories, rec.Category) {
		p.CalledCategories = append(p.CalledCategories, rec.Category)
	}
	if rec.PersonaID != "" && !contains(p.UnlockedPersonas, rec.PersonaID) {
		p.UnlockedPersonas = append(p.UnlockedPersonas, rec.PersonaID)
	}

	return evaluateAchievements(p, rec)
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
