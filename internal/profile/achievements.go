package profile

import "time"

// Achievement is one unlocked milestone on a profile.
type Achievement struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Icon       string    `json:"icon"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// achievementDef pairs an achievement's identity with its unlock
// condition. rec is the call that just finished.
type achievementDef struct {
	id   string
	name string
	icon string
	met  func(p *Profile, rec CallRecord) bool
}

var achievementDefs = []achievementDef{
	{"first_contact", "First Contact", "📞", func(p *Profile, _ CallRecord) bool {
		return p.TotalCalls >= 1
	}},
	{"regular_caller", "Regular Caller", "🔥", func(p *Profile, _ CallRecord) bool {
		return p.TotalCalls >= 10
	}},
	{"call_addict", "Call Addict", "💎", func(p *Profile, _ CallRecord) bool {
		return p.TotalCalls >= 50
	}},
	{"chatterbox", "Chatterbox", "🗣️", func(p *Profile, _ CallRecord) bool {
		return p.TotalMinutes >= 60
	}},
	{"marathon", "Marathon Caller", "🏆", func(_ *Profile, rec CallRecord) bool {
		return rec.Duration >= 30*time.Minute
	}},
	{"night_owl", "Night Owl", "🦉", func(_ *Profile, rec CallRecord) bool {
		h := rec.StartedAt.Hour()
		return !rec.StartedAt.IsZero() && h < 5
	}},
	{"collector", "Collector", "⭐", func(p *Profile, _ CallRecord) bool {
		return len(p.Favorites) >= 5
	}},
	{"explorer", "Explorer", "🗺️", func(p *Profile, _ CallRecord) bool {
		return len(p.CalledCategories) >= 5
	}},
	{"legend", "Legend", "👑", func(p *Profile, _ CallRecord) bool {
		return p.Level >= 10
	}},
}

// evaluateAchievements unlocks every achievement whose condition the
// profile now meets and returns the newly unlocked ones. Achievements
// never lock again.
func evaluateAchievements(p *Profile, rec CallRecord) []Achievement {
	unlocked := make(map[string]struct{}, len(p.Achievements))
	for _, a := range p.Achievements {
		unlocked[a.ID] = struct{}{}
	}

	var fresh []Achievement
	now := time.Now()
	for _, def := range achievementDefs {
		if _, have := unlocked[def.id]; have {
			continue
		}
		if !def.met(p, rec) {
			continue
		}
		a := Achievement{ID: def.id, Name: def.name, Icon: def.icon, UnlockedAt: now}
		p.Achievements = append(p.Achievements, a)
		fresh = append(fresh, a)
	}
	return fresh
}
