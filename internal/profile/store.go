package profile

import "context"

// Store provides persistence for caller profiles and call history.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a profile, creating the starting profile on first
	// access.
	Get(ctx context.Context, userID string) (*Profile, error)

	// Put replaces a profile's mutable presentation fields (nickname,
	// avatar, tier, favorites).
	Put(ctx context.Context, p *Profile) error

	// RecordCall folds one finished call into the profile and appends
	// it to the history. Returns the updated profile and any newly
	// unlocked achievements.
	RecordCall(ctx context.Context, userID string, rec CallRecord) (*Profile, []Achievement, error)

	// History returns the caller's most recent calls, newest first,
	// capped at limit (0 means a sensible default).
	History(ctx context.Context, userID string, limit int) ([]CallRecord, error)
}

// defaultHistoryLimit caps History queries when the caller passes 0.
const defaultHistoryLimit = 50
