package profile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory [Store] for single-node deployments and
// tests.
type MemStore struct {
	mu       sync.Mutex
	profiles map[string]*Profile
	history  map[string][]CallRecord
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		profiles: make(map[string]*Profile),
		history:  make(map[string][]CallRecord),
	}
}

// Get retrieves a profile, creating the starting profile on first
// access.
func (s *MemStore) Get(_ context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("profile: user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(userID), nil
}

func (s *MemStore) getLocked(userID string) *Profile {
	p, ok := s.profiles[userID]
	if !ok {
		p = NewProfile(userID)
		p.CreatedAt = time.Now()
		p.UpdatedAt = p.CreatedAt
		s.profiles[userID] = p
	}
	clone := *p
	clone.Favorites = append([]string(nil), p.Favorites...)
	clone.UnlockedPersonas = append([]string(nil), p.UnlockedPersonas...)
	clone.CalledCategories = append([]string(nil), p.CalledCategories...)
	clone.Achievements = append([]Achievement(nil), p.Achievements...)
	return &clone
}

// Put replaces a profile's mutable presentation fields.
func (s *MemStore) Put(_ context.Context, p *Profile) error {
	if p == nil || p.UserID == "" {
		return fmt.Errorf("profile: user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.profiles[p.UserID]
	if !ok {
		cur = NewProfile(p.UserID)
		cur.CreatedAt = time.Now()
		s.profiles[p.UserID] = cur
	}
	cur.Nickname = p.Nickname
	cur.Avatar = p.Avatar
	cur.Tier = p.Tier
	cur.Favorites = append([]string(nil), p.Favorites...)
	cur.UpdatedAt = time.Now()
	return nil
}

// RecordCall folds one finished call into the profile and appends it to
// the history.
func (s *MemStore) RecordCall(_ context.Context, userID string, rec CallRecord) (*Profile, []Achievement, error) {
	if userID == "" {
		return nil, nil, fmt.Errorf("profile: user id is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		p = NewProfile(userID)
		p.CreatedAt = time.Now()
		s.profiles[userID] = p
	}

	fresh := applyCall(p, rec)
	p.UpdatedAt = time.Now()
	s.history[userID] = append(s.history[userID], rec)

	clone := s.getLocked(userID)
	return clone, fresh, nil
}

// History returns the caller's most recent calls, newest first.
func (s *MemStore) History(_ context.Context, userID string, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.history[userID]
	out := make([]CallRecord, 0, min(limit, len(records)))
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, records[i])
	}
	return out, nil
}
