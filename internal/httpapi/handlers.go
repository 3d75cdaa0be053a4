package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starlinehq/starline/internal/persona"
	"github.com/starlinehq/starline/internal/profile"
)

// activeCall remembers what the one live call is about so the end-call
// handler can fold it into the caller's profile.
type activeCall struct {
	mu  sync.Mutex
	set bool
	uid string
	rec profile.CallRecord
}

func (a *activeCall) start(uid string, rec profile.CallRecord) (prevUID string, prev profile.CallRecord, had bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prevUID, prev, had = a.uid, a.rec, a.set
	a.uid, a.rec, a.set = uid, rec, true
	return prevUID, prev, had
}

func (a *activeCall) end() (string, profile.CallRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	uid, rec, had := a.uid, a.rec, a.set
	a.uid, a.rec, a.set = "", profile.CallRecord{}, false
	return uid, rec, had
}

// ── personas ─────────────────────────────────────────────────────────────────

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	category := persona.Category(r.URL.Query().Get("category"))
	query := r.URL.Query().Get("q")

	var personas []persona.Persona
	if query != "" {
		for _, p := range s.catalog.Search(query) {
			if category == "" || p.Category == category {
				personas = append(personas, p)
			}
		}
	} else {
		personas = s.catalog.List(category)
	}
	if personas == nil {
		personas = []persona.Persona{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"personas": personas})
}

func (s *Server) handleRandomPersona(w http.ResponseWriter, r *http.Request) {
	category := persona.Category(r.URL.Query().Get("category"))
	p, ok := s.catalog.Random(category)
	if !ok {
		respondError(w, http.StatusNotFound, "no personas available")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.catalog.Get(id)
	if !ok && s.studio != nil {
		// A persona created through another instance may be in the
		// store but not yet in this catalog.
		stored, err := s.studio.Get(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "load persona failed")
			slog.Error("gateway: load persona", "err", err)
			return
		}
		if stored != nil {
			p, ok = *stored, true
			if err := s.catalog.Put(p); err != nil {
				slog.Warn("gateway: cache stored persona", "err", err)
			}
		}
	}
	if !ok {
		respondError(w, http.StatusNotFound, "persona not found")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	var p persona.Persona
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := p.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.studio != nil {
		if err := s.studio.Upsert(r.Context(), &p); err != nil {
			respondError(w, http.StatusInternalServerError, "save persona failed")
			slog.Error("gateway: save persona", "err", err)
			return
		}
	}
	if err := s.catalog.Put(p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeletePersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.studio != nil {
		if err := s.studio.Delete(r.Context(), id); err != nil {
			respondError(w, http.StatusInternalServerError, "delete persona failed")
			slog.Error("gateway: delete persona", "err", err)
			return
		}
	}
	if !s.catalog.Remove(id) && s.studio == nil {
		respondError(w, http.StatusNotFound, "persona not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── profile ──────────────────────────────────────────────────────────────────

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(r.Context(), userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "load profile failed")
		slog.Error("gateway: load profile", "err", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p.UserID = userID(r)

	if err := s.profiles.Put(r.Context(), &p); err != nil {
		respondError(w, http.StatusInternalServerError, "save profile failed")
		slog.Error("gateway: save profile", "err", err)
		return
	}
	updated, err := s.profiles.Get(r.Context(), p.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "load profile failed")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.profiles.History(r.Context(), userID(r), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "load history failed")
		slog.Error("gateway: load history", "err", err)
		return
	}
	if records == nil {
		records = []profile.CallRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"calls": records})
}

// ── call control ─────────────────────────────────────────────────────────────

type startCallRequest struct {
	// PersonaIDs selects the characters on the line. Empty means a
	// random pick, optionally narrowed by Category.
	PersonaIDs []string `json:"persona_ids"`
	Category   string   `json:"category"`
}

func (s *Server) handleStartCall(w http.ResponseWriter, r *http.Request) {
	var req startCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var personas []persona.Persona
	for _, id := range req.PersonaIDs {
		p, ok := s.catalog.Get(id)
		if !ok {
			respondError(w, http.StatusNotFound, "persona not found: "+id)
			return
		}
		personas = append(personas, p)
	}
	if len(personas) == 0 {
		p, ok := s.catalog.Random(persona.Category(req.Category))
		if !ok {
			respondError(w, http.StatusNotFound, "no personas available")
			return
		}
		personas = append(personas, p)
	}

	uid := userID(r)
	prof, err := s.profiles.Get(r.Context(), uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "load profile failed")
		slog.Error("gateway: load profile", "err", err)
		return
	}

	if err := s.calls.Connect(r.Context(), personas, prof.Tier); err != nil {
		msg := s.calls.Snapshot().Error
		if msg == "" {
			msg = "call failed"
		}
		respondError(w, http.StatusBadGateway, msg)
		return
	}

	lead := personas[0]
	prevUID, prev, had := s.active.start(uid, profile.CallRecord{
		PersonaID:   lead.ID,
		PersonaName: lead.Name,
		Category:    string(lead.Category),
		StartedAt:   time.Now(),
	})
	if had {
		// The new connect superseded a live call; book it before it is
		// forgotten.
		prev.Duration = time.Since(prev.StartedAt)
		if _, _, err := s.profiles.RecordCall(r.Context(), prevUID, prev); err != nil {
			slog.Warn("gateway: record superseded call", "err", err)
		}
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"personas": personas,
		"state":    s.calls.Snapshot(),
	})
}

func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request) {
	s.calls.Disconnect()

	uid, rec, had := s.active.end()
	if !had {
		respondJSON(w, http.StatusOK, map[string]any{"state": s.calls.Snapshot()})
		return
	}
	rec.Duration = time.Since(rec.StartedAt)

	prof, unlocked, err := s.profiles.RecordCall(r.Context(), uid, rec)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "record call failed")
		slog.Error("gateway: record call", "err", err)
		return
	}
	if unlocked == nil {
		unlocked = []profile.Achievement{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"state":    s.calls.Snapshot(),
		"profile":  prof,
		"unlocked": unlocked,
	})
}

func (s *Server) handleToggleMute(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"muted": s.calls.ToggleMute()})
}

func (s *Server) handleCallState(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.calls.Snapshot())
}
