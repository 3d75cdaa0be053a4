package persona

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a search
// hit that is not a plain substring match.
const fuzzyThreshold = 0.86

// Catalog is the in-memory persona lookup used by the matching flow.
// Safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	byID    map[string]Persona
	ordered []string // insertion order, for stable listings
}

// NewCatalog builds a catalog from the given personas. Every persona is
// validated; duplicate IDs are rejected.
func NewCatalog(personas []Persona) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Persona, len(personas))}
	for i := range personas {
		if err := c.Add(personas[i]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add validates and inserts one persona.
func (c *Catalog) Add(p Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byID[p.ID]; exists {
		return fmt.Errorf("persona: duplicate id %q", p.ID)
	}
	c.byID[p.ID] = p
	c.ordered = append(c.ordered, p.ID)
	return nil
}

// Put validates and inserts one persona, replacing any existing entry
// with the same ID. Replacement keeps the original listing position.
func (c *Catalog) Put(p Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byID[p.ID]; !exists {
		c.ordered = append(c.ordered, p.ID)
	}
	c.byID[p.ID] = p
	return nil
}

// Remove deletes the persona with the given ID, reporting whether it
// was present.
func (c *Catalog) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byID[id]; !exists {
		return false
	}
	delete(c.byID, id)
	for i, oid := range c.ordered {
		if oid == id {
			c.ordered = append(c.ordered[:i], c.ordered[i+1:]...)
			break
		}
	}
	return true
}

// Len reports the number of personas in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Get returns the persona with the given ID.
func (c *Catalog) Get(id string) (Persona, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	return p, ok
}

// List returns every persona, filtered by category when category is
// non-empty, in insertion order.
func (c *Catalog) List(category Category) []Persona {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Persona, 0, len(c.ordered))
	for _, id := range c.ordered {
		p := c.byID[id]
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Random draws one persona uniformly, filtered by category when
// category is non-empty. ok is false when nothing matches.
func (c *Catalog) Random(category Category) (Persona, bool) {
	candidates := c.List(category)
	if len(candidates) == 0 {
		return Persona{}, false
	}
	return candidates[rand.IntN(len(candidates))], true
}

// Search finds personas whose name or tags match the query, by
// case-insensitive substring or by Jaro-Winkler similarity. Results are
// ordered best match first.
func (c *Catalog) Search(query string) []Persona {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	type hit struct {
		p     Persona
		score float64
	}

	c.mu.RLock()
	var hits []hit
	for _, id := range c.ordered {
		p := c.byID[id]
		if score, ok := matchScore(p, query); ok {
			hits = append(hits, hit{p: p, score: score})
		}
	}
	c.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]Persona, len(hits))
	for i, h := range hits {
		out[i] = h.p
	}
	return out
}

// matchScore scores one persona against a lowercase query. Substring
// matches score highest; otherwise the best Jaro-Winkler similarity
// over name and tags must clear the threshold.
func matchScore(p Persona, query string) (float64, bool) {
	terms := make([]string, 0, len(p.Tags)+1)
	terms = append(terms, strings.ToLower(p.Name))
	for _, tag := range p.Tags {
		terms = append(terms, strings.ToLower(tag))
	}

	best := 0.0
	for _, term := range terms {
		if strings.Contains(term, query) {
			return 1.0, true
		}
		if s := matchr.JaroWinkler(query, term, false); s > best {
			best = s
		}
	}
	if best >= fuzzyThreshold {
		return best, true
	}
	return 0, false
}
