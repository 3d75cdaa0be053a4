package persona_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starlinehq/starline/internal/persona"
)

func testPersonas() []persona.Persona {
	return []persona.Persona{
		{
			ID: "luna", Name: "Luna", Category: persona.Healing,
			SystemPrompt: "You are Luna, a gentle late-night counselor.",
			Voice:        "Aoede", Tags: []string{"calm", "gentle"},
		},
		{
			ID: "rex", Name: "Rex Blastwave", Category: persona.Chaos,
			SystemPrompt: "You are Rex, an unhinged action-movie announcer.",
			Rarity:       persona.Epic, Tags: []string{"loud", "wild"},
		},
		{
			ID: "margo", Name: "Margo", Category: persona.Healing,
			SystemPrompt: "You are Margo, a retired lighthouse keeper.",
			Rarity:       persona.Rare, Tags: []string{"cozy", "stories"},
		},
	}
}

func newCatalog(t *testing.T) *persona.Catalog {
	t.Helper()
	c, err := persona.NewCatalog(testPersonas())
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		p       persona.Persona
		wantErr string // substring; empty means valid
	}{
		{
			name: "valid minimal",
			p: persona.Persona{
				ID: "a", Name: "A", Category: persona.Comedy,
				SystemPrompt: "You are A.",
			},
		},
		{
			name:    "missing id",
			p:       persona.Persona{Name: "A", Category: persona.Comedy, SystemPrompt: "x"},
			wantErr: "id is required",
		},
		{
			name:    "missing name",
			p:       persona.Persona{ID: "a", Category: persona.Comedy, SystemPrompt: "x"},
			wantErr: "name is required",
		},
		{
			name:    "missing prompt",
			p:       persona.Persona{ID: "a", Name: "A", Category: persona.Comedy},
			wantErr: "system_prompt is required",
		},
		{
			name: "unknown category",
			p: persona.Persona{
				ID: "a", Name: "A", Category: "sports", SystemPrompt: "x",
			},
			wantErr: "unknown category",
		},
		{
			name: "unknown rarity",
			p: persona.Persona{
				ID: "a", Name: "A", Category: persona.Comedy,
				SystemPrompt: "x", Rarity: "mythic",
			},
			wantErr: "unknown rarity",
		},
		{
			name: "negative min level",
			p: persona.Persona{
				ID: "a", Name: "A", Category: persona.Comedy,
				SystemPrompt: "x", MinLevel: -1,
			},
			wantErr: "min_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.p.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v; want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCatalog_DuplicateID(t *testing.T) {
	t.Parallel()
	ps := testPersonas()
	ps = append(ps, ps[0])
	if _, err := persona.NewCatalog(ps); err == nil {
		t.Fatal("NewCatalog with duplicate IDs should fail")
	}
}

func TestCatalog_Put(t *testing.T) {
	t.Parallel()
	c := newCatalog(t)

	renamed := testPersonas()[0]
	renamed.Name = "Luna Reworked"
	if err := c.Put(renamed); err != nil {
		t.Fatalf("Put(existing): %v", err)
	}
	if p, _ := c.Get("luna"); p.Name != "Luna Reworked" {
		t.Errorf("Get(luna).Name = %q; want replacement", p.Name)
	}
	// Replacing must not move the persona in listings or grow the catalog.
	all := c.List("")
	if len(all) != 3 || all[0].ID != "luna" {
		t.Errorf("List after replace = %d entries, first %q; want 3, luna", len(all), all[0].ID)
	}

	if err := c.Put(persona.Persona{
		ID: "pepper", Name: "Pepper", Category: persona.Comedy,
		SystemPrompt: "You are Pepper, a stand-up comedian between gigs.",
	}); err != nil {
		t.Fatalf("Put(new): %v", err)
	}
	all = c.List("")
	if len(all) != 4 || all[3].ID != "pepper" {
		t.Errorf("List after insert = %d entries, last %q; want 4, pepper", len(all), all[len(all)-1].ID)
	}

	if err := c.Put(persona.Persona{ID: "bad"}); err == nil {
		t.Error("Put with an invalid persona should fail")
	}
}

func TestCatalog_Remove(t *testing.T) {
	t.Parallel()
	c := newCatalog(t)

	if !c.Remove("rex") {
		t.Fatal("Remove(rex) should report present")
	}
	if _, ok := c.Get("rex"); ok {
		t.Error("Get(rex) after Remove should miss")
	}
	for _, p := range c.List("") {
		if p.ID == "rex" {
			t.Error("List still contains removed persona")
		}
	}
	if c.Remove("rex") {
		t.Error("Remove(rex) twice should report absent")
	}
}

func TestCatalog_Get(t *testing.T) {
	t.Parallel()
	c := newCatalog(t)

	p, ok := c.Get("rex")
	if !ok || p.Name != "Rex Blastwave" {
		t.Errorf("Get(rex) = %+v, %v", p, ok)
	}
	if _, ok := c.Get("nobody"); ok {
		t.Error("Get(nobody) should miss")
	}
}

func TestCatalog_ListByCategory(t *testing.T) {
	t.Parallel()
	c := newCatalog(t)

	all := c.List("")
	if len(all) != 3 {
		t.Fatalf("List(\"\") = %d personas; want 3", len(all))
	}
	healing := c.List(persona.Healing)
	if len(healing) != 2 {
		t.Fatalf("List(healing) = %d personas; want 2", len(healing))
	}
	for _, p := range healing {
		if p.Category != persona.Healing {
			t.Errorf("List(healing) returned %q in category %q", p.ID, p.Category)
		}
	}
}

func TestCatalog_Random(t *testing.T) {
	t.Parallel()
	c := newCatalog(t)

	for range 20 {
		p, ok := c.Random("")
		if !ok {
			t.Fatal("Random on a non-empty catalog returned no persona")
		}
		if _, exists := c.Get(p.ID); !exists {
			t.Fatalf("Random returned unknown persona %q", p.ID)
		}
	}

	for range 20 {
		p, ok := c.Random(persona.Chaos)
		if !ok || p.ID != "rex" {
			t.Fatalf("Random(chaos) = %+v, %v; want rex", p, ok)
		}
	}

	if _, ok := c.Random(persona.Horror); ok {
		t.Error("Random on an empty category should report no match")
	}
}

func TestCatalog_Search(t *testing.T) {
	t.Parallel()
	c := newCatalog(t)

	tests := []struct {
		query  string
		wantID string
	}{
		{"luna", "luna"},   // exact name
		{"LUNA", "luna"},   // case-insensitive
		{"blast", "rex"},   // name substring
		{"cozy", "margo"},  // tag match
		{"lunna", "luna"},  // fuzzy typo
	}
	for _, tt := range tests {
		got := c.Search(tt.query)
		if len(got) == 0 {
			t.Errorf("Search(%q) found nothing; want %q", tt.query, tt.wantID)
			continue
		}
		if got[0].ID != tt.wantID {
			t.Errorf("Search(%q)[0] = %q; want %q", tt.query, got[0].ID, tt.wantID)
		}
	}

	if got := c.Search("xyzzy"); len(got) != 0 {
		t.Errorf("Search(xyzzy) = %d hits; want 0", len(got))
	}
	if got := c.Search("   "); got != nil {
		t.Errorf("Search(blank) = %v; want nil", got)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	const seed = `
personas:
  - id: nova
    name: Nova
    category: scifi
    system_prompt: "You are Nova, a starship AI with abandonment issues."
    voice: Kore
    rarity: legendary
    tags: [space, dry-humor]
    min_level: 5
  - id: pepper
    name: Pepper
    category: comedy
    system_prompt: "You are Pepper, a stand-up comedian between gigs."
`
	path := filepath.Join(t.TempDir(), "personas.yaml")
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	personas, err := persona.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(personas) != 2 {
		t.Fatalf("loaded %d personas; want 2", len(personas))
	}
	nova := personas[0]
	if nova.ID != "nova" || nova.Rarity != persona.Legendary || nova.MinLevel != 5 {
		t.Errorf("nova = %+v", nova)
	}
	if len(nova.Tags) != 2 {
		t.Errorf("nova tags = %v", nova.Tags)
	}
}

func TestLoadFile_InvalidEntry(t *testing.T) {
	t.Parallel()

	const seed = `
personas:
  - id: broken
    name: Broken
    category: nonsense
    system_prompt: "x"
`
	path := filepath.Join(t.TempDir(), "personas.yaml")
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := persona.LoadFile(path); err == nil {
		t.Fatal("LoadFile with an invalid category should fail")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()
	if _, err := persona.LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadFile on a missing path should fail")
	}
}
