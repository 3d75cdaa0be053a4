package persona

import "context"

// Store provides persistence for studio-created personas.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a persona by ID. Returns (nil, nil) if not found.
	Get(ctx context.Context, id string) (*Persona, error)

	// List returns all personas, optionally filtered by category. An
	// empty category returns everything.
	List(ctx context.Context, category Category) ([]Persona, error)

	// Upsert creates or replaces a persona (useful for seed import).
	// The persona is validated before persistence.
	Upsert(ctx context.Context, p *Persona) error

	// Delete removes a persona by ID. Deleting a non-existent persona
	// is not an error.
	Delete(ctx context.Context, id string) error
}
