package persona

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// mockRows implements pgx.Rows for testing.
type mockRows struct {
	data [][]any
	idx  int
	err  error
}

func (r *mockRows) Close()                                       {}
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *Category:
			*d = v.(Category)
		case *Rarity:
			*d = v.(Rarity)
		case *[]byte:
			*d = v.([]byte)
		case *int:
			*d = v.(int)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

// mockDB implements the DB interface for testing.
type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func personaRow(id, name string) []any {
	return []any{
		id, name, Healing, "", "", "Aoede", "",
		"You are " + name + ".", Common, []byte(`["calm"]`), "", "",
		"", 0, time.Now(), time.Now(),
	}
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	t.Parallel()
	s := NewPostgresStore(&mockDB{})

	p, err := s.Get(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p != nil {
		t.Errorf("Get(ghost) = %+v; want nil", p)
	}
}

func TestPostgresStore_Get_ScanError(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection lost")
	s := NewPostgresStore(&mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(_ ...any) error { return boom }}
		},
	})

	if _, err := s.Get(context.Background(), "luna"); !errors.Is(err, boom) {
		t.Errorf("Get error = %v; want wrapped %v", err, boom)
	}
}

func TestPostgresStore_List(t *testing.T) {
	t.Parallel()
	s := NewPostgresStore(&mockDB{
		queryFunc: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return &mockRows{data: [][]any{
				personaRow("luna", "Luna"),
				personaRow("margo", "Margo"),
			}}, nil
		},
	})

	personas, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(personas) != 2 {
		t.Fatalf("List = %d personas; want 2", len(personas))
	}
	if personas[0].ID != "luna" || personas[0].Tags[0] != "calm" {
		t.Errorf("personas[0] = %+v", personas[0])
	}
}

func TestPostgresStore_List_FiltersByCategory(t *testing.T) {
	t.Parallel()
	var gotArgs []any
	s := NewPostgresStore(&mockDB{
		queryFunc: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			gotArgs = args
			return &mockRows{}, nil
		},
	})

	if _, err := s.List(context.Background(), Horror); err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(gotArgs) != 1 || gotArgs[0] != Horror {
		t.Errorf("query args = %v; want [horror]", gotArgs)
	}
}

func TestPostgresStore_Upsert_Validates(t *testing.T) {
	t.Parallel()
	s := NewPostgresStore(&mockDB{})

	err := s.Upsert(context.Background(), &Persona{ID: "x"})
	if err == nil {
		t.Fatal("Upsert of an invalid persona should fail before touching the DB")
	}
}

func TestPostgresStore_Upsert_SetsTimestamps(t *testing.T) {
	t.Parallel()
	now := time.Now()
	s := NewPostgresStore(&mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(dest ...any) error {
				*dest[0].(*time.Time) = now
				*dest[1].(*time.Time) = now
				return nil
			}}
		},
	})

	p := &Persona{
		ID: "luna", Name: "Luna", Category: Healing,
		SystemPrompt: "You are Luna.",
	}
	if err := s.Upsert(context.Background(), p); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !p.CreatedAt.Equal(now) || !p.UpdatedAt.Equal(now) {
		t.Errorf("timestamps not set: %+v", p)
	}
}

func TestPostgresStore_Delete_NotFoundIsOK(t *testing.T) {
	t.Parallel()
	s := NewPostgresStore(&mockDB{})
	if err := s.Delete(context.Background(), "ghost"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
