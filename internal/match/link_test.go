package match

import (
	"context"
	"testing"

	"nightfeed.app/nightfeed/internal/db"
)

type boolRow struct{ value bool }

func (r boolRow) Scan(dest ...any) error {
	*(dest[0].(*bool)) = r.value
	return nil
}

type execCall struct {
	query string
	args  []any
}

// fakeLinkTx answers the primary-link existence check with a canned value and
// records every statement it is handed.
type fakeLinkTx struct {
	hasPrimary bool
	execs      []execCall
}

func (f *fakeLinkTx) QueryRow(context.Context, string, ...any) *db.Row {
	return db.NewRow(boolRow{value: f.hasPrimary})
}

func (f *fakeLinkTx) Query(context.Context, string, ...any) (*db.Rows, error) {
	return db.NewRows(nil), nil
}

func (f *fakeLinkTx) Exec(_ context.Context, query string, args ...any) (db.CommandTag, error) {
	f.execs = append(f.execs, execCall{query: query, args: args})
	return db.CommandTag{}, nil
}

func (f *fakeLinkTx) Commit(context.Context) error   { return nil }
func (f *fakeLinkTx) Rollback(context.Context) error { return nil }

func TestInsertLinkElectsFirstLinkPrimary(t *testing.T) {
	t.Parallel()

	tx := &fakeLinkTx{hasPrimary: false}
	if err := insertLink(context.Background(), tx, 7, 42, "ra", 0.91); err != nil {
		t.Fatalf("insertLink: %v", err)
	}
	if len(tx.execs) != 1 {
		t.Fatalf("execs = %d, want 1 insert", len(tx.execs))
	}

	args := tx.execs[0].args
	if got := args[4]; got != true {
		t.Fatalf("is_primary = %v, want true for the source's first link", got)
	}
	if got := args[3]; got != 0.91 {
		t.Fatalf("confidence = %v, want 0.91", got)
	}
}

func TestInsertLinkKeepsExistingPrimary(t *testing.T) {
	t.Parallel()

	tx := &fakeLinkTx{hasPrimary: true}
	if err := insertLink(context.Background(), tx, 7, 43, "ra", 0.88); err != nil {
		t.Fatalf("insertLink: %v", err)
	}
	if len(tx.execs) != 1 {
		t.Fatalf("execs = %d, want 1 insert", len(tx.execs))
	}
	if got := tx.execs[0].args[4]; got != false {
		t.Fatalf("is_primary = %v, want false when the source already holds a primary link", got)
	}
}
