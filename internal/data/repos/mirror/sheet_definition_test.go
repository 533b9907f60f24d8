package mirror

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yungbote/sheetmirror-backend/internal/data/repos/testutil"
	types "github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/platform/dbctx"
)

func TestSheetDefinitionRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSheetDefinitionRepo(db, testutil.Logger(t))

	if _, err := repo.GetByID(dbc, "missing"); !errors.Is(err, ErrDefinitionNotFound) {
		t.Fatalf("GetByID missing: want ErrDefinitionNotFound got=%v", err)
	}

	s1 := testutil.Schema("t1", "acme", "client_name")
	row, err := types.NewSheetDefinition(s1)
	if err != nil {
		t.Fatalf("NewSheetDefinition: %v", err)
	}
	if err := repo.Upsert(dbc, row); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := repo.GetByID(dbc, "t1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	gotSchema, err := got.Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if diff := cmp.Diff(s1, gotSchema); diff != "" {
		t.Fatalf("schema round trip (-want +got):\n%s", diff)
	}
	created := got.CreatedAt

	// Re-confirming the same id replaces the row in place.
	s2 := testutil.Schema("t1", "acme", "client_name", "project")
	row2, _ := types.NewSheetDefinition(s2)
	if err := repo.Upsert(dbc, row2); err != nil {
		t.Fatalf("Upsert replace: %v", err)
	}
	if err := repo.Upsert(dbc, row2); err != nil {
		t.Fatalf("Upsert idempotent: %v", err)
	}
	got, err = repo.GetByID(dbc, "t1")
	if err != nil {
		t.Fatalf("GetByID after replace: %v", err)
	}
	gotSchema, _ = got.Schema()
	if len(gotSchema.Fields) != 2 {
		t.Fatalf("fields after replace: want=2 got=%d", len(gotSchema.Fields))
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at changed on replace: %v -> %v", created, got.CreatedAt)
	}

	testutil.SeedDefinition(t, ctx, tx, testutil.Schema("t2", "acme", "vendor"))
	testutil.SeedDefinition(t, ctx, tx, testutil.Schema("t3", "globex", "vendor"))

	if rows, err := repo.FindByGridHash(dbc, "hash-t1", 10); err != nil || len(rows) != 1 {
		t.Fatalf("FindByGridHash: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.FindByGridHash(dbc, "", 10); err != nil || len(rows) != 0 {
		t.Fatalf("FindByGridHash empty: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.ListCandidates(dbc, "acme", 0); err != nil || len(rows) != 2 {
		t.Fatalf("ListCandidates: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.ListCandidates(dbc, "acme", 1); err != nil || len(rows) != 1 {
		t.Fatalf("ListCandidates limit: err=%v len=%d", err, len(rows))
	}

	if err := repo.Upsert(dbc, &types.SheetDefinition{}); err == nil {
		t.Fatalf("Upsert without id should fail")
	}
}
