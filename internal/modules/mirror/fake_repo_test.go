package mirror

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	repomirror "github.com/yungbote/sheetmirror-backend/internal/data/repos/mirror"
	types "github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/platform/dbctx"
)

type fakeRepo struct {
	mu   sync.Mutex
	rows map[string]types.SheetDefinition

	gets      atomic.Int32
	upsertErr error
	getErr    error
	// hold, when set, blocks GetByID until it is closed.
	hold chan struct{}
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]types.SheetDefinition{}}
}

var _ repomirror.SheetDefinitionRepo = (*fakeRepo)(nil)

func (r *fakeRepo) Upsert(dbc dbctx.Context, row *types.SheetDefinition) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	cp := *row
	if prev, ok := r.rows[row.ID]; ok {
		cp.CreatedAt = prev.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.rows[row.ID] = cp
	return nil
}

func (r *fakeRepo) GetByID(dbc dbctx.Context, id string) (*types.SheetDefinition, error) {
	r.gets.Add(1)
	if r.hold != nil {
		<-r.hold
	}
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, repomirror.ErrDefinitionNotFound
	}
	return &row, nil
}

func (r *fakeRepo) FindByGridHash(dbc dbctx.Context, gridHash string, limit int) ([]*types.SheetDefinition, error) {
	return r.filter(func(row types.SheetDefinition) bool {
		return gridHash != "" && row.GridHash == gridHash
	}, limit), nil
}

func (r *fakeRepo) ListCandidates(dbc dbctx.Context, clientKey string, limit int) ([]*types.SheetDefinition, error) {
	return r.filter(func(row types.SheetDefinition) bool {
		return row.ClientKey == clientKey
	}, limit), nil
}

func (r *fakeRepo) filter(keep func(types.SheetDefinition) bool, limit int) []*types.SheetDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.SheetDefinition
	for _, row := range r.rows {
		if keep(row) {
			cp := row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *fakeRepo) seed(t interface{ Fatalf(string, ...any) }, s *types.Schema) {
	row, err := types.NewSheetDefinition(s)
	if err != nil {
		t.Fatalf("NewSheetDefinition: %v", err)
	}
	r.mu.Lock()
	r.rows[s.ID] = *row
	r.mu.Unlock()
}

func clientSchema(id string) *types.Schema {
	return &types.Schema{
		ID:         id,
		ClientKey:  "acme",
		SourceKind: types.SourceKindXLSX,
		Regions: types.Regions{
			Header: types.RegionDef{Name: "header", BBox: types.Rect{0, 0, 1, 0}},
		},
		Fields: []types.FieldDef{{
			Key:   "client_name",
			Label: "Client Name",
			BBox:  types.BBox{0, 0, 1},
			Type:  types.FieldTypeString,
			MapTo: types.MapTo{Bucket: types.BucketSheet},
		}},
		RenderHints: types.RenderHints{ExactPlacement: true},
	}
}
