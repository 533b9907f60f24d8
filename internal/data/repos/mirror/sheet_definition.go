package mirror

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/platform/dbctx"
	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
)

var ErrDefinitionNotFound = errors.New("sheet definition not found")

const defaultCandidateLimit = 50

type SheetDefinitionRepo interface {
	Upsert(dbc dbctx.Context, row *types.SheetDefinition) error
	GetByID(dbc dbctx.Context, id string) (*types.SheetDefinition, error)
	FindByGridHash(dbc dbctx.Context, gridHash string, limit int) ([]*types.SheetDefinition, error)
	ListCandidates(dbc dbctx.Context, clientKey string, limit int) ([]*types.SheetDefinition, error)
}

type sheetDefinitionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSheetDefinitionRepo(db *gorm.DB, baseLog *logger.Logger) SheetDefinitionRepo {
	return &sheetDefinitionRepo{
		db:  db,
		log: baseLog.With("repo", "SheetDefinitionRepo"),
	}
}

// Upsert creates or fully replaces the row with the same id. created_at is
// kept from the first write.
func (r *sheetDefinitionRepo) Upsert(dbc dbctx.Context, row *types.SheetDefinition) error {
	if row == nil || strings.TrimSpace(row.ID) == "" {
		return fmt.Errorf("upsert sheet definition: missing id")
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	if row.SourceKind == "" {
		row.SourceKind = types.SourceKindXLSX
	}

	write := func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"client_key",
				"source_kind",
				"grid_hash",
				"schema_json",
				"updated_at",
			}),
		}).Create(row).Error
	}
	if dbc.Tx != nil {
		return write(dbc.Conn(r.db))
	}
	if err := dbc.Conn(r.db).Transaction(write); err != nil {
		r.log.Warn("Upsert failed", "id", row.ID, "error", err)
		return err
	}
	return nil
}

func (r *sheetDefinitionRepo) GetByID(dbc dbctx.Context, id string) (*types.SheetDefinition, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrDefinitionNotFound
	}
	var out types.SheetDefinition
	err := dbc.Conn(r.db).Where("id = ?", id).Limit(1).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDefinitionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sheetDefinitionRepo) FindByGridHash(dbc dbctx.Context, gridHash string, limit int) ([]*types.SheetDefinition, error) {
	var out []*types.SheetDefinition
	if strings.TrimSpace(gridHash) == "" {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("grid_hash = ?", gridHash).
		Order("updated_at DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListCandidates returns the most recently confirmed definitions of a client.
func (r *sheetDefinitionRepo) ListCandidates(dbc dbctx.Context, clientKey string, limit int) ([]*types.SheetDefinition, error) {
	var out []*types.SheetDefinition
	if err := dbc.Conn(r.db).
		Where("client_key = ?", clientKey).
		Order("updated_at DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultCandidateLimit
	}
	if n > 500 {
		return 500
	}
	return n
}
