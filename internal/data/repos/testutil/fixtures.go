package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
)

// Schema returns a small confirmed-looking schema for id.
func Schema(id, clientKey string, labels ...string) *mirror.Schema {
	s := &mirror.Schema{
		ID:         id,
		ClientKey:  clientKey,
		SourceKind: mirror.SourceKindXLSX,
		Regions: mirror.Regions{
			Header:    mirror.RegionDef{Name: "header", BBox: mirror.Rect{0, 0, 1, len(labels)}},
			Subsheets: []mirror.RegionDef{},
		},
		RenderHints: mirror.RenderHints{ExactPlacement: true, TableBorders: []mirror.TableBorder{}},
	}
	for i, l := range labels {
		s.Fields = append(s.Fields, mirror.FieldDef{
			Key:   l,
			Label: l,
			BBox:  mirror.BBox{0, i, 1},
			Type:  mirror.FieldTypeString,
			MapTo: mirror.MapTo{Bucket: mirror.BucketSheet},
		})
		s.Fingerprint.LabelSet = append(s.Fingerprint.LabelSet, l)
	}
	s.Fingerprint.GridHash = "hash-" + id
	return s
}

func SeedDefinition(tb testing.TB, ctx context.Context, tx *gorm.DB, s *mirror.Schema) *mirror.SheetDefinition {
	tb.Helper()
	row, err := mirror.NewSheetDefinition(s)
	if err != nil {
		tb.Fatalf("build definition: %v", err)
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed definition: %v", err)
	}
	return row
}
