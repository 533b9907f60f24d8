package mirror

import (
	"errors"
	"fmt"
	"strings"

	types "github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
)

// normalizeAndValidate fills defaults in place and rejects schemas that cannot
// be stored or rendered.
func normalizeAndValidate(s *types.Schema) error {
	if s == nil {
		return errors.New("missing schema")
	}
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		return errors.New("missing id")
	}
	if s.SourceKind == "" {
		s.SourceKind = types.SourceKindXLSX
	}
	seen := make(map[string]bool, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		f.Key = strings.TrimSpace(f.Key)
		if f.Key == "" {
			return fmt.Errorf("field %d: empty key", i)
		}
		if seen[f.Key] {
			return fmt.Errorf("field %d: duplicate key %q", i, f.Key)
		}
		seen[f.Key] = true

		if n := len(f.BBox); n != 3 && n != 4 {
			return fmt.Errorf("field %q: bbox needs 3 or 4 elements, got %d", f.Key, n)
		}
		for _, v := range f.BBox {
			if v < 0 {
				return fmt.Errorf("field %q: negative bbox coordinate", f.Key)
			}
		}
		if f.Type == "" {
			f.Type = types.FieldTypeString
		}
		if !f.Type.Valid() {
			return fmt.Errorf("field %q: unknown type %q", f.Key, f.Type)
		}
		if f.MapTo.Bucket == "" {
			f.MapTo.Bucket = types.BucketSheet
		}
		if !f.MapTo.Bucket.Valid() {
			return fmt.Errorf("field %q: unknown bucket %q", f.Key, f.MapTo.Bucket)
		}
	}
	return nil
}

// dedupeSameRowLabels drops fields that repeat a label (case-insensitively)
// on the same row, keeping the leftmost one. Order is otherwise preserved.
func dedupeSameRowLabels(s *types.Schema) []string {
	type rowLabel struct {
		row   int
		label string
	}
	keep := map[rowLabel]int{}
	for i, f := range s.Fields {
		k := rowLabel{row: f.BBox.Row(), label: strings.ToLower(strings.TrimSpace(f.Label))}
		if k.label == "" {
			continue
		}
		if j, ok := keep[k]; !ok || f.BBox.LabelCol() < s.Fields[j].BBox.LabelCol() {
			keep[k] = i
		}
	}

	var removed []string
	out := s.Fields[:0:0]
	for i, f := range s.Fields {
		k := rowLabel{row: f.BBox.Row(), label: strings.ToLower(strings.TrimSpace(f.Label))}
		if j, ok := keep[k]; ok && j != i {
			removed = append(removed, f.Key)
			continue
		}
		out = append(out, f)
	}
	s.Fields = out
	return removed
}
