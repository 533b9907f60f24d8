package mirror

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	types "github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
)

func TestCoerceValues(t *testing.T) {
	s := &types.Schema{Fields: []types.FieldDef{
		{Key: "qty", Type: types.FieldTypeNumber},
		{Key: "paid", Type: types.FieldTypeBool},
		{Key: "due", Type: types.FieldTypeDate},
		{Key: "phase", Type: types.FieldTypeEnum, Options: []string{"Single", "Three"}},
		{Key: "note", Type: types.FieldTypeString},
		{Key: "blank", Type: types.FieldTypeNumber},
	}}
	in := types.ValueMap{
		"qty":   "1,250.5",
		"paid":  "yes",
		"due":   "2024-03-01",
		"phase": "three",
		"note":  42.0,
		"blank": "  ",
		"extra": "x",
	}
	got, warnings := coerceValues(s, in)

	want := types.ValueMap{
		"qty":   1250.5,
		"paid":  true,
		"due":   "2024-03-01",
		"phase": "Three",
		"note":  42.0,
		"blank": nil,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if len(warnings) != 1 || warnings[0].Field != "extra" {
		t.Fatalf("warnings: got=%+v", warnings)
	}
}

func TestCoerceOne_Mismatches(t *testing.T) {
	cases := []struct {
		field types.FieldDef
		in    any
	}{
		{types.FieldDef{Type: types.FieldTypeNumber}, "lots"},
		{types.FieldDef{Type: types.FieldTypeNumber}, true},
		{types.FieldDef{Type: types.FieldTypeBool}, "maybe"},
		{types.FieldDef{Type: types.FieldTypeDate}, "someday"},
		{types.FieldDef{Type: types.FieldTypeEnum, Options: []string{"A", "B"}}, "C"},
	}
	for _, tc := range cases {
		got, msg := coerceOne(tc.field, tc.in)
		if msg == "" {
			t.Fatalf("%s %v: expected a warning", tc.field.Type, tc.in)
		}
		if got != tc.in {
			t.Fatalf("%s: mismatched values are passed through, want=%v got=%v", tc.field.Type, tc.in, got)
		}
	}
}

func TestDedupeSameRowLabels_KeepsLeftmost(t *testing.T) {
	s := &types.Schema{Fields: []types.FieldDef{
		{Key: "b", Label: "Voltage", BBox: types.BBox{3, 1, 4}},
		{Key: "a", Label: "voltage ", BBox: types.BBox{0, 1, 1}},
		{Key: "c", Label: "Voltage", BBox: types.BBox{0, 2, 1}},
	}}
	removed := dedupeSameRowLabels(s)
	if diff := cmp.Diff([]string{"b"}, removed); diff != "" {
		t.Fatalf("removed mismatch (-want +got):\n%s", diff)
	}
	if len(s.Fields) != 2 || s.Fields[0].Key != "a" || s.Fields[1].Key != "c" {
		t.Fatalf("fields: got=%+v", s.Fields)
	}
}

func TestCoerceOne_IntegerKinds(t *testing.T) {
	field := types.FieldDef{Key: "qty", Type: types.FieldTypeNumber}
	for _, in := range []any{7, int32(7), int64(7), uint8(7), float32(7), json.Number("7")} {
		got, msg := coerceOne(field, in)
		if msg != "" {
			t.Fatalf("%T: unexpected warning %q", in, msg)
		}
		if got != 7.0 {
			t.Fatalf("%T: want=7 got=%v (%T)", in, got, got)
		}
	}
}
