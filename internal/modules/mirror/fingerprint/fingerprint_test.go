package fingerprint

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/modules/mirror/layout"
)

func datasheet(values ...string) *mirror.LearnedLayout {
	cells := []mirror.LearnedCell{
		{Text: "Pump Datasheet", Row: 0, Col: 0, IsLabel: true, ColSpan: 3},
		{Text: "Client:", Row: 2, Col: 0, IsLabel: true},
		{Text: "Service:", Row: 3, Col: 0, IsLabel: true},
		{Text: "Flow  Rate:", Row: 4, Col: 0, IsLabel: true},
	}
	for i, v := range values {
		if v == "" {
			continue
		}
		cells = append(cells, mirror.LearnedCell{Text: v, Row: 2 + i, Col: 1})
	}
	l := &mirror.LearnedLayout{PageSize: mirror.PageSize{W: 3, H: 5}, Cells: cells}
	for _, c := range cells {
		if c.IsLabel {
			l.Labels = append(l.Labels, mirror.LabelText(c.Text))
		}
	}
	return l
}

func TestCompute_Deterministic(t *testing.T) {
	a := Compute(datasheet("Acme", "Cooling", "120"))
	b := Compute(datasheet("Acme", "Cooling", "120"))
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("fingerprints differ (-a +b):\n%s", diff)
	}
	if len(a.GridHash) != 64 {
		t.Fatalf("grid hash length: want=64 got=%d", len(a.GridHash))
	}
}

func TestCompute_RefillStable(t *testing.T) {
	blank := Compute(datasheet())
	filled := Compute(datasheet("Globex", "Fire water", "900"))
	if blank.GridHash != filled.GridHash {
		t.Fatalf("grid hash changed after refill: %s vs %s", blank.GridHash, filled.GridHash)
	}
	if diff := cmp.Diff(blank.LabelSet, filled.LabelSet); diff != "" {
		t.Fatalf("label set changed (-blank +filled):\n%s", diff)
	}
}

func learnSheet(t *testing.T, cells map[string]any) *mirror.LearnedLayout {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for axis, v := range cells {
		if err := f.SetCellValue(sheet, axis, v); err != nil {
			t.Fatalf("SetCellValue(%s): %v", axis, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	l, err := layout.Learn(buf, layout.Options{})
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	return l
}

func TestCompute_RefillStableFromWorkbook(t *testing.T) {
	cases := map[string][2]map[string]any{
		"pairs": {
			{"A1": "Client Name", "C1": "Project"},
			{"A1": "Client Name", "B1": "Acme Corp", "C1": "Project", "D1": "Bridge"},
		},
		"value below": {
			{"A1": "Client Name", "C1": "Project"},
			{"A1": "Client Name", "A2": "Acme Corp", "C1": "Project", "C2": "Bridge"},
		},
	}
	for name, tc := range cases {
		blank := Compute(learnSheet(t, tc[0]))
		filled := Compute(learnSheet(t, tc[1]))
		if blank.GridHash != filled.GridHash {
			t.Fatalf("%s: grid hash changed after refill: %s vs %s", name, blank.GridHash, filled.GridHash)
		}
		if diff := cmp.Diff([]string{"client name", "project"}, filled.LabelSet); diff != "" {
			t.Fatalf("%s: label set (-want +got):\n%s", name, diff)
		}
		if diff := cmp.Diff(blank.Anchors, filled.Anchors); diff != "" {
			t.Fatalf("%s: anchors (-blank +filled):\n%s", name, diff)
		}
	}
}

func TestCompute_LabelSetNormalized(t *testing.T) {
	fp := Compute(datasheet())
	want := []string{"client", "flow rate", "pump datasheet", "service"}
	if diff := cmp.Diff(want, fp.LabelSet); diff != "" {
		t.Fatalf("label set mismatch (-want +got):\n%s", diff)
	}
}

func TestCompute_Anchors(t *testing.T) {
	fp := Compute(datasheet("Acme"))
	if len(fp.Anchors) == 0 {
		t.Fatalf("expected anchors")
	}
	first := fp.Anchors[0]
	if first.Text != "Pump Datasheet" {
		t.Fatalf("first anchor: want=%q got=%q", "Pump Datasheet", first.Text)
	}
	if first.BBox != (mirror.Rect{0, 0, 2, 0}) {
		t.Fatalf("anchor bbox: got=%v", first.BBox)
	}
	if len(fp.Anchors) > MaxAnchors {
		t.Fatalf("too many anchors: %d", len(fp.Anchors))
	}
}

func TestCompute_AnchorsIgnoreValues(t *testing.T) {
	build := func(filled bool) *mirror.LearnedLayout {
		l := &mirror.LearnedLayout{}
		l.Cells = append(l.Cells, mirror.LearnedCell{Text: "Pump Datasheet", Row: 0, Col: 0, IsLabel: true})
		for r := 1; r <= 9; r++ {
			l.Cells = append(l.Cells, mirror.LearnedCell{Text: fmt.Sprintf("Item %d:", r), Row: r, Col: 0, IsLabel: true})
			if filled {
				l.Cells = append(l.Cells, mirror.LearnedCell{Text: "value", Row: r, Col: 1})
			}
		}
		l.Cells = append(l.Cells, mirror.LearnedCell{Text: "Motor", Row: 10, Col: 0, IsLabel: true})
		return l
	}
	blank := Compute(build(false))
	filled := Compute(build(true))
	if diff := cmp.Diff(blank.Anchors, filled.Anchors); diff != "" {
		t.Fatalf("anchors changed after refill (-blank +filled):\n%s", diff)
	}
	if len(blank.Anchors) != MaxAnchors {
		t.Fatalf("anchors: want=%d got=%d", MaxAnchors, len(blank.Anchors))
	}
	last := blank.Anchors[len(blank.Anchors)-1]
	if last.Text != "Motor" {
		t.Fatalf("section caption should be kept as an anchor, got %+v", blank.Anchors)
	}
}

func TestCompute_DifferentTemplates(t *testing.T) {
	a := Compute(datasheet())
	other := &mirror.LearnedLayout{Cells: []mirror.LearnedCell{
		{Text: "Invoice", Row: 0, Col: 0, IsLabel: true},
		{Text: "Total:", Row: 1, Col: 3, IsLabel: true},
	}}
	b := Compute(other)
	if a.GridHash == b.GridHash {
		t.Fatalf("different layouts share a grid hash")
	}
	if ok, _ := Match(a, b, 0.8); ok {
		t.Fatalf("different layouts matched")
	}
}

func TestSimilarityAndMatch(t *testing.T) {
	a := mirror.Fingerprint{GridHash: "x", LabelSet: []string{"client", "service", "size", "tag"}}
	b := mirror.Fingerprint{GridHash: "y", LabelSet: []string{"client", "service", "size", "weight"}}
	if got := Similarity(a, b); got != 0.6 {
		t.Fatalf("similarity: want=0.6 got=%v", got)
	}
	if ok, score := Match(a, b, 0.5); !ok || score != 0.6 {
		t.Fatalf("match at 0.5: ok=%v score=%v", ok, score)
	}
	if ok, _ := Match(a, b, 0.8); ok {
		t.Fatalf("match at 0.8 should fail")
	}
	b.GridHash = "x"
	if ok, score := Match(a, b, 0.99); !ok || score != 1 {
		t.Fatalf("equal grid hash: ok=%v score=%v", ok, score)
	}
	if got := Similarity(mirror.Fingerprint{}, mirror.Fingerprint{}); got != 0 {
		t.Fatalf("empty similarity: want=0 got=%v", got)
	}
}
