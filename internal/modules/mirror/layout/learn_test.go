package layout

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
)

func workbook(t *testing.T, cells map[string]any, merges ...[2]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for axis, v := range cells {
		if err := f.SetCellValue(sheet, axis, v); err != nil {
			t.Fatalf("SetCellValue(%s): %v", axis, err)
		}
	}
	for _, m := range merges {
		if err := f.MergeCell(sheet, m[0], m[1]); err != nil {
			t.Fatalf("MergeCell: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf
}

func labelsOf(l *mirror.LearnedLayout) map[string]bool {
	out := map[string]bool{}
	for _, c := range l.Cells {
		if c.IsLabel {
			out[c.Text] = true
		}
	}
	return out
}

func TestLearn_LabelValuePair(t *testing.T) {
	buf := workbook(t, map[string]any{"A1": "Client Name", "B1": "Acme"})
	got, err := Learn(buf, Options{})
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	want := []mirror.LearnedCell{
		{Text: "Client Name", Row: 0, Col: 0, IsLabel: true},
		{Text: "Acme", Row: 0, Col: 1},
	}
	if diff := cmp.Diff(want, got.Cells); diff != "" {
		t.Fatalf("cells mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Client Name"}, got.Labels); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
	if got.PageSize.W != 2 || got.PageSize.H != 1 {
		t.Fatalf("page size: want=2x1 got=%dx%d", got.PageSize.W, got.PageSize.H)
	}
}

func TestLearn_ColonLabelsAndValues(t *testing.T) {
	buf := workbook(t, map[string]any{
		"A1": "Project:", "B1": "Pump Station",
		"A2": "Date:", "B2": "2024-03-01",
		"A3": "Qty:", "B3": 12,
		"A4": "Approved:", "B4": "Yes",
	})
	got, err := Learn(buf, Options{})
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	wantLabels := []string{"Project", "Date", "Qty", "Approved"}
	if diff := cmp.Diff(wantLabels, got.Labels); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
	if l := labelsOf(got); l["Pump Station"] {
		t.Fatalf("value cell classified as label")
	}
}

func TestLearn_HeaderRowAndTableBody(t *testing.T) {
	buf := workbook(t, map[string]any{
		"A1": "Tag", "B1": "Service", "C1": "Size",
		"A2": "P-101", "B2": "Feed Pump", "C2": 4,
		"A3": "P-102", "B3": "Booster", "C3": 6,
	})
	got, err := Learn(buf, Options{})
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if diff := cmp.Diff([]string{"Tag", "Service", "Size"}, got.Labels); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestLearn_MergedTitle(t *testing.T) {
	buf := workbook(t, map[string]any{"A1": "Pump Datasheet", "A3": "Client:", "B3": "Acme"}, [2]string{"A1", "C1"})
	got, err := Learn(buf, Options{})
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	title := got.Cells[0]
	if title.Text != "Pump Datasheet" || title.ColSpan != 3 || title.RowSpan != 1 {
		t.Fatalf("merged title: got=%+v", title)
	}
	if !title.IsLabel {
		t.Fatalf("title should be a label")
	}
}

func TestLearn_SheetSelection(t *testing.T) {
	f := excelize.NewFile()
	if _, err := f.NewSheet("Data"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	_ = f.SetCellValue("Data", "A1", "Vendor:")
	_ = f.SetCellValue("Data", "B1", "Globex")
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	_ = f.Close()

	got, err := Learn(bytes.NewReader(buf.Bytes()), Options{Sheet: "data"})
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if got.SheetName != "Data" {
		t.Fatalf("sheet: want=%q got=%q", "Data", got.SheetName)
	}

	_, err = Learn(bytes.NewReader(buf.Bytes()), Options{Sheet: "Missing"})
	if !errors.Is(err, ErrSheetNotFound) {
		t.Fatalf("missing sheet: want ErrSheetNotFound got=%v", err)
	}
}

func TestLearn_CorruptAndEmpty(t *testing.T) {
	if _, err := Learn(bytes.NewReader([]byte("not a workbook")), Options{}); err == nil {
		t.Fatalf("expected error for corrupt input")
	}
	buf := workbook(t, map[string]any{})
	if _, err := Learn(buf, Options{}); !errors.Is(err, ErrEmptySheet) {
		t.Fatalf("empty sheet: want ErrEmptySheet got=%v", err)
	}
}

func TestLearnFile(t *testing.T) {
	buf := workbook(t, map[string]any{"A1": "Client Name", "B1": "Acme"})
	path := filepath.Join(t.TempDir(), "upload.xlsx")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := LearnFile(path, Options{})
	if err != nil {
		t.Fatalf("LearnFile: %v", err)
	}
	if len(got.Labels) != 1 {
		t.Fatalf("labels: want=1 got=%d", len(got.Labels))
	}
	if _, err := LearnFile(filepath.Join(t.TempDir(), "nope.xlsx"), Options{}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestIsCandidate(t *testing.T) {
	cases := map[string]bool{
		"Client Name":  true,
		"Client Name:": true,
		"12.5":         false,
		"$1,200.00":    false,
		"45%":          false,
		"2024-01-31":   false,
		"31/01/2024":   false,
		"Yes":          false,
		"":             false,
		"This sentence is a long remark about the pump.": false,
	}
	for in, want := range cases {
		if got := isCandidate(in); got != want {
			t.Fatalf("isCandidate(%q): want=%v got=%v", in, want, got)
		}
	}
}

func TestLearn_RefillKeepsLabels(t *testing.T) {
	cases := []struct {
		name   string
		blank  map[string]any
		values map[string]any
		merges [][2]string
		want   []string
	}{
		{
			name:   "pairs on one row",
			blank:  map[string]any{"A1": "Client Name", "C1": "Project"},
			values: map[string]any{"B1": "Acme Corp", "D1": "Bridge"},
			want:   []string{"Client Name", "Project"},
		},
		{
			name:   "value under its label",
			blank:  map[string]any{"A1": "Client Name", "C1": "Project"},
			values: map[string]any{"A2": "Acme Corp", "C2": "Bridge"},
			want:   []string{"Client Name", "Project"},
		},
		{
			name:   "value under a colon label",
			blank:  map[string]any{"A1": "Client:"},
			values: map[string]any{"A2": "Acme Corp"},
			want:   []string{"Client"},
		},
		{
			name:   "stacked captions",
			blank:  map[string]any{"A1": "Name", "A2": "Address", "A3": "Phone"},
			values: map[string]any{"B1": "Acme", "B2": "Main St", "B3": "555 0100"},
			want:   []string{"Name", "Address", "Phone"},
		},
		{
			name:   "table with body",
			blank:  map[string]any{"A1": "Item", "B1": "Qty", "C1": "Price"},
			values: map[string]any{"A2": "Bolt", "B2": 4, "C2": 2.5, "A3": "Nut", "B3": 10, "C3": 0.4},
			want:   []string{"Item", "Qty", "Price"},
		},
		{
			name:   "merged caption",
			blank:  map[string]any{"A1": "Client Name"},
			values: map[string]any{"C1": "Acme Corp"},
			merges: [][2]string{{"A1", "B1"}},
			want:   []string{"Client Name"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			filled := map[string]any{}
			for k, v := range tc.blank {
				filled[k] = v
			}
			for k, v := range tc.values {
				filled[k] = v
			}
			blank, err := Learn(workbook(t, tc.blank, tc.merges...), Options{})
			if err != nil {
				t.Fatalf("Learn blank: %v", err)
			}
			got, err := Learn(workbook(t, filled, tc.merges...), Options{})
			if err != nil {
				t.Fatalf("Learn filled: %v", err)
			}
			if diff := cmp.Diff(tc.want, blank.Labels); diff != "" {
				t.Fatalf("blank labels (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.want, got.Labels); diff != "" {
				t.Fatalf("filled labels (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLearn_EvenRunWithNumericBodyIsTable(t *testing.T) {
	buf := workbook(t, map[string]any{
		"A1": "Line", "B1": "Item", "C1": "Qty", "D1": "Notes",
		"A2": 1, "B2": "Bolt", "C2": 4, "D2": "spare",
	})
	got, err := Learn(buf, Options{})
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if diff := cmp.Diff([]string{"Line", "Item", "Qty", "Notes"}, got.Labels); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
}
