package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/modules/mirror/render"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("mirrorctl %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func writeSheet(t *testing.T, dir string, cells map[string]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for axis, v := range cells {
		if err := f.SetCellValue(sheet, axis, v); err != nil {
			t.Fatalf("SetCellValue: %v", err)
		}
	}
	path := filepath.Join(dir, "in.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func TestLearnThenRender(t *testing.T) {
	dir := t.TempDir()
	src := writeSheet(t, dir, map[string]any{"A1": "Client Name", "B1": "Acme"})

	schemaYAML := runCLI(t, "learn", src, "--id", "t1", "--client", "acme")
	if !strings.Contains(schemaYAML, "clientKey: acme") {
		t.Fatalf("yaml should use json field names:\n%s", schemaYAML)
	}
	schemaPath := filepath.Join(dir, "schema.yaml")
	if err := os.WriteFile(schemaPath, []byte(schemaYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	valuesPath := filepath.Join(dir, "values.yaml")
	if err := os.WriteFile(valuesPath, []byte("client_name: Globex\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	outDir := filepath.Join(dir, "out")
	var res render.Result
	if err := json.Unmarshal([]byte(runCLI(t, "-o", "json", "render", schemaPath, valuesPath, "--out", outDir)), &res); err != nil {
		t.Fatalf("decode render result: %v", err)
	}
	f, err := excelize.OpenFile(filepath.Join(outDir, res.FileName))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	if got, _ := f.GetCellValue(f.GetSheetName(0), "B1"); got != "Globex" {
		t.Fatalf("B1: want=%q got=%q", "Globex", got)
	}
}

func TestFingerprintAndMatch(t *testing.T) {
	a := writeSheet(t, t.TempDir(), map[string]any{"A1": "Client Name", "B1": "Acme"})
	b := writeSheet(t, t.TempDir(), map[string]any{"A1": "Client Name", "B1": "Initech"})

	var fp mirror.Fingerprint
	if err := json.Unmarshal([]byte(runCLI(t, "fingerprint", a, "-o", "json")), &fp); err != nil {
		t.Fatalf("decode fingerprint: %v", err)
	}
	if fp.GridHash == "" {
		t.Fatalf("empty grid hash")
	}

	var rep matchReport
	if err := json.Unmarshal([]byte(runCLI(t, "match", a, b, "-o", "json")), &rep); err != nil {
		t.Fatalf("decode match: %v", err)
	}
	if !rep.Matched || !rep.SameGrid || rep.Similarity != 1 {
		t.Fatalf("refilled sheet should match its template: %+v", rep)
	}
}

func TestWriteDocRejectsUnknownFormat(t *testing.T) {
	if err := writeDoc(&bytes.Buffer{}, "xml", map[string]int{"a": 1}); err == nil {
		t.Fatalf("expected error")
	}
}
