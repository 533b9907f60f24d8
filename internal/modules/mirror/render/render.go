package render

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
)

const (
	ModeExact    = "exact"
	ModeFallback = "fallback"

	defaultSheet = "Sheet1"
	fallbackRow0 = 3
)

var ErrNilSchema = errors.New("render: nil schema")

type Options struct {
	OutputDir string
}

// Drop is a write skipped because its cell was already taken.
type Drop struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Text  string `json:"text"`
	Field string `json:"field,omitempty"`
}

type Result struct {
	FileName string `json:"fileName"`
	Path     string `json:"path"`
	Mode     string `json:"mode"`
	Dropped  []Drop `json:"dropped,omitempty"`
}

// Render builds the workbook for schema and values and writes it into
// opts.OutputDir under a content-addressed name.
func Render(s *mirror.Schema, values mirror.ValueMap, opts Options) (*Result, error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	f, res, err := Build(s, values)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	name, err := FileName(s, values)
	if err != nil {
		return nil, err
	}
	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := writeAtomic(f, dir, path); err != nil {
		return nil, err
	}
	res.FileName = name
	res.Path = path
	return res, nil
}

func writeAtomic(f *excelize.File, dir, path string) error {
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	fh, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	if _, err := f.WriteTo(fh); err != nil {
		_ = fh.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp output: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

// Build lays the schema out in memory. The caller owns the returned file.
func Build(s *mirror.Schema, values mirror.ValueMap) (*excelize.File, *Result, error) {
	if s == nil {
		return nil, nil, ErrNilSchema
	}
	f := excelize.NewFile()
	sheet := defaultSheet
	if name := strings.TrimSpace(s.SheetName); name != "" && name != defaultSheet {
		if err := f.SetSheetName(defaultSheet, name); err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("name sheet %q: %w", name, err)
		}
		sheet = name
	}
	if font := strings.TrimSpace(s.RenderHints.Font); font != "" {
		if err := f.SetDefaultFont(font); err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("set font: %w", err)
		}
	}

	w, err := newWriter(f, sheet)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	res := &Result{}
	if s.RenderHints.ExactPlacement {
		res.Mode = ModeExact
		err = exact(w, s, values)
	} else {
		res.Mode = ModeFallback
		err = fallback(w, s, values)
	}
	if err == nil {
		err = w.finish(s.RenderHints.BaseLineHeight)
	}
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	res.Dropped = w.dropped
	return f, res, nil
}

func exact(w *writer, s *mirror.Schema, values mirror.ValueMap) error {
	for _, r := range s.Regions.All() {
		row, col, ok := r.CaptionCell()
		if !ok {
			continue
		}
		if err := w.put(row, col, r.Name, true, ""); err != nil {
			return err
		}
	}
	for _, fd := range s.Fields {
		if len(fd.BBox) < 3 {
			continue
		}
		if err := w.put(fd.BBox.Row(), fd.BBox.LabelCol(), labelCaption(fd.Label), true, fd.Key); err != nil {
			return err
		}
		if err := w.putValue(fd.BBox.ValueRow(), fd.BBox.ValueCol(), values[fd.Key], fd.Key); err != nil {
			return err
		}
	}
	for _, tb := range s.RenderHints.TableBorders {
		if !tb.BBox.Empty() {
			w.borders = append(w.borders, tb.BBox)
		}
	}
	return nil
}

func fallback(w *writer, s *mirror.Schema, values mirror.ValueMap) error {
	title := strings.TrimSpace(s.SheetName)
	if title == "" {
		title = s.ID
	}
	if err := w.put(0, 0, title, true, ""); err != nil {
		return err
	}
	if err := w.put(2, 0, "Field", true, ""); err != nil {
		return err
	}
	if err := w.put(2, 1, "Value", true, ""); err != nil {
		return err
	}
	for i, fd := range s.Fields {
		row := fallbackRow0 + i
		label := fd.Label
		if label == "" {
			label = fd.Key
		}
		if err := w.put(row, 0, label, false, fd.Key); err != nil {
			return err
		}
		if err := w.putValue(row, 1, values[fd.Key], fd.Key); err != nil {
			return err
		}
	}
	return nil
}

func labelCaption(label string) string {
	label = strings.TrimSpace(label)
	if strings.HasSuffix(label, ":") || strings.HasSuffix(label, "：") {
		return label
	}
	return label + ":"
}

// Display converts a value into the text shown in its cell.
func Display(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// FileName is <clientKey>-<id>-<hash12>.xlsx where hash12 covers the id and
// the canonical JSON of values.
func FileName(s *mirror.Schema, values mirror.ValueMap) (string, error) {
	if s == nil {
		return "", ErrNilSchema
	}
	if values == nil {
		values = mirror.ValueMap{}
	}
	canon, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode values: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(s.ID))
	h.Write([]byte{0})
	h.Write(canon)
	sum := hex.EncodeToString(h.Sum(nil))[:12]

	client := safeName(s.ClientKey)
	if client == "" {
		client = "default"
	}
	id := safeName(s.ID)
	if id == "" {
		id = "sheet"
	}
	return fmt.Sprintf("%s-%s-%s.xlsx", client, id, sum), nil
}

func safeName(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
