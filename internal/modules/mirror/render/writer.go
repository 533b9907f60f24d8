package render

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
)

type writer struct {
	f     *excelize.File
	sheet string
	taken map[[2]int]bool
	bold  map[[2]int]bool
	rows  map[int]bool

	boldStyle, borderStyle, boldBorderStyle int

	borders []mirror.Rect
	dropped []Drop
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

func newWriter(f *excelize.File, sheet string) (*writer, error) {
	w := &writer{
		f:     f,
		sheet: sheet,
		taken: map[[2]int]bool{},
		bold:  map[[2]int]bool{},
		rows:  map[int]bool{},
	}
	var err error
	if w.boldStyle, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return nil, fmt.Errorf("bold style: %w", err)
	}
	if w.borderStyle, err = f.NewStyle(&excelize.Style{Border: thinBorder}); err != nil {
		return nil, fmt.Errorf("border style: %w", err)
	}
	if w.boldBorderStyle, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, Border: thinBorder}); err != nil {
		return nil, fmt.Errorf("bold border style: %w", err)
	}
	return w, nil
}

func axis(row, col int) (string, error) {
	return excelize.CoordinatesToCellName(col+1, row+1)
}

// put writes text unless the cell is already taken; the first writer wins.
func (w *writer) put(row, col int, text string, bold bool, field string) error {
	if text == "" {
		return nil
	}
	return w.set(row, col, text, text, bold, field)
}

func (w *writer) putValue(row, col int, v any, field string) error {
	text := Display(v)
	if text == "" {
		return nil
	}
	var raw any = text
	switch n := v.(type) {
	case float64, float32, int, int64:
		raw = n
	}
	return w.set(row, col, raw, text, false, field)
}

func (w *writer) set(row, col int, raw any, text string, bold bool, field string) error {
	if row < 0 || col < 0 {
		w.dropped = append(w.dropped, Drop{Row: row, Col: col, Text: text, Field: field})
		return nil
	}
	key := [2]int{row, col}
	if w.taken[key] {
		w.dropped = append(w.dropped, Drop{Row: row, Col: col, Text: text, Field: field})
		return nil
	}
	cell, err := axis(row, col)
	if err != nil {
		return fmt.Errorf("cell %d,%d: %w", row, col, err)
	}
	if err := w.f.SetCellValue(w.sheet, cell, raw); err != nil {
		return fmt.Errorf("write %s: %w", cell, err)
	}
	if bold {
		if err := w.f.SetCellStyle(w.sheet, cell, cell, w.boldStyle); err != nil {
			return fmt.Errorf("style %s: %w", cell, err)
		}
		w.bold[key] = true
	}
	w.taken[key] = true
	w.rows[row] = true
	return nil
}

func (w *writer) finish(lineHeight float64) error {
	for _, r := range w.borders {
		for row := r.Top(); row <= r.Bottom(); row++ {
			for col := r.Left(); col <= r.Right(); col++ {
				cell, err := axis(row, col)
				if err != nil {
					return fmt.Errorf("border cell %d,%d: %w", row, col, err)
				}
				style := w.borderStyle
				if w.bold[[2]int{row, col}] {
					style = w.boldBorderStyle
				}
				if err := w.f.SetCellStyle(w.sheet, cell, cell, style); err != nil {
					return fmt.Errorf("border %s: %w", cell, err)
				}
			}
		}
	}
	if lineHeight > 0 {
		for row := range w.rows {
			if err := w.f.SetRowHeight(w.sheet, row+1, lineHeight); err != nil {
				return fmt.Errorf("row height %d: %w", row+1, err)
			}
		}
	}
	return nil
}
