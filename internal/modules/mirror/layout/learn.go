package layout

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
)

var (
	ErrNoSheets      = errors.New("workbook has no sheets")
	ErrSheetNotFound = errors.New("sheet not found")
	ErrEmptySheet    = errors.New("sheet has no populated cells")
)

type Options struct {
	// Sheet selects the sheet of interest; empty means the active sheet.
	Sheet string
}

// LearnFile opens path and learns its layout.
func LearnFile(path string, opts Options) (*mirror.LearnedLayout, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer fh.Close()
	return Learn(fh, opts)
}

// Learn parses a spreadsheet into a flat, position-annotated layout. Every
// non-empty cell appears exactly once, row-major.
func Learn(r io.Reader, opts Options) (*mirror.LearnedLayout, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet, err := pickSheet(f, opts.Sheet)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows of %q: %w", sheet, err)
	}

	cells := collectCells(rows)
	if len(cells) == 0 {
		return nil, ErrEmptySheet
	}
	applyMerges(f, sheet, cells)
	classifyLabels(cells)

	out := &mirror.LearnedLayout{
		SheetName: sheet,
		PageSize:  pageSize(f, sheet, cells),
		Cells:     cells,
		Labels:    make([]string, 0, len(cells)),
	}
	for _, c := range cells {
		if c.IsLabel {
			out.Labels = append(out.Labels, mirror.LabelText(c.Text))
		}
	}
	if font, err := f.GetDefaultFont(); err == nil {
		out.Font = font
	}
	if h, err := f.GetRowHeight(sheet, 1); err == nil && h > 0 {
		out.BaseLineHeight = h
	}
	return out, nil
}

func pickSheet(f *excelize.File, want string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", ErrNoSheets
	}
	want = strings.TrimSpace(want)
	if want != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, want) {
				return s, nil
			}
		}
		return "", fmt.Errorf("%w: %q", ErrSheetNotFound, want)
	}
	if name := f.GetSheetName(f.GetActiveSheetIndex()); name != "" {
		return name, nil
	}
	return sheets[0], nil
}

func collectCells(rows [][]string) []mirror.LearnedCell {
	var cells []mirror.LearnedCell
	for r, row := range rows {
		for c, raw := range row {
			text := strings.TrimSpace(raw)
			if text == "" {
				continue
			}
			cells = append(cells, mirror.LearnedCell{Text: text, Row: r, Col: c})
		}
	}
	return cells
}

func applyMerges(f *excelize.File, sheet string, cells []mirror.LearnedCell) {
	merges, err := f.GetMergeCells(sheet)
	if err != nil || len(merges) == 0 {
		return
	}
	index := make(map[[2]int]int, len(cells))
	for i, c := range cells {
		index[[2]int{c.Row, c.Col}] = i
	}
	for _, mg := range merges {
		sc, sr, err1 := excelize.CellNameToCoordinates(mg.GetStartAxis())
		ec, er, err2 := excelize.CellNameToCoordinates(mg.GetEndAxis())
		if err1 != nil || err2 != nil {
			continue
		}
		i, ok := index[[2]int{sr - 1, sc - 1}]
		if !ok {
			continue
		}
		cells[i].RowSpan = er - sr + 1
		cells[i].ColSpan = ec - sc + 1
	}
}

// classifyLabels flags label cells in place. Rows are visited top-down so that
// a header row can claim the rows under it as table body. The flags must not
// change when a blank template is filled in, so a text value never becomes a
// label just because it is caption-shaped.
func classifyLabels(cells []mirror.LearnedCell) {
	at := make(map[[2]int]int, len(cells))
	byRow := map[int][]int{}
	var rowOrder []int
	for i, c := range cells {
		at[[2]int{c.Row, c.Col}] = i
		if _, ok := byRow[c.Row]; !ok {
			rowOrder = append(rowOrder, c.Row)
		}
		byRow[c.Row] = append(byRow[c.Row], i)
	}
	sort.Ints(rowOrder)

	inTable := map[int]bool{}
	var table *tableSpan
	for _, r := range rowOrder {
		idx := byRow[r]
		sort.Slice(idx, func(a, b int) bool { return cells[idx[a]].Col < cells[idx[b]].Col })

		if table != nil && table.continuesAt(r, cells, idx) {
			table.lastRow = r
			for _, i := range idx {
				inTable[i] = true
			}
			continue
		}
		table = nil

		if run := longestHeaderRun(cells, idx); len(run) >= minHeaderRun && isTableHeader(cells, run, byRow[r+1]) {
			for _, i := range run {
				cells[i].IsLabel = true
				inTable[i] = true
			}
			last := cells[run[len(run)-1]]
			_, cs := last.Spans()
			table = &tableSpan{
				minCol:  cells[run[0]].Col,
				maxCol:  last.Col + cs - 1,
				lastRow: r,
			}
		}

		// labelEnd marks the last column covered by a label on this row.
		labelEnd := map[int]bool{}
		for _, i := range idx {
			c := cells[i]
			_, cs := c.Spans()
			if !inTable[i] {
				switch {
				case isStrongLabel(c.Text):
					cells[i].IsLabel = true
				case isCandidate(c.Text) && !labelEnd[c.Col-1]:
					cells[i].IsLabel = true
				}
			}
			if cells[i].IsLabel {
				labelEnd[c.Col+cs-1] = true
			}
		}
	}
	claimValuesBelow(cells, at, inTable)
}

type tableSpan struct {
	minCol, maxCol int
	lastRow        int
}

func (t *tableSpan) continuesAt(row int, cells []mirror.LearnedCell, idx []int) bool {
	if row != t.lastRow+1 {
		return false
	}
	for _, i := range idx {
		c := cells[i]
		if c.Col < t.minCol || c.Col > t.maxCol || isStrongLabel(c.Text) {
			return false
		}
	}
	return true
}

// longestHeaderRun returns the longest run of horizontally adjacent caption
// cells without colons in one row. Merged cells are adjacent to whatever
// starts right after their span.
func longestHeaderRun(cells []mirror.LearnedCell, idx []int) []int {
	var best, cur []int
	next := -1
	for _, i := range idx {
		c := cells[i]
		ok := isCandidate(c.Text) && !isStrongLabel(c.Text)
		switch {
		case ok && len(cur) > 0 && c.Col == next:
			cur = append(cur, i)
		case ok:
			cur = []int{i}
		default:
			cur = nil
		}
		_, cs := c.Spans()
		next = c.Col + cs
		if len(cur) > len(best) {
			best = append(best[:0:0], cur...)
		}
	}
	return best
}

// isTableHeader tells a header row from a filled row of caption/value pairs,
// which also reads as adjacent captions. An odd run cannot be all pairs. An
// even run heads a table only when the row below holds a value-shaped cell
// (number, date, flag) in a column the pair reading would call a caption.
func isTableHeader(cells []mirror.LearnedCell, run, below []int) bool {
	if len(run)%2 == 1 {
		return true
	}
	captionCols := make(map[int]bool, len(run)/2)
	for k := 0; k < len(run); k += 2 {
		captionCols[cells[run[k]].Col] = true
	}
	for _, i := range below {
		c := cells[i]
		if !captionCols[c.Col] {
			continue
		}
		if !isCandidate(c.Text) && !isStrongLabel(c.Text) {
			return true
		}
	}
	return false
}

// claimValuesBelow clears the label flag of a colon-free caption-shaped cell
// that sits under a label with nothing to its right: the value of a
// label-above-value field. The label above must carry a colon or start its
// column stack, so a column of blank captions keeps every caption.
func claimValuesBelow(cells []mirror.LearnedCell, at map[[2]int]int, inTable map[int]bool) {
	lone := func(i int) bool {
		c := cells[i]
		if !c.IsLabel || inTable[i] {
			return false
		}
		_, cs := c.Spans()
		_, right := at[[2]int{c.Row, c.Col + cs}]
		return !right
	}
	for i, c := range cells {
		if !lone(i) || isStrongLabel(c.Text) {
			continue
		}
		rs, _ := c.Spans()
		if _, below := at[[2]int{c.Row + rs, c.Col}]; below {
			continue
		}
		above, ok := at[[2]int{c.Row - 1, c.Col}]
		if !ok || !lone(above) {
			continue
		}
		if !isStrongLabel(cells[above].Text) {
			if top, ok := at[[2]int{c.Row - 2, c.Col}]; ok && lone(top) {
				continue
			}
		}
		cells[i].IsLabel = false
	}
}

func pageSize(f *excelize.File, sheet string, cells []mirror.LearnedCell) mirror.PageSize {
	var ps mirror.PageSize
	for _, c := range cells {
		rs, cs := c.Spans()
		if c.Col+cs > ps.W {
			ps.W = c.Col + cs
		}
		if c.Row+rs > ps.H {
			ps.H = c.Row + rs
		}
	}
	dim, err := f.GetSheetDimension(sheet)
	if err != nil || dim == "" {
		return ps
	}
	parts := strings.Split(dim, ":")
	col, row, err := excelize.CellNameToCoordinates(parts[len(parts)-1])
	if err != nil {
		return ps
	}
	if col > ps.W {
		ps.W = col
	}
	if row > ps.H {
		ps.H = row
	}
	return ps
}
