package classify

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
)

const (
	HeaderRegion    = "header"
	EquipmentRegion = "equipment"
	subsheetPrefix  = "subsheet_"
	minHeaderLabels = 3
)

type Options struct {
	ID         string
	ClientKey  string
	SourceKind string
}

type regionCtx struct {
	def    mirror.RegionDef
	bucket mirror.Bucket
	band   *band
}

// Classify turns a learned layout into a draft schema. The fingerprint is left
// empty for the caller to fill in.
func Classify(l *mirror.LearnedLayout, opts Options) *mirror.Schema {
	s := &mirror.Schema{
		ID:         opts.ID,
		ClientKey:  opts.ClientKey,
		SourceKind: opts.SourceKind,
		Fields:     []mirror.FieldDef{},
		RenderHints: mirror.RenderHints{
			TableBorders:   []mirror.TableBorder{},
			ExactPlacement: true,
		},
	}
	if s.SourceKind == "" {
		s.SourceKind = mirror.SourceKindXLSX
	}
	if l == nil {
		return s
	}
	s.SheetName = l.SheetName
	s.RenderHints.Font = l.Font
	s.RenderHints.BaseLineHeight = l.BaseLineHeight

	cells := l.Cells
	bands := splitBands(cells)
	regions := make([]regionCtx, 0, len(bands))
	for i, b := range bands {
		rc := regionCtx{band: b}
		name := ""
		if b.title >= 0 {
			tc := cells[b.title]
			name = mirror.LabelText(tc.Text)
			rs, cs := tc.Spans()
			rc.def.Anchor = &mirror.Rect{tc.Col, tc.Row, tc.Col + cs - 1, tc.Row + rs - 1}
		}
		body := b.body()
		rect := (&band{cells: body}).rect(cells)
		switch i {
		case 0:
			rc.bucket = mirror.BucketSheet
			if name == "" {
				name = HeaderRegion
			}
		case 1:
			rc.bucket = mirror.BucketEquipment
			if name == "" {
				name = EquipmentRegion
			}
		default:
			rc.bucket = mirror.BucketSubsheet
			if name == "" {
				name = fmt.Sprintf("%s%d", subsheetPrefix, i-1)
			}
			grid := &mirror.RegionGrid{
				Rows:       rect.Bottom() - rect.Top() + 1,
				Cols:       rect.Right() - rect.Left() + 1,
				CellBBoxes: make([]mirror.Rect, 0, len(body)),
			}
			for _, ci := range body {
				c := cells[ci]
				rs, cs := c.Spans()
				grid.CellBBoxes = append(grid.CellBBoxes, mirror.Rect{c.Col, c.Row, c.Col + cs - 1, c.Row + rs - 1})
			}
			rc.def.Grid = grid
		}
		rc.def.Name = name
		rc.def.BBox = rect
		regions = append(regions, rc)
	}

	for i, rc := range regions {
		switch i {
		case 0:
			s.Regions.Header = rc.def
		case 1:
			s.Regions.Equipment = rc.def
		default:
			s.Regions.Subsheets = append(s.Regions.Subsheets, rc.def)
		}
	}
	if s.Regions.Subsheets == nil {
		s.Regions.Subsheets = []mirror.RegionDef{}
	}

	idx := newCellIndex(cells)
	cov := newCoverage(cells)
	keys := newKeyAllocator()
	var drafts []fieldDraft
	for _, rc := range regions {
		bodyCells := rc.band.body()
		for _, t := range detectTables(cells, idx, bodyCells) {
			s.RenderHints.TableBorders = append(s.RenderHints.TableBorders, mirror.TableBorder{
				Region: rc.def.Name,
				BBox:   t.rect,
			})
		}
		for _, ci := range bodyCells {
			c := cells[ci]
			if !c.IsLabel {
				continue
			}
			d := pairValue(cells, idx, cov, ci, rc.band)
			d.region = rc.def.Name
			label := mirror.LabelText(c.Text)
			d.field = mirror.FieldDef{
				Key:   keys.next(label),
				Label: label,
				BBox:  d.bbox,
				MapTo: mirror.MapTo{Bucket: rc.bucket},
			}
			if rc.bucket == mirror.BucketSubsheet {
				d.field.MapTo.SubsheetName = rc.def.Name
			}
			drafts = append(drafts, d)
		}
	}
	inferTypes(drafts)
	for _, d := range drafts {
		s.Fields = append(s.Fields, d.field)
	}
	return s
}

type fieldDraft struct {
	field   mirror.FieldDef
	bbox    mirror.BBox
	region  string
	samples []string
}

type cellIndex map[[2]int]int

func newCellIndex(cells []mirror.LearnedCell) cellIndex {
	idx := make(cellIndex, len(cells))
	for i, c := range cells {
		idx[[2]int{c.Row, c.Col}] = i
	}
	return idx
}

func (x cellIndex) at(row, col int) (int, bool) {
	i, ok := x[[2]int{row, col}]
	return i, ok
}

// coverage maps every grid position, merged spans included, to the cell
// covering it.
type coverage map[[2]int]int

func newCoverage(cells []mirror.LearnedCell) coverage {
	cov := make(coverage, len(cells))
	for i, c := range cells {
		rs, cs := c.Spans()
		for r := c.Row; r < c.Row+rs; r++ {
			for col := c.Col; col < c.Col+cs; col++ {
				cov[[2]int{r, col}] = i
			}
		}
	}
	return cov
}

func (cv coverage) free(row, col int) bool {
	_, ok := cv[[2]int{row, col}]
	return !ok
}

func (cv coverage) label(cells []mirror.LearnedCell, row, col int) bool {
	i, ok := cv[[2]int{row, col}]
	return ok && cells[i].IsLabel
}

// pairValue finds where a label's value lives: to the right on its row, else
// under a column header. A label is never a value cell, so a label without a
// value gets the free cell beside it, or the one below when it sits in a row
// of adjacent captions.
func pairValue(cells []mirror.LearnedCell, idx cellIndex, cov coverage, li int, b *band) fieldDraft {
	lc := cells[li]
	rs, cs := lc.Spans()

	right := -1
	for _, ci := range b.cells {
		c := cells[ci]
		if c.Row != lc.Row || c.Col <= lc.Col {
			continue
		}
		if right < 0 || c.Col < cells[right].Col {
			right = ci
		}
	}
	if right >= 0 && !cells[right].IsLabel {
		vc := cells[right]
		return fieldDraft{
			bbox:    mirror.BBox{lc.Col, lc.Row, vc.Col},
			samples: []string{vc.Text},
		}
	}

	if below, ok := idx.at(lc.Row+rs, lc.Col); ok && !cells[below].IsLabel && cells[below].Row <= b.bottom {
		d := fieldDraft{bbox: mirror.BBox{lc.Col, lc.Row, lc.Col, cells[below].Row}}
		for r := cells[below].Row; r <= b.bottom; r++ {
			ci, ok := idx.at(r, lc.Col)
			if !ok || cells[ci].IsLabel {
				break
			}
			d.samples = append(d.samples, cells[ci].Text)
		}
		return d
	}

	inCaptionRow := cov.label(cells, lc.Row, lc.Col+cs) || cov.label(cells, lc.Row, lc.Col-1)
	beside := cov.free(lc.Row, lc.Col+cs)
	under := cov.free(lc.Row+rs, lc.Col)
	switch {
	case under && (inCaptionRow || !beside):
		return fieldDraft{bbox: mirror.BBox{lc.Col, lc.Row, lc.Col, lc.Row + rs}}
	case beside:
		return fieldDraft{bbox: mirror.BBox{lc.Col, lc.Row, lc.Col + cs}}
	}
	col := lc.Col + cs
	for !cov.free(lc.Row, col) {
		col++
	}
	return fieldDraft{bbox: mirror.BBox{lc.Col, lc.Row, col}}
}

type table struct {
	rect mirror.Rect
}

// detectTables finds header rows (three or more adjacent labels) that have
// value rows underneath.
func detectTables(cells []mirror.LearnedCell, idx cellIndex, body []int) []table {
	rows := map[int][]int{}
	var order []int
	for _, ci := range body {
		r := cells[ci].Row
		if _, ok := rows[r]; !ok {
			order = append(order, r)
		}
		rows[r] = append(rows[r], ci)
	}
	sort.Ints(order)

	var out []table
	covered := -1
	for _, r := range order {
		if r <= covered {
			continue
		}
		run := longestLabelRun(cells, rows[r])
		if len(run) < minHeaderLabels {
			continue
		}
		left, right := cells[run[0]].Col, cells[run[len(run)-1]].Col
		bottom := r
		for next := r + 1; ; next++ {
			found := false
			for col := left; col <= right; col++ {
				if ci, ok := idx.at(next, col); ok && !cells[ci].IsLabel {
					found = true
					break
				}
			}
			if !found {
				break
			}
			bottom = next
		}
		if bottom == r {
			continue
		}
		out = append(out, table{rect: mirror.Rect{left, r, right, bottom}})
		covered = bottom
	}
	return out
}

func longestLabelRun(cells []mirror.LearnedCell, row []int) []int {
	sorted := append([]int(nil), row...)
	sort.Slice(sorted, func(a, b int) bool { return cells[sorted[a]].Col < cells[sorted[b]].Col })
	var best, cur []int
	for _, ci := range sorted {
		c := cells[ci]
		switch {
		case !c.IsLabel:
			cur = nil
		case len(cur) > 0 && cells[cur[len(cur)-1]].Col == c.Col-1:
			cur = append(cur, ci)
		default:
			cur = []int{ci}
		}
		if len(cur) > len(best) {
			best = append([]int(nil), cur...)
		}
	}
	return best
}

// Key folds a label into a field key: lower case, non-alphanumerics
// collapsed to underscores.
func Key(label string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(mirror.LabelText(label)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "field"
	}
	return b.String()
}

type keyAllocator struct {
	used map[string]bool
}

func newKeyAllocator() *keyAllocator { return &keyAllocator{used: map[string]bool{}} }

func (k *keyAllocator) next(label string) string {
	base := Key(label)
	key := base
	for n := 2; k.used[key]; n++ {
		key = fmt.Sprintf("%s_%d", base, n)
	}
	k.used[key] = true
	return key
}
