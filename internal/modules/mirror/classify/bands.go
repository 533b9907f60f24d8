package classify

import (
	"sort"

	"github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
)

// band is a run of occupied rows bounded by blank rows.
type band struct {
	top, bottom int
	cells       []int
	title       int // index into layout cells, -1 when untitled
}

func (b *band) rect(cells []mirror.LearnedCell) mirror.Rect {
	r := mirror.Rect{-1, -1, -1, -1}
	for _, i := range b.cells {
		c := cells[i]
		rs, cs := c.Spans()
		if r[0] < 0 || c.Col < r[0] {
			r[0] = c.Col
		}
		if r[1] < 0 || c.Row < r[1] {
			r[1] = c.Row
		}
		if right := c.Col + cs - 1; right > r[2] {
			r[2] = right
		}
		if bottom := c.Row + rs - 1; bottom > r[3] {
			r[3] = bottom
		}
	}
	return r
}

func splitBands(cells []mirror.LearnedCell) []*band {
	if len(cells) == 0 {
		return nil
	}
	occupied := map[int]bool{}
	for _, c := range cells {
		rs, _ := c.Spans()
		for r := c.Row; r < c.Row+rs; r++ {
			occupied[r] = true
		}
	}
	rows := make([]int, 0, len(occupied))
	for r := range occupied {
		rows = append(rows, r)
	}
	sort.Ints(rows)

	var bands []*band
	var cur *band
	for _, r := range rows {
		if cur == nil || r > cur.bottom+1 {
			cur = &band{top: r, bottom: r, title: -1}
			bands = append(bands, cur)
		}
		cur.bottom = r
	}
	for i, c := range cells {
		for _, b := range bands {
			if c.Row >= b.top && c.Row <= b.bottom {
				b.cells = append(b.cells, i)
				break
			}
		}
	}
	return mergeTitles(cells, bands)
}

// mergeTitles folds title bands into the band below them and marks an
// in-band title row when a band opens with a lone caption.
func mergeTitles(cells []mirror.LearnedCell, bands []*band) []*band {
	out := make([]*band, 0, len(bands))
	pending := -1
	for idx, b := range bands {
		if isTitleBand(cells, b) && idx < len(bands)-1 {
			pending = b.cells[0]
			continue
		}
		if pending >= 0 {
			b.title = pending
			b.top = cells[pending].Row
			b.cells = append([]int{pending}, b.cells...)
			pending = -1
		} else if t, ok := leadingTitle(cells, b); ok {
			b.title = t
		}
		out = append(out, b)
	}
	return out
}

func isTitleBand(cells []mirror.LearnedCell, b *band) bool {
	return len(b.cells) == 1 && cells[b.cells[0]].IsLabel && b.top == b.bottom
}

// leadingTitle reports a first row holding a single colon-free label above
// more content.
func leadingTitle(cells []mirror.LearnedCell, b *band) (int, bool) {
	if b.top == b.bottom {
		return -1, false
	}
	first := -1
	for _, i := range b.cells {
		if cells[i].Row != b.top {
			continue
		}
		if first >= 0 {
			return -1, false
		}
		first = i
	}
	if first < 0 {
		return -1, false
	}
	c := cells[first]
	if !c.IsLabel || mirror.LabelText(c.Text) != c.Text {
		return -1, false
	}
	rs, _ := c.Spans()
	if c.Row+rs-1 >= b.bottom {
		return -1, false
	}
	return first, true
}

// body returns band cells excluding the title.
func (b *band) body() []int {
	if b.title < 0 {
		return b.cells
	}
	out := make([]int, 0, len(b.cells))
	for _, i := range b.cells {
		if i != b.title {
			out = append(out, i)
		}
	}
	return out
}
