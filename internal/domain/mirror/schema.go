package mirror

import "strings"

// FieldType is advisory metadata inferred from sampled values.
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeNumber FieldType = "number"
	FieldTypeEnum   FieldType = "enum"
	FieldTypeBool   FieldType = "bool"
	FieldTypeDate   FieldType = "date"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeEnum, FieldTypeBool, FieldTypeDate:
		return true
	default:
		return false
	}
}

// Bucket names the downstream record a field's value belongs to.
type Bucket string

const (
	BucketSheet         Bucket = "sheet"
	BucketEquipment     Bucket = "equipment"
	BucketSubsheet      Bucket = "subsheet"
	BucketTemplateField Bucket = "templateField"
)

func (b Bucket) Valid() bool {
	switch b {
	case BucketSheet, BucketEquipment, BucketSubsheet, BucketTemplateField:
		return true
	default:
		return false
	}
}

const SourceKindXLSX = "xlsx"

type PageSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

// BBox is a field position: [colLabel, row, colValue] with an optional fourth
// element holding the value row when it differs from the label row.
type BBox []int

func (b BBox) LabelCol() int { return b.at(0) }
func (b BBox) Row() int      { return b.at(1) }
func (b BBox) ValueCol() int { return b.at(2) }

func (b BBox) ValueRow() int {
	if len(b) >= 4 {
		return b[3]
	}
	return b.Row()
}

func (b BBox) at(i int) int {
	if i < len(b) {
		return b[i]
	}
	return 0
}

// Rect is [left, top, right, bottom], inclusive, in cell units.
type Rect [4]int

func (r Rect) Left() int   { return r[0] }
func (r Rect) Top() int    { return r[1] }
func (r Rect) Right() int  { return r[2] }
func (r Rect) Bottom() int { return r[3] }

func (r Rect) Empty() bool { return r[2] < r[0] || r[3] < r[1] }

type Anchor struct {
	Text string `json:"text"`
	BBox Rect   `json:"bbox"`
}

type Fingerprint struct {
	PageSize PageSize `json:"pageSize"`
	Anchors  []Anchor `json:"anchors"`
	GridHash string   `json:"gridHash"`
	LabelSet []string `json:"labelSet"`
}

type RegionGrid struct {
	Rows       int    `json:"rows"`
	Cols       int    `json:"cols"`
	CellBBoxes []Rect `json:"cellBBoxes"`
}

// RegionDef is a named area. BBox covers the region body; Anchor is the
// learned title cell, when the region had one.
type RegionDef struct {
	Name   string      `json:"name"`
	BBox   Rect        `json:"bbox"`
	Anchor *Rect       `json:"anchor,omitempty"`
	Grid   *RegionGrid `json:"grid,omitempty"`
}

// CaptionCell is where the region name is written: the anchor when known,
// else the row above the body.
func (r RegionDef) CaptionCell() (row, col int, ok bool) {
	if r.Anchor != nil {
		return r.Anchor.Top(), r.Anchor.Left(), true
	}
	if r.BBox.Empty() || r.BBox.Top() < 1 {
		return 0, 0, false
	}
	return r.BBox.Top() - 1, r.BBox.Left(), true
}

type Regions struct {
	Header    RegionDef   `json:"header"`
	Equipment RegionDef   `json:"equipment"`
	Subsheets []RegionDef `json:"subsheets"`
}

// All returns the named regions in render order.
func (r Regions) All() []RegionDef {
	out := make([]RegionDef, 0, 2+len(r.Subsheets))
	if r.Header.Name != "" {
		out = append(out, r.Header)
	}
	if r.Equipment.Name != "" {
		out = append(out, r.Equipment)
	}
	for _, s := range r.Subsheets {
		if s.Name != "" {
			out = append(out, s)
		}
	}
	return out
}

type MapTo struct {
	Bucket         Bucket  `json:"bucket"`
	SubsheetName   string  `json:"subsheetName,omitempty"`
	InfoTemplateID *string `json:"infoTemplateId,omitempty"`
}

type FieldDef struct {
	Key     string    `json:"key"`
	Label   string    `json:"label"`
	BBox    BBox      `json:"bbox"`
	Type    FieldType `json:"type"`
	Options []string  `json:"options,omitempty"`
	MapTo   MapTo     `json:"mapTo"`
}

type TableBorder struct {
	Region string `json:"region"`
	BBox   Rect   `json:"bbox"`
}

type RenderHints struct {
	Font           string        `json:"font"`
	BaseLineHeight float64       `json:"baseLineHeight"`
	TableBorders   []TableBorder `json:"tableBorders"`
	ExactPlacement bool          `json:"exactPlacement"`
}

// Schema is a sheet definition: draft when produced by the classifier,
// confirmed once persisted.
type Schema struct {
	ID          string      `json:"id"`
	ClientKey   string      `json:"clientKey"`
	SourceKind  string      `json:"sourceKind"`
	SheetName   string      `json:"sheetName,omitempty"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Regions     Regions     `json:"regions"`
	Fields      []FieldDef  `json:"fields"`
	RenderHints RenderHints `json:"renderHints"`
}

// FieldByKey returns the first field with key, if any.
func (s *Schema) FieldByKey(key string) (FieldDef, bool) {
	if s == nil {
		return FieldDef{}, false
	}
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldDef{}, false
}

// Clone returns a deep copy so cached schemas are never mutated by callers.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := *s
	out.Fingerprint.Anchors = append([]Anchor(nil), s.Fingerprint.Anchors...)
	out.Fingerprint.LabelSet = append([]string(nil), s.Fingerprint.LabelSet...)
	out.Regions.Header = cloneRegion(s.Regions.Header)
	out.Regions.Equipment = cloneRegion(s.Regions.Equipment)
	if s.Regions.Subsheets != nil {
		out.Regions.Subsheets = make([]RegionDef, len(s.Regions.Subsheets))
		for i, r := range s.Regions.Subsheets {
			out.Regions.Subsheets[i] = cloneRegion(r)
		}
	}
	if s.Fields != nil {
		out.Fields = make([]FieldDef, len(s.Fields))
		for i, f := range s.Fields {
			f.BBox = append(BBox(nil), f.BBox...)
			f.Options = append([]string(nil), f.Options...)
			if f.MapTo.InfoTemplateID != nil {
				id := *f.MapTo.InfoTemplateID
				f.MapTo.InfoTemplateID = &id
			}
			out.Fields[i] = f
		}
	}
	out.RenderHints.TableBorders = append([]TableBorder(nil), s.RenderHints.TableBorders...)
	return &out
}

func cloneRegion(r RegionDef) RegionDef {
	if r.Anchor != nil {
		a := *r.Anchor
		r.Anchor = &a
	}
	if r.Grid != nil {
		g := *r.Grid
		g.CellBBoxes = append([]Rect(nil), r.Grid.CellBBoxes...)
		r.Grid = &g
	}
	return r
}

// ValueMap is caller-supplied data for one render, keyed by field key.
type ValueMap map[string]any

// LearnedCell is one populated cell of an uploaded sheet.
type LearnedCell struct {
	Text    string `json:"text"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	IsLabel bool   `json:"isLabel"`
	RowSpan int    `json:"rowSpan,omitempty"`
	ColSpan int    `json:"colSpan,omitempty"`
}

func (c LearnedCell) Spans() (rows, cols int) {
	rows, cols = c.RowSpan, c.ColSpan
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return rows, cols
}

// LearnedLayout is the flat, position-annotated description of a sheet.
type LearnedLayout struct {
	SheetName      string        `json:"sheetName"`
	PageSize       PageSize      `json:"pageSize"`
	Cells          []LearnedCell `json:"cells"`
	Labels         []string      `json:"labels"`
	Font           string        `json:"font,omitempty"`
	BaseLineHeight float64       `json:"baseLineHeight,omitempty"`
}

// LabelText strips decoration from a label cell: surrounding space and a trailing colon.
func LabelText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ":：")
	return strings.TrimSpace(s)
}
