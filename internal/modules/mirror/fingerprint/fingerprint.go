package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
)

const MaxAnchors = 8

// Compute derives the structural fingerprint of a learned layout. The result
// depends only on label cells, so two fillings of one template agree.
func Compute(l *mirror.LearnedLayout) mirror.Fingerprint {
	if l == nil {
		return mirror.Fingerprint{GridHash: gridHash(nil), LabelSet: []string{}, Anchors: []mirror.Anchor{}}
	}
	labels := make([]mirror.LearnedCell, 0, len(l.Labels))
	for _, c := range l.Cells {
		if c.IsLabel {
			labels = append(labels, c)
		}
	}
	return mirror.Fingerprint{
		PageSize: l.PageSize,
		Anchors:  anchors(labels),
		GridHash: gridHash(labels),
		LabelSet: labelSet(labels),
	}
}

// Normalize folds a label into the form used for set comparison.
func Normalize(s string) string {
	s = mirror.LabelText(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func gridHash(labels []mirror.LearnedCell) string {
	lines := make([]string, 0, len(labels))
	for _, c := range labels {
		rs, cs := c.Spans()
		lines = append(lines, fmt.Sprintf("%d:%d:%d:%d:L", c.Row, c.Col, rs, cs))
	}
	sort.Strings(lines)
	h := sha256.New()
	for _, ln := range lines {
		h.Write([]byte(ln))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func labelSet(labels []mirror.LearnedCell) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, c := range labels {
		n := Normalize(c.Text)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// anchors picks title-like labels first: colon-free and alone among the
// labels of their row. Only label cells are consulted, so filling in values
// never changes the choice. Leftmost labels of other rows fill the remainder.
func anchors(labels []mirror.LearnedCell) []mirror.Anchor {
	perRow := map[int]int{}
	for _, c := range labels {
		perRow[c.Row]++
	}

	out := make([]mirror.Anchor, 0, MaxAnchors)
	used := map[int]bool{}
	for _, c := range labels {
		if len(out) == MaxAnchors {
			break
		}
		if perRow[c.Row] == 1 && mirror.LabelText(c.Text) == strings.TrimSpace(c.Text) {
			out = append(out, anchorOf(c))
			used[c.Row] = true
		}
	}
	for _, c := range labels {
		if len(out) == MaxAnchors {
			break
		}
		if used[c.Row] {
			continue
		}
		out = append(out, anchorOf(c))
		used[c.Row] = true
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BBox.Top() != out[j].BBox.Top() {
			return out[i].BBox.Top() < out[j].BBox.Top()
		}
		return out[i].BBox.Left() < out[j].BBox.Left()
	})
	return out
}

func anchorOf(c mirror.LearnedCell) mirror.Anchor {
	rs, cs := c.Spans()
	return mirror.Anchor{
		Text: mirror.LabelText(c.Text),
		BBox: mirror.Rect{c.Col, c.Row, c.Col + cs - 1, c.Row + rs - 1},
	}
}

// Similarity is the Jaccard index of two label sets.
func Similarity(a, b mirror.Fingerprint) float64 {
	if len(a.LabelSet) == 0 && len(b.LabelSet) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a.LabelSet))
	for _, s := range a.LabelSet {
		set[s] = struct{}{}
	}
	inter := 0
	union := len(set)
	seen := map[string]struct{}{}
	for _, s := range b.LabelSet {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if _, ok := set[s]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// Match reports whether two fingerprints describe the same document shape.
func Match(a, b mirror.Fingerprint, threshold float64) (bool, float64) {
	if a.GridHash != "" && a.GridHash == b.GridHash {
		return true, 1
	}
	score := Similarity(a, b)
	return score >= threshold, score
}
