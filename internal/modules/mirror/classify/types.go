package classify

import (
	"sort"
	"strings"

	"github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/modules/mirror/layout"
)

const (
	minEnumSamples = 3
	maxEnumOptions = 6
)

func inferTypes(drafts []fieldDraft) {
	for i := range drafts {
		t, opts := inferType(drafts[i].samples)
		drafts[i].field.Type = t
		drafts[i].field.Options = opts
	}

	// Checklist-style columns: several string fields stacked in one region
	// whose answers come from a short repeated vocabulary.
	type groupKey struct {
		region string
		col    int
	}
	groups := map[groupKey][]int{}
	var order []groupKey
	for i, d := range drafts {
		if d.field.Type != mirror.FieldTypeString || len(d.samples) == 0 {
			continue
		}
		k := groupKey{region: d.region, col: d.bbox.ValueCol()}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}
	for _, k := range order {
		members := groups[k]
		if len(members) < 2 {
			continue
		}
		var all []string
		for _, i := range members {
			all = append(all, drafts[i].samples...)
		}
		opts, ok := enumOptions(all)
		if !ok {
			continue
		}
		for _, i := range members {
			drafts[i].field.Type = mirror.FieldTypeEnum
			drafts[i].field.Options = append([]string(nil), opts...)
		}
	}
}

func inferType(samples []string) (mirror.FieldType, []string) {
	vals := nonEmpty(samples)
	if len(vals) == 0 {
		return mirror.FieldTypeString, nil
	}
	if all(vals, layout.IsNumeric) {
		return mirror.FieldTypeNumber, nil
	}
	if all(vals, func(s string) bool { _, ok := layout.ParseBool(s); return ok }) {
		return mirror.FieldTypeBool, nil
	}
	if all(vals, layout.IsDate) {
		return mirror.FieldTypeDate, nil
	}
	if opts, ok := enumOptions(vals); ok {
		return mirror.FieldTypeEnum, opts
	}
	return mirror.FieldTypeString, nil
}

// enumOptions reports the sorted distinct values when samples are drawn from
// a small closed set with at least one repeat.
func enumOptions(samples []string) ([]string, bool) {
	vals := nonEmpty(samples)
	if len(vals) < minEnumSamples {
		return nil, false
	}
	seen := map[string]bool{}
	var opts []string
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			opts = append(opts, v)
		}
	}
	if len(opts) > maxEnumOptions || len(opts) >= len(vals) {
		return nil, false
	}
	sort.Strings(opts)
	return opts, true
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func all(vals []string, pred func(string) bool) bool {
	for _, v := range vals {
		if !pred(v) {
			return false
		}
	}
	return true
}
