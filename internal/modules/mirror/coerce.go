package mirror

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	types "github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/modules/mirror/layout"
)

// Warning flags a value that did not fit its field's declared type. The value
// is still rendered as given.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// coerceValues converts caller values toward each field's type. Field types
// are advisory, so mismatches produce warnings, never errors.
func coerceValues(s *types.Schema, in types.ValueMap) (types.ValueMap, []Warning) {
	out := make(types.ValueMap, len(in))
	var warnings []Warning
	known := make(map[string]bool, len(s.Fields))

	for _, f := range s.Fields {
		known[f.Key] = true
		v, ok := in[f.Key]
		if !ok || v == nil {
			continue
		}
		cv, msg := coerceOne(f, v)
		out[f.Key] = cv
		if msg != "" {
			warnings = append(warnings, Warning{Field: f.Key, Message: msg})
		}
	}

	var unknown []string
	for k := range in {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		warnings = append(warnings, Warning{Field: k, Message: "no such field in definition; value ignored"})
	}
	return out, warnings
}

func coerceOne(f types.FieldDef, v any) (any, string) {
	switch f.Type {
	case types.FieldTypeNumber:
		if n, ok := asFloat(v); ok {
			return n, ""
		}
		switch t := v.(type) {
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				return nil, ""
			}
			if n, err := strconv.ParseFloat(strings.NewReplacer(",", "", " ", "").Replace(s), 64); err == nil {
				return n, ""
			}
			return t, fmt.Sprintf("expected a number, got %q", t)
		default:
			return v, fmt.Sprintf("expected a number, got %T", v)
		}

	case types.FieldTypeBool:
		switch t := v.(type) {
		case bool:
			return t, ""
		case string:
			if b, ok := layout.ParseBool(t); ok {
				return b, ""
			}
			return t, fmt.Sprintf("expected yes/no, got %q", t)
		default:
			return v, fmt.Sprintf("expected yes/no, got %T", v)
		}

	case types.FieldTypeDate:
		if t, ok := v.(string); ok && (strings.TrimSpace(t) == "" || layout.IsDate(t)) {
			return t, ""
		}
		return v, fmt.Sprintf("expected a date, got %v", v)

	case types.FieldTypeEnum:
		t, ok := v.(string)
		if !ok {
			return v, fmt.Sprintf("expected one of %s", strings.Join(f.Options, ", "))
		}
		for _, opt := range f.Options {
			if strings.EqualFold(strings.TrimSpace(t), opt) {
				return opt, ""
			}
		}
		if len(f.Options) == 0 {
			return t, ""
		}
		return t, fmt.Sprintf("%q is not one of %s", t, strings.Join(f.Options, ", "))

	default:
		return v, ""
	}
}

// asFloat widens the numeric kinds Go callers pass alongside decoded JSON.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		n, err := t.Float64()
		return n, err == nil
	default:
		return 0, false
	}
}
