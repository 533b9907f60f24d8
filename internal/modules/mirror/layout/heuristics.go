package layout

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxLabelRunes = 40
	maxLabelWords = 6
	minHeaderRun  = 3
)

var (
	reNumber  = regexp.MustCompile(`^\s*[\+\-]?\d{1,3}([ ,]\d{3})*([.,]\d+)?\s*$`)
	rePlain   = regexp.MustCompile(`^\s*[\+\-]?\d+([.,]\d+)?\s*$`)
	reMoney   = regexp.MustCompile(`^\s*[\$€£¥₸₽]?\s*[\+\-]?\d[\d ,]*([.,]\d+)?\s*(%|[\$€£¥₸₽]|usd|eur|gbp)?\s*$`)
	reDateDMY = regexp.MustCompile(`^\s*\d{1,2}[./-]\d{1,2}[./-]\d{2,4}\s*$`)
	reDateISO = regexp.MustCompile(`^\s*\d{4}-\d{1,2}-\d{1,2}([ T]\d{1,2}:\d{2}(:\d{2})?)?\s*$`)
)

var boolTokens = map[string]bool{
	"yes": true, "no": false, "true": true, "false": false,
	"y": true, "n": false, "x": true, "✓": true, "✔": true,
}

// IsNumeric reports whether s reads as a number, amount or percentage.
func IsNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	lower := strings.ToLower(s)
	return reNumber.MatchString(s) || rePlain.MatchString(s) || reMoney.MatchString(lower)
}

// IsDate reports whether s reads as a calendar date.
func IsDate(s string) bool {
	return reDateDMY.MatchString(s) || reDateISO.MatchString(s)
}

// ParseBool reads the boolean tokens commonly typed into checklist cells.
func ParseBool(s string) (value bool, ok bool) {
	v, ok := boolTokens[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// isCandidate reports whether text looks like something a person would type as
// a caption: short, textual, and not a value shape.
func isCandidate(text string) bool {
	s := strings.TrimSpace(text)
	if s == "" || !hasLetter(s) {
		return false
	}
	core := strings.TrimRight(s, ":：")
	if utf8.RuneCountInString(core) > maxLabelRunes {
		return false
	}
	words := len(strings.Fields(core))
	if words == 0 || words > maxLabelWords {
		return false
	}
	if IsNumeric(core) || IsDate(core) {
		return false
	}
	if _, ok := ParseBool(core); ok {
		return false
	}
	if strings.HasSuffix(core, ".") && words >= 3 {
		return false
	}
	return true
}

func isStrongLabel(text string) bool {
	s := strings.TrimSpace(text)
	return isCandidate(s) && (strings.HasSuffix(s, ":") || strings.HasSuffix(s, "："))
}
