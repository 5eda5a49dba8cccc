// Package normalize converts loosely typed payroll-system input into the
// canonical values stored by the registry. Every function is pure and total.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/payroll-sync/internal/domain"
)

var whitespace = strings.NewReplacer(" ", "", "　", "", "\t", "", "\n", "", "\r", "")

// Identifier removes every whitespace character, including the full-width space.
func Identifier(s string) string {
	return whitespace.Replace(s)
}

// IdentifierPtr is Identifier for optional input; nil yields "".
func IdentifierPtr(s *string) string {
	if s == nil {
		return ""
	}
	return Identifier(*s)
}

// Text trims s and maps the empty string to nil.
func Text(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

var (
	maleTokens   = tokenSet("male", "m", "man", "1", "男", "男性")
	femaleTokens = tokenSet("female", "f", "woman", "2", "女", "女性")
)

// Gender maps known spellings to domain.GenderMale or domain.GenderFemale.
// Unrecognized values pass through unchanged.
func Gender(s string) string {
	key := token(s)
	switch {
	case maleTokens[key]:
		return domain.GenderMale
	case femaleTokens[key]:
		return domain.GenderFemale
	default:
		return s
	}
}

// GenderPtr trims optional input before mapping it with Gender.
func GenderPtr(s *string) *string {
	t := Text(s)
	if t == nil {
		return nil
	}
	g := Gender(*t)
	return &g
}

var (
	truthy = tokenSet("1", "on", "true", "yes", "はい")
	// tri-state spellings used by dependent flags
	triTrue  = tokenSet("1", "on", "true", "yes", "はい", "該当", "○", "〇")
	triFalse = tokenSet("0", "off", "false", "no", "いいえ", "非該当", "×")
)

// Bool reports whether s is one of the affirmative tokens.
func Bool(s *string) bool {
	if s == nil {
		return false
	}
	return truthy[token(*s)]
}

// OptionalBool returns nil for absent input and Bool otherwise.
func OptionalBool(s *string) *bool {
	if Text(s) == nil {
		return nil
	}
	b := Bool(s)
	return &b
}

// TriState recognizes both truthy and falsy spellings; anything else is nil.
func TriState(s *string) *bool {
	if s == nil {
		return nil
	}
	key := token(*s)
	switch {
	case triTrue[key]:
		v := true
		return &v
	case triFalse[key]:
		v := false
		return &v
	default:
		return nil
	}
}

var thousands = strings.NewReplacer(",", "", "，", "")

// Number parses a numeric-like string; nil when absent or malformed.
func Number(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	raw := thousands.Replace(Identifier(*s))
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &d
}

// IsNumericOrAbsent is true when s is absent or parses as a number.
func IsNumericOrAbsent(s *string) bool {
	if Text(s) == nil {
		return true
	}
	return Number(s) != nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-1-2",
	"2006/1/2",
	"20060102",
	"2006年1月2日",
	time.RFC3339,
}

// Date parses a date-only value. It returns (nil, true) for absent input and
// (nil, false) when the value cannot be parsed.
func Date(s *string) (*time.Time, bool) {
	t := Text(s)
	if t == nil {
		return nil, true
	}
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, *t)
		if err != nil {
			continue
		}
		d := DateOnly(parsed)
		return &d, true
	}
	return nil, false
}

// DateOnly drops the time-of-day component.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var (
	compactYearMonth = regexp.MustCompile(`^(\d{4})(\d{2})$`)
	splitYearMonth   = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})$`)
	kanjiYearMonth   = regexp.MustCompile(`^(\d{4})年(\d{1,2})月$`)
)

// YearMonth canonicalizes a year-month (or a full date) to YYYYMM.
func YearMonth(s string) (string, bool) {
	raw := Identifier(s)
	if raw == "" {
		return "", false
	}
	for _, re := range []*regexp.Regexp{compactYearMonth, splitYearMonth, kanjiYearMonth} {
		if m := re.FindStringSubmatch(raw); m != nil {
			year, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			if month < 1 || month > 12 {
				return "", false
			}
			return fmt.Sprintf("%04d%02d", year, month), true
		}
	}
	if d, ok := Date(&raw); ok && d != nil {
		return YearMonthOf(*d), true
	}
	return "", false
}

// YearMonthOf formats t as YYYYMM.
func YearMonthOf(t time.Time) string {
	return t.Format("200601")
}

// DateKey formats t as the 8-digit YYYYMMDD used in bonus ids.
func DateKey(t time.Time) string {
	return t.Format("20060102")
}

func token(s string) string {
	return strings.ToLower(Identifier(s))
}

func tokenSet(values ...string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
