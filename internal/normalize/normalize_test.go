package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/payroll-sync/internal/domain"
)

func ptr(s string) *string { return &s }

func TestIdentifier_StripsAllWhitespace(t *testing.T) {
	assert.Equal(t, "E001", Identifier(" E 0\t0\n1 "))
	assert.Equal(t, "山田太郎", Identifier("山田　太郎"))
	assert.Equal(t, "", IdentifierPtr(nil))
}

func TestText(t *testing.T) {
	assert.Nil(t, Text(nil))
	assert.Nil(t, Text(ptr("   ")))
	assert.Nil(t, Text(ptr("　")))
	require.NotNil(t, Text(ptr("  Tokyo ")))
	assert.Equal(t, "Tokyo", *Text(ptr("  Tokyo ")))
}

func TestGender(t *testing.T) {
	cases := map[string]string{
		"male":    domain.GenderMale,
		"M":       domain.GenderMale,
		"男性":      domain.GenderMale,
		" 女 ":     domain.GenderFemale,
		"Female":  domain.GenderFemale,
		"2":       domain.GenderFemale,
		"unknown": "unknown",
	}
	for in, want := range cases {
		assert.Equal(t, want, Gender(in), in)
	}
	assert.Nil(t, GenderPtr(ptr(" ")))
}

func TestBool(t *testing.T) {
	for _, in := range []string{"1", "on", "TRUE", "yes", "はい"} {
		assert.True(t, Bool(ptr(in)), in)
	}
	for _, in := range []string{"0", "no", "", "maybe"} {
		assert.False(t, Bool(ptr(in)), in)
	}
	assert.False(t, Bool(nil))
	assert.Nil(t, OptionalBool(nil))
	assert.Nil(t, OptionalBool(ptr("")))
	require.NotNil(t, OptionalBool(ptr("off")))
	assert.False(t, *OptionalBool(ptr("off")))
}

func TestTriState(t *testing.T) {
	require.NotNil(t, TriState(ptr("該当")))
	assert.True(t, *TriState(ptr("該当")))
	require.NotNil(t, TriState(ptr("No")))
	assert.False(t, *TriState(ptr("No")))
	assert.Nil(t, TriState(ptr("perhaps")))
	assert.Nil(t, TriState(nil))
}

func TestNumber(t *testing.T) {
	n := Number(ptr(" 300,000 "))
	require.NotNil(t, n)
	assert.Equal(t, "300000", n.String())
	assert.Nil(t, Number(ptr("abc")))
	assert.Nil(t, Number(ptr("")))
	assert.True(t, IsNumericOrAbsent(nil))
	assert.True(t, IsNumericOrAbsent(ptr("12.5")))
	assert.False(t, IsNumericOrAbsent(ptr("12x")))
}

func TestDate(t *testing.T) {
	want := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2025-06-01", "2025/6/1", "20250601", "2025年6月1日", "2025-06-01T23:10:00Z"} {
		got, ok := Date(ptr(in))
		require.True(t, ok, in)
		require.NotNil(t, got, in)
		assert.True(t, want.Equal(*got), in)
	}

	got, ok := Date(nil)
	assert.True(t, ok)
	assert.Nil(t, got)

	_, ok = Date(ptr("June first"))
	assert.False(t, ok)
}

func TestYearMonth(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025-04", "202504", true},
		{"2025/4", "202504", true},
		{"202504", "202504", true},
		{"2025年4月", "202504", true},
		{"2025-04-15", "202504", true},
		{"2025-13", "", false},
		{"", "", false},
		{"april", "", false},
	}
	for _, tc := range cases {
		got, ok := YearMonth(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestDateKey(t *testing.T) {
	assert.Equal(t, "20250601", DateKey(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "202506", YearMonthOf(time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)))
}
