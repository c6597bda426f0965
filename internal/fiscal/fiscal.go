// Package fiscal derives UK April-March financial year keys.
package fiscal

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrMissingTemporalKey is returned when a row has neither a date nor a fallback year.
var ErrMissingTemporalKey = errors.New("missing temporal key: no date and no fallback year")

// ErrInvalidLabel is returned when a fiscal year label cannot be parsed.
var ErrInvalidLabel = errors.New("invalid financial year label")

// FirstMonth is the month a financial year starts in.
const FirstMonth = time.April

// Year is a financial year identified by the calendar year it starts in.
type Year struct {
	Start int
}

// IsZero reports an unset year. The zero Year is never a valid key.
func (y Year) IsZero() bool {
	return y.Start == 0
}

// Label renders the year as "YYYY/YY".
func (y Year) Label() string {
	if y.IsZero() {
		return ""
	}

	return fmt.Sprintf("%d/%02d", y.Start, (y.Start+1)%100)
}

func (y Year) String() string {
	return y.Label()
}

// Next returns the following financial year.
func (y Year) Next() Year {
	return Year{Start: y.Start + 1}
}

// Before reports whether y starts earlier than other.
func (y Year) Before(other Year) bool {
	return y.Start < other.Start
}

// Compare returns -1, 0 or +1 ordering by start year.
func (y Year) Compare(other Year) int {
	switch {
	case y.Start < other.Start:
		return -1
	case y.Start > other.Start:
		return 1
	default:
		return 0
	}
}

// FromDate places a date in its financial year.
func FromDate(t time.Time) Year {
	if t.Month() >= FirstMonth {
		return Year{Start: t.Year()}
	}

	return Year{Start: t.Year() - 1}
}

// FromCalendarYear maps a mid-year estimate for calendar year y to the
// financial year beginning in that same year.
func FromCalendarYear(y int) Year {
	return Year{Start: y}
}

var (
	slashLabel = regexp.MustCompile(`^(\d{4})\s*[/\-]\s*(\d{2}|\d{4})$`)
	sheetLabel = regexp.MustCompile(`^(\d{4})(\d{2})$`)
	yearOnly   = regexp.MustCompile(`^(\d{4})$`)
)

// ParseLabel reads "2023/24", "2023-24", "2023/2024", the six digit sheet tag
// "202324", or a bare calendar year "2023".
func ParseLabel(s string) (Year, error) {
	s = strings.TrimSpace(s)

	if m := slashLabel.FindStringSubmatch(s); m != nil {
		return checkedYear(s, m[1], m[2])
	}

	if m := sheetLabel.FindStringSubmatch(s); m != nil {
		return checkedYear(s, m[1], m[2])
	}

	if m := yearOnly.FindStringSubmatch(s); m != nil {
		start, _ := strconv.Atoi(m[1])
		return FromCalendarYear(start), nil
	}

	return Year{}, fmt.Errorf("%w: %q", ErrInvalidLabel, s)
}

func checkedYear(raw, startStr, endStr string) (Year, error) {
	start, _ := strconv.Atoi(startStr)
	end, _ := strconv.Atoi(endStr)

	want := start + 1
	if len(endStr) == 2 {
		want %= 100
	}

	if end != want {
		return Year{}, fmt.Errorf("%w: %q does not span consecutive years", ErrInvalidLabel, raw)
	}

	return Year{Start: start}, nil
}

// Derive picks the financial year for a row. A concrete date always wins;
// otherwise the reported fallback year is used.
func Derive(date *time.Time, fallback string) (Year, error) {
	if date != nil && !date.IsZero() {
		return FromDate(*date), nil
	}

	if strings.TrimSpace(fallback) == "" {
		return Year{}, ErrMissingTemporalKey
	}

	y, err := ParseLabel(fallback)
	if err != nil {
		return Year{}, fmt.Errorf("%w: %w", ErrMissingTemporalKey, err)
	}

	return y, nil
}

// Range returns every financial year from first to last inclusive.
func Range(first, last Year) []Year {
	if last.Before(first) {
		return nil
	}

	years := make([]Year, 0, last.Start-first.Start+1)
	for y := first; !last.Before(y); y = y.Next() {
		years = append(years, y)
	}

	return years
}
