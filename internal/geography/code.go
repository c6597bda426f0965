// Package geography provides ONS code levels, the current statistical
// hierarchy and forward remapping of codes retired by local government
// reorganisations.
package geography

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidCodeRange is returned when a code range shorthand cannot be expanded.
var ErrInvalidCodeRange = errors.New("invalid code range")

// Level is the tier of the statistical hierarchy a code belongs to.
type Level int

// Hierarchy levels, finest first.
const (
	LevelUnknown Level = iota
	LevelLSOA
	LevelMSOA
	LevelLAD
	LevelFRS
)

func (l Level) String() string {
	switch l {
	case LevelLSOA:
		return "lsoa"
	case LevelMSOA:
		return "msoa"
	case LevelLAD:
		return "lad"
	case LevelFRS:
		return "frs"
	default:
		return "unknown"
	}
}

var codePattern = regexp.MustCompile(`^[EWSN]\d{8}$`)

// IsCode reports whether s has the nine character ONS code shape.
func IsCode(s string) bool {
	return codePattern.MatchString(s)
}

// DetectLevel classifies a code by its entity prefix.
func DetectLevel(code string) Level {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !IsCode(code) {
		return LevelUnknown
	}

	switch code[:3] {
	case "E01", "W01":
		return LevelLSOA
	case "E02", "W02":
		return LevelMSOA
	case "E06", "E07", "E08", "E09", "W06":
		return LevelLAD
	case "E31":
		return LevelFRS
	default:
		return LevelUnknown
	}
}

// ExpandCodeRange expands "E07000151..E07000154" into the four codes it spans.
// A plain code expands to itself.
func ExpandCodeRange(s string) ([]string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	from, to, isRange := strings.Cut(s, "..")
	if !isRange {
		if !IsCode(s) {
			return nil, fmt.Errorf("%w: %q is not a code", ErrInvalidCodeRange, s)
		}

		return []string{s}, nil
	}

	if !IsCode(from) || !IsCode(to) || from[:3] != to[:3] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCodeRange, s)
	}

	start, _ := strconv.Atoi(from[3:])
	end, _ := strconv.Atoi(to[3:])

	if start > end {
		return nil, fmt.Errorf("%w: %q runs backwards", ErrInvalidCodeRange, s)
	}

	codes := make([]string, 0, end-start+1)
	for n := start; n <= end; n++ {
		codes = append(codes, fmt.Sprintf("%s%06d", from[:3], n))
	}

	return codes, nil
}
