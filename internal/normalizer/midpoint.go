package normalizer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Range parsing warnings. Both always come with a nil estimate.
var (
	ErrUnparseableRange = errors.New("unparseable range expression")
	ErrInvertedRange    = errors.New("inverted range: lower bound exceeds upper bound")
)

// Placeholder text that means "not recorded" rather than a bad value.
var placeholders = map[string]bool{
	"":          true,
	".":         true,
	"-":         true,
	"nan":       true,
	"none":      true,
	"null":      true,
	"n/a":       true,
	"na":        true,
	"not known": true,
	"unknown":   true,
}

const numberExpr = `(\d+(?:\.\d+)?)`

var (
	thousandsPattern = regexp.MustCompile(`(\d),(\d{3})\b`)
	digitLetter      = regexp.MustCompile(`(\d)([a-z²])`)
	unitPattern      = regexp.MustCompile(`\b(square\s+metres?|sq\.?\s*m|sqm|m2|minutes?|mins?|hours?|hrs?|seconds?|secs?|metres?|people|persons?|vehicles?|appliances?|pumps?)\b|m²`)

	rangePattern     = regexp.MustCompile(`^` + numberExpr + `\s*(?:-|–|—|to)\s*` + numberExpr + `$`)
	openUpperPattern = regexp.MustCompile(`^` + numberExpr + `\s*(?:or more|or over|\+|plus)$`)
	moreThanPattern  = regexp.MustCompile(`^(?:more than|over)\s*` + numberExpr + `$`)
	openLowerPattern = regexp.MustCompile(`^(?:up to|less than|under)\s*` + numberExpr + `$`)
	singlePattern    = regexp.MustCompile(`^` + numberExpr + `$`)
	listSeparator    = regexp.MustCompile(`\s*(?:,|\bor\b|\band\b|&)\s*`)
)

// ParseRange converts a free-text range into a point estimate.
//
//	"6-20"       -> 13   mean of the bounds
//	"4, 5 or 6"  -> 5    mean of the listed values
//	"40 or more" -> 40   the stated lower bound, never inflated
//	"Up to 5"    -> 2.5  midpoint assuming a zero floor
//
// A nil estimate means unknown, which callers must keep apart from a measured zero.
// Placeholders such as "N/A" yield nil without a warning.
func ParseRange(text string) (*float64, error) {
	raw, ok := cleanRangeText(text)
	if !ok {
		return nil, nil
	}

	// Thousands separators only collapse for single-valued shapes; in a
	// list a comma is a separator.
	s := collapseThousands(raw)

	if m := openLowerPattern.FindStringSubmatch(s); m != nil {
		upper := mustFloat(m[1])
		return estimate(upper / 2), nil
	}

	if m := openUpperPattern.FindStringSubmatch(s); m != nil {
		return estimate(mustFloat(m[1])), nil
	}

	if m := moreThanPattern.FindStringSubmatch(s); m != nil {
		return estimate(mustFloat(m[1])), nil
	}

	if m := rangePattern.FindStringSubmatch(s); m != nil {
		lower, upper := mustFloat(m[1]), mustFloat(m[2])
		if lower > upper {
			return nil, fmt.Errorf("%w: %q", ErrInvertedRange, text)
		}

		return estimate((lower + upper) / 2), nil
	}

	if m := singlePattern.FindStringSubmatch(s); m != nil {
		return estimate(mustFloat(m[1])), nil
	}

	values, ok := parseList(raw)
	if !ok {
		values, ok = parseList(s)
	}

	if ok {
		sum := 0.0
		for _, v := range values {
			sum += v
		}

		return estimate(sum / float64(len(values))), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnparseableRange, text)
}

// cleanRangeText lowercases, strips units and collapses whitespace. ok is
// false for blank and placeholder text.
func cleanRangeText(text string) (string, bool) {
	s := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if placeholders[s] {
		return "", false
	}

	s = digitLetter.ReplaceAllString(s, "$1 $2")
	s = unitPattern.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".")

	return s, !placeholders[s]
}

func collapseThousands(s string) string {
	for {
		next := thousandsPattern.ReplaceAllString(s, "$1$2")
		if next == s {
			return s
		}

		s = next
	}
}

func parseList(s string) ([]float64, bool) {
	parts := listSeparator.Split(s, -1)
	values := make([]float64, 0, len(parts))

	for _, p := range parts {
		if p == "" {
			continue
		}

		// "000" is a thousands group, not a list item.
		if !singlePattern.MatchString(p) || (len(p) > 1 && p[0] == '0' && p[1] != '.') {
			return nil, false
		}

		values = append(values, mustFloat(p))
	}

	return values, len(values) >= 2
}

// mustFloat is only called on text already matched by numberExpr.
func mustFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func estimate(v float64) *float64 {
	return &v
}
