// Package utils provides common string helpers.
package utils

import (
	"regexp"
	"strings"
)

var (
	nonAlnumPattern     = regexp.MustCompile(`[^a-z0-9]+`)
	lookupPrefixPattern = regexp.MustCompile(`^[pc]_`)
)

// StandardiseHeader lowercases a column name and collapses every run of
// non-alphanumeric characters into a single underscore.
// "Incident Date (UTC)" becomes "incident_date_utc".
func StandardiseHeader(name string) string {
	c := strings.ToLower(strings.TrimSpace(name))
	c = nonAlnumPattern.ReplaceAllString(c, "_")

	return strings.Trim(c, "_")
}

// StandardiseLookupHeader is StandardiseHeader for ONS lookup files, whose
// headers may carry a "p_" or "c_" publication prefix.
func StandardiseLookupHeader(name string) string {
	c := strings.ToLower(strings.TrimSpace(name))
	c = lookupPrefixPattern.ReplaceAllString(c, "")
	c = nonAlnumPattern.ReplaceAllString(c, "_")

	return strings.Trim(c, "_")
}

// NormalizeWhitespace replaces multiple whitespace with single space.
func NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// NormalizeKey folds a free-text label for case-insensitive lookups.
func NormalizeKey(str string) string {
	return strings.ToLower(NormalizeWhitespace(str))
}

// TitleWords turns a dataset key such as "dwelling_fires" into "Dwelling Fires".
func TitleWords(str string) string {
	str = strings.NewReplacer("_", " ", "-", " ").Replace(str)
	words := strings.Fields(str)

	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}

	return strings.Join(words, " ")
}
