package fiscal

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnrecognisedDate is returned by ParseDate for text in none of the known layouts.
var ErrUnrecognisedDate = errors.New("unrecognised date")

// Layouts seen across the gov.uk incident-level datasets.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"2/1/06",
	"02/01/2006 15:04",
	"2 January 2006",
	"02-Jan-2006",
	"Jan 2006",
}

// ParseDate reads a source date field. UK day-first order is assumed for slashed dates.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrUnrecognisedDate
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnrecognisedDate, s)
}
