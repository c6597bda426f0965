package integrity

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"firestats/internal/models"
)

const orphanSampleLimit = 5

// KeySet is the set of valid values of one dimension key.
type KeySet map[string]bool

// NewKeySet builds a key set from values, ignoring blanks.
func NewKeySet(values ...string) KeySet {
	s := make(KeySet, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			s[v] = true
		}
	}

	return s
}

// KeySets maps a key column to its dimension key set.
type KeySets map[string]KeySet

// Validator checks fact rows against dimension key sets. It never mutates
// or drops rows.
type Validator struct {
	schemas   Schemas
	whitelist *Whitelist
	now       func() time.Time
}

// NewValidator builds a validator. Whitelist inconsistencies are returned
// as errors.
func NewValidator(schemas Schemas, exceptions []Exception) (*Validator, error) {
	w, err := NewWhitelist(schemas, exceptions)
	if err != nil {
		return nil, err
	}

	return &Validator{schemas: schemas, whitelist: w, now: time.Now}, nil
}

// Whitelist returns the exceptions the validator honours.
func (v *Validator) Whitelist() *Whitelist {
	return v.whitelist
}

type tally struct {
	check   Check
	orphans map[string]bool
}

// Validate checks every declared key of every fact table. A table declares
// its schema keys plus any key column its rows carry. A missing value is a
// violation unless whitelisted; an orphan value is always a violation.
func (v *Validator) Validate(rows []models.FactRow, keys KeySets) *Report {
	tallies := make(map[string]*tally)
	declared := make(map[string][]string)

	for _, row := range rows {
		cols, ok := declared[row.Table]
		if !ok {
			cols = append([]string(nil), v.schemas.Keys(row.Table)...)
		}

		for col := range row.Keys {
			if !contains(cols, col) {
				cols = append(cols, col)
			}
		}

		declared[row.Table] = cols
	}

	for _, row := range rows {
		for _, col := range declared[row.Table] {
			id := pairID(row.Table, col)

			t, ok := tallies[id]
			if !ok {
				t = &tally{
					check: Check{
						FactTable:   row.Table,
						KeyColumn:   col,
						Whitelisted: v.whitelist.Covers(row.Table, col),
					},
					orphans: make(map[string]bool),
				}
				tallies[id] = t
			}

			t.check.Rows++

			value := row.Key(col)
			switch {
			case value == "":
				t.check.Missing++
			case !keys[col][value]:
				t.check.Orphans++
				t.orphans[value] = true
			}
		}
	}

	report := &Report{
		RunID:       uuid.New().String(),
		GeneratedAt: v.now().UTC(),
		Exceptions:  v.whitelist.Items(),
	}

	for _, t := range tallies {
		c := t.check
		c.Violations = c.Orphans
		if !c.Whitelisted {
			c.Violations += c.Missing
		}

		c.OrphanSamples = sample(t.orphans)
		report.Checks = append(report.Checks, c)
	}

	sort.Slice(report.Checks, func(i, j int) bool {
		a, b := report.Checks[i], report.Checks[j]
		if a.FactTable != b.FactTable {
			return a.FactTable < b.FactTable
		}

		return a.KeyColumn < b.KeyColumn
	})

	return report
}

func sample(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}

	sort.Strings(out)

	if len(out) > orphanSampleLimit {
		out = out[:orphanSampleLimit]
	}

	return out
}
