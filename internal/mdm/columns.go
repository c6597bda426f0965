package mdm

import (
	"strings"

	"firestats/internal/fiscal"
	"firestats/internal/models"
)

// ColumnRules locates the entity code and name columns of a table.
type ColumnRules struct {
	CodeColumns []string
	NameColumns []string
	// IgnoreTerms exclude heuristic code column candidates.
	IgnoreTerms []string
}

// Detect returns the code and name columns, "" when absent. Exact
// candidates win; otherwise a column mentioning frs, e_ or area together
// with code is taken, and for names one mentioning frs and name.
func (c ColumnRules) Detect(columns []string) (code, name string) {
	code = firstIn(columns, c.CodeColumns)
	if code == "" {
		for _, col := range columns {
			if c.isCodeCandidate(col) {
				code = col
				break
			}
		}
	}

	name = firstIn(columns, c.NameColumns)
	if name == "" {
		for _, col := range columns {
			if strings.Contains(col, "frs") && strings.Contains(col, "name") {
				name = col
				break
			}
		}
	}

	return code, name
}

func (c ColumnRules) isCodeCandidate(col string) bool {
	if !strings.Contains(col, "code") {
		return false
	}

	if !strings.Contains(col, "frs") && !strings.Contains(col, "e_") && !strings.Contains(col, "area") {
		return false
	}

	for _, bad := range c.IgnoreTerms {
		if strings.Contains(col, bad) {
			return false
		}
	}

	return true
}

func firstIn(columns, candidates []string) string {
	want := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		want[c] = true
	}

	for _, col := range columns {
		if want[col] {
			return col
		}
	}

	return ""
}

// Observe collects the distinct entity sightings of a cleansed batch. Rows
// without a code are skipped; malformed codes are kept so Reconcile can
// count them.
func Observe(batch *models.CleansedBatch, rules ColumnRules) []Observation {
	codeCol, nameCol := rules.Detect(batch.Columns)
	if codeCol == "" {
		return nil
	}

	seen := make(map[Observation]bool)

	var out []Observation

	for _, row := range batch.Rows {
		code := row.Fields.Get(codeCol)
		if code == "" {
			continue
		}

		obs := Observation{Code: code, Dataset: batch.Dataset}
		if nameCol != "" {
			obs.Name = row.Fields.Get(nameCol)
		}

		if y, err := fiscal.ParseLabel(row.FinancialYear); err == nil {
			obs.Year = y
		}

		if !seen[obs] {
			seen[obs] = true
			out = append(out, obs)
		}
	}

	return out
}
