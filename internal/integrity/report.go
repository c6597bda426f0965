package integrity

import (
	"sort"
	"time"

	"firestats/internal/models"
)

// Check is the outcome for one (fact table, key column) pair.
type Check struct {
	FactTable     string   `json:"factTable"`
	KeyColumn     string   `json:"keyColumn"`
	Rows          int      `json:"rows"`
	Missing       int      `json:"missing"`
	Orphans       int      `json:"orphans"`
	Whitelisted   bool     `json:"whitelisted"`
	Violations    int      `json:"violations"`
	OrphanSamples []string `json:"orphanSamples,omitempty"`
}

// DefectCount is the number of row-level defects of one kind in a dataset.
type DefectCount struct {
	Dataset string            `json:"dataset"`
	Kind    models.DefectKind `json:"kind"`
	Count   int               `json:"count"`
}

// Report is the validation report handed to the publish step.
type Report struct {
	RunID       string        `json:"runId"`
	GeneratedAt time.Time     `json:"generatedAt"`
	Checks      []Check       `json:"checks"`
	Defects     []DefectCount `json:"defects,omitempty"`
	Exceptions  []Exception   `json:"exceptions"`
}

// HasBlockingViolations reports whether any pair has a violation.
func (r *Report) HasBlockingViolations() bool {
	return r.TotalViolations() > 0
}

// TotalViolations sums violations across all pairs.
func (r *Report) TotalViolations() int {
	total := 0
	for _, c := range r.Checks {
		total += c.Violations
	}

	return total
}

// Publishable reports whether a fact table has no violations.
func (r *Report) Publishable(table string) bool {
	for _, c := range r.Checks {
		if c.FactTable == table && c.Violations > 0 {
			return false
		}
	}

	return true
}

// Tables returns the checked fact tables in sorted order.
func (r *Report) Tables() []string {
	seen := make(map[string]bool)

	var tables []string

	for _, c := range r.Checks {
		if !seen[c.FactTable] {
			seen[c.FactTable] = true
			tables = append(tables, c.FactTable)
		}
	}

	sort.Strings(tables)

	return tables
}

// Check returns the result for one pair.
func (r *Report) Check(table, key string) (Check, bool) {
	for _, c := range r.Checks {
		if c.FactTable == table && c.KeyColumn == key {
			return c, true
		}
	}

	return Check{}, false
}

// AddDefects records the row-level defect counts of a dataset.
func (r *Report) AddDefects(dataset string, counts map[models.DefectKind]int) {
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}

	sort.Strings(kinds)

	for _, k := range kinds {
		kind := models.DefectKind(k)
		if counts[kind] > 0 {
			r.Defects = append(r.Defects, DefectCount{Dataset: dataset, Kind: kind, Count: counts[kind]})
		}
	}
}

// TotalDefects sums row-level defects across datasets.
func (r *Report) TotalDefects() int {
	total := 0
	for _, d := range r.Defects {
		total += d.Count
	}

	return total
}
