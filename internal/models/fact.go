package models

import "strings"

// Foreign key columns carried by fact rows.
const (
	KeyFinancialYear = "financial_year"
	KeyFRSCode       = "frs_code"
	KeyGeographyCode = "geography_code"
)

// Provenance points a fact row back at its source row.
type Provenance struct {
	Dataset  string `json:"dataset"`
	RowIndex int    `json:"rowIndex"`
}

// FactRow is a typed Gold record. A key that is absent or blank is missing.
type FactRow struct {
	Table      string             `json:"table"`
	Keys       map[string]string  `json:"keys"`
	Measures   map[string]float64 `json:"measures"`
	Attributes map[string]string  `json:"attributes,omitempty"`
	Provenance Provenance         `json:"provenance"`
}

// Key returns the trimmed foreign key value, "" when missing.
func (f *FactRow) Key(column string) string {
	return strings.TrimSpace(f.Keys[column])
}
