package models

import "fmt"

// DefectKind classifies a recoverable row-level data problem.
type DefectKind string

// Row-level defect kinds.
const (
	DefectRangeParse         DefectKind = "range_parse"
	DefectRangeInverted      DefectKind = "range_inverted"
	DefectUnknownGeography   DefectKind = "unknown_geography"
	DefectMissingTemporalKey DefectKind = "missing_temporal_key"
	DefectUnparseableDate    DefectKind = "unparseable_date"
	DefectUnmappedIncident   DefectKind = "unmapped_incident_type"
	DefectInvalidEntityCode  DefectKind = "invalid_entity_code"
)

// Defect records a row-level problem. The row is always kept.
type Defect struct {
	Kind    DefectKind `json:"kind"`
	Column  string     `json:"column"`
	Value   string     `json:"value"`
	Message string     `json:"message"`
}

func (d Defect) String() string {
	return fmt.Sprintf("%s on %s=%q: %s", d.Kind, d.Column, d.Value, d.Message)
}

// CleansedRow is a Silver row. Fields holds the pass-through text columns
// (geography codes already rewritten); Estimates holds parsed midpoints,
// nil meaning unknown rather than zero.
type CleansedRow struct {
	Index          int                 `json:"index"`
	Fields         Record              `json:"fields"`
	Estimates      map[string]*float64 `json:"estimates"`
	FinancialYear  string              `json:"financialYear"`
	DrillThroughID int                 `json:"drillThroughId"`
	Defects        []Defect            `json:"defects,omitempty"`
}

// HasDefect reports whether the row carries a defect of the given kind.
func (r *CleansedRow) HasDefect(kind DefectKind) bool {
	for _, d := range r.Defects {
		if d.Kind == kind {
			return true
		}
	}

	return false
}

// CleansedBatch is the Silver output for one dataset.
type CleansedBatch struct {
	Dataset string   `json:"dataset"`
	Period  string   `json:"period"`
	Columns []string `json:"columns"`
	// Estimates lists the derived estimate columns in creation order.
	Estimates []string      `json:"estimates"`
	Rows      []CleansedRow `json:"rows"`
}

// DefectCounts tallies defects by kind.
func (b *CleansedBatch) DefectCounts() map[DefectKind]int {
	counts := make(map[DefectKind]int)

	for _, row := range b.Rows {
		for _, d := range row.Defects {
			counts[d.Kind]++
		}
	}

	return counts
}
