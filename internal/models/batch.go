// Package models defines the tabular structures exchanged between the normalizer stages.
package models

import "strings"

// Record is one raw source row keyed by column name.
// A missing key and an empty string both mean "no value".
type Record map[string]string

// Get returns the trimmed value of a column.
func (r Record) Get(column string) string {
	return strings.TrimSpace(r[column])
}

// Has reports whether the column carries a non-blank value.
func (r Record) Has(column string) bool {
	return r.Get(column) != ""
}

// Clone returns a copy of the record, so stages never write into their input.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}

	return out
}

// Batch is a tabular batch handed over by the ingestion collaborator.
type Batch struct {
	Dataset string   `json:"dataset"`
	Period  string   `json:"period"`
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

// HasColumn reports whether the batch declares the column.
func (b *Batch) HasColumn(column string) bool {
	for _, c := range b.Columns {
		if c == column {
			return true
		}
	}

	return false
}

// FindColumn returns the first column accepted by match, or "".
func (b *Batch) FindColumn(match func(string) bool) string {
	for _, c := range b.Columns {
		if match(c) {
			return c
		}
	}

	return ""
}
