// Package sink writes Gold tables and validation output to storage.
package sink

import (
	"context"
	"errors"
	"strconv"

	"firestats/internal/integrity"
	"firestats/internal/models"
	"firestats/pkg/lineage"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Writer stores the output of one run.
type Writer interface {
	WriteTables(ctx context.Context, tables []models.Table) error
	WriteReport(ctx context.Context, report *integrity.Report, stamps []lineage.Stamp) error
	Close() error
}

// Report tables.
const (
	ChecksTable  = "validation_checks"
	DefectsTable = "validation_defects"
	LineageTable = "lineage"
)

// ReportTables flattens a report and its stamps into tables.
func ReportTables(report *integrity.Report, stamps []lineage.Stamp) []models.Table {
	checks := models.Table{
		Name:    ChecksTable,
		Columns: []string{"run_id", "fact_table", "key_column", "rows", "missing", "orphans", "whitelisted", "violations"},
	}

	for _, c := range report.Checks {
		checks.Rows = append(checks.Rows, []string{
			report.RunID,
			c.FactTable,
			c.KeyColumn,
			strconv.Itoa(c.Rows),
			strconv.Itoa(c.Missing),
			strconv.Itoa(c.Orphans),
			strconv.FormatBool(c.Whitelisted),
			strconv.Itoa(c.Violations),
		})
	}

	defects := models.Table{
		Name:    DefectsTable,
		Columns: []string{"run_id", "dataset", "kind", "count"},
	}

	for _, d := range report.Defects {
		defects.Rows = append(defects.Rows, []string{report.RunID, d.Dataset, string(d.Kind), strconv.Itoa(d.Count)})
	}

	stampTable := models.Table{
		Name:    LineageTable,
		Columns: []string{"run_id", "table_name", "rows", "hash", "validated", "created_at"},
	}

	for _, s := range stamps {
		stampTable.Rows = append(stampTable.Rows, []string{
			s.RunID,
			s.Table,
			strconv.Itoa(s.Rows),
			s.Hash,
			strconv.FormatBool(s.Validated),
			s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	return []models.Table{checks, defects, stampTable}
}
