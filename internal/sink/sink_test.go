package sink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestats/internal/integrity"
	"firestats/internal/models"
	"firestats/pkg/lineage"
)

var (
	now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	factTable = models.Table{
		Name:    "fact_dwelling_fires",
		Columns: []string{"financial_year", "frs_code", "vehicles_midpoint"},
		Rows: [][]string{
			{"2022/23", "E31000048", "13"},
			{"2022/23", "E31000040", ""},
		},
	}

	report = &integrity.Report{
		RunID:       "run-1",
		GeneratedAt: now,
		Checks: []integrity.Check{
			{FactTable: "fact_dwelling_fires", KeyColumn: "frs_code", Rows: 2, Orphans: 1, Violations: 1},
		},
		Defects: []integrity.DefectCount{
			{Dataset: "dwelling_fires", Kind: models.DefectRangeParse, Count: 3},
		},
	}
)

func TestReportTables(t *testing.T) {
	stamps := []lineage.Stamp{lineage.NewStamp("run-1", factTable, false, now)}

	tables := ReportTables(report, stamps)
	require.Len(t, tables, 3)

	assert.Equal(t, ChecksTable, tables[0].Name)
	assert.Equal(t, [][]string{{"run-1", "fact_dwelling_fires", "frs_code", "2", "0", "1", "false", "1"}}, tables[0].Rows)

	assert.Equal(t, DefectsTable, tables[1].Name)
	assert.Equal(t, [][]string{{"run-1", "dwelling_fires", "range_parse", "3"}}, tables[1].Rows)

	assert.Equal(t, LineageTable, tables[2].Name)
	require.Len(t, tables[2].Rows, 1)
	assert.Equal(t, "fact_dwelling_fires", tables[2].Rows[0][1])
	assert.Equal(t, "false", tables[2].Rows[0][4])
	assert.Equal(t, "2024-05-01T12:00:00Z", tables[2].Rows[0][5])
}

func TestJSONWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gold")

	w, err := NewJSONWriter(dir, true)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	ctx := context.Background()
	require.NoError(t, w.WriteTables(ctx, []models.Table{factTable}))
	require.NoError(t, w.WriteReport(ctx, report, []lineage.Stamp{lineage.NewStamp("run-1", factTable, false, now)}))

	data, err := os.ReadFile(w.Path("fact_dwelling_fires"))
	require.NoError(t, err)

	var got models.Table
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, factTable, got)

	data, err = os.ReadFile(w.Path("report"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"runId": "run-1"`)

	data, err = os.ReadFile(w.Path(LineageTable))
	require.NoError(t, err)

	var stamps []lineage.Stamp
	require.NoError(t, json.Unmarshal(data, &stamps))
	require.Len(t, stamps, 1)
	assert.NoError(t, stamps[0].Verify(got))
}

func TestJSONWriter_Document(t *testing.T) {
	dir := t.TempDir()

	w, err := NewJSONWriter(dir, false)
	require.NoError(t, err)

	require.NoError(t, w.WriteDocument("report.md", "# Report\n"))

	data, err := os.ReadFile(filepath.Join(dir, "report.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Report\n", string(data))
}

func TestJSONWriter_Cancelled(t *testing.T) {
	w, err := NewJSONWriter(t.TempDir(), false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, w.WriteTables(ctx, []models.Table{factTable}), context.Canceled)
	assert.NoFileExists(t, w.Path(factTable.Name))
}

func TestCreateTableSQL(t *testing.T) {
	got := createTableSQL("gold", factTable)
	assert.Equal(t, `CREATE TABLE "gold"."fact_dwelling_fires" ("financial_year" TEXT, "frs_code" TEXT, "vehicles_midpoint" TEXT)`, got)
}

func TestIdentifierQuoting(t *testing.T) {
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "my""schema"`, createSchemaSQL(`my"schema`))
	assert.Equal(t, `DROP TABLE IF EXISTS "gold"."Dim_Geography"`, dropTableSQL("gold", "Dim_Geography"))
}

func TestRowArgs(t *testing.T) {
	assert.Equal(t, []any{"a", nil, nil}, rowArgs([]string{"a", ""}, 3))
	assert.Equal(t, []any{"a"}, rowArgs([]string{"a", "b"}, 1))
}

func TestDSN(t *testing.T) {
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGPORT", "15432")
	t.Setenv("PGUSER", "loader")
	t.Setenv("PGPASSWORD", "")
	t.Setenv("PGDATABASE", "")
	t.Setenv("PGSSLMODE", "")

	assert.Equal(t, "host=db.internal port=15432 user=loader dbname=firestats sslmode=disable", DSN())

	t.Setenv("PGPASSWORD", "secret")
	assert.Contains(t, DSN(), " password=secret")
}
