package gold

import (
	"strconv"
	"strings"

	"firestats/internal/mdm"
	"firestats/internal/models"
)

// Derived fact columns.
const (
	DrillThroughMeasure = "drill_through_id"
	DatasetKeyAttribute = "incident_dataset_key"
)

// FactTable is a named set of fact rows with a fixed column layout.
type FactTable struct {
	Name       string
	Keys       []string
	Measures   []string
	Attributes []string
	Rows       []models.FactRow
}

// Table flattens the fact table. Absent measures become empty cells so
// unknown stays distinct from zero.
func (f *FactTable) Table() models.Table {
	t := models.Table{Name: f.Name}
	t.Columns = append(t.Columns, f.Keys...)
	t.Columns = append(t.Columns, f.Measures...)

	for _, a := range f.Attributes {
		if !containsString(t.Columns, a) {
			t.Columns = append(t.Columns, a)
		}
	}

	for _, row := range f.Rows {
		out := make([]string, 0, len(t.Columns))

		for _, k := range f.Keys {
			out = append(out, row.Key(k))
		}

		for _, m := range f.Measures {
			if v, ok := row.Measures[m]; ok {
				out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				out = append(out, "")
			}
		}

		for _, c := range t.Columns[len(f.Keys)+len(f.Measures):] {
			out = append(out, row.Attributes[c])
		}

		t.Rows = append(t.Rows, out)
	}

	return t
}

// FireFacts promotes one cleansed incident batch to its fact table. The FRS
// key is resolved to the master code; the geography key uses the finest
// geography column present.
func FireFacts(table string, batch *models.CleansedBatch, reg *mdm.Registry, cols mdm.ColumnRules) FactTable {
	codeCol, _ := cols.Detect(batch.Columns)
	geoCol := finestGeographyColumn(batch.Columns)

	ft := FactTable{
		Name:       table,
		Keys:       []string{models.KeyFinancialYear, models.KeyFRSCode},
		Measures:   append(append([]string(nil), batch.Estimates...), DrillThroughMeasure),
		Attributes: append([]string{DatasetKeyAttribute}, batch.Columns...),
		Rows:       make([]models.FactRow, 0, len(batch.Rows)),
	}

	if geoCol != "" {
		ft.Keys = append(ft.Keys, models.KeyGeographyCode)
	}

	for _, row := range batch.Rows {
		fact := models.FactRow{
			Table: table,
			Keys: map[string]string{
				models.KeyFinancialYear: row.FinancialYear,
				models.KeyFRSCode:       "",
			},
			Measures:   make(map[string]float64, len(batch.Estimates)+1),
			Attributes: make(map[string]string, len(batch.Columns)+1),
			Provenance: models.Provenance{Dataset: batch.Dataset, RowIndex: row.Index},
		}

		if codeCol != "" {
			fact.Keys[models.KeyFRSCode] = masterCode(reg, row.Fields.Get(codeCol))
		}

		if geoCol != "" {
			fact.Keys[models.KeyGeographyCode] = row.Fields.Get(geoCol)
		}

		for _, est := range batch.Estimates {
			if v := row.Estimates[est]; v != nil {
				fact.Measures[est] = *v
			}
		}

		fact.Measures[DrillThroughMeasure] = float64(row.DrillThroughID)

		fact.Attributes[DatasetKeyAttribute] = batch.Dataset
		for _, c := range batch.Columns {
			fact.Attributes[c] = row.Fields.Get(c)
		}

		ft.Rows = append(ft.Rows, fact)
	}

	return ft
}

func masterCode(reg *mdm.Registry, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ""
	}

	if master, ok := reg.MasterCode(code); ok {
		return master
	}

	return code
}

// finestGeographyColumn prefers LSOA over MSOA over LAD code columns.
func finestGeographyColumn(columns []string) string {
	for _, level := range []string{"lsoa", "msoa", "lad"} {
		for _, c := range columns {
			if strings.Contains(c, level) && (strings.HasSuffix(c, "cd") || strings.HasSuffix(c, "code")) {
				return c
			}
		}
	}

	return ""
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
