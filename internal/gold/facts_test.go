package gold

import (
	"errors"
	"strings"
	"testing"

	"firestats/internal/mdm"
	"firestats/internal/models"
)

func float(v float64) *float64 {
	return &v
}

func testEntityRules() mdm.ColumnRules {
	return mdm.ColumnRules{CodeColumns: []string{"frs_code"}, NameColumns: []string{"frs_name"}}
}

func testCleansed() *models.CleansedBatch {
	return &models.CleansedBatch{
		Dataset:   "dwelling_fires",
		Columns:   []string{"frs_code", "frs_name", "lsoa_code", "vehicles"},
		Estimates: []string{"vehicles_midpoint"},
		Rows: []models.CleansedRow{
			{
				Index:          0,
				Fields:         models.Record{"frs_code": hants, "frs_name": "Hampshire", "lsoa_code": "E01000001", "vehicles": "6-20"},
				Estimates:      map[string]*float64{"vehicles_midpoint": float(13)},
				FinancialYear:  "2023/24",
				DrillThroughID: 10,
			},
			{
				Index:          1,
				Fields:         models.Record{"frs_code": "e31000099", "lsoa_code": "E01000002", "vehicles": "N/A"},
				Estimates:      map[string]*float64{"vehicles_midpoint": nil},
				FinancialYear:  "2023/24",
				DrillThroughID: 99,
			},
		},
	}
}

func TestFireFacts(t *testing.T) {
	l := testLookups(t)
	ft := FireFacts("fact_dwelling_fires", testCleansed(), testRegistry(t, l), testEntityRules())

	if len(ft.Rows) != 2 {
		t.Fatalf("expected 2 fact rows, got %d", len(ft.Rows))
	}

	first := ft.Rows[0]
	if got := first.Key("frs_code"); got != hiow {
		t.Errorf("expected legacy code to resolve to master, got %s", got)
	}

	if got := first.Key("geography_code"); got != "E01000001" {
		t.Errorf("unexpected geography key %s", got)
	}

	if first.Measures["vehicles_midpoint"] != 13 || first.Measures[DrillThroughMeasure] != 10 {
		t.Errorf("unexpected measures %v", first.Measures)
	}

	if first.Provenance.Dataset != "dwelling_fires" || first.Provenance.RowIndex != 0 {
		t.Errorf("unexpected provenance %+v", first.Provenance)
	}

	second := ft.Rows[1]
	if got := second.Key("frs_code"); got != "E31000099" {
		t.Errorf("expected unknown code to pass through uppercased, got %s", got)
	}

	if _, ok := second.Measures["vehicles_midpoint"]; ok {
		t.Error("unknown estimate should be absent, not zero")
	}
}

func TestFactTable_Table(t *testing.T) {
	l := testLookups(t)
	ft := FireFacts("fact_dwelling_fires", testCleansed(), testRegistry(t, l), testEntityRules())
	table := ft.Table()

	want := "financial_year,frs_code,geography_code,vehicles_midpoint,drill_through_id,incident_dataset_key,frs_name,lsoa_code,vehicles"
	if got := strings.Join(table.Columns, ","); got != want {
		t.Fatalf("unexpected columns:\n got %s\nwant %s", got, want)
	}

	midpoints := table.Column("vehicles_midpoint")
	if midpoints[0] != "13" || midpoints[1] != "" {
		t.Errorf("unexpected midpoint cells %q", midpoints)
	}

	if got := table.Column("incident_dataset_key"); got[0] != "dwelling_fires" {
		t.Errorf("unexpected dataset key %q", got)
	}
}

func testPopulationBatch() *models.Batch {
	return &models.Batch{
		Dataset: "population_estimates",
		Columns: []string{"LSOA Code", "LSOA Name", "2020", "2021"},
		Rows: []models.Record{
			{"LSOA Code": "E01000001", "2020": "1,500", "2021": "1,600"},
			{"LSOA Code": "E01000002", "2020": "900", "2021": "n/a"},
			{"LSOA Code": "E01009999", "2020": "50", "2021": "55"},
			{"LSOA Code": "", "2020": "1"},
		},
	}
}

func testPopulationOptions() PopulationOptions {
	return PopulationOptions{CodeColumn: "lsoa_code", CodeAliases: []string{"mnemonic"}, FirstYear: 2019, LastYear: 2022}
}

func TestFillSeries(t *testing.T) {
	got := fillSeries(map[int]int{2012: 10, 2014: 20}, 2010, 2015)
	want := []int{10, 10, 10, 10, 20, 20}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fillSeries() = %v, want %v", got, want)
		}
	}

	empty := fillSeries(nil, 2010, 2011)
	if empty[0] != 0 || empty[1] != 0 {
		t.Errorf("expected zeros for an empty series, got %v", empty)
	}
}

func TestPopulationLong(t *testing.T) {
	rows, err := PopulationLong(testPopulationBatch(), testPopulationOptions())
	if err != nil {
		t.Fatalf("PopulationLong() error: %v", err)
	}

	if len(rows) != 12 {
		t.Fatalf("expected 3 LSOAs x 4 years, got %d", len(rows))
	}

	first := rows[:4]
	want := []int{1500, 1500, 1600, 1600}

	for i, r := range first {
		if r.LSOACode != "E01000001" || r.Population != want[i] {
			t.Errorf("row %d: unexpected %+v", i, r)
		}
	}

	if first[0].Year != 2019 || first[0].FinancialYear != "2019/20" {
		t.Errorf("unexpected first year %+v", first[0])
	}

	if rows[6].Population != 0 {
		t.Errorf("expected unparseable count to be zero, got %d", rows[6].Population)
	}
}

func TestPopulationLong_Alias(t *testing.T) {
	batch := &models.Batch{
		Dataset: "population_estimates",
		Columns: []string{"mnemonic", "2020"},
		Rows:    []models.Record{{"mnemonic": "E01000001", "2020": "10"}},
	}

	rows, err := PopulationLong(batch, testPopulationOptions())
	if err != nil {
		t.Fatalf("PopulationLong() error: %v", err)
	}

	if len(rows) != 4 || rows[3].Population != 10 {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestPopulationLong_MissingColumns(t *testing.T) {
	batch := &models.Batch{Dataset: "population_estimates", Columns: []string{"area", "total"}}

	_, err := PopulationLong(batch, testPopulationOptions())
	if !errors.Is(err, ErrPopulationColumns) {
		t.Fatalf("expected ErrPopulationColumns, got %v", err)
	}
}

func TestPopulationFacts(t *testing.T) {
	l := testLookups(t)
	geo := DimGeography(l, testRegistry(t, l))

	rows, err := PopulationLong(testPopulationBatch(), testPopulationOptions())
	if err != nil {
		t.Fatalf("PopulationLong() error: %v", err)
	}

	tables := PopulationFacts(rows, geo)
	if len(tables) != 4 {
		t.Fatalf("expected 4 population tables, got %d", len(tables))
	}

	byName := make(map[string]FactTable)
	for _, ft := range tables {
		byName[ft.Name] = ft
	}

	if got := len(byName[PopulationLSOATable].Rows); got != 12 {
		t.Errorf("expected every LSOA row at LSOA level, got %d", got)
	}

	if got := len(byName[PopulationMSOATable].Rows); got != 8 {
		t.Errorf("expected 2 MSOAs x 4 years, got %d", got)
	}

	frs := byName[PopulationFRSTable]
	if len(frs.Rows) != 4 {
		t.Fatalf("expected 1 FRS x 4 years, got %d", len(frs.Rows))
	}

	for _, r := range frs.Rows {
		if r.Key(models.KeyFRSCode) != hiow {
			t.Errorf("unexpected FRS key %s", r.Key(models.KeyFRSCode))
		}

		if r.Key(models.KeyFinancialYear) == "2021/22" && r.Measures["population"] != 1600 {
			t.Errorf("expected 1600 for 2021/22, got %v", r.Measures["population"])
		}

		if r.Key(models.KeyFinancialYear) == "2020/21" && r.Measures["population"] != 2400 {
			t.Errorf("expected 2400 for 2020/21, got %v", r.Measures["population"])
		}
	}
}

func TestRiskProfiles(t *testing.T) {
	groups := []FamilyGroupRow{{
		Code:        hiow,
		Name:        "Hampshire & IOW",
		FamilyGroup: "Group 4",
		Fields:      models.Record{"perimeter": "1,200", "area": "12.5%", "motorway": "unknown"},
	}}

	ft := RiskProfiles(groups, RiskOptions{Metrics: []string{"perimeter", "area", "motorway"}, FinancialYear: "2023/24", Source: "NFCC"})

	if len(ft.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(ft.Rows))
	}

	row := ft.Rows[0]
	if row.Measures["perimeter"] != 1200 || row.Measures["area"] != 12.5 || row.Measures["motorway"] != 0 {
		t.Errorf("unexpected measures %v", row.Measures)
	}

	if row.Key(models.KeyFinancialYear) != "2023/24" || row.Attributes["data_source"] != "NFCC" {
		t.Errorf("unexpected row %+v", row)
	}
}
