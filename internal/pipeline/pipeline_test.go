package pipeline

import (
	"errors"
	"testing"

	"firestats/internal/config"
	"firestats/internal/fiscal"
	"firestats/internal/geography"
	"firestats/internal/logger"
	"firestats/internal/mdm"
	"firestats/internal/models"
	"firestats/internal/normalizer"
)

const hiow = "E31000048"

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}

	cfg.Pipeline.Workers = 2
	cfg.Geography.Reorganisations = []config.ReorganisationConfig{{
		ID:        "lad-2023",
		Effective: "2023-04-01",
		Rules: []config.RuleConfig{
			{Old: "E07000186", New: "E06000066"},
			{Old: "E07000187", New: "E06000066"},
		},
	}}

	return cfg
}

func newTestPipeline(t *testing.T, cfg *config.Config) *Pipeline {
	t.Helper()

	p, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return p
}

func lookupBatches() []*models.Batch {
	return []*models.Batch{
		{
			Dataset: "lookup_lsoa_msoa_lad",
			Columns: []string{"LSOA21CD", "LSOA21NM", "MSOA21CD", "MSOA21NM", "LAD23CD", "LAD23NM"},
			Rows: []models.Record{
				{"LSOA21CD": "E01000001", "LSOA21NM": "Basingstoke 001A", "MSOA21CD": "E02000001", "MSOA21NM": "Basingstoke 001", "LAD23CD": "E07000186", "LAD23NM": "Basingstoke"},
			},
		},
		{
			Dataset: "lookup_lad_fra",
			Columns: []string{"LAD23CD", "FRA23CD", "FRA23NM"},
			Rows: []models.Record{
				{"LAD23CD": "E07000186", "FRA23CD": hiow, "FRA23NM": "Hampshire and Isle of Wight"},
			},
		},
	}
}

func incidentBatch(dataset string, rows ...models.Record) *models.Batch {
	return &models.Batch{
		Dataset: dataset,
		Period:  "2023",
		Columns: []string{"FRS Code", "FRS Name", "LAD Code", "Incident Date", "Vehicles", "FRIS Incident Type"},
		Rows:    rows,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	p := newTestPipeline(t, testConfig(t))

	in := Input{
		Batches: append(lookupBatches(), incidentBatch("dwelling_fires", models.Record{
			"FRS Code":           "E31000017",
			"FRS Name":           "Hampshire FRS",
			"LAD Code":           "E07000186",
			"Incident Date":      "2023-05-01",
			"Vehicles":           "6-20",
			"FRIS Incident Type": "Dwellings",
		})),
		Snapshots: []mdm.Observation{
			{Code: "E31000017", Name: "Hampshire Fire and Rescue Service", Year: fiscal.Year{Start: 2019}, Dataset: "snapshot_2019"},
			{Code: hiow, Name: "Hampshire & IOW FRS", Year: fiscal.Year{Start: 2022}, Dataset: "snapshot_2022"},
		},
	}

	res, err := p.Run(in)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(res.Cleansed) != 1 || len(res.Cleansed[0].Rows) != 1 {
		t.Fatalf("expected one cleansed row, got %+v", res.Cleansed)
	}

	row := res.Cleansed[0].Rows[0]

	if v := row.Estimates["vehicles_midpoint"]; v == nil || *v != 13 {
		t.Errorf("expected midpoint 13, got %v", v)
	}

	if got := row.Fields.Get("lad_code"); got != "E06000066" {
		t.Errorf("expected rewritten LAD code, got %s", got)
	}

	if row.FinancialYear != "2023/24" {
		t.Errorf("expected 2023/24, got %s", row.FinancialYear)
	}

	if row.DrillThroughID != 10 {
		t.Errorf("expected drill-through id 10, got %d", row.DrillThroughID)
	}

	if len(row.Defects) != 0 {
		t.Errorf("expected no defects, got %v", row.Defects)
	}

	entity, ok := res.Registry.Lookup("E31000017")
	if !ok || entity.Code != hiow {
		t.Fatalf("expected legacy code to resolve to %s, got %+v", hiow, entity)
	}

	if entity.Name != "Hampshire and Isle of Wight Fire and Rescue Service" {
		t.Errorf("unexpected canonical name %q", entity.Name)
	}

	if len(entity.Legacy) < 2 {
		t.Errorf("expected both historical identities, got %+v", entity.Legacy)
	}

	if res.Report.HasBlockingViolations() {
		t.Errorf("expected no violations, got %+v", res.Report.Checks)
	}

	ft, ok := res.Model.Fact("fact_dwelling_fires")
	if !ok || ft.Rows[0].Key(models.KeyFRSCode) != hiow {
		t.Errorf("expected fact row keyed on the master code, got %+v", ft)
	}

	if len(res.Lineage) != len(res.Tables()) {
		t.Errorf("expected one lineage stamp per table, got %d for %d", len(res.Lineage), len(res.Tables()))
	}

	for _, s := range res.Lineage {
		if s.RunID != res.RunID || !s.Validated {
			t.Errorf("unexpected stamp %+v", s)
		}
	}
}

func TestRun_UnknownGeographyIsFlagged(t *testing.T) {
	p := newTestPipeline(t, testConfig(t))

	in := Input{Batches: append(lookupBatches(), incidentBatch("dwelling_fires", models.Record{
		"FRS Code":      hiow,
		"LAD Code":      "E07009999",
		"Incident Date": "2023-02-01",
		"Vehicles":      "N/A",
	}))}

	res, err := p.Run(in)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	row := res.Cleansed[0].Rows[0]
	if !row.HasDefect(models.DefectUnknownGeography) {
		t.Errorf("expected unknown geography defect, got %v", row.Defects)
	}

	if got := row.Fields.Get("lad_code"); got != "E07009999" {
		t.Errorf("expected original code to be kept, got %s", got)
	}

	if row.FinancialYear != "2022/23" {
		t.Errorf("expected 2022/23, got %s", row.FinancialYear)
	}

	check, ok := res.Report.Check("fact_dwelling_fires", models.KeyGeographyCode)
	if !ok || check.Orphans != 1 || check.Violations != 1 {
		t.Errorf("expected the unknown code to surface as an orphan, got %+v", check)
	}

	if res.Report.TotalDefects() == 0 {
		t.Error("expected row defects in the report")
	}
}

func TestRun_PreservesInputOrder(t *testing.T) {
	p := newTestPipeline(t, testConfig(t))

	names := []string{"road_vehicle_fires", "dwelling_fires", "other_building_fires", "chimney_fires", "false_alarms"}

	var batches []*models.Batch
	for _, n := range names {
		batches = append(batches, incidentBatch(n, models.Record{"FRS Code": hiow, "Incident Date": "2023-05-01"}))
	}

	res, err := p.Run(Input{Batches: batches})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	for i, n := range names {
		if res.Cleansed[i].Dataset != n {
			t.Errorf("position %d: expected %s, got %s", i, n, res.Cleansed[i].Dataset)
		}
	}
}

func TestRun_InvalidBatchAborts(t *testing.T) {
	p := newTestPipeline(t, testConfig(t))

	_, err := p.Run(Input{Batches: []*models.Batch{{Dataset: "dwelling_fires"}}})
	if !errors.Is(err, normalizer.ErrNoColumns) {
		t.Fatalf("expected ErrNoColumns, got %v", err)
	}
}

func TestRun_ReferenceTablesAreRouted(t *testing.T) {
	p := newTestPipeline(t, testConfig(t))

	batches := append(lookupBatches(),
		&models.Batch{
			Dataset: "population_estimates",
			Columns: []string{"LSOA Code", "2022"},
			Rows:    []models.Record{{"LSOA Code": "E01000001", "2022": "1,500"}},
		},
		&models.Batch{
			Dataset: "nfcc_family_groups",
			Columns: []string{"FRS Name", "Family Group", "Perimeter"},
			Rows:    []models.Record{{"FRS Name": "Hampshire & Isle of Wight FRS", "Family Group": "Group 4", "Perimeter": "300"}},
		},
	)

	res, err := p.Run(Input{Batches: batches})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(res.Cleansed) != 0 {
		t.Errorf("expected no incident datasets, got %d", len(res.Cleansed))
	}

	if _, ok := res.Model.Fact("fact_population_frs"); !ok {
		t.Error("expected population rollup")
	}

	risk, ok := res.Model.Fact("fact_frs_risk_profiles")
	if !ok || len(risk.Rows) != 1 || risk.Rows[0].Measures["perimeter"] != 300 {
		t.Errorf("unexpected risk profiles %+v", risk)
	}

	if len(res.Model.FRS) != 1 || res.Model.FRS[0].FamilyGroup != "Group 4" {
		t.Errorf("unexpected Dim_FRS %+v", res.Model.FRS)
	}

	if res.Report.HasBlockingViolations() {
		t.Errorf("expected no violations, got %+v", res.Report.Checks)
	}
}

func TestNew_RuleInconsistencyIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Geography.Reorganisations[0].Rules = append(cfg.Geography.Reorganisations[0].Rules, config.RuleConfig{Old: "E06000066", New: "E06000066"})

	if _, err := New(cfg, logger.Nop()); !errors.Is(err, geography.ErrSelfMapping) {
		t.Errorf("expected ErrSelfMapping, got %v", err)
	}

	cfg = testConfig(t)
	cfg.Integrity.Exceptions = append(cfg.Integrity.Exceptions, config.ExceptionConfig{FactTable: "fact_unknown", KeyColumn: "frs_code", Reason: "x"})

	if _, err := New(cfg, logger.Nop()); err == nil {
		t.Error("expected an error for an exception on an undeclared table")
	}
}

func TestRun_TargetMissingFromLookupIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Geography.Reorganisations[0].Rules = append(cfg.Geography.Reorganisations[0].Rules, config.RuleConfig{Old: "E07000026", New: "E06000063"})

	p := newTestPipeline(t, cfg)

	if _, err := p.Run(Input{Batches: lookupBatches()}); !errors.Is(err, geography.ErrTargetNotCurrent) {
		t.Errorf("expected ErrTargetNotCurrent, got %v", err)
	}
}

func TestReorganisations_ExpandsRanges(t *testing.T) {
	reorgs, err := Reorganisations(config.GeographyConfig{Reorganisations: []config.ReorganisationConfig{{
		ID:        "lad-2021",
		Effective: "2021-04-01",
		Rules:     []config.RuleConfig{{Old: "E07000151..E07000154", New: "E06000061"}},
	}}})
	if err != nil {
		t.Fatalf("Reorganisations() error: %v", err)
	}

	if got := len(reorgs[0].Rules); got != 4 {
		t.Fatalf("expected 4 rules, got %d", got)
	}

	if reorgs[0].Rules[3].Old != "E07000154" || reorgs[0].Rules[3].Reorganisation != "lad-2021" {
		t.Errorf("unexpected rule %+v", reorgs[0].Rules[3])
	}

	_, err = Reorganisations(config.GeographyConfig{Reorganisations: []config.ReorganisationConfig{{
		ID:        "bad",
		Effective: "2021-04-01",
		Rules:     []config.RuleConfig{{Old: "E07000151", New: "E06000061..E06000062"}},
	}}})
	if !errors.Is(err, ErrRangeTarget) {
		t.Errorf("expected ErrRangeTarget, got %v", err)
	}
}

func TestDefaultRules_RemapIdempotent(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}

	reorgs, err := Reorganisations(cfg.Geography)
	if err != nil {
		t.Fatalf("Reorganisations() error: %v", err)
	}

	r, err := geography.NewRemapper(reorgs)
	if err != nil {
		t.Fatalf("NewRemapper() error: %v", err)
	}

	rules := r.Rules()
	if len(rules) == 0 {
		t.Fatal("expected shipped remap rules")
	}

	for _, rule := range rules {
		for _, code := range []string{rule.Old, rule.New} {
			once := r.Remap(code).Code
			if twice := r.Remap(once).Code; twice != once {
				t.Errorf("Remap not idempotent for %s: %s then %s", code, once, twice)
			}
		}
	}

	if got := r.Remap("E07000186").Code; got != "E06000066" {
		t.Errorf("Remap(E07000186) = %s, want E06000066", got)
	}
}
