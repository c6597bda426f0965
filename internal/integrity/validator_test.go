package integrity

import (
	"errors"
	"testing"

	"firestats/internal/models"
)

func testSchemas() Schemas {
	return Schemas{
		Default: []string{models.KeyFinancialYear, models.KeyFRSCode},
		Tables: map[string][]string{
			"fact_fatalities":    {models.KeyFinancialYear, models.KeyFRSCode},
			"fact_fire_stations": {models.KeyFinancialYear, models.KeyFRSCode},
		},
	}
}

func testKeys() KeySets {
	return KeySets{
		models.KeyFinancialYear: NewKeySet("2022/23", "2023/24"),
		models.KeyFRSCode:       NewKeySet("E31000048", "E31000040"),
	}
}

func fact(table, year, frs string) models.FactRow {
	return models.FactRow{
		Table: table,
		Keys: map[string]string{
			models.KeyFinancialYear: year,
			models.KeyFRSCode:       frs,
		},
	}
}

func TestValidator_Validate(t *testing.T) {
	v, err := NewValidator(testSchemas(), DefaultExceptions())
	if err != nil {
		t.Fatalf("NewValidator() error: %v", err)
	}

	tests := []struct {
		name           string
		row            models.FactRow
		key            string
		wantViolations int
		wantMissing    int
		wantOrphans    int
	}{
		{
			name:           "Whitelisted null",
			row:            fact("fact_fatalities", "2023/24", ""),
			key:            models.KeyFRSCode,
			wantViolations: 0,
			wantMissing:    1,
		},
		{
			name:           "Non-whitelisted null",
			row:            fact("fact_dwelling_fires", "2023/24", ""),
			key:            models.KeyFRSCode,
			wantViolations: 1,
			wantMissing:    1,
		},
		{
			name:           "Orphan on whitelisted pair",
			row:            fact("fact_fatalities", "2023/24", "E31000999"),
			key:            models.KeyFRSCode,
			wantViolations: 1,
			wantOrphans:    1,
		},
		{
			name:           "Orphan year",
			row:            fact("fact_dwelling_fires", "2031/32", "E31000048"),
			key:            models.KeyFinancialYear,
			wantViolations: 1,
			wantOrphans:    1,
		},
		{
			name: "Clean row",
			row:  fact("fact_dwelling_fires", "2023/24", "E31000048"),
			key:  models.KeyFRSCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := v.Validate([]models.FactRow{tt.row}, testKeys())

			c, ok := report.Check(tt.row.Table, tt.key)
			if !ok {
				t.Fatalf("no check for %s.%s", tt.row.Table, tt.key)
			}

			if c.Violations != tt.wantViolations {
				t.Errorf("Violations = %d, want %d", c.Violations, tt.wantViolations)
			}

			if c.Missing != tt.wantMissing {
				t.Errorf("Missing = %d, want %d", c.Missing, tt.wantMissing)
			}

			if c.Orphans != tt.wantOrphans {
				t.Errorf("Orphans = %d, want %d", c.Orphans, tt.wantOrphans)
			}
		})
	}
}

func TestValidator_ReportSummary(t *testing.T) {
	v, err := NewValidator(testSchemas(), DefaultExceptions())
	if err != nil {
		t.Fatalf("NewValidator() error: %v", err)
	}

	rows := []models.FactRow{
		fact("fact_fatalities", "2023/24", ""),
		fact("fact_dwelling_fires", "2023/24", "E31000048"),
		fact("fact_dwelling_fires", "2023/24", "E31000777"),
	}
	rows[1].Keys[models.KeyGeographyCode] = "E01000001"

	report := v.Validate(rows, testKeys())

	if !report.HasBlockingViolations() {
		t.Error("HasBlockingViolations() = false, want true")
	}

	if !report.Publishable("fact_fatalities") {
		t.Error("fact_fatalities should be publishable")
	}

	if report.Publishable("fact_dwelling_fires") {
		t.Error("fact_dwelling_fires should not be publishable")
	}

	geo, ok := report.Check("fact_dwelling_fires", models.KeyGeographyCode)
	if !ok {
		t.Fatal("carried geography key was not checked")
	}

	if geo.Rows != 2 || geo.Orphans != 1 || geo.Missing != 1 {
		t.Errorf("geography check = %+v", geo)
	}

	frs, _ := report.Check("fact_dwelling_fires", models.KeyFRSCode)
	if len(frs.OrphanSamples) != 1 || frs.OrphanSamples[0] != "E31000777" {
		t.Errorf("OrphanSamples = %v", frs.OrphanSamples)
	}

	if report.RunID == "" || report.GeneratedAt.IsZero() {
		t.Error("report is missing run metadata")
	}

	if len(rows[0].Keys) != 2 {
		t.Error("Validate mutated its input")
	}
}

func TestNewWhitelist_Errors(t *testing.T) {
	tests := []struct {
		name       string
		exceptions []Exception
		wantErr    error
	}{
		{
			name: "Duplicate",
			exceptions: []Exception{
				{FactTable: "fact_fatalities", KeyColumn: models.KeyFRSCode, Reason: "a"},
				{FactTable: "fact_fatalities", KeyColumn: models.KeyFRSCode, Reason: "b"},
			},
			wantErr: ErrDuplicateException,
		},
		{
			name:       "Undeclared table",
			exceptions: []Exception{{FactTable: "fact_nowhere", KeyColumn: models.KeyFRSCode, Reason: "a"}},
			wantErr:    ErrExceptionUnknownFact,
		},
		{
			name:       "Undeclared key",
			exceptions: []Exception{{FactTable: "fact_fatalities", KeyColumn: "uprn", Reason: "a"}},
			wantErr:    ErrExceptionUnknownKey,
		},
		{
			name:       "No reason",
			exceptions: []Exception{{FactTable: "fact_fatalities", KeyColumn: models.KeyFRSCode}},
			wantErr:    ErrExceptionNoReason,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWhitelist(testSchemas(), tt.exceptions); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewWhitelist() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewWhitelist(Schemas{}, nil); !errors.Is(err, ErrEmptySchema) {
		t.Errorf("NewWhitelist(empty) error = %v", err)
	}
}

func TestReport_AddDefects(t *testing.T) {
	r := &Report{}
	r.AddDefects("dwelling_fires", map[models.DefectKind]int{
		models.DefectRangeParse:       2,
		models.DefectUnknownGeography: 1,
		models.DefectRangeInverted:    0,
	})

	if len(r.Defects) != 2 || r.TotalDefects() != 3 {
		t.Errorf("Defects = %+v", r.Defects)
	}

	if r.Defects[0].Kind != models.DefectRangeParse {
		t.Errorf("Defects not sorted by kind: %+v", r.Defects)
	}
}
