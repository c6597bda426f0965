package gold

import (
	"fmt"
	"sort"

	"firestats/internal/integrity"
	"firestats/internal/mdm"
	"firestats/internal/models"
)

// Options configures the Gold builders.
type Options struct {
	FactPrefix         string
	FutureYears        int
	UnknownFamilyGroup string
	Categories         []Category
	DefaultCategory    string
	Entity             mdm.ColumnRules
	Population         PopulationOptions
	Risk               RiskOptions
}

// Inputs are the Silver outputs and reference tables a model is built from.
// Lookups, Population and FamilyGroups are optional.
type Inputs struct {
	Cleansed     []*models.CleansedBatch
	Lookups      *Lookups
	Population   *models.Batch
	FamilyGroups *models.Batch
}

// Model is the star schema. Dimensions are built before facts so fact keys
// can be checked against them.
type Model struct {
	Geography      []GeographyRow
	FRS            []FRSRow
	FinancialYears []FinancialYearRow
	IncidentTypes  []IncidentTypeRow
	Facts          []FactTable
	// UnresolvedFamilyGroups lists NFCC names the registry could not place.
	UnresolvedFamilyGroups []string
}

// Build assembles the model. The registry is only read.
func Build(in Inputs, reg *mdm.Registry, opts Options) (*Model, error) {
	m := &Model{}
	lookups := in.Lookups
	if lookups == nil {
		lookups = &Lookups{FRA: map[string]FRALink{}}
	}

	m.Geography = DimGeography(lookups, reg)

	var groups []FamilyGroupRow
	groups, m.UnresolvedFamilyGroups = ParseFamilyGroups(in.FamilyGroups, reg)
	m.FRS = DimFRS(reg, groups, opts.UnknownFamilyGroup)

	datasets := make([]string, 0, len(in.Cleansed))
	for _, b := range in.Cleansed {
		datasets = append(datasets, b.Dataset)
		m.Facts = append(m.Facts, FireFacts(opts.FactPrefix+b.Dataset, b, reg, opts.Entity))
	}

	m.IncidentTypes = DimIncidentType(datasets, opts.Categories, opts.DefaultCategory)

	if in.Population != nil {
		rows, err := PopulationLong(in.Population, opts.Population)
		if err != nil {
			return nil, fmt.Errorf("failed to build population facts: %w", err)
		}

		m.Facts = append(m.Facts, PopulationFacts(rows, m.Geography)...)
	}

	if in.FamilyGroups != nil {
		m.Facts = append(m.Facts, RiskProfiles(groups, opts.Risk))
	}

	m.FinancialYears = DimFinancialYear(m.observedYears(), opts.FutureYears)

	return m, nil
}

func (m *Model) observedYears() []string {
	seen := make(map[string]bool)

	for _, ft := range m.Facts {
		for _, row := range ft.Rows {
			if y := row.Key(models.KeyFinancialYear); y != "" {
				seen[y] = true
			}
		}
	}

	years := make([]string, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}

	sort.Strings(years)

	return years
}

// FactRows returns every fact row of every table.
func (m *Model) FactRows() []models.FactRow {
	var rows []models.FactRow
	for _, ft := range m.Facts {
		rows = append(rows, ft.Rows...)
	}

	return rows
}

// Fact returns the named fact table.
func (m *Model) Fact(name string) (FactTable, bool) {
	for _, ft := range m.Facts {
		if ft.Name == name {
			return ft, true
		}
	}

	return FactTable{}, false
}

// KeySets returns the dimension key sets fact rows are validated against.
func (m *Model) KeySets() integrity.KeySets {
	years := make([]string, 0, len(m.FinancialYears))
	for _, y := range m.FinancialYears {
		years = append(years, y.Label)
	}

	frs := make([]string, 0, len(m.FRS))
	for _, f := range m.FRS {
		frs = append(frs, f.Code)
	}

	geo := make([]string, 0, len(m.Geography)*3)
	for _, g := range m.Geography {
		geo = append(geo, g.LSOACode, g.MSOACode, g.LADCode)
	}

	return integrity.KeySets{
		models.KeyFinancialYear: integrity.NewKeySet(years...),
		models.KeyFRSCode:       integrity.NewKeySet(frs...),
		models.KeyGeographyCode: integrity.NewKeySet(geo...),
	}
}

// Tables flattens the model, dimensions first.
func (m *Model) Tables() []models.Table {
	tables := []models.Table{
		geographyTable(m.Geography),
		frsTable(m.FRS),
		financialYearTable(m.FinancialYears),
		incidentTypeTable(m.IncidentTypes),
	}

	for i := range m.Facts {
		tables = append(tables, m.Facts[i].Table())
	}

	return tables
}
