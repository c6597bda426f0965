package gold

import (
	"strconv"
	"strings"

	"firestats/internal/models"
)

// RiskProfileTable is the fact table of NFCC risk metrics per FRS.
const RiskProfileTable = "fact_frs_risk_profiles"

const dataSourceAttribute = "data_source"

// RiskOptions selects the family group metrics promoted to facts.
type RiskOptions struct {
	Metrics       []string
	FinancialYear string
	Source        string
}

// RiskProfiles builds one row per resolved FRS. The snapshot has no period
// of its own, so every row carries the configured financial year. Metrics
// that do not parse as numbers are zero.
func RiskProfiles(groups []FamilyGroupRow, opts RiskOptions) FactTable {
	ft := FactTable{
		Name:       RiskProfileTable,
		Keys:       []string{models.KeyFinancialYear, models.KeyFRSCode},
		Measures:   append([]string(nil), opts.Metrics...),
		Attributes: []string{"frs_name", familyGroupColumn, dataSourceAttribute},
	}

	for i, g := range groups {
		row := models.FactRow{
			Table: RiskProfileTable,
			Keys: map[string]string{
				models.KeyFinancialYear: opts.FinancialYear,
				models.KeyFRSCode:       g.Code,
			},
			Measures: make(map[string]float64, len(opts.Metrics)),
			Attributes: map[string]string{
				"frs_name":          g.Name,
				familyGroupColumn:   g.FamilyGroup,
				dataSourceAttribute: opts.Source,
			},
			Provenance: models.Provenance{Dataset: "family_groups", RowIndex: i},
		}

		for _, m := range opts.Metrics {
			row.Measures[m] = coerceMetric(g.Fields.Get(m))
		}

		ft.Rows = append(ft.Rows, row)
	}

	return ft
}

func coerceMetric(s string) float64 {
	s = strings.TrimSuffix(strings.ReplaceAll(s, ",", ""), "%")

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}

	return v
}
