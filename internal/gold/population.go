package gold

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"firestats/internal/fiscal"
	"firestats/internal/models"
	"firestats/pkg/utils"
)

// Population fact tables.
const (
	PopulationLSOATable = "fact_population_lsoa"
	PopulationMSOATable = "fact_population_msoa"
	PopulationLADTable  = "fact_population_lad"
	PopulationFRSTable  = "fact_population_frs"

	populationMeasure = "population"
)

// ErrPopulationColumns is returned when the estimate table has no code or year columns.
var ErrPopulationColumns = errors.New("population table is missing required columns")

var yearColumn = regexp.MustCompile(`^\d{4}$`)

// PopulationOptions describes the wide ONS mid-year estimate table.
type PopulationOptions struct {
	CodeColumn  string
	CodeAliases []string
	FirstYear   int
	LastYear    int
}

// PopulationRow is one LSOA-year count.
type PopulationRow struct {
	LSOACode      string
	Year          int
	FinancialYear string
	Population    int
}

// PopulationLong melts the year columns and scaffolds every LSOA over
// FirstYear..LastYear. Gaps take the previous year's count, leading gaps
// the first known count, and an LSOA with no usable count gets zero.
// Unparseable counts are zero rather than gaps.
func PopulationLong(batch *models.Batch, opts PopulationOptions) ([]PopulationRow, error) {
	rename := make(map[string]string, len(batch.Columns))
	var codeRaw string
	var years []string

	for _, col := range batch.Columns {
		std := utils.StandardiseHeader(col)
		rename[std] = col

		if yearColumn.MatchString(std) {
			years = append(years, std)
		}
	}

	for _, candidate := range append([]string{opts.CodeColumn}, opts.CodeAliases...) {
		if raw, ok := rename[candidate]; ok {
			codeRaw = raw
			break
		}
	}

	if codeRaw == "" || len(years) == 0 {
		return nil, fmt.Errorf("%w: %s needs %s and year columns", ErrPopulationColumns, batch.Dataset, opts.CodeColumn)
	}

	counts := make(map[string]map[int]int)

	for _, row := range batch.Rows {
		code := row.Get(codeRaw)
		if code == "" {
			continue
		}

		if counts[code] == nil {
			counts[code] = make(map[int]int)
		}

		for _, y := range years {
			year, _ := strconv.Atoi(y)
			counts[code][year] = parseCount(row.Get(rename[y]))
		}
	}

	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}

	sort.Strings(codes)

	var out []PopulationRow

	for _, code := range codes {
		filled := fillSeries(counts[code], opts.FirstYear, opts.LastYear)

		for i, v := range filled {
			year := opts.FirstYear + i
			out = append(out, PopulationRow{
				LSOACode:      code,
				Year:          year,
				FinancialYear: fiscal.FromCalendarYear(year).Label(),
				Population:    v,
			})
		}
	}

	return out, nil
}

func parseCount(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return int(v)
}

// fillSeries forward fills then backward fills a sparse year series.
func fillSeries(known map[int]int, first, last int) []int {
	out := make([]int, last-first+1)
	present := make([]bool, len(out))

	for i := range out {
		if v, ok := known[first+i]; ok {
			out[i], present[i] = v, true
		}
	}

	for i := 1; i < len(out); i++ {
		if !present[i] && present[i-1] {
			out[i], present[i] = out[i-1], true
		}
	}

	for i := len(out) - 2; i >= 0; i-- {
		if !present[i] && present[i+1] {
			out[i], present[i] = out[i+1], true
		}
	}

	return out
}

// PopulationFacts builds the LSOA table and the MSOA, LAD and FRS rollups.
// Rollups inner join on Dim_Geography, so LSOAs outside it only appear at
// LSOA level.
func PopulationFacts(rows []PopulationRow, geo []GeographyRow) []FactTable {
	lsoa := newPopulationTable(PopulationLSOATable, models.KeyGeographyCode)

	byLSOA := make(map[string]GeographyRow, len(geo))
	for _, g := range geo {
		byLSOA[g.LSOACode] = g
	}

	type rollupKey struct {
		code string
		year string
	}

	levels := []struct {
		table *FactTable
		pick  func(GeographyRow) (string, string)
		sums  map[rollupKey]int
		names map[string]string
		order []rollupKey
	}{
		{table: newPopulationTable(PopulationMSOATable, models.KeyGeographyCode), pick: func(g GeographyRow) (string, string) { return g.MSOACode, g.MSOAName }},
		{table: newPopulationTable(PopulationLADTable, models.KeyGeographyCode), pick: func(g GeographyRow) (string, string) { return g.LADCode, g.LADName }},
		{table: newPopulationTable(PopulationFRSTable, models.KeyFRSCode), pick: func(g GeographyRow) (string, string) { return g.FRSCode, g.FRSName }},
	}

	for i := range levels {
		levels[i].sums = make(map[rollupKey]int)
		levels[i].names = make(map[string]string)
	}

	for i, r := range rows {
		lsoa.Rows = append(lsoa.Rows, models.FactRow{
			Table:      PopulationLSOATable,
			Keys:       map[string]string{models.KeyFinancialYear: r.FinancialYear, models.KeyGeographyCode: r.LSOACode},
			Measures:   map[string]float64{populationMeasure: float64(r.Population)},
			Attributes: map[string]string{"year": strconv.Itoa(r.Year)},
			Provenance: models.Provenance{Dataset: "population", RowIndex: i},
		})

		g, ok := byLSOA[r.LSOACode]
		if !ok {
			continue
		}

		for l := range levels {
			code, name := levels[l].pick(g)
			if code == "" {
				continue
			}

			k := rollupKey{code: code, year: r.FinancialYear}
			if _, seen := levels[l].sums[k]; !seen {
				levels[l].order = append(levels[l].order, k)
			}

			levels[l].sums[k] += r.Population
			levels[l].names[code] = name
		}
	}

	lsoa.Attributes = []string{"year"}
	tables := []FactTable{*lsoa}

	for _, l := range levels {
		sort.Slice(l.order, func(i, j int) bool {
			if l.order[i].year != l.order[j].year {
				return l.order[i].year < l.order[j].year
			}

			return l.order[i].code < l.order[j].code
		})

		key := l.table.Keys[1]
		for i, k := range l.order {
			l.table.Rows = append(l.table.Rows, models.FactRow{
				Table:      l.table.Name,
				Keys:       map[string]string{models.KeyFinancialYear: k.year, key: k.code},
				Measures:   map[string]float64{populationMeasure: float64(l.sums[k])},
				Attributes: map[string]string{"name": l.names[k.code]},
				Provenance: models.Provenance{Dataset: "population", RowIndex: i},
			})
		}

		l.table.Attributes = []string{"name"}
		tables = append(tables, *l.table)
	}

	return tables
}

func newPopulationTable(name, key string) *FactTable {
	return &FactTable{
		Name:     name,
		Keys:     []string{models.KeyFinancialYear, key},
		Measures: []string{populationMeasure},
	}
}
