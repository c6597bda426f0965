package normalizer

import (
	"errors"
	"strings"
	"time"

	"firestats/internal/fiscal"
	"firestats/internal/geography"
	"firestats/internal/models"
	"firestats/pkg/utils"
)

// DrillThroughColumn is the derived incident type id column.
const DrillThroughColumn = "drill_through_id"

// CodeRemapper rewrites geography codes to the current hierarchy.
type CodeRemapper interface {
	Remap(code string) geography.Resolution
}

// MidpointColumn selects range columns by substring and names the estimate
// column by suffix.
type MidpointColumn struct {
	Match  string
	Suffix string
}

// Options configures the Silver transformation.
type Options struct {
	Midpoints []MidpointColumn
	// DateExclude rejects date column candidates containing any fragment.
	DateExclude []string
	// FallbackFields are tried in order when no date is present.
	FallbackFields []string
	// TemporalExempt datasets are whitelisted for a missing financial year.
	TemporalExempt []string
	Incidents      IncidentRules
}

// Transformer turns a validated raw batch into a cleansed batch.
type Transformer struct {
	midpoints []MidpointColumn
	suffixes  []string
	exclude   []string
	fallbacks []string
	exempt    map[string]bool
	remapper  CodeRemapper
	incidents *IncidentMapper
}

type midpointTarget struct {
	source string
	output string
}

type plan struct {
	rename     map[string]string
	columns    []string
	midpoints  []midpointTarget
	dateColumn string
	fallbacks  []string
	geoColumns []string
	typeColumn string
	datasetID  int
	temporal   bool
}

// NewTransformer creates a transformer. A nil remapper leaves geography
// codes untouched.
func NewTransformer(opts Options, remapper CodeRemapper) *Transformer {
	t := &Transformer{
		midpoints: opts.Midpoints,
		exclude:   opts.DateExclude,
		fallbacks: opts.FallbackFields,
		exempt:    make(map[string]bool, len(opts.TemporalExempt)),
		remapper:  remapper,
		incidents: NewIncidentMapper(opts.Incidents),
	}

	for _, m := range opts.Midpoints {
		if !containsString(t.suffixes, m.Suffix) {
			t.suffixes = append(t.suffixes, m.Suffix)
		}
	}

	for _, d := range opts.TemporalExempt {
		t.exempt[d] = true
	}

	return t
}

// Transform builds the Silver batch. The input batch is never written to.
func (t *Transformer) Transform(batch *models.Batch) *models.CleansedBatch {
	p := t.plan(batch)

	out := &models.CleansedBatch{
		Dataset: batch.Dataset,
		Period:  batch.Period,
		Columns: p.columns,
		Rows:    make([]models.CleansedRow, 0, len(batch.Rows)),
	}

	for _, m := range p.midpoints {
		out.Estimates = append(out.Estimates, m.output)
	}

	for i, raw := range batch.Rows {
		out.Rows = append(out.Rows, t.transformRow(i, raw, batch.Period, p))
	}

	return out
}

func (t *Transformer) plan(batch *models.Batch) plan {
	p := plan{
		rename:   make(map[string]string, len(batch.Columns)),
		temporal: !t.exempt[batch.Dataset],
	}

	for _, col := range batch.Columns {
		std := utils.StandardiseHeader(col)
		p.rename[col] = std
		p.columns = append(p.columns, std)
	}

	for _, col := range p.columns {
		if target, ok := t.midpointFor(col, p.columns); ok {
			p.midpoints = append(p.midpoints, target)
		}

		if p.dateColumn == "" && t.isDateColumn(col) {
			p.dateColumn = col
		}

		if isGeographyColumn(col) {
			p.geoColumns = append(p.geoColumns, col)
		}
	}

	for _, f := range t.fallbacks {
		if containsString(p.columns, f) {
			p.fallbacks = append(p.fallbacks, f)
		}
	}

	if c := t.incidents.Column(); c != "" && containsString(p.columns, c) {
		p.typeColumn = c
	} else {
		p.datasetID, _ = t.incidents.DatasetID(batch.Dataset)
	}

	return p
}

func (t *Transformer) midpointFor(col string, columns []string) (midpointTarget, bool) {
	if strings.Contains(col, "code") {
		return midpointTarget{}, false
	}

	for _, s := range t.suffixes {
		if strings.HasSuffix(col, s) {
			return midpointTarget{}, false
		}
	}

	for _, m := range t.midpoints {
		if !strings.Contains(col, m.Match) {
			continue
		}

		output := col + m.Suffix
		if containsString(columns, output) {
			return midpointTarget{}, false
		}

		return midpointTarget{source: col, output: output}, true
	}

	return midpointTarget{}, false
}

func (t *Transformer) isDateColumn(col string) bool {
	if !strings.Contains(col, "date") {
		return false
	}

	for _, ex := range t.exclude {
		if strings.Contains(col, ex) {
			return false
		}
	}

	return true
}

// isGeographyColumn matches ONS code columns such as lsoa_code or lad23cd.
func isGeographyColumn(col string) bool {
	if !strings.Contains(col, "lsoa") && !strings.Contains(col, "msoa") && !strings.Contains(col, "lad") {
		return false
	}

	return strings.HasSuffix(col, "cd") || strings.HasSuffix(col, "code")
}

func (t *Transformer) transformRow(index int, raw models.Record, period string, p plan) models.CleansedRow {
	fields := make(models.Record, len(raw))
	for col, v := range raw {
		fields[p.rename[col]] = v
	}

	row := models.CleansedRow{
		Index:     index,
		Fields:    fields,
		Estimates: make(map[string]*float64, len(p.midpoints)),
	}

	for _, m := range p.midpoints {
		v, err := ParseRange(fields[m.source])
		row.Estimates[m.output] = v

		if err != nil {
			kind := models.DefectRangeParse
			if errors.Is(err, ErrInvertedRange) {
				kind = models.DefectRangeInverted
			}

			row.Defects = append(row.Defects, models.Defect{
				Kind:    kind,
				Column:  m.source,
				Value:   fields.Get(m.source),
				Message: err.Error(),
			})
		}
	}

	t.deriveYear(&row, period, p)

	if t.remapper != nil {
		for _, col := range p.geoColumns {
			if !fields.Has(col) {
				continue
			}

			res := t.remapper.Remap(fields.Get(col))
			if !res.Known {
				row.Defects = append(row.Defects, models.Defect{
					Kind:    models.DefectUnknownGeography,
					Column:  col,
					Value:   res.Original,
					Message: "code is not in the current hierarchy",
				})

				continue
			}

			fields[col] = res.Code
		}
	}

	if p.typeColumn != "" {
		id, ok := t.incidents.Lookup(fields.Get(p.typeColumn))
		row.DrillThroughID = id

		if !ok {
			row.Defects = append(row.Defects, models.Defect{
				Kind:    models.DefectUnmappedIncident,
				Column:  p.typeColumn,
				Value:   fields.Get(p.typeColumn),
				Message: "incident type has no drill-through id",
			})
		}
	} else {
		row.DrillThroughID = p.datasetID
	}

	return row
}

func (t *Transformer) deriveYear(row *models.CleansedRow, period string, p plan) {
	var date *time.Time

	if p.dateColumn != "" && row.Fields.Has(p.dateColumn) {
		d, err := fiscal.ParseDate(row.Fields.Get(p.dateColumn))
		if err == nil {
			date = &d
		} else {
			row.Defects = append(row.Defects, models.Defect{
				Kind:    models.DefectUnparseableDate,
				Column:  p.dateColumn,
				Value:   row.Fields.Get(p.dateColumn),
				Message: err.Error(),
			})
		}
	}

	fallback := period
	for _, f := range p.fallbacks {
		if row.Fields.Has(f) {
			fallback = row.Fields.Get(f)
			break
		}
	}

	y, err := fiscal.Derive(date, fallback)
	if err == nil {
		row.FinancialYear = y.Label()
		return
	}

	if !p.temporal {
		return
	}

	column := p.dateColumn
	if column == "" {
		column = models.KeyFinancialYear
	}

	row.Defects = append(row.Defects, models.Defect{
		Kind:    models.DefectMissingTemporalKey,
		Column:  column,
		Value:   row.Fields.Get(column),
		Message: err.Error(),
	})
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
