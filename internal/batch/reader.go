package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"firestats/internal/fiscal"
	"firestats/internal/models"
)

// Columns added to workbook batches.
const (
	SourceSheetColumn = "source_sheet"
	SheetYearColumn   = "sheet_financial_year"
)

// ErrNoSheets is returned when a workbook has no readable sheet.
var ErrNoSheets = errors.New("workbook has no readable sheet")

var yearSheet = regexp.MustCompile(`^\d{6}$`)

// Load reads every source of the manifest in order.
func Load(m *Manifest) ([]*models.Batch, error) {
	out := make([]*models.Batch, 0, len(m.Sources))

	for _, s := range m.Sources {
		b, err := Read(s, m.Resolve(s.Path))
		if err != nil {
			return nil, err
		}

		out = append(out, b)
	}

	return out, nil
}

// Read loads one source from path.
func Read(s Source, path string) (*models.Batch, error) {
	switch s.Format {
	case FormatCSV:
		return ReadCSV(s, path)
	case FormatXLSX:
		return ReadXLSX(s, path)
	default:
		return nil, fmt.Errorf("%w: %s (%q)", ErrUnsupportedFormat, s.Dataset, s.Format)
	}
}

// ReadCSV loads a CSV file with a header row.
func ReadCSV(s Source, path string) (*models.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.Dataset, err)
	}
	defer f.Close()

	b, err := decodeCSV(s, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Dataset, err)
	}

	return b, nil
}

func decodeCSV(s Source, r io.Reader) (*models.Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	b := &models.Batch{Dataset: s.Dataset, Period: s.Period}
	if len(rows) == 0 {
		return b, nil
	}

	rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	appendRows(b, rows, nil)

	return b, nil
}

// ReadXLSX loads a workbook. Without an explicit sheet list it reads every
// sheet named like "202223", else the first sheet mentioning "dataset",
// else the second sheet, else the first. Year sheets tag their rows with
// the financial year.
func ReadXLSX(s Source, path string) (*models.Batch, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.Dataset, err)
	}
	defer func() { _ = f.Close() }()

	sheets := s.Sheets
	if len(sheets) == 0 {
		sheets = selectSheets(f.GetSheetList())
	}

	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSheets, s.Dataset)
	}

	b := &models.Batch{Dataset: s.Dataset, Period: s.Period}

	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s of %s: %w", sheet, s.Dataset, err)
		}

		extra := models.Record{SourceSheetColumn: sheet}

		if yearSheet.MatchString(sheet) {
			if y, err := fiscal.ParseLabel(sheet); err == nil {
				extra[SheetYearColumn] = y.Label()
			}
		}

		appendRows(b, rows, extra)
	}

	return b, nil
}

func selectSheets(names []string) []string {
	var years []string

	for _, n := range names {
		if yearSheet.MatchString(n) {
			years = append(years, n)
		}
	}

	if len(years) > 0 {
		return years
	}

	for _, n := range names {
		if strings.Contains(strings.ToLower(n), "dataset") {
			return []string{n}
		}
	}

	switch {
	case len(names) > 1:
		return names[1:2]
	case len(names) == 1:
		return names
	default:
		return nil
	}
}

// appendRows adds a header-led grid to b, extending its column list with
// any header not seen yet. Blank headers are named by position; repeats
// get a numeric suffix. Fully blank rows are skipped.
func appendRows(b *models.Batch, grid [][]string, extra models.Record) {
	if len(grid) == 0 {
		return
	}

	headers := uniqueHeaders(grid[0])

	for _, h := range headers {
		addColumn(b, h)
	}

	extras := make([]string, 0, len(extra))
	for col := range extra {
		extras = append(extras, col)
	}

	sort.Strings(extras)

	for _, col := range extras {
		addColumn(b, col)
	}

	for _, cells := range grid[1:] {
		rec := make(models.Record, len(headers)+len(extra))
		blank := true

		for i, h := range headers {
			if i < len(cells) {
				rec[h] = cells[i]
				if strings.TrimSpace(cells[i]) != "" {
					blank = false
				}
			}
		}

		if blank {
			continue
		}

		for k, v := range extra {
			rec[k] = v
		}

		b.Rows = append(b.Rows, rec)
	}
}

func uniqueHeaders(raw []string) []string {
	seen := make(map[string]int, len(raw))
	out := make([]string, len(raw))

	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}

		seen[h]++
		if n := seen[h]; n > 1 {
			h = h + "_" + strconv.Itoa(n)
		}

		out[i] = h
	}

	return out
}

func addColumn(b *models.Batch, col string) {
	if !b.HasColumn(col) {
		b.Columns = append(b.Columns, col)
	}
}
