package gold

import (
	"sort"
	"strconv"
	"strings"

	"firestats/internal/fiscal"
	"firestats/internal/models"
	"firestats/pkg/utils"
)

// defaultBaseYear anchors the future buffer when no year was observed.
const defaultBaseYear = 2010

// FinancialYearRow is one Dim_FinancialYear record.
type FinancialYearRow struct {
	Label    string
	YearSort int
}

// DimFinancialYear lists every observed year plus future years past the
// latest one, so forward-dated loads still join.
func DimFinancialYear(observed []string, future int) []FinancialYearRow {
	years := make(map[int]bool)
	latest := 0

	for _, label := range observed {
		y, err := fiscal.ParseLabel(label)
		if err != nil {
			continue
		}

		years[y.Start] = true
		if y.Start > latest {
			latest = y.Start
		}
	}

	if latest == 0 {
		latest = defaultBaseYear
	}

	for i := 1; i <= future; i++ {
		years[latest+i] = true
	}

	starts := make([]int, 0, len(years))
	for s := range years {
		starts = append(starts, s)
	}

	sort.Ints(starts)

	rows := make([]FinancialYearRow, 0, len(starts))
	for _, s := range starts {
		rows = append(rows, FinancialYearRow{Label: fiscal.Year{Start: s}.Label(), YearSort: s})
	}

	return rows
}

func financialYearTable(rows []FinancialYearRow) models.Table {
	t := models.Table{
		Name:    "dim_financial_year",
		Columns: []string{"financial_year", "year_sort"},
	}

	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Label, strconv.Itoa(r.YearSort)})
	}

	return t
}

// Category maps a dataset name fragment to an incident category.
type Category struct {
	Match string
	Name  string
}

// IncidentTypeRow is one Dim_IncidentType record.
type IncidentTypeRow struct {
	DatasetKey   string
	FriendlyName string
	Category     string
}

// DimIncidentType describes each incident dataset. The first matching
// category fragment wins.
func DimIncidentType(datasets []string, categories []Category, fallback string) []IncidentTypeRow {
	rows := make([]IncidentTypeRow, 0, len(datasets))

	for _, ds := range datasets {
		clean := strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(ds))

		category := fallback
		for _, c := range categories {
			if strings.Contains(clean, c.Match) {
				category = c.Name
				break
			}
		}

		rows = append(rows, IncidentTypeRow{
			DatasetKey:   ds,
			FriendlyName: FriendlyName(ds),
			Category:     category,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Category != rows[j].Category {
			return rows[i].Category < rows[j].Category
		}

		return rows[i].FriendlyName < rows[j].FriendlyName
	})

	return rows
}

// FriendlyName turns "road_traffic_collisions-govuk" into "Road Traffic Collisions".
func FriendlyName(dataset string) string {
	name := utils.TitleWords(dataset)
	name = strings.NewReplacer("Non Fire Incidents", "", "Govuk", "").Replace(name)

	return utils.NormalizeWhitespace(name)
}

func incidentTypeTable(rows []IncidentTypeRow) models.Table {
	t := models.Table{
		Name:    "dim_incident_type",
		Columns: []string{"incident_dataset_key", "dataset_name_friendly", "incident_category"},
	}

	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.DatasetKey, r.FriendlyName, r.Category})
	}

	return t
}
