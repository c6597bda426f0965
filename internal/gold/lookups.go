// Package gold provides the dimensional model builders: dimensions, fire
// facts, population facts and risk profiles.
package gold

import (
	"errors"
	"fmt"
	"strings"

	"firestats/internal/geography"
	"firestats/internal/mdm"
	"firestats/internal/models"
	"firestats/pkg/utils"
)

// ErrLookupColumns is returned when an ONS lookup lacks its code columns.
var ErrLookupColumns = errors.New("lookup table is missing required columns")

// LookupRow is one LSOA line of the LSOA -> MSOA -> LAD lookup.
type LookupRow struct {
	LSOACode string
	LSOAName string
	MSOACode string
	MSOAName string
	LADCode  string
	LADName  string
}

// FRALink attaches a LAD to its fire and rescue authority.
type FRALink struct {
	LADCode string
	FRSCode string
	FRSName string
}

// Lookups is the parsed ONS hierarchy with LAD codes already remapped.
type Lookups struct {
	Areas []LookupRow
	FRA   map[string]FRALink
}

// lookupView reads a lookup batch through standardised headers.
type lookupView struct {
	raw  map[string]string
	cols []string
}

func newLookupView(b *models.Batch) lookupView {
	v := lookupView{raw: make(map[string]string, len(b.Columns))}

	for _, col := range b.Columns {
		std := utils.StandardiseLookupHeader(col)
		v.raw[std] = col
		v.cols = append(v.cols, std)
	}

	return v
}

func (v lookupView) find(prefix, suffix string) string {
	for _, c := range v.cols {
		if strings.HasPrefix(c, prefix) && strings.HasSuffix(c, suffix) {
			return c
		}
	}

	return ""
}

func (v lookupView) value(row models.Record, std string) string {
	if std == "" {
		return ""
	}

	return row.Get(v.raw[std])
}

// ParseLookups reads the LSOA lookup and the optional LAD -> FRA lookup.
// Every LAD code goes through remap so retired districts join their
// successor unitary.
func ParseLookups(lsoa, fra *models.Batch, remap func(string) string) (*Lookups, error) {
	l := &Lookups{FRA: make(map[string]FRALink)}

	if lsoa != nil {
		v := newLookupView(lsoa)
		lsoaCode, ladCode := v.find("lsoa", "cd"), v.find("lad", "cd")

		if lsoaCode == "" || ladCode == "" {
			return nil, fmt.Errorf("%w: %s needs lsoa*cd and lad*cd", ErrLookupColumns, lsoa.Dataset)
		}

		lsoaName, msoaCode, msoaName, ladName := v.find("lsoa", "nm"), v.find("msoa", "cd"), v.find("msoa", "nm"), v.find("lad", "nm")

		for _, row := range lsoa.Rows {
			area := LookupRow{
				LSOACode: v.value(row, lsoaCode),
				LSOAName: v.value(row, lsoaName),
				MSOACode: v.value(row, msoaCode),
				MSOAName: v.value(row, msoaName),
				LADCode:  remap(v.value(row, ladCode)),
				LADName:  v.value(row, ladName),
			}

			if area.LSOACode != "" {
				l.Areas = append(l.Areas, area)
			}
		}
	}

	if fra != nil {
		v := newLookupView(fra)
		ladCode, fraCode := v.find("lad", "cd"), v.find("fra", "cd")

		if ladCode == "" || fraCode == "" {
			return nil, fmt.Errorf("%w: %s needs lad*cd and fra*cd", ErrLookupColumns, fra.Dataset)
		}

		fraName := v.find("fra", "nm")

		for _, row := range fra.Rows {
			link := FRALink{
				LADCode: remap(v.value(row, ladCode)),
				FRSCode: v.value(row, fraCode),
				FRSName: v.value(row, fraName),
			}

			if _, ok := l.FRA[link.LADCode]; !ok && link.LADCode != "" {
				l.FRA[link.LADCode] = link
			}
		}
	}

	return l, nil
}

// Hierarchy builds the current code hierarchy from the lookups.
func (l *Lookups) Hierarchy(version string) *geography.Hierarchy {
	h := geography.NewHierarchy(version)

	for _, a := range l.Areas {
		if a.MSOACode != "" {
			h.Link(a.LSOACode, a.MSOACode)
			h.Link(a.MSOACode, a.LADCode)
		} else {
			h.Link(a.LSOACode, a.LADCode)
		}

		h.Add(a.LADCode)
	}

	for _, link := range l.FRA {
		h.Link(link.LADCode, link.FRSCode)
	}

	return h
}

// Observations returns the FRS identities named by the FRA lookup. They
// carry no year, so any dated sighting outranks them for the display name.
func (l *Lookups) Observations(dataset string) []mdm.Observation {
	var out []mdm.Observation

	for _, link := range l.FRA {
		if link.FRSCode != "" {
			out = append(out, mdm.Observation{Code: link.FRSCode, Name: link.FRSName, Dataset: dataset})
		}
	}

	return out
}

// GeographyRow is one Dim_Geography record.
type GeographyRow struct {
	LSOACode string
	LSOAName string
	MSOACode string
	MSOAName string
	LADCode  string
	LADName  string
	FRSCode  string
	FRSName  string
}

// DimGeography joins the lookups into one row per LSOA, first wins. FRS
// codes and names come from the registry when it knows the code.
func DimGeography(l *Lookups, reg *mdm.Registry) []GeographyRow {
	seen := make(map[string]bool, len(l.Areas))
	rows := make([]GeographyRow, 0, len(l.Areas))

	for _, a := range l.Areas {
		if seen[a.LSOACode] {
			continue
		}

		seen[a.LSOACode] = true

		row := GeographyRow{
			LSOACode: a.LSOACode,
			LSOAName: a.LSOAName,
			MSOACode: a.MSOACode,
			MSOAName: a.MSOAName,
			LADCode:  a.LADCode,
			LADName:  a.LADName,
		}

		if link, ok := l.FRA[a.LADCode]; ok {
			row.FRSCode, row.FRSName = link.FRSCode, link.FRSName

			if e, ok := reg.Lookup(link.FRSCode); ok {
				row.FRSCode = e.Code
				if e.Name != "" {
					row.FRSName = e.Name
				}
			}
		}

		rows = append(rows, row)
	}

	return rows
}

func geographyTable(rows []GeographyRow) models.Table {
	t := models.Table{
		Name:    "dim_geography",
		Columns: []string{"lsoa_code", "lsoa_name", "msoa_code", "msoa_name", "lad_code", "lad_name", "frs_code", "frs_name"},
	}

	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.LSOACode, r.LSOAName, r.MSOACode, r.MSOAName, r.LADCode, r.LADName, r.FRSCode, r.FRSName})
	}

	return t
}
