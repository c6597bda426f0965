package gold

import (
	"regexp"
	"strings"

	"firestats/internal/mdm"
	"firestats/internal/models"
	"firestats/pkg/utils"
)

const (
	familyNameColumn  = "frs_name"
	familyGroupColumn = "family_group"
)

var lineBreaks = regexp.MustCompile(`[\r\n]+`)

// FamilyGroupRow is one NFCC family group line resolved to a master code.
// Fields holds the raw row under standardised headers.
type FamilyGroupRow struct {
	Code        string
	Name        string
	FamilyGroup string
	Fields      models.Record
}

// ParseFamilyGroups resolves NFCC service names through the registry.
// Devolved services resolve to an empty code and are dropped; names the
// registry does not know are counted as unresolved.
func ParseFamilyGroups(batch *models.Batch, reg *mdm.Registry) (rows []FamilyGroupRow, unresolved []string) {
	if batch == nil {
		return nil, nil
	}

	rename := make(map[string]string, len(batch.Columns))
	for _, col := range batch.Columns {
		rename[col] = utils.StandardiseHeader(col)
	}

	seen := make(map[string]bool)

	for _, raw := range batch.Rows {
		fields := make(models.Record, len(raw))
		for col, v := range raw {
			fields[rename[col]] = v
		}

		name := utils.NormalizeWhitespace(fields.Get(familyNameColumn))
		if name == "" {
			continue
		}

		code, found := reg.ResolveName(name)
		if !found {
			unresolved = append(unresolved, name)
			continue
		}

		if code == "" || seen[code] {
			continue
		}

		seen[code] = true

		rows = append(rows, FamilyGroupRow{
			Code:        code,
			Name:        name,
			FamilyGroup: CleanFamilyGroup(fields.Get(familyGroupColumn)),
			Fields:      fields,
		})
	}

	return rows, unresolved
}

// CleanFamilyGroup strips the spreadsheet carriage return artefacts of the NFCC export.
func CleanFamilyGroup(s string) string {
	s = strings.ReplaceAll(s, "_x000D_", "")
	s = lineBreaks.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// FRSRow is one Dim_FRS record.
type FRSRow struct {
	Code        string
	Name        string
	FamilyGroup string
}

// DimFRS lists every canonical entity with its family group.
func DimFRS(reg *mdm.Registry, groups []FamilyGroupRow, unknownGroup string) []FRSRow {
	byCode := make(map[string]string, len(groups))
	for _, g := range groups {
		if g.FamilyGroup != "" {
			byCode[g.Code] = g.FamilyGroup
		}
	}

	entities := reg.Entities()
	rows := make([]FRSRow, 0, len(entities))

	for _, e := range entities {
		group, ok := byCode[e.Code]
		if !ok {
			group = unknownGroup
		}

		rows = append(rows, FRSRow{Code: e.Code, Name: e.Name, FamilyGroup: group})
	}

	return rows
}

func frsTable(rows []FRSRow) models.Table {
	t := models.Table{
		Name:    "dim_frs",
		Columns: []string{"frs_code", "frs_name", "family_group"},
	}

	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Code, r.Name, r.FamilyGroup})
	}

	return t
}
