package normalizer

import (
	"strings"

	"firestats/pkg/utils"
)

// UnknownIncidentType is the drill-through id of unmapped incident types.
const UnknownIncidentType = 99

// KeywordID maps a dataset name fragment to a drill-through id.
type KeywordID struct {
	Match string
	ID    int
}

// IncidentRules configures drill-through id assignment.
type IncidentRules struct {
	// TypeColumn is the standardised column carrying the FRIS incident type.
	TypeColumn string
	Types      map[string]int
	// DatasetFallbacks apply, in order, to datasets without a type column.
	DatasetFallbacks []KeywordID
	UnknownID        int
}

// IncidentMapper assigns drill-through ids.
type IncidentMapper struct {
	column    string
	types     map[string]int
	fallbacks []KeywordID
	unknown   int
}

// NewIncidentMapper creates a mapper. Type labels match case-insensitively.
func NewIncidentMapper(rules IncidentRules) *IncidentMapper {
	m := &IncidentMapper{
		column:    rules.TypeColumn,
		types:     make(map[string]int, len(rules.Types)),
		fallbacks: rules.DatasetFallbacks,
		unknown:   rules.UnknownID,
	}

	if m.unknown == 0 {
		m.unknown = UnknownIncidentType
	}

	for label, id := range rules.Types {
		m.types[utils.NormalizeKey(label)] = id
	}

	return m
}

// Column returns the type column name.
func (m *IncidentMapper) Column() string {
	return m.column
}

// Lookup maps one incident type label.
func (m *IncidentMapper) Lookup(label string) (int, bool) {
	id, ok := m.types[utils.NormalizeKey(label)]
	if !ok {
		return m.unknown, false
	}

	return id, true
}

// DatasetID maps a dataset name through the fallback fragments.
func (m *IncidentMapper) DatasetID(dataset string) (int, bool) {
	name := strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(dataset))

	for _, f := range m.fallbacks {
		if strings.Contains(name, f.Match) {
			return f.ID, true
		}
	}

	return m.unknown, false
}

// Unknown returns the id used for unmapped types.
func (m *IncidentMapper) Unknown() int {
	return m.unknown
}
