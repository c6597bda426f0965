// Package integrity provides foreign key validation of fact tables against
// their dimensions, with an auditable whitelist of accepted gaps.
package integrity

import (
	"errors"
	"fmt"
	"sort"

	"firestats/internal/models"
)

// Whitelist and schema errors. All of them are fatal at build time.
var (
	ErrDuplicateException   = errors.New("duplicate validation exception")
	ErrExceptionUnknownKey  = errors.New("validation exception names a key the table does not declare")
	ErrExceptionUnknownFact = errors.New("validation exception names an undeclared fact table")
	ErrExceptionNoReason    = errors.New("validation exception requires a reason")
	ErrEmptySchema          = errors.New("fact table schema declares no keys")
)

// Exception accepts missing values in one (fact table, key column) pair.
// Orphan keys are never covered.
type Exception struct {
	FactTable string `json:"factTable" yaml:"fact_table"`
	KeyColumn string `json:"keyColumn" yaml:"key_column"`
	Reason    string `json:"reason" yaml:"reason"`
}

// DefaultExceptions are the gaps accepted by the shipped data model.
func DefaultExceptions() []Exception {
	return []Exception{
		{
			FactTable: "fact_fatalities",
			KeyColumn: models.KeyFRSCode,
			Reason:    "fatalities are published at national level only",
		},
		{
			FactTable: "fact_fire_stations",
			KeyColumn: models.KeyFinancialYear,
			Reason:    "fire station locations are a snapshot without a reporting period",
		},
	}
}

// Schemas declares the foreign keys each fact table carries. Tables not
// listed use Default.
type Schemas struct {
	Default []string
	Tables  map[string][]string
}

// Keys returns the declared keys of a fact table.
func (s Schemas) Keys(table string) []string {
	if keys, ok := s.Tables[table]; ok {
		return keys
	}

	return s.Default
}

// Declares reports whether the schema lists the table explicitly.
func (s Schemas) Declares(table string) bool {
	_, ok := s.Tables[table]
	return ok
}

// Whitelist is an immutable set of exceptions.
type Whitelist struct {
	items []Exception
	index map[string]Exception
}

// NewWhitelist checks every exception against the schemas. An exception
// must name an explicitly declared table and one of its keys.
func NewWhitelist(schemas Schemas, exceptions []Exception) (*Whitelist, error) {
	if len(schemas.Default) == 0 {
		return nil, fmt.Errorf("%w: default", ErrEmptySchema)
	}

	for table, keys := range schemas.Tables {
		if len(keys) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptySchema, table)
		}
	}

	w := &Whitelist{index: make(map[string]Exception, len(exceptions))}

	for _, ex := range exceptions {
		id := pairID(ex.FactTable, ex.KeyColumn)

		if _, dup := w.index[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateException, id)
		}

		if !schemas.Declares(ex.FactTable) {
			return nil, fmt.Errorf("%w: %s", ErrExceptionUnknownFact, ex.FactTable)
		}

		if !contains(schemas.Keys(ex.FactTable), ex.KeyColumn) {
			return nil, fmt.Errorf("%w: %s", ErrExceptionUnknownKey, id)
		}

		if ex.Reason == "" {
			return nil, fmt.Errorf("%w: %s", ErrExceptionNoReason, id)
		}

		w.index[id] = ex
		w.items = append(w.items, ex)
	}

	sort.Slice(w.items, func(i, j int) bool {
		return pairID(w.items[i].FactTable, w.items[i].KeyColumn) < pairID(w.items[j].FactTable, w.items[j].KeyColumn)
	})

	return w, nil
}

// Covers reports whether missing values in the pair are accepted.
func (w *Whitelist) Covers(table, key string) bool {
	if w == nil {
		return false
	}

	_, ok := w.index[pairID(table, key)]

	return ok
}

// Items returns the exceptions sorted by table and key.
func (w *Whitelist) Items() []Exception {
	if w == nil {
		return nil
	}

	return append([]Exception(nil), w.items...)
}

func pairID(table, key string) string {
	return table + "." + key
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
