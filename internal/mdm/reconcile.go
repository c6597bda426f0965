// Package mdm provides master data management for fire and rescue service
// identities: historical codes and spellings are reconciled into one
// canonical entity per service.
package mdm

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"firestats/internal/fiscal"
	"firestats/pkg/utils"
)

// Reconciliation errors.
var (
	ErrMergerConflict    = errors.New("merger rules conflict")
	ErrUnknownMergerCode = errors.New("merger rule references an unknown code")
	ErrMalformedCode     = errors.New("malformed entity code")
)

var entityCodePattern = regexp.MustCompile(`^[ESW]\d{8}$`)

// ValidCode reports whether a code has the nine character E/S/W shape.
func ValidCode(code string) bool {
	return entityCodePattern.MatchString(code)
}

// Observation is one sighting of an entity in a source table.
type Observation struct {
	Code    string      `json:"code"`
	Name    string      `json:"name"`
	Year    fiscal.Year `json:"year"`
	Dataset string      `json:"dataset"`
}

// MergerRule folds legacy codes into a master code. Name, when set,
// overrides the display name chosen from observations.
type MergerRule struct {
	Master string   `json:"master"`
	Name   string   `json:"name"`
	Legacy []string `json:"legacy"`
}

// Rules is the declarative input to Reconcile.
type Rules struct {
	Mergers []MergerRule
	// Aliases maps free-text names to codes. An empty code marks a service
	// outside the model, such as the devolved Scottish and Welsh services.
	Aliases map[string]string
	// KnownCodes, when non-empty, is the bound FRS code set every merger
	// master must belong to.
	KnownCodes []string
}

// LegacyIdentity is a historical (code, name, year) sighting of an entity.
type LegacyIdentity struct {
	Code string      `json:"code"`
	Name string      `json:"name"`
	Year fiscal.Year `json:"year"`
}

// CanonicalEntity is the master identity of one service.
type CanonicalEntity struct {
	Code   string           `json:"code"`
	Name   string           `json:"name"`
	Legacy []LegacyIdentity `json:"legacy"`
}

// Reconcile builds the registry in two steps: merger sets first, then
// grouping by code with the most recently observed spelling as display name.
// Every valid observed code and every merger legacy code resolves.
func Reconcile(observations []Observation, rules Rules) (*Registry, error) {
	target, err := mergerTargets(rules)
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		entities: make(map[string]*CanonicalEntity),
		byCode:   make(map[string]string),
		byName:   make(map[string]string),
	}

	groups := make(map[string][]Observation)

	for _, obs := range observations {
		obs.Code = normaliseCode(obs.Code)
		obs.Name = utils.NormalizeWhitespace(obs.Name)

		if !ValidCode(obs.Code) {
			reg.rejected = append(reg.rejected, obs)
			continue
		}

		master := obs.Code
		if m, ok := target[obs.Code]; ok {
			master = m
		}

		groups[master] = append(groups[master], obs)
		reg.byCode[obs.Code] = master
	}

	for legacy, master := range target {
		reg.byCode[legacy] = master
		reg.byCode[master] = master

		if _, ok := groups[master]; !ok {
			groups[master] = nil
		}
	}

	names := make(map[string]string, len(rules.Mergers))
	for _, m := range rules.Mergers {
		if m.Name != "" {
			names[normaliseCode(m.Master)] = utils.NormalizeWhitespace(m.Name)
		}
	}

	masters := make([]string, 0, len(groups))
	for master := range groups {
		masters = append(masters, master)
	}

	sort.Strings(masters)

	claims := make(map[string]nameClaim)

	for _, master := range masters {
		group := groups[master]
		entity := &CanonicalEntity{Code: master, Legacy: legacyIdentities(group)}

		if name, ok := names[master]; ok {
			entity.Name = name
		} else {
			entity.Name = displayName(group)
		}

		reg.entities[master] = entity

		for _, l := range entity.Legacy {
			if l.Name == "" {
				continue
			}

			key := utils.NormalizeKey(l.Name)
			claims[key] = claims[key].stronger(nameClaim{code: master, year: l.Year, set: true})
		}
	}

	for key, c := range claims {
		reg.byName[key] = c.code
	}

	// Canonical names override historical spellings; on a shared canonical
	// name the lowest code is kept.
	canonical := make(map[string]bool)

	for _, master := range masters {
		entity := reg.entities[master]
		if entity.Name == "" {
			continue
		}

		key := utils.NormalizeKey(entity.Name)
		if !canonical[key] {
			canonical[key] = true
			reg.byName[key] = master
		}
	}

	for name, code := range rules.Aliases {
		code = normaliseCode(code)
		if m, ok := target[code]; ok {
			code = m
		}

		reg.byName[utils.NormalizeKey(name)] = code
	}

	return reg, nil
}

// mergerTargets validates the merger table and maps legacy code -> master.
func mergerTargets(rules Rules) (map[string]string, error) {
	known := make(map[string]bool, len(rules.KnownCodes))
	for _, c := range rules.KnownCodes {
		known[normaliseCode(c)] = true
	}

	target := make(map[string]string)
	masters := make(map[string]bool)

	for _, m := range rules.Mergers {
		master := normaliseCode(m.Master)
		if !ValidCode(master) {
			return nil, fmt.Errorf("%w: merger master %q", ErrMalformedCode, m.Master)
		}

		if len(known) > 0 && !known[master] {
			return nil, fmt.Errorf("%w: master %s", ErrUnknownMergerCode, master)
		}

		masters[master] = true

		for _, raw := range m.Legacy {
			legacy := normaliseCode(raw)
			if !ValidCode(legacy) {
				return nil, fmt.Errorf("%w: legacy code %q", ErrMalformedCode, raw)
			}

			if legacy == master {
				return nil, fmt.Errorf("%w: %s lists itself as legacy", ErrMergerConflict, master)
			}

			if prev, ok := target[legacy]; ok {
				return nil, fmt.Errorf("%w: %s merges into both %s and %s", ErrMergerConflict, legacy, prev, master)
			}

			target[legacy] = master
		}
	}

	for legacy := range target {
		if masters[legacy] {
			return nil, fmt.Errorf("%w: master %s is listed as legacy elsewhere", ErrMergerConflict, legacy)
		}
	}

	return target, nil
}

// displayName picks the most recent non-empty spelling. Ties go to the
// longest name, then the lexicographically first.
func displayName(group []Observation) string {
	best := Observation{}

	for _, obs := range group {
		if obs.Name == "" {
			continue
		}

		if best.Name == "" || better(obs, best) {
			best = obs
		}
	}

	return best.Name
}

func better(a, b Observation) bool {
	if c := a.Year.Compare(b.Year); c != 0 {
		return c > 0
	}

	if len(a.Name) != len(b.Name) {
		return len(a.Name) > len(b.Name)
	}

	return a.Name < b.Name
}

// nameClaim is one entity's claim on a historical spelling.
type nameClaim struct {
	code string
	year fiscal.Year
	set  bool
}

// stronger returns the winning claim: the most recent sighting, then the
// lower code.
func (c nameClaim) stronger(other nameClaim) nameClaim {
	if !c.set {
		return other
	}

	if cmp := other.year.Compare(c.year); cmp != 0 {
		if cmp > 0 {
			return other
		}

		return c
	}

	if other.code < c.code {
		return other
	}

	return c
}

func legacyIdentities(group []Observation) []LegacyIdentity {
	seen := make(map[LegacyIdentity]bool)

	var out []LegacyIdentity

	for _, obs := range group {
		id := LegacyIdentity{Code: obs.Code, Name: obs.Name, Year: obs.Year}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Year.Compare(out[j].Year); c != 0 {
			return c < 0
		}

		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}

		return out[i].Name < out[j].Name
	})

	return out
}

func normaliseCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
