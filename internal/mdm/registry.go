package mdm

import (
	"sort"

	"firestats/pkg/utils"
)

// Registry is the read-only result of Reconcile, shared by every Gold join.
type Registry struct {
	entities map[string]*CanonicalEntity
	byCode   map[string]string
	byName   map[string]string
	rejected []Observation
}

// MasterCode resolves any current or legacy code to its master code.
func (r *Registry) MasterCode(code string) (string, bool) {
	master, ok := r.byCode[normaliseCode(code)]
	return master, ok
}

// Lookup returns the canonical entity for any current or legacy code.
func (r *Registry) Lookup(code string) (CanonicalEntity, bool) {
	master, ok := r.MasterCode(code)
	if !ok {
		return CanonicalEntity{}, false
	}

	return r.entity(master), true
}

// ResolveName maps a free-text service name to a master code. found is true
// with an empty code for services deliberately excluded from the model.
func (r *Registry) ResolveName(name string) (code string, found bool) {
	code, found = r.byName[utils.NormalizeKey(name)]
	return code, found
}

// Entities returns every canonical entity sorted by code.
func (r *Registry) Entities() []CanonicalEntity {
	codes := make([]string, 0, len(r.entities))
	for code := range r.entities {
		codes = append(codes, code)
	}

	sort.Strings(codes)

	out := make([]CanonicalEntity, 0, len(codes))
	for _, code := range codes {
		out = append(out, r.entity(code))
	}

	return out
}

// Codes returns every resolvable code, legacy ones included.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.byCode))
	for code := range r.byCode {
		codes = append(codes, code)
	}

	sort.Strings(codes)

	return codes
}

// Len returns the number of canonical entities.
func (r *Registry) Len() int {
	return len(r.entities)
}

// Rejected returns observations dropped for carrying a malformed code.
func (r *Registry) Rejected() []Observation {
	out := make([]Observation, len(r.rejected))
	copy(out, r.rejected)

	return out
}

func (r *Registry) entity(master string) CanonicalEntity {
	e := r.entities[master]
	out := *e
	out.Legacy = append([]LegacyIdentity(nil), e.Legacy...)

	return out
}
