package geography

import (
	"sort"
	"strings"
)

// Hierarchy is the current LSOA -> MSOA -> LAD -> FRS code set, built from
// the ONS lookup tables once per run and read-only afterwards.
type Hierarchy struct {
	Version string

	levels map[string]Level
	parent map[string]string
}

// NewHierarchy creates an empty hierarchy tagged with a version.
func NewHierarchy(version string) *Hierarchy {
	return &Hierarchy{
		Version: version,
		levels:  make(map[string]Level),
		parent:  make(map[string]string),
	}
}

// Add registers a code. Codes with an unrecognised prefix are stored as
// LevelUnknown so they still count as present.
func (h *Hierarchy) Add(code string) {
	code = normalise(code)
	if code == "" {
		return
	}

	if _, ok := h.levels[code]; !ok {
		h.levels[code] = DetectLevel(code)
	}
}

// Link registers child and parent and records the parent relation.
// The first parent seen for a child wins.
func (h *Hierarchy) Link(child, parent string) {
	child, parent = normalise(child), normalise(parent)
	if child == "" || parent == "" {
		return
	}

	h.Add(child)
	h.Add(parent)

	if _, ok := h.parent[child]; !ok {
		h.parent[child] = parent
	}
}

// Contains reports whether the code is part of the hierarchy.
func (h *Hierarchy) Contains(code string) bool {
	if h == nil {
		return false
	}

	_, ok := h.levels[normalise(code)]

	return ok
}

// Level returns the stored level of a code.
func (h *Hierarchy) Level(code string) Level {
	return h.levels[normalise(code)]
}

// Parent returns the direct parent of a code, or "".
func (h *Hierarchy) Parent(code string) string {
	return h.parent[normalise(code)]
}

// Ancestor walks up until a code of the wanted level is found.
func (h *Hierarchy) Ancestor(code string, want Level) string {
	code = normalise(code)

	for hops := 0; code != "" && hops <= len(h.parent); hops++ {
		if h.levels[code] == want {
			return code
		}

		code = h.parent[code]
	}

	return ""
}

// Codes returns every code of a level in sorted order.
func (h *Hierarchy) Codes(level Level) []string {
	var codes []string

	for code, l := range h.levels {
		if l == level {
			codes = append(codes, code)
		}
	}

	sort.Strings(codes)

	return codes
}

// Len returns the number of codes in the hierarchy.
func (h *Hierarchy) Len() int {
	if h == nil {
		return 0
	}

	return len(h.levels)
}

// IsEmpty reports whether no lookup data was loaded.
func (h *Hierarchy) IsEmpty() bool {
	return h.Len() == 0
}

func normalise(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
