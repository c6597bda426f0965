package geography

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Rule table errors. All of them are fatal at build time.
var (
	ErrSelfMapping      = errors.New("remap rule maps a code to itself")
	ErrConflictingRule  = errors.New("conflicting remap rules for one code in one reorganisation")
	ErrRemapCycle       = errors.New("remap rules form a cycle")
	ErrTargetNotCurrent = errors.New("remap destination is not in the current hierarchy")
	ErrUnknownVersion   = errors.New("unknown hierarchy version")
	ErrEmptyReorgID     = errors.New("reorganisation id is required")
	ErrDuplicateReorgID = errors.New("duplicate reorganisation id")
)

// RemapRule rewrites a retired code to its successor.
type RemapRule struct {
	Old            string `json:"old"`
	New            string `json:"new"`
	Reorganisation string `json:"reorganisation"`
}

// Reorganisation is one dated partition of the rule table, such as the
// 2023 creation of Cumberland and North Yorkshire unitaries.
type Reorganisation struct {
	ID          string
	Effective   time.Time
	Description string
	Rules       []RemapRule
}

// Resolution is the outcome of remapping one code.
type Resolution struct {
	Code     string   `json:"code"`
	Original string   `json:"original"`
	Chain    []string `json:"chain,omitempty"`
	Known    bool     `json:"known"`
}

// Changed reports whether the code was rewritten.
func (r Resolution) Changed() bool {
	return r.Code != r.Original
}

// Remapper resolves codes through every reorganisation. It is immutable and
// safe for concurrent use.
type Remapper struct {
	reorgs  []Reorganisation
	next    map[string]RemapRule
	final   map[string][]string
	targets map[string]bool
	current *Hierarchy
}

// NewRemapper validates the rule table and precomputes final destinations.
// When one old code appears in several reorganisations, the most recent
// effective date wins; equal dates fall back to declaration order.
func NewRemapper(reorgs []Reorganisation) (*Remapper, error) {
	ordered := make([]Reorganisation, len(reorgs))
	copy(ordered, reorgs)

	seen := make(map[string]bool, len(ordered))
	for _, reorg := range ordered {
		if reorg.ID == "" {
			return nil, ErrEmptyReorgID
		}

		if seen[reorg.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateReorgID, reorg.ID)
		}

		seen[reorg.ID] = true
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Effective.After(ordered[j].Effective)
	})

	r := &Remapper{
		reorgs:  ordered,
		next:    make(map[string]RemapRule),
		targets: make(map[string]bool),
	}

	for _, reorg := range ordered {
		local := make(map[string]string)

		for _, rule := range reorg.Rules {
			rule.Old, rule.New = normalise(rule.Old), normalise(rule.New)
			rule.Reorganisation = reorg.ID

			if rule.Old == rule.New {
				return nil, fmt.Errorf("%w: %s in %s", ErrSelfMapping, rule.Old, reorg.ID)
			}

			if prev, ok := local[rule.Old]; ok && prev != rule.New {
				return nil, fmt.Errorf("%w: %s -> %s and %s in %s",
					ErrConflictingRule, rule.Old, prev, rule.New, reorg.ID)
			}

			local[rule.Old] = rule.New

			if _, taken := r.next[rule.Old]; !taken {
				r.next[rule.Old] = rule
			}
		}
	}

	final, err := resolveChains(r.next)
	if err != nil {
		return nil, err
	}

	r.final = final

	for _, rule := range r.next {
		r.targets[rule.New] = true
	}

	return r, nil
}

func resolveChains(next map[string]RemapRule) (map[string][]string, error) {
	final := make(map[string][]string, len(next))
	maxHops := len(next) + 1

	for old := range next {
		chain := []string{old}
		visited := map[string]bool{old: true}
		code := old

		for hops := 0; ; hops++ {
			rule, ok := next[code]
			if !ok {
				break
			}

			if visited[rule.New] || hops > maxHops {
				return nil, fmt.Errorf("%w: %v -> %s", ErrRemapCycle, chain, rule.New)
			}

			code = rule.New
			visited[code] = true
			chain = append(chain, code)
		}

		final[old] = chain
	}

	return final, nil
}

// Bind returns a copy checked against the current hierarchy. Every final
// destination must exist there. Binding an empty hierarchy disables the
// unknown code check.
func (r *Remapper) Bind(h *Hierarchy) (*Remapper, error) {
	if h != nil && !h.IsEmpty() {
		for _, old := range r.sortedOld() {
			chain := r.final[old]
			dest := chain[len(chain)-1]

			if !h.Contains(dest) {
				return nil, fmt.Errorf("%w: %s -> %s", ErrTargetNotCurrent, old, dest)
			}
		}
	}

	bound := *r
	bound.current = h

	return &bound, nil
}

// Bound reports whether unknown codes can be detected.
func (r *Remapper) Bound() bool {
	return r.current != nil && !r.current.IsEmpty()
}

// Remap resolves a code against the current hierarchy. Codes with no rule
// pass through unchanged; applying Remap to its own output is a no-op.
func (r *Remapper) Remap(code string) Resolution {
	code = normalise(code)
	res := Resolution{Code: code, Original: code, Known: true}

	if chain, ok := r.final[code]; ok {
		res.Code = chain[len(chain)-1]
		res.Chain = chain

		return res
	}

	if r.Bound() {
		res.Known = r.targets[code] || r.current.Contains(code)
	}

	return res
}

// RemapAsOf resolves a code using only reorganisations effective on or
// before the named one.
func (r *Remapper) RemapAsOf(code, version string) (Resolution, error) {
	if version == "" || version == r.Version() {
		return r.Remap(code), nil
	}

	var cutoff *Reorganisation

	for i := range r.reorgs {
		if r.reorgs[i].ID == version {
			cutoff = &r.reorgs[i]
			break
		}
	}

	if cutoff == nil {
		return Resolution{}, fmt.Errorf("%w: %s", ErrUnknownVersion, version)
	}

	var subset []Reorganisation

	for _, reorg := range r.reorgs {
		if !reorg.Effective.After(cutoff.Effective) {
			subset = append(subset, reorg)
		}
	}

	historic, err := NewRemapper(subset)
	if err != nil {
		return Resolution{}, err
	}

	res := historic.Remap(code)
	res.Known = true

	return res, nil
}

// Version returns the id of the most recent reorganisation applied.
func (r *Remapper) Version() string {
	if len(r.reorgs) == 0 {
		return ""
	}

	return r.reorgs[0].ID
}

// Rules returns the winning rule for every old code, sorted by old code.
func (r *Remapper) Rules() []RemapRule {
	rules := make([]RemapRule, 0, len(r.next))
	for _, old := range r.sortedOld() {
		rules = append(rules, r.next[old])
	}

	return rules
}

// Reorganisations returns the partitions, most recent first.
func (r *Remapper) Reorganisations() []Reorganisation {
	out := make([]Reorganisation, len(r.reorgs))
	copy(out, r.reorgs)

	return out
}

func (r *Remapper) sortedOld() []string {
	olds := make([]string, 0, len(r.next))
	for old := range r.next {
		olds = append(olds, old)
	}

	sort.Strings(olds)

	return olds
}
