package pipeline

import (
	"errors"
	"fmt"

	"firestats/internal/config"
	"firestats/internal/geography"
	"firestats/internal/integrity"
)

// ErrRangeTarget is returned when a rule maps onto a code range.
var ErrRangeTarget = errors.New("remap rule target must be a single code")

// Reorganisations expands the configured rule table. An "A..B" old code
// becomes one rule per code in the range.
func Reorganisations(cfg config.GeographyConfig) ([]geography.Reorganisation, error) {
	out := make([]geography.Reorganisation, 0, len(cfg.Reorganisations))

	for i := range cfg.Reorganisations {
		rc := &cfg.Reorganisations[i]

		effective, err := rc.EffectiveDate()
		if err != nil {
			return nil, err
		}

		reorg := geography.Reorganisation{ID: rc.ID, Effective: effective, Description: rc.Description}

		for _, rule := range rc.Rules {
			olds, err := geography.ExpandCodeRange(rule.Old)
			if err != nil {
				return nil, fmt.Errorf("reorganisation %s: %w", rc.ID, err)
			}

			targets, err := geography.ExpandCodeRange(rule.New)
			if err != nil {
				return nil, fmt.Errorf("reorganisation %s: %w", rc.ID, err)
			}

			if len(targets) != 1 {
				return nil, fmt.Errorf("%w: %s -> %s", ErrRangeTarget, rule.Old, rule.New)
			}

			for _, old := range olds {
				reorg.Rules = append(reorg.Rules, geography.RemapRule{Old: old, New: targets[0], Reorganisation: rc.ID})
			}
		}

		out = append(out, reorg)
	}

	return out, nil
}

// Schemas returns the declared fact table keys.
func Schemas(cfg config.IntegrityConfig) integrity.Schemas {
	return integrity.Schemas{Default: cfg.DefaultKeys, Tables: cfg.Tables}
}

// Exceptions returns the configured whitelist entries.
func Exceptions(cfg config.IntegrityConfig) []integrity.Exception {
	out := make([]integrity.Exception, 0, len(cfg.Exceptions))
	for _, e := range cfg.Exceptions {
		out = append(out, integrity.Exception{FactTable: e.FactTable, KeyColumn: e.KeyColumn, Reason: e.Reason})
	}

	return out
}
