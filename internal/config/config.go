// Package config provides configuration management for the normalization pipeline.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// EffectiveLayout is the date layout of reorganisation effective dates.
const EffectiveLayout = "2006-01-02"

// FactPrefix prefixes the fact table of every incident dataset.
const FactPrefix = "fact_"

// Configuration validation errors.
var (
	ErrInvalidLogLevel        = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidWorkers         = errors.New("pipeline.workers must be at least 1")
	ErrInvalidFutureYears     = errors.New("pipeline.future_years must be non-negative")
	ErrInvalidOutputFormat    = errors.New("output.format must be 'json' or 'postgres'")
	ErrMissingOutputPath      = errors.New("output.path is required for json output")
	ErrNoMidpointColumns      = errors.New("midpoint.columns requires at least one entry")
	ErrMidpointMissingMatch   = errors.New("midpoint column requires match and suffix")
	ErrMissingReorgID         = errors.New("geography reorganisation requires an id")
	ErrInvalidEffectiveDate   = errors.New("geography reorganisation effective date must be YYYY-MM-DD")
	ErrEmptyRule              = errors.New("geography rule requires old and new codes")
	ErrMergerMissingMaster    = errors.New("entities merger requires a master code")
	ErrNoDefaultKeys          = errors.New("integrity.default_keys requires at least one key")
	ErrInvalidPopulationYears = errors.New("population.first_year cannot exceed population.last_year")
	ErrInvalidRiskYear        = errors.New("risk_profiles.financial_year must look like 2023/24")
	ErrInvalidCategoryPattern = errors.New("incidents category requires match and category")
)

var labelPattern = regexp.MustCompile(`^\d{4}/\d{2}$`)

// Config represents the complete pipeline configuration.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Output       OutputConfig       `yaml:"output"`
	Midpoint     MidpointConfig     `yaml:"midpoint"`
	Fiscal       FiscalConfig       `yaml:"fiscal"`
	Geography    GeographyConfig    `yaml:"geography"`
	Entities     EntitiesConfig     `yaml:"entities"`
	Incidents    IncidentsConfig    `yaml:"incidents"`
	Integrity    IntegrityConfig    `yaml:"integrity"`
	Population   PopulationConfig   `yaml:"population"`
	RiskProfiles RiskProfilesConfig `yaml:"risk_profiles"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// PipelineConfig controls orchestration.
type PipelineConfig struct {
	Workers     int  `yaml:"workers"`
	FutureYears int  `yaml:"future_years"`
	Strict      bool `yaml:"strict"`
}

// OutputConfig defines where Gold tables are written.
type OutputConfig struct {
	Format      string `yaml:"format"`
	Path        string `yaml:"path"`
	PrettyPrint bool   `yaml:"pretty_print"`
	Schema      string `yaml:"schema"`
}

// MidpointConfig lists the range columns that receive an estimate.
type MidpointConfig struct {
	Columns []MidpointColumn `yaml:"columns"`
}

// MidpointColumn matches columns by substring and names the estimate by suffix.
type MidpointColumn struct {
	Match  string `yaml:"match"`
	Suffix string `yaml:"suffix"`
}

// FiscalConfig controls financial year derivation.
type FiscalConfig struct {
	DateExclude    []string `yaml:"date_exclude"`
	FallbackFields []string `yaml:"fallback_fields"`
	SkipDatasets   []string `yaml:"skip_datasets"`
}

// GeographyConfig holds the lookup dataset names and the remap rule table.
type GeographyConfig struct {
	LSOALookup      string                 `yaml:"lsoa_lookup"`
	FRALookup       string                 `yaml:"fra_lookup"`
	Version         string                 `yaml:"version"`
	Reorganisations []ReorganisationConfig `yaml:"reorganisations"`
}

// ReorganisationConfig is one dated partition of remap rules.
type ReorganisationConfig struct {
	ID          string       `yaml:"id"`
	Effective   string       `yaml:"effective"`
	Description string       `yaml:"description"`
	Rules       []RuleConfig `yaml:"rules"`
}

// RuleConfig maps an old code, or an "A..B" code range, to its successor.
type RuleConfig struct {
	Old string `yaml:"old"`
	New string `yaml:"new"`
}

// EffectiveDate parses the effective date.
func (r *ReorganisationConfig) EffectiveDate() (time.Time, error) {
	t, err := time.Parse(EffectiveLayout, r.Effective)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q", ErrInvalidEffectiveDate, r.ID, r.Effective)
	}

	return t, nil
}

// EntitiesConfig drives FRS master data management.
type EntitiesConfig struct {
	Mergers            []MergerConfig    `yaml:"mergers"`
	Aliases            map[string]string `yaml:"aliases"`
	CodeColumns        []string          `yaml:"code_columns"`
	NameColumns        []string          `yaml:"name_columns"`
	IgnoreTerms        []string          `yaml:"ignore_terms"`
	FamilyGroupDataset string            `yaml:"family_group_dataset"`
	UnknownFamilyGroup string            `yaml:"unknown_family_group"`
}

// MergerConfig folds legacy codes into a master code.
type MergerConfig struct {
	Master string   `yaml:"master"`
	Name   string   `yaml:"name"`
	Legacy []string `yaml:"legacy"`
}

// IncidentsConfig drives drill-through ids and incident categories.
type IncidentsConfig struct {
	TypeColumn       string           `yaml:"type_column"`
	Types            map[string]int   `yaml:"types"`
	DatasetFallbacks []KeywordConfig  `yaml:"dataset_fallbacks"`
	Categories       []CategoryConfig `yaml:"categories"`
	DefaultCategory  string           `yaml:"default_category"`
	UnknownID        int              `yaml:"unknown_id"`
}

// KeywordConfig maps a dataset name fragment to a drill-through id.
type KeywordConfig struct {
	Match string `yaml:"match"`
	ID    int    `yaml:"id"`
}

// CategoryConfig maps a dataset name fragment to an incident category.
type CategoryConfig struct {
	Match    string `yaml:"match"`
	Category string `yaml:"category"`
}

// IntegrityConfig declares fact table keys and accepted gaps.
type IntegrityConfig struct {
	DefaultKeys []string            `yaml:"default_keys"`
	Tables      map[string][]string `yaml:"tables"`
	Exceptions  []ExceptionConfig   `yaml:"exceptions"`
}

// ExceptionConfig whitelists missing values in one fact table key.
type ExceptionConfig struct {
	FactTable string `yaml:"fact_table"`
	KeyColumn string `yaml:"key_column"`
	Reason    string `yaml:"reason"`
}

// PopulationConfig describes the ONS mid-year estimate table.
type PopulationConfig struct {
	Dataset     string   `yaml:"dataset"`
	CodeColumn  string   `yaml:"code_column"`
	CodeAliases []string `yaml:"code_aliases"`
	FirstYear   int      `yaml:"first_year"`
	LastYear    int      `yaml:"last_year"`
}

// RiskProfilesConfig describes the NFCC risk metric snapshot.
type RiskProfilesConfig struct {
	Metrics       []string `yaml:"metrics"`
	FinancialYear string   `yaml:"financial_year"`
	Source        string   `yaml:"source"`
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse embedded defaults: %w", err)
	}

	return &cfg, nil
}

// LoadConfig loads configuration from a YAML file layered over the embedded
// defaults. Lists in the file replace the defaults; maps are merged. An
// empty path returns the defaults.
func LoadConfig(filepath string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if filepath != "" {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Pipeline.Workers < 1 {
		return ErrInvalidWorkers
	}

	if c.Pipeline.FutureYears < 0 {
		return ErrInvalidFutureYears
	}

	switch c.Output.Format {
	case "json":
		if c.Output.Path == "" {
			return ErrMissingOutputPath
		}
	case "postgres":
	default:
		return ErrInvalidOutputFormat
	}

	if len(c.Midpoint.Columns) == 0 {
		return ErrNoMidpointColumns
	}

	for i, m := range c.Midpoint.Columns {
		if m.Match == "" || m.Suffix == "" {
			return fmt.Errorf("%w: midpoint.columns[%d]", ErrMidpointMissingMatch, i)
		}
	}

	for i := range c.Geography.Reorganisations {
		reorg := &c.Geography.Reorganisations[i]
		if reorg.ID == "" {
			return fmt.Errorf("%w: geography.reorganisations[%d]", ErrMissingReorgID, i)
		}

		if _, err := reorg.EffectiveDate(); err != nil {
			return err
		}

		for j, rule := range reorg.Rules {
			if rule.Old == "" || rule.New == "" {
				return fmt.Errorf("%w: %s rules[%d]", ErrEmptyRule, reorg.ID, j)
			}
		}
	}

	for i, m := range c.Entities.Mergers {
		if m.Master == "" {
			return fmt.Errorf("%w: entities.mergers[%d]", ErrMergerMissingMaster, i)
		}
	}

	for i, cat := range c.Incidents.Categories {
		if cat.Match == "" || cat.Category == "" {
			return fmt.Errorf("%w: incidents.categories[%d]", ErrInvalidCategoryPattern, i)
		}
	}

	if len(c.Integrity.DefaultKeys) == 0 {
		return ErrNoDefaultKeys
	}

	if c.Population.FirstYear > c.Population.LastYear {
		return ErrInvalidPopulationYears
	}

	if !labelPattern.MatchString(c.RiskProfiles.FinancialYear) {
		return ErrInvalidRiskYear
	}

	return nil
}

// FactTable names the fact table of an incident dataset.
func FactTable(dataset string) string {
	return FactPrefix + dataset
}

// TemporalExempt returns the datasets that skip financial year checks: the
// configured skip list plus every dataset whose fact table is whitelisted
// for a missing financial year.
func (c *Config) TemporalExempt() []string {
	exempt := append([]string(nil), c.Fiscal.SkipDatasets...)

	for _, ex := range c.Integrity.Exceptions {
		if ex.KeyColumn == "financial_year" && strings.HasPrefix(ex.FactTable, FactPrefix) {
			exempt = append(exempt, strings.TrimPrefix(ex.FactTable, FactPrefix))
		}
	}

	return exempt
}

// String returns a string representation of the config.
func (c *Config) String() string {
	rules := 0
	for _, r := range c.Geography.Reorganisations {
		rules += len(r.Rules)
	}

	return fmt.Sprintf(
		"Config{Workers: %d, Reorganisations: %d, Rules: %d, Mergers: %d, Exceptions: %d, Output: %s}",
		c.Pipeline.Workers,
		len(c.Geography.Reorganisations),
		rules,
		len(c.Entities.Mergers),
		len(c.Integrity.Exceptions),
		c.Output.Format,
	)
}
