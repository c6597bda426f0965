// Package pipeline runs the Silver -> MDM -> Gold -> validation stages over
// one set of input batches.
package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"firestats/internal/config"
	"firestats/internal/geography"
	"firestats/internal/gold"
	"firestats/internal/integrity"
	"firestats/internal/logger"
	"firestats/internal/mdm"
	"firestats/internal/models"
	"firestats/internal/normalizer"
	"firestats/pkg/lineage"
)

// Input is everything one run consumes. Batches are routed by dataset name:
// the configured lookup, population and family group datasets are reference
// tables, every other batch is an incident dataset.
type Input struct {
	Batches []*models.Batch
	// Snapshots are historical entity sightings from earlier loads.
	Snapshots []mdm.Observation
}

// Result is the output of one run.
type Result struct {
	RunID    string
	Cleansed []*models.CleansedBatch
	Registry *mdm.Registry
	Model    *gold.Model
	Report   *integrity.Report
	Lineage  []lineage.Stamp
}

// Tables returns the Gold tables of the run.
func (r *Result) Tables() []models.Table {
	return r.Model.Tables()
}

// Pipeline holds the rule artifacts built from configuration. It is safe
// to Run concurrently.
type Pipeline struct {
	cfg       *config.Config
	log       *logger.Logger
	remapper  *geography.Remapper
	validator *integrity.Validator
	mergers   []mdm.MergerRule
	now       func() time.Time
}

// New builds every rule artifact up front, so an inconsistent rule table
// fails before any data is touched.
func New(cfg *config.Config, log *logger.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	reorgs, err := Reorganisations(cfg.Geography)
	if err != nil {
		return nil, err
	}

	remapper, err := geography.NewRemapper(reorgs)
	if err != nil {
		return nil, fmt.Errorf("failed to build remap rules: %w", err)
	}

	validator, err := integrity.NewValidator(Schemas(cfg.Integrity), Exceptions(cfg.Integrity))
	if err != nil {
		return nil, fmt.Errorf("failed to build validation exceptions: %w", err)
	}

	mergers := make([]mdm.MergerRule, 0, len(cfg.Entities.Mergers))
	for _, m := range cfg.Entities.Mergers {
		mergers = append(mergers, mdm.MergerRule{Master: m.Master, Name: m.Name, Legacy: m.Legacy})
	}

	if _, err := mdm.Reconcile(nil, mdm.Rules{Mergers: mergers}); err != nil {
		return nil, fmt.Errorf("failed to build merger rules: %w", err)
	}

	return &Pipeline{
		cfg:       cfg,
		log:       log,
		remapper:  remapper,
		validator: validator,
		mergers:   mergers,
		now:       time.Now,
	}, nil
}

// Remapper returns the unbound remapper built from the rule table.
func (p *Pipeline) Remapper() *geography.Remapper {
	return p.remapper
}

type routed struct {
	lsoa, fra    *models.Batch
	population   *models.Batch
	familyGroups *models.Batch
	incidents    []*models.Batch
}

func (p *Pipeline) route(batches []*models.Batch) routed {
	var r routed

	for _, b := range batches {
		switch b.Dataset {
		case p.cfg.Geography.LSOALookup:
			r.lsoa = b
		case p.cfg.Geography.FRALookup:
			r.fra = b
		case p.cfg.Population.Dataset:
			r.population = b
		case p.cfg.Entities.FamilyGroupDataset:
			r.familyGroups = b
		default:
			r.incidents = append(r.incidents, b)
		}
	}

	return r
}

// Run executes one pipeline run. Rule inconsistencies and structurally
// invalid batches abort the run; row-level problems are reported.
func (p *Pipeline) Run(in Input) (*Result, error) {
	start := p.now()
	batches := p.route(in.Batches)

	p.log.Info("starting run",
		"incident_datasets", len(batches.incidents),
		"lookups", batches.lsoa != nil || batches.fra != nil,
		"population", batches.population != nil,
		"family_groups", batches.familyGroups != nil,
		"snapshots", len(in.Snapshots))

	lookups, err := gold.ParseLookups(batches.lsoa, batches.fra, func(code string) string {
		return p.remapper.Remap(code).Code
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse geography lookups: %w", err)
	}

	hierarchy := lookups.Hierarchy(p.cfg.Geography.Version)

	remapper, err := p.remapper.Bind(hierarchy)
	if err != nil {
		return nil, fmt.Errorf("failed to bind remap rules: %w", err)
	}

	if !remapper.Bound() {
		p.log.Warn("no geography lookup supplied, unknown codes will not be flagged")
	}

	p.log.Info("geography ready", "version", remapper.Version(), "codes", hierarchy.Len(), "rules", len(remapper.Rules()))

	cleansed, err := p.silver(batches.incidents, remapper)
	if err != nil {
		return nil, err
	}

	reg, err := p.reconcile(cleansed, lookups, in.Snapshots)
	if err != nil {
		return nil, err
	}

	model, err := gold.Build(gold.Inputs{
		Cleansed:     cleansed,
		Lookups:      lookups,
		Population:   batches.population,
		FamilyGroups: batches.familyGroups,
	}, reg, p.goldOptions())
	if err != nil {
		return nil, err
	}

	if n := len(model.UnresolvedFamilyGroups); n > 0 {
		p.log.Warn("family group names not resolved", "count", n, "names", strings.Join(model.UnresolvedFamilyGroups, "; "))
	}

	report := p.validator.Validate(model.FactRows(), model.KeySets())

	for _, b := range cleansed {
		report.AddDefects(b.Dataset, b.DefectCounts())
	}

	rejected := make(map[string]int)
	for _, obs := range reg.Rejected() {
		rejected[obs.Dataset]++
	}

	for dataset, n := range rejected {
		report.AddDefects(dataset, map[models.DefectKind]int{models.DefectInvalidEntityCode: n})
	}

	tables := model.Tables()
	stamps := make([]lineage.Stamp, 0, len(tables))

	for _, t := range tables {
		stamps = append(stamps, lineage.NewStamp(report.RunID, t, report.Publishable(t.Name), report.GeneratedAt))
	}

	p.log.Info("run complete",
		"run_id", report.RunID,
		"tables", len(tables),
		"violations", report.TotalViolations(),
		"defects", report.TotalDefects(),
		"duration", time.Since(start).String())

	return &Result{
		RunID:    report.RunID,
		Cleansed: cleansed,
		Registry: reg,
		Model:    model,
		Report:   report,
		Lineage:  stamps,
	}, nil
}

// silver normalizes every incident batch across the worker pool. Results
// keep input order; the first failing batch in input order is returned.
func (p *Pipeline) silver(batches []*models.Batch, remapper *geography.Remapper) ([]*models.CleansedBatch, error) {
	processor := normalizer.NewProcessor(p.normalizerOptions(), remapper)

	out := make([]*models.CleansedBatch, len(batches))
	errs := make([]error, len(batches))
	jobs := make(chan int)

	var wg sync.WaitGroup

	for w := 0; w < min(p.cfg.Pipeline.Workers, max(len(batches), 1)); w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range jobs {
				out[i], errs[i] = processor.Process(batches[i])
			}
		}()
	}

	for i := range batches {
		jobs <- i
	}

	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", batches[i].Dataset, err)
		}
	}

	for _, b := range out {
		log := p.log.With("dataset", b.Dataset)
		log.Info("cleansed", "rows", len(b.Rows), "estimates", len(b.Estimates))

		counts := b.DefectCounts()
		for kind, n := range counts {
			log.Warn("row defects", "kind", string(kind), "count", n)
		}
	}

	return out, nil
}

// reconcile is the barrier between Silver and Gold: it runs once over the
// sightings of every batch, the FRA lookup and the snapshots.
func (p *Pipeline) reconcile(cleansed []*models.CleansedBatch, lookups *gold.Lookups, snapshots []mdm.Observation) (*mdm.Registry, error) {
	rules := p.entityRules()

	var observations []mdm.Observation
	for _, b := range cleansed {
		observations = append(observations, mdm.Observe(b, rules)...)
	}

	lookupObs := lookups.Observations(p.cfg.Geography.FRALookup)
	observations = append(observations, lookupObs...)
	observations = append(observations, snapshots...)

	known := make([]string, 0, len(lookupObs))
	for _, obs := range lookupObs {
		known = append(known, obs.Code)
	}

	reg, err := mdm.Reconcile(observations, mdm.Rules{
		Mergers:    p.mergers,
		Aliases:    p.cfg.Entities.Aliases,
		KnownCodes: known,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile entities: %w", err)
	}

	p.log.Info("entities reconciled", "observations", len(observations), "entities", reg.Len(), "rejected", len(reg.Rejected()))

	return reg, nil
}

func (p *Pipeline) entityRules() mdm.ColumnRules {
	return mdm.ColumnRules{
		CodeColumns: p.cfg.Entities.CodeColumns,
		NameColumns: p.cfg.Entities.NameColumns,
		IgnoreTerms: p.cfg.Entities.IgnoreTerms,
	}
}

func (p *Pipeline) normalizerOptions() normalizer.Options {
	opts := normalizer.Options{
		DateExclude:    p.cfg.Fiscal.DateExclude,
		FallbackFields: p.cfg.Fiscal.FallbackFields,
		TemporalExempt: p.cfg.TemporalExempt(),
		Incidents: normalizer.IncidentRules{
			TypeColumn: p.cfg.Incidents.TypeColumn,
			Types:      p.cfg.Incidents.Types,
			UnknownID:  p.cfg.Incidents.UnknownID,
		},
	}

	for _, m := range p.cfg.Midpoint.Columns {
		opts.Midpoints = append(opts.Midpoints, normalizer.MidpointColumn{Match: m.Match, Suffix: m.Suffix})
	}

	for _, k := range p.cfg.Incidents.DatasetFallbacks {
		opts.Incidents.DatasetFallbacks = append(opts.Incidents.DatasetFallbacks, normalizer.KeywordID{Match: k.Match, ID: k.ID})
	}

	return opts
}

func (p *Pipeline) goldOptions() gold.Options {
	opts := gold.Options{
		FactPrefix:         config.FactPrefix,
		FutureYears:        p.cfg.Pipeline.FutureYears,
		UnknownFamilyGroup: p.cfg.Entities.UnknownFamilyGroup,
		DefaultCategory:    p.cfg.Incidents.DefaultCategory,
		Entity:             p.entityRules(),
		Population: gold.PopulationOptions{
			CodeColumn:  p.cfg.Population.CodeColumn,
			CodeAliases: p.cfg.Population.CodeAliases,
			FirstYear:   p.cfg.Population.FirstYear,
			LastYear:    p.cfg.Population.LastYear,
		},
		Risk: gold.RiskOptions{
			Metrics:       p.cfg.RiskProfiles.Metrics,
			FinancialYear: p.cfg.RiskProfiles.FinancialYear,
			Source:        p.cfg.RiskProfiles.Source,
		},
	}

	for _, c := range p.cfg.Incidents.Categories {
		opts.Categories = append(opts.Categories, gold.Category{Match: c.Match, Name: c.Category})
	}

	return opts
}
