// Package normalizer provides the Silver stage: header cleanup, range
// midpoints, financial year keys, geography remapping and drill-through ids.
package normalizer

import (
	"fmt"

	"firestats/internal/models"
)

// Processor runs one dataset through validation and transformation.
// It holds no per-batch state and is safe for concurrent use.
type Processor struct {
	validator   *Validator
	transformer *Transformer
}

// NewProcessor creates a new processor instance.
func NewProcessor(opts Options, remapper CodeRemapper) *Processor {
	return &Processor{
		validator:   NewValidator(DrillThroughColumn),
		transformer: NewTransformer(opts, remapper),
	}
}

// Process validates the batch shape and returns the cleansed batch.
// Row-level problems become defects on the row; only shape errors fail.
func (p *Processor) Process(batch *models.Batch) (*models.CleansedBatch, error) {
	if err := p.validator.Validate(batch); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return p.transformer.Transform(batch), nil
}

// DatasetID exposes the dataset fallback drill-through id.
func (p *Processor) DatasetID(dataset string) (int, bool) {
	return p.transformer.incidents.DatasetID(dataset)
}
