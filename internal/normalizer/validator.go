package normalizer

import (
	"errors"
	"fmt"

	"firestats/internal/models"
	"firestats/pkg/utils"
)

// Batch shape errors.
var (
	ErrNilBatch         = errors.New("batch is nil")
	ErrMissingDataset   = errors.New("batch has no dataset id")
	ErrNoColumns        = errors.New("batch declares no columns")
	ErrBlankColumn      = errors.New("column name is blank after standardisation")
	ErrDuplicateColumn  = errors.New("columns collide after standardisation")
	ErrUndeclaredColumn = errors.New("row carries an undeclared column")
	ErrReservedColumn   = errors.New("column collides with a derived column")
)

// Validator checks the shape of an incoming batch before it is transformed.
type Validator struct {
	reserved map[string]bool
}

// NewValidator creates a validator. Reserved names are columns the
// transformer derives and a source may not declare itself.
func NewValidator(reserved ...string) *Validator {
	v := &Validator{reserved: make(map[string]bool, len(reserved))}
	for _, r := range reserved {
		v.reserved[r] = true
	}

	return v
}

// Validate checks that the batch is named, has unique standardised columns
// and that rows carry only declared columns.
func (v *Validator) Validate(batch *models.Batch) error {
	if batch == nil {
		return ErrNilBatch
	}

	if batch.Dataset == "" {
		return ErrMissingDataset
	}

	if len(batch.Columns) == 0 {
		return fmt.Errorf("%w: %s", ErrNoColumns, batch.Dataset)
	}

	declared := make(map[string]bool, len(batch.Columns))
	seen := make(map[string]string, len(batch.Columns))

	for _, col := range batch.Columns {
		std := utils.StandardiseHeader(col)
		if std == "" {
			return fmt.Errorf("%w: %q", ErrBlankColumn, col)
		}

		if prev, ok := seen[std]; ok {
			return fmt.Errorf("%w: %q and %q both become %q", ErrDuplicateColumn, prev, col, std)
		}

		if v.reserved[std] {
			return fmt.Errorf("%w: %q", ErrReservedColumn, col)
		}

		seen[std] = col
		declared[col] = true
	}

	for i, row := range batch.Rows {
		for col := range row {
			if !declared[col] {
				return fmt.Errorf("%w: row %d column %q", ErrUndeclaredColumn, i, col)
			}
		}
	}

	return nil
}
