package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"firestats/internal/integrity"
	"firestats/internal/models"
	"firestats/pkg/lineage"
)

// JSONWriter writes one JSON file per table into a directory.
type JSONWriter struct {
	dir    string
	pretty bool
}

// NewJSONWriter creates the output directory if needed.
func NewJSONWriter(dir string, pretty bool) (*JSONWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &JSONWriter{dir: dir, pretty: pretty}, nil
}

// Path returns the file a table is written to.
func (w *JSONWriter) Path(name string) string {
	return filepath.Join(w.dir, name+".json")
}

func (w *JSONWriter) write(name string, v any) error {
	var (
		data []byte
		err  error
	)

	if w.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	if err := os.WriteFile(w.Path(name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	return nil
}

// WriteTables writes every table, stopping at the first error or when ctx is done.
func (w *JSONWriter) WriteTables(ctx context.Context, tables []models.Table) error {
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := w.write(t.Name, t); err != nil {
			return err
		}
	}

	return nil
}

// WriteReport writes report.json and lineage.json.
func (w *JSONWriter) WriteReport(ctx context.Context, report *integrity.Report, stamps []lineage.Stamp) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := w.write("report", report); err != nil {
		return err
	}

	return w.write(LineageTable, stamps)
}

// WriteDocument writes a text artefact such as the rendered report.
func (w *JSONWriter) WriteDocument(name, content string) error {
	if err := os.WriteFile(filepath.Join(w.dir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	return nil
}

// Close is a no-op.
func (w *JSONWriter) Close() error {
	return nil
}
