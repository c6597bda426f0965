// Package batch loads source files named by a YAML manifest into batches.
package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"firestats/internal/fiscal"
	"firestats/internal/mdm"
)

// Supported source formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Manifest errors.
var (
	ErrNoSources         = errors.New("manifest lists no sources")
	ErrMissingDataset    = errors.New("source requires a dataset name")
	ErrMissingPath       = errors.New("source requires a path")
	ErrUnsupportedFormat = errors.New("unsupported source format")
	ErrDuplicateDataset  = errors.New("dataset listed twice")
)

// Source is one file feeding one dataset.
type Source struct {
	Dataset string `yaml:"dataset"`
	Path    string `yaml:"path"`
	// Format defaults to the file extension.
	Format string `yaml:"format"`
	// Sheets overrides workbook sheet selection.
	Sheets []string `yaml:"sheets"`
	Period string   `yaml:"period"`
}

// Manifest lists the sources and snapshot files of one run.
type Manifest struct {
	Sources   []Source `yaml:"sources"`
	Snapshots []string `yaml:"snapshots"`

	dir string
}

// LoadManifest reads a manifest. Relative paths resolve against its directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	m.dir = filepath.Dir(path)

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks every source.
func (m *Manifest) Validate() error {
	if len(m.Sources) == 0 {
		return ErrNoSources
	}

	seen := make(map[string]bool, len(m.Sources))

	for i := range m.Sources {
		s := &m.Sources[i]

		if s.Dataset == "" {
			return fmt.Errorf("%w: sources[%d]", ErrMissingDataset, i)
		}

		if s.Path == "" {
			return fmt.Errorf("%w: %s", ErrMissingPath, s.Dataset)
		}

		if seen[s.Dataset] {
			return fmt.Errorf("%w: %s", ErrDuplicateDataset, s.Dataset)
		}

		seen[s.Dataset] = true

		if s.Format == "" {
			s.Format = formatFromPath(s.Path)
		}

		if s.Format != FormatCSV && s.Format != FormatXLSX {
			return fmt.Errorf("%w: %s (%q)", ErrUnsupportedFormat, s.Dataset, s.Format)
		}
	}

	return nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
}

// Resolve returns a path relative to the manifest directory.
func (m *Manifest) Resolve(path string) string {
	if filepath.IsAbs(path) || m.dir == "" {
		return path
	}

	return filepath.Join(m.dir, path)
}

// snapshotEntry is one historical sighting in a snapshot file.
type snapshotEntry struct {
	Code    string `yaml:"code"`
	Name    string `yaml:"name"`
	Year    string `yaml:"year"`
	Dataset string `yaml:"dataset"`
}

// LoadSnapshots reads a YAML list of historical entity sightings.
// Entries without a parseable year stay yearless.
func LoadSnapshots(path string) ([]mdm.Observation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}

	var entries []snapshotEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse snapshots: %w", err)
	}

	out := make([]mdm.Observation, 0, len(entries))

	for _, e := range entries {
		obs := mdm.Observation{Code: e.Code, Name: e.Name, Dataset: e.Dataset}
		if obs.Dataset == "" {
			obs.Dataset = filepath.Base(path)
		}

		if y, err := fiscal.ParseLabel(e.Year); err == nil {
			obs.Year = y
		}

		out = append(out, obs)
	}

	return out, nil
}
