package pipeline

import (
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/sourcefilter/internal/errors"
)

// Summary is the YAML record written next to the filtered catalog.
type Summary struct {
	RunID            string    `yaml:"run_id"`
	OutputID         string    `yaml:"output_id"`
	StartedAt        time.Time `yaml:"started_at"`
	Duration         string    `yaml:"duration"`
	Threshold        float64   `yaml:"threshold"`
	Candidates       int       `yaml:"candidates"`
	Accepted         int       `yaml:"accepted"`
	Rejected         int       `yaml:"rejected"`
	Unevaluable      int       `yaml:"unevaluable"`
	Conflicts        int       `yaml:"conflicts"`
	PersistedApplied int       `yaml:"persisted_overrides_applied"`
	SubmittedApplied int       `yaml:"submitted_overrides_applied"`
	UnknownOverrides []string  `yaml:"unknown_overrides,omitempty"`
	SkippedOverrides []string  `yaml:"skipped_overrides,omitempty"`
	// Reversals contradict a persisted entry; the id ends up in both sets.
	Reversals        []string  `yaml:"reversed_overrides,omitempty"`
	OverrideWarnings int       `yaml:"override_warnings"`
	CatalogPath      string    `yaml:"catalog"`
	RegionPath       string    `yaml:"regions"`
	RegionsWritten   int       `yaml:"regions_written"`
}

func writeSummary(fs afero.Fs, path string, s *Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.New(err).
			Component("pipeline").
			Category(errors.CategoryGeneric).
			Build()
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.FileError(err, filepath.Dir(path))
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return errors.FileError(err, path)
	}
	return nil
}

// ReadSummary loads a summary written by a previous run.
func ReadSummary(fs afero.Fs, path string) (*Summary, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.FileError(err, path)
	}
	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.New(err).
			Component("pipeline").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	return &s, nil
}
