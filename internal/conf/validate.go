// conf/validate.go

package conf

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateRejectionSettings(&settings.Rejection); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOverrideSettings(&settings.Overrides); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Metrics.Enabled && settings.Metrics.Textfile == "" {
		ve.Errors = append(ve.Errors, "metrics.textfile must be set when metrics are enabled")
	}

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn must be set when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateRejectionSettings(s *RejectionSettings) error {
	var problems []string

	if math.IsNaN(s.Threshold) || math.IsInf(s.Threshold, 0) {
		problems = append(problems, "threshold must be finite")
	}
	if s.CenterDistance < 0 {
		problems = append(problems, "centerdistance must be non-negative")
	}
	if s.AnnulusWidth <= 0 {
		problems = append(problems, "annuluswidth must be positive")
	}
	if s.CutoutScale < 1 {
		problems = append(problems, "cutoutscale must be at least 1")
	}
	if s.EllipseScale <= 0 {
		problems = append(problems, "ellipsescale must be positive")
	}
	if s.Workers < 0 {
		problems = append(problems, "workers must be non-negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("rejection settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validateOutputSettings(s *OutputSettings) error {
	if s.CatalogDir == "" {
		return fmt.Errorf("output.catalogdir must not be empty")
	}
	if s.RegionDir == "" {
		return fmt.Errorf("output.regiondir must not be empty")
	}
	return nil
}

func validateOverrideSettings(s *OverrideSettings) error {
	backends := []string{BackendFile, BackendSQLite, BackendMySQL}
	if !slices.Contains(backends, s.Backend) {
		return fmt.Errorf("overrides.backend %q is not one of %v", s.Backend, backends)
	}

	switch s.Backend {
	case BackendFile:
		if s.Dir == "" {
			return fmt.Errorf("overrides.dir must not be empty for the file backend")
		}
	case BackendSQLite:
		if s.SQLite.Path == "" {
			return fmt.Errorf("overrides.sqlite.path must not be empty")
		}
	case BackendMySQL:
		if s.MySQL.Host == "" || s.MySQL.Database == "" {
			return fmt.Errorf("overrides.mysql host and database must be set")
		}
	}
	return nil
}
