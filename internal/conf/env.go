// env.go - environment variable overrides for selected settings
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"rejection.threshold", "SOURCEFILTER_THRESHOLD", validateEnvFloat},
		{"rejection.workers", "SOURCEFILTER_WORKERS", validateEnvNonNegativeInt},
		{"overrides.backend", "SOURCEFILTER_OVERRIDES_BACKEND", nil},
		{"overrides.dir", "SOURCEFILTER_OVERRIDES_DIR", nil},
		{"overrides.mysql.password", "SOURCEFILTER_MYSQL_PASSWORD", nil},
		{"sentry.dsn", "SOURCEFILTER_SENTRY_DSN", nil},
		{"debug", "SOURCEFILTER_DEBUG", validateEnvBool},
	}
}

// bindEnvVars binds environment variables to config keys, collecting invalid values as warnings
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	_, err := strconv.ParseBool(value)
	return err
}

func validateEnvFloat(value string) error {
	_, err := strconv.ParseFloat(value, 64)
	return err
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("must be non-negative")
	}
	return nil
}
