// Package conf loads and validates sourcefilter settings.
package conf

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Override store backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// Settings contains all configuration options for sourcefilter.
type Settings struct {
	Debug bool // true to enable debug logging

	Rejection RejectionSettings
	Input     InputSettings
	Output    OutputSettings
	Overrides OverrideSettings
	Logging   logger.LoggingConfig
	Metrics   MetricsSettings
	Sentry    SentrySettings
}

// RejectionSettings tunes aperture photometry and the SNR decision.
type RejectionSettings struct {
	Threshold      float64 // sources with snr <= threshold are rejected
	CenterDistance float64 // gap between source and annulus, degrees
	AnnulusWidth   float64 // background annulus width, degrees
	CutoutScale    float64 // cutout half size as a multiple of the aperture extent
	EllipseScale   float64 // ellipse semi-axes as a multiple of the FWHM
	Workers        int     // photometry goroutines, 0 = GOMAXPROCS
}

// InputSettings names the image and candidate catalog of a run.
type InputSettings struct {
	Image   string // FITS image path
	Catalog string // candidate catalog path, cat_<outputid>.dat
}

// OutputSettings controls where run products are written.
type OutputSettings struct {
	CatalogDir string // filtered catalog and summary directory
	RegionDir  string // region file directory
	Summary    bool   // write the YAML run summary
}

// OverrideSettings selects and tunes the override store.
type OverrideSettings struct {
	Backend       string // file, sqlite or mysql
	Dir           string // directory of accept_/reject_ files for the file backend
	SkipMalformed bool   // skip unparsable override lines instead of failing
	Strict        bool   // abort when an id is both accepted and rejected
	Interactive   bool   // prompt for override tokens after scoring
	SQLite        SQLiteSettings
	MySQL         MySQLSettings
}

// SQLiteSettings contains settings for the SQLite override store.
type SQLiteSettings struct {
	Path string // database file path
}

// MySQLSettings contains settings for the MySQL override store.
type MySQLSettings struct {
	Username string
	Password string
	Host     string
	Port     string
	Database string
}

// MetricsSettings controls the Prometheus textfile export.
type MetricsSettings struct {
	Enabled  bool
	Textfile string // path for prometheus textfile collector output
}

// SentrySettings contains opt-in error reporting settings.
type SentrySettings struct {
	Enabled bool
	DSN     string
	Debug   bool
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configuration from the global viper instance, which carries
// any CLI flags bound by the cmd package.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(viper.GetViper()); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings, err := unmarshalSettings(viper.GetViper())
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// LoadFile reads settings from an explicit config file into a fresh viper instance.
func LoadFile(path string) (*Settings, error) {
	v := viper.New()
	setDefaultConfig(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}
	if err := bindEnvVars(v); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}
	return unmarshalSettings(v)
}

func unmarshalSettings(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// initViper sets defaults and reads config.yaml from the default paths.
// A missing file falls back to the embedded defaults.
func initViper(v *viper.Viper) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	err = v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			GetLogger().Debug("no config file found, using embedded defaults")
			return v.ReadConfig(bytes.NewReader(getDefaultConfig()))
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// getDefaultConfig returns the embedded default config.yaml.
func getDefaultConfig() []byte {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		// embedded at build time, unreachable
		panic(fmt.Sprintf("embedded config.yaml missing: %v", err))
	}
	return data
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// GetDefaultConfigPaths returns the directories searched for config.yaml:
// the working directory, then the per-user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	if runtime.GOOS == "windows" {
		paths = append(paths, filepath.Join(homeDir, "AppData", "Roaming", "sourcefilter"))
	} else {
		paths = append(paths, filepath.Join(homeDir, ".config", "sourcefilter"))
	}
	return paths, nil
}

// WriteDefaultConfig writes the embedded default config.yaml to path, refusing to overwrite.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf("config file %s already exists", path).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.FileError(err, filepath.Dir(path))
	}
	if err := os.WriteFile(path, getDefaultConfig(), 0o644); err != nil {
		return errors.FileError(err, path)
	}
	return nil
}

// SaveYAMLConfig writes settings to configPath, replacing the file atomically.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// MySQLDSN returns the go-sql-driver DSN for the MySQL override store.
func (s *MySQLSettings) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}
