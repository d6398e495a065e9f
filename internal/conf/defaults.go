// conf/defaults.go default values for settings
package conf

import "github.com/spf13/viper"

// setDefaultConfig registers default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("rejection.threshold", 6.0)
	v.SetDefault("rejection.centerdistance", 1e-5)
	v.SetDefault("rejection.annuluswidth", 1e-5)
	v.SetDefault("rejection.cutoutscale", 2.2)
	v.SetDefault("rejection.ellipsescale", 2.0)
	v.SetDefault("rejection.workers", 0)

	v.SetDefault("input.image", "")
	v.SetDefault("input.catalog", "")

	v.SetDefault("output.catalogdir", "cat")
	v.SetDefault("output.regiondir", "reg")
	v.SetDefault("output.summary", true)

	v.SetDefault("overrides.backend", BackendFile)
	v.SetDefault("overrides.dir", ".override")
	v.SetDefault("overrides.skipmalformed", true)
	v.SetDefault("overrides.strict", false)
	v.SetDefault("overrides.interactive", true)
	v.SetDefault("overrides.sqlite.path", "overrides.db")
	v.SetDefault("overrides.mysql.username", "")
	v.SetDefault("overrides.mysql.password", "")
	v.SetDefault("overrides.mysql.host", "localhost")
	v.SetDefault("overrides.mysql.port", "3306")
	v.SetDefault("overrides.mysql.database", "sourcefilter")

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/sourcefilter.log")
	v.SetDefault("logging.file_output.level", "debug")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile", "")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.debug", false)
}
