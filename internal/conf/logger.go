package conf

import "github.com/tphakala/sourcefilter/internal/logger"

// GetLogger returns the config package logger scoped to the config module.
// Fetched on each call so it follows the central logger once it is installed.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
