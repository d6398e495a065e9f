package observability

import "github.com/tphakala/sourcefilter/internal/logger"

// getLogger returns the metrics module logger. It is fetched on each call so
// it follows the central logger once it is installed.
func getLogger() logger.Logger {
	return logger.Global().Module("metrics")
}
