// Package buildinfo carries build-time metadata, kept apart from user configuration
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// UnknownValue is reported for metadata the build did not inject.
const UnknownValue = "unknown"

// Context holds version metadata injected with -ldflags at build time.
type Context struct {
	version   string
	buildDate string
}

// NewContext returns build metadata; empty values read as UnknownValue.
func NewContext(version, buildDate string) *Context {
	return &Context{version: version, buildDate: buildDate}
}

// Version returns the release version. Binaries built as "dev" report the
// module version recorded by the go toolchain when there is one.
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	if c.version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return c.version
}

// BuildDate returns the build timestamp.
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// String renders the version line shown by --version.
func (c *Context) String() string {
	return fmt.Sprintf("%s (built %s)", c.Version(), c.BuildDate())
}

// Release is the Sentry release name.
func (c *Context) Release() string {
	return "sourcefilter@" + c.Version()
}
