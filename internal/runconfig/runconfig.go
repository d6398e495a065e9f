// Package runconfig holds the detection parameters that key every artifact of
// a rejection run.
package runconfig

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tphakala/sourcefilter/internal/catalog"
	"github.com/tphakala/sourcefilter/internal/errors"
)

// RunConfig identifies the detection run a catalog came from.
type RunConfig struct {
	Region   string
	Band     int
	MinValue float64
	MinDelta float64
	MinNpix  int
}

// Validate checks that the record can be rendered as an output id.
func (rc RunConfig) Validate() error {
	switch {
	case rc.Region == "":
		return errors.ValidationError("region must not be empty")
	case strings.ContainsAny(rc.Region, `/\ `):
		return errors.ValidationError(fmt.Sprintf("region %q contains path or space characters", rc.Region))
	case rc.Band < 0:
		return errors.ValidationError(fmt.Sprintf("band %d must be non-negative", rc.Band))
	case rc.MinNpix < 0:
		return errors.ValidationError(fmt.Sprintf("min npix %d must be non-negative", rc.MinNpix))
	}
	return nil
}

// OutputID renders the key shared by the catalog, region and override
// artifacts: region{R}_band{B}_val{V}_delt{D}_pix{P}.
func (rc RunConfig) OutputID() string {
	return fmt.Sprintf("region%s_band%d_val%s_delt%s_pix%d",
		rc.Region, rc.Band,
		catalog.FormatFloat(rc.MinValue), catalog.FormatFloat(rc.MinDelta),
		rc.MinNpix)
}

// CatalogName returns the detection catalog file name for rc.
func (rc RunConfig) CatalogName() string {
	return "cat_" + rc.OutputID() + ".dat"
}

var outputIDPattern = regexp.MustCompile(`^region(.+?)_band(\d+)_val([^_]+)_delt([^_]+)_pix(\d+)$`)

// ParseOutputID reverses OutputID. Only canonical ids are accepted so that
// every artifact of a run shares one key.
func ParseOutputID(id string) (RunConfig, error) {
	m := outputIDPattern.FindStringSubmatch(id)
	if m == nil {
		return RunConfig{}, parseError(id, "does not match region{R}_band{B}_val{V}_delt{D}_pix{P}")
	}

	var rc RunConfig
	var err error
	rc.Region = m[1]
	if rc.Band, err = strconv.Atoi(m[2]); err != nil {
		return RunConfig{}, parseError(id, "band out of range")
	}
	if rc.MinValue, err = strconv.ParseFloat(m[3], 64); err != nil {
		return RunConfig{}, parseError(id, "min value is not a number")
	}
	if rc.MinDelta, err = strconv.ParseFloat(m[4], 64); err != nil {
		return RunConfig{}, parseError(id, "min delta is not a number")
	}
	if rc.MinNpix, err = strconv.Atoi(m[5]); err != nil {
		return RunConfig{}, parseError(id, "min npix out of range")
	}

	if err := rc.Validate(); err != nil {
		return RunConfig{}, err
	}
	if canonical := rc.OutputID(); canonical != id {
		return RunConfig{}, parseError(id, fmt.Sprintf("not canonical, expected %q", canonical))
	}
	return rc, nil
}

// FromCatalogPath parses the detection catalog name cat_<id>.dat.
func FromCatalogPath(path string) (RunConfig, error) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "cat_") || !strings.HasSuffix(base, ".dat") {
		return RunConfig{}, parseError(base, "catalog name must look like cat_<id>.dat")
	}
	return ParseOutputID(strings.TrimSuffix(strings.TrimPrefix(base, "cat_"), ".dat"))
}

func parseError(id, reason string) error {
	return errors.Newf("invalid output id %q: %s", id, reason).
		Component("runconfig").
		Category(errors.CategoryValidation).
		Build()
}
