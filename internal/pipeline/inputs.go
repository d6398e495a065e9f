package pipeline

import (
	"github.com/spf13/afero"

	"github.com/tphakala/sourcefilter/internal/catalog"
	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/fitsimage"
	"github.com/tphakala/sourcefilter/internal/runconfig"
)

// LoadInputs reads the FITS image and detection catalog of a run. When run is
// nil the run configuration is parsed from the catalog file name; this is the
// only place that name is interpreted.
func LoadInputs(fs afero.Fs, imagePath, catalogPath string, run *runconfig.RunConfig) (Inputs, error) {
	if imagePath == "" || catalogPath == "" {
		return Inputs{}, errors.ValidationError("both an image and a catalog path are required")
	}

	var rc runconfig.RunConfig
	if run != nil {
		rc = *run
	} else {
		var err error
		if rc, err = runconfig.FromCatalogPath(catalogPath); err != nil {
			return Inputs{}, err
		}
	}

	table, err := catalog.ReadFile(fs, catalogPath)
	if err != nil {
		return Inputs{}, err
	}
	image, _, err := fitsimage.Load(fs, imagePath)
	if err != nil {
		return Inputs{}, err
	}

	return Inputs{
		Run:         rc,
		Image:       image,
		Catalog:     table,
		CatalogPath: catalogPath,
	}, nil
}
