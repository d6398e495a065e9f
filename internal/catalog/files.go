package catalog

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/tphakala/sourcefilter/internal/decision"
	"github.com/tphakala/sourcefilter/internal/errors"
)

// Paths locates the artifacts of one run.
type Paths struct {
	Catalog string
	Regions string
	Summary string
}

// OutputPaths derives the artifact paths for outputID. It refuses any layout
// where an artifact would replace the input catalog.
func OutputPaths(catalogDir, regionDir, outputID, inputPath string) (Paths, error) {
	p := Paths{
		Catalog: filepath.Join(catalogDir, fmt.Sprintf("cat_%s_filtered.dat", outputID)),
		Regions: filepath.Join(regionDir, fmt.Sprintf("reg_%s_filtered.reg", outputID)),
		Summary: filepath.Join(catalogDir, fmt.Sprintf("cat_%s_summary.yaml", outputID)),
	}

	in, err := filepath.Abs(inputPath)
	if err != nil {
		return Paths{}, errors.FileError(err, inputPath)
	}
	for _, out := range []string{p.Catalog, p.Regions, p.Summary} {
		abs, err := filepath.Abs(out)
		if err != nil {
			return Paths{}, errors.FileError(err, out)
		}
		if abs == in {
			return Paths{}, errors.Newf("output %s would overwrite the input catalog", out).
				Component("catalog").
				Category(errors.CategoryValidation).
				Context("path", out).
				Build()
		}
	}
	return p, nil
}

// ReadFile loads a table from fs.
func ReadFile(fs afero.Fs, path string) (*Table, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.FileError(err, path)
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// WriteFile writes t to path, creating the parent directory.
func WriteFile(fs afero.Fs, path string, t *Table) error {
	return writeWith(fs, path, func(f afero.File) error {
		return WriteTable(f, t)
	})
}

// WriteRegionFile recreates the region file at path.
func WriteRegionFile(fs afero.Fs, path string, candidates []Candidate, verdicts []decision.Verdict) (int, error) {
	var n int
	err := writeWith(fs, path, func(f afero.File) error {
		var werr error
		n, werr = WriteRegions(f, candidates, verdicts)
		return werr
	})
	return n, err
}

func writeWith(fs afero.Fs, path string, write func(afero.File) error) (err error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.FileError(err, filepath.Dir(path))
	}
	f, err := fs.Create(path)
	if err != nil {
		return errors.FileError(err, path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.FileError(cerr, path)
		}
	}()

	if err := write(f); err != nil {
		return errors.FileError(err, path)
	}
	return nil
}
