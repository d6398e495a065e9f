package overrides

import (
	"github.com/spf13/afero"

	"github.com/tphakala/sourcefilter/internal/conf"
	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/logger"
)

// Open returns the store selected by settings.Backend. The file backend uses fs.
func Open(settings *conf.OverrideSettings, fs afero.Fs, log logger.Logger) (Store, error) {
	switch settings.Backend {
	case conf.BackendFile, "":
		return NewFileStore(fs, settings.Dir, settings.SkipMalformed, log), nil
	case conf.BackendSQLite:
		return OpenSQLite(settings.SQLite.Path, log)
	case conf.BackendMySQL:
		return OpenMySQL(settings.MySQL.MySQLDSN(), log)
	default:
		return nil, errors.Newf("unknown override backend %q", settings.Backend).
			Component("overrides").
			Category(errors.CategoryConfiguration).
			Build()
	}
}
