package overrides

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/logger"
)

// Entry is one persisted override row. Rows are never updated or deleted.
type Entry struct {
	ID        uint      `gorm:"primaryKey"`
	OutputID  string    `gorm:"size:255;not null;index:idx_override_output"`
	Kind      string    `gorm:"size:16;not null"`
	SourceID  int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName overrides the gorm default.
func (Entry) TableName() string {
	return "override_entries"
}

// DBStore keeps overrides in a SQL table through gorm.
//
// Unlike the file layout, rows are ordered, so an id recorded under both kinds
// resolves to its most recent entry and never surfaces as a conflict.
type DBStore struct {
	db  *gorm.DB
	log logger.Logger
}

// slowQueryThreshold is the duration above which statements are logged as slow.
const slowQueryThreshold = 200 * time.Millisecond

// OpenSQLite opens (creating if needed) an SQLite override database at path.
func OpenSQLite(path string, log logger.Logger) (*DBStore, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.FileError(err, dir)
		}
	}
	return openDB(sqlite.Open(path), "sqlite", log)
}

// OpenMySQL connects to a MySQL override database.
func OpenMySQL(dsn string, log logger.Logger) (*DBStore, error) {
	return openDB(mysql.Open(dsn), "mysql", log)
}

func openDB(dialector gorm.Dialector, backend string, log logger.Logger) (*DBStore, error) {
	if log == nil {
		log = logger.Global().Module("overrides")
	}
	dbLog := log.Module(backend)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(dbLog, slowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open %s override store: %w", backend, err)).
			Component("overrides").
			Category(errors.CategoryDatabase).
			Context("backend", backend).
			Build()
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, errors.New(fmt.Errorf("failed to migrate override table: %w", err)).
			Component("overrides").
			Category(errors.CategoryDatabase).
			Context("backend", backend).
			Build()
	}

	dbLog.Debug("override store ready")
	return &DBStore{db: db, log: dbLog}, nil
}

// Load implements Store. Entries with an unknown kind are reported as
// malformed warnings and skipped.
func (s *DBStore) Load(ctx context.Context, outputID string) (Set, []error, error) {
	var entries []Entry
	err := s.db.WithContext(ctx).
		Where("output_id = ?", outputID).
		Order("id").
		Find(&entries).Error
	if err != nil {
		return Set{}, nil, errors.New(err).
			Component("overrides").
			Category(errors.CategoryDatabase).
			Context("operation", "load_overrides").
			Build()
	}

	latest := make(map[int]Kind)
	var warnings []error
	for i := range entries {
		kind, err := ParseKind(entries[i].Kind)
		if err != nil {
			w := errors.New(fmt.Errorf("%w: %w", errors.ErrMalformedOverride, err)).
				Component("overrides").
				Category(errors.CategoryOverride).
				Context("entry_id", entries[i].ID).
				Build()
			s.log.Warn("skipping malformed override entry", logger.Error(w))
			warnings = append(warnings, w)
			continue
		}
		latest[entries[i].SourceID] = kind
	}

	set := NewSet()
	for id, kind := range latest {
		set.Add(kind, id)
	}
	return set, warnings, nil
}

// Append implements Store. All ids are inserted in one transaction.
func (s *DBStore) Append(ctx context.Context, outputID string, kind Kind, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	if kind != KindAccept && kind != KindReject {
		return errors.Newf("unknown override kind %q", kind).
			Component("overrides").
			Category(errors.CategoryValidation).
			Build()
	}

	now := time.Now().UTC()
	entries := make([]Entry, len(ids))
	for i, id := range ids {
		entries[i] = Entry{OutputID: outputID, Kind: string(kind), SourceID: id, CreatedAt: now}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&entries).Error
	})
	if err != nil {
		return errors.New(err).
			Component("overrides").
			Category(errors.CategoryDatabase).
			Context("operation", "append_overrides").
			Build()
	}

	s.log.Info("overrides appended",
		logger.String("output_id", outputID),
		logger.String("kind", string(kind)),
		logger.Int("count", len(ids)))
	return nil
}

// Close closes the underlying connection pool.
func (s *DBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
