package overrides

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/logger"
)

// FileStore keeps overrides in <dir>/accept_<id>.txt and <dir>/reject_<id>.txt,
// one integer per line.
type FileStore struct {
	fs            afero.Fs
	dir           string
	skipMalformed bool
	log           logger.Logger
}

// NewFileStore returns a FileStore rooted at dir on fs. With skipMalformed
// unparsable lines are reported as warnings, otherwise Load fails on them.
func NewFileStore(fs afero.Fs, dir string, skipMalformed bool, log logger.Logger) *FileStore {
	if log == nil {
		log = logger.Global().Module("overrides")
	}
	return &FileStore{
		fs:            fs,
		dir:           dir,
		skipMalformed: skipMalformed,
		log:           log.Module("file"),
	}
}

// Path returns the file holding kind overrides for outputID.
func (s *FileStore) Path(outputID string, kind Kind) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.txt", kind, outputID))
}

// Load implements Store. Missing files are empty sets.
func (s *FileStore) Load(ctx context.Context, outputID string) (Set, []error, error) {
	set := NewSet()
	var warnings []error

	for _, kind := range []Kind{KindAccept, KindReject} {
		if err := ctx.Err(); err != nil {
			return Set{}, nil, err
		}

		path := s.Path(outputID, kind)
		data, err := afero.ReadFile(s.fs, path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Set{}, nil, errors.FileError(err, path)
		}

		ids, bad := parseLines(data, path)
		for _, id := range ids {
			set.Add(kind, id)
		}
		if len(bad) > 0 && !s.skipMalformed {
			return Set{}, nil, errors.Join(bad...)
		}
		for _, w := range bad {
			s.log.Warn("skipping malformed override entry", logger.Error(w))
		}
		warnings = append(warnings, bad...)
	}

	s.log.Debug("overrides loaded",
		logger.String("output_id", outputID),
		logger.Int("accepted", len(set.Accepted)),
		logger.Int("rejected", len(set.Rejected)))
	return set, warnings, nil
}

// parseLines reads one non-negative integer per line, ignoring blank lines.
func parseLines(data []byte, path string) (ids []int, bad []error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := strconv.Atoi(line)
		if err != nil || id < 0 {
			bad = append(bad, errors.New(fmt.Errorf("%w: %q", errors.ErrMalformedOverride, line)).
				Component("overrides").
				Category(errors.CategoryOverride).
				Context("path", path).
				Context("line", lineNo).
				Build())
			continue
		}
		ids = append(ids, id)
	}
	return ids, bad
}

// Append implements Store. The directory is created on demand, and a
// newline is inserted first when the file does not end with one.
func (s *FileStore) Append(ctx context.Context, outputID string, kind Kind, ids []int) (err error) {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if kind != KindAccept && kind != KindReject {
		return errors.Newf("unknown override kind %q", kind).
			Component("overrides").
			Category(errors.CategoryValidation).
			Build()
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return errors.FileError(err, s.dir)
	}

	path := s.Path(outputID, kind)
	f, err := s.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errors.FileError(err, path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.FileError(cerr, path)
		}
	}()

	var buf strings.Builder
	needsNewline, err := lacksTrailingNewline(f)
	if err != nil {
		return errors.FileError(err, path)
	}
	if needsNewline {
		buf.WriteByte('\n')
	}
	for _, id := range ids {
		buf.WriteString(strconv.Itoa(id))
		buf.WriteByte('\n')
	}

	if _, err := f.WriteString(buf.String()); err != nil {
		return errors.FileError(err, path)
	}

	s.log.Info("overrides appended",
		logger.String("output_id", outputID),
		logger.String("kind", string(kind)),
		logger.Int("count", len(ids)))
	return nil
}

// lacksTrailingNewline reports whether a non-empty file ends without '\n'.
func lacksTrailingNewline(f afero.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && err != io.EOF {
		return false, err
	}
	return last[0] != '\n', nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}
