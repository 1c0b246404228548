package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/raphaelgruber/prodscout/internal/models"
)

// DefaultSheetName names the sheet created when none is configured.
const DefaultSheetName = "Product Research"

// CSVSheet appends records to CSV files kept in one directory. A destination
// ID is a sheet name relative to that directory.
//
// The header row is written once, when the file is empty. Rows whose
// product_id is already in the file are skipped, so exporting the same
// selection twice leaves the sheet unchanged.
type CSVSheet struct {
	mu          sync.Mutex
	dir         string
	defaultName string
	logger      *slog.Logger
}

// ErrInvalidDestination is returned for destination IDs that do not name a
// .csv sheet inside the sheet directory.
var ErrInvalidDestination = errors.New("invalid destination")

// NewCSVSheet creates an exporter rooted at the directory of defaultPath.
// PickOrCreateDestination resolves to defaultPath, or to
// "<DefaultSheetName>.csv" in the working directory when it is empty.
func NewCSVSheet(defaultPath string, logger *slog.Logger) *CSVSheet {
	if defaultPath == "" {
		defaultPath = strings.ReplaceAll(strings.ToLower(DefaultSheetName), " ", "_") + ".csv"
	}
	if abs, err := filepath.Abs(defaultPath); err == nil {
		defaultPath = abs
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVSheet{
		dir:         filepath.Dir(defaultPath),
		defaultName: filepath.Base(defaultPath),
		logger:      logger,
	}
}

// Path resolves a destination ID to a file inside the sheet directory.
// Absolute paths, ".." segments and names without a .csv extension are
// rejected.
func (s *CSVSheet) Path(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: sheet name required", ErrInvalidDestination)
	}
	if filepath.IsAbs(id) || strings.HasPrefix(id, "/") || strings.HasPrefix(id, `\`) {
		return "", fmt.Errorf("%w: %q must be relative to the sheet directory", ErrInvalidDestination, id)
	}
	for _, seg := range strings.FieldsFunc(id, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q leaves the sheet directory", ErrInvalidDestination, id)
		}
	}
	if !strings.EqualFold(filepath.Ext(id), ".csv") {
		return "", fmt.Errorf("%w: %q is not a .csv sheet", ErrInvalidDestination, id)
	}
	path := filepath.Join(s.dir, filepath.FromSlash(id))
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q leaves the sheet directory", ErrInvalidDestination, id)
	}
	return path, nil
}

// PickOrCreateDestination returns the default sheet, creating an empty file
// if it does not exist yet.
func (s *CSVSheet) PickOrCreateDestination(_ context.Context) (models.Destination, error) {
	path, err := s.Path(s.defaultName)
	if err != nil {
		return models.Destination{}, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return models.Destination{}, fmt.Errorf("create sheet dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return models.Destination{}, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.Close(); err != nil {
		return models.Destination{}, err
	}
	return models.Destination{ID: s.defaultName, Name: s.defaultName}, nil
}

// ExportRecords appends records to the sheet named by dest.ID.
func (s *CSVSheet) ExportRecords(ctx context.Context, dest models.Destination, records []models.ProductRecord) error {
	path, err := s.Path(dest.ID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sheet dir: %w", err)
	}
	existing, err := readIDs(path)
	if err != nil {
		return fmt.Errorf("read sheet: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open sheet: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat sheet: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			f.Close()
			return fmt.Errorf("write header: %w", err)
		}
	}

	written := 0
	for _, rec := range records {
		if _, ok := existing[rec.ProductID]; ok {
			continue
		}
		existing[rec.ProductID] = struct{}{}
		if err := w.Write(Flatten(rec)); err != nil {
			f.Close()
			return fmt.Errorf("write row %s: %w", rec.ProductID, err)
		}
		written++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	s.logger.Info("sheet updated", "path", path, "rows", written, "skipped", len(records)-written)
	return nil
}

// readIDs collects the product_id column of an existing sheet.
func readIDs(path string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return ids, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == Header[0] {
				continue
			}
		}
		if len(row) > 0 {
			ids[row[0]] = struct{}{}
		}
	}
	return ids, nil
}

// WriteCSV writes a complete sheet (header plus one row per record) to w.
func WriteCSV(w io.Writer, records []models.ProductRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write(Flatten(rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
