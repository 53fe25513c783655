package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
	drepo "github.com/jam2205/TradingView-Screener/internal/domain/repository"
	applogger "github.com/jam2205/TradingView-Screener/pkg/logger"
	"github.com/jam2205/TradingView-Screener/pkg/util"
)

// FileStore persists snapshots as one CSV file per collection under a data
// directory, named "<dataset>_<stamp>.csv". The stamp in the file name is
// the source of truth for listing and range loading.
type FileStore struct {
	dir    string
	logger *applogger.Logger
}

func NewFileStore(dir string, logger *applogger.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: data directory is required", drepo.ErrInvalidConfig)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) Save(_ context.Context, snap *models.Snapshot) (string, error) {
	name := fmt.Sprintf("%s_%s.csv", snap.Dataset, util.FormatStamp(snap.CollectedAt))
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(snap.Columns); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(snap.Columns))
	for _, row := range snap.Rows {
		for i := range record {
			if i < len(row) {
				record[i] = formatCell(row[i])
				continue
			}
			record[i] = ""
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush %s: %w", path, err)
	}

	s.logger.Debug("snapshot written",
		applogger.String("path", path),
		applogger.Int("rows", snap.NumRows()),
	)
	return path, nil
}

func (s *FileStore) List(_ context.Context, dataset string) ([]time.Time, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, dataset+"_*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dataset, err)
	}
	stamps := make([]time.Time, 0, len(files))
	for _, f := range files {
		if t, ok := stampFromPath(f, dataset); ok {
			stamps = append(stamps, t)
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	return stamps, nil
}

func (s *FileStore) Load(ctx context.Context, dataset string, start, end time.Time) ([]*models.Snapshot, error) {
	stamps, err := s.List(ctx, dataset)
	if err != nil {
		return nil, err
	}
	var out []*models.Snapshot
	for _, t := range stamps {
		if !start.IsZero() && t.Before(start) {
			continue
		}
		if !end.IsZero() && t.After(end) {
			continue
		}
		name := fmt.Sprintf("%s_%s.csv", dataset, util.FormatStamp(t))
		snap, err := s.readFile(filepath.Join(s.dir, name), dataset, t)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) readFile(path, dataset string, collectedAt time.Time) (*models.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read %s: missing header", path)
	}

	snap := &models.Snapshot{
		Dataset:     dataset,
		CollectedAt: collectedAt,
		Columns:     records[0],
		Rows:        make([][]any, 0, len(records)-1),
	}
	for _, rec := range records[1:] {
		row := make([]any, len(rec))
		for i, cell := range rec {
			row[i] = parseCell(cell)
		}
		snap.Rows = append(snap.Rows, row)
	}
	snap.TotalCount = snap.NumRows()
	return snap, nil
}

func stampFromPath(path, dataset string) (time.Time, bool) {
	base := strings.TrimSuffix(filepath.Base(path), ".csv")
	return util.ParseStamp(strings.TrimPrefix(base, dataset+"_"))
}

// formatCell renders a snapshot cell for CSV. Nil cells become empty fields.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// parseCell restores a CSV field: empty becomes nil, numbers become float64,
// the rest stay strings. The numeric round trip means a loaded snapshot is
// usable by feature transforms even though CSV is untyped.
func parseCell(s string) any {
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

var _ drepo.SnapshotStore = (*FileStore)(nil)
