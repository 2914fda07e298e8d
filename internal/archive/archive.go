// Package archive keeps a local copy of each run's snapshot as JSON and
// parquet files.
package archive

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
)

const (
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

// StoreRow is the parquet layout of one store-level record.
type StoreRow struct {
	SnapshotDate     string  `parquet:"snapshot_date"`
	OriginalURL      string  `parquet:"original_url"`
	ExperienceCenter int64   `parquet:"experience_center"`
	Region           string  `parquet:"region"`
	TotalReviews     int64   `parquet:"total_reviews"`
	VisibleRating    float64 `parquet:"visible_rating"`
}

// KPIRow is the parquet layout of one segment aggregate.
type KPIRow struct {
	SnapshotDate  string  `parquet:"snapshot_date"`
	Segment       string  `parquet:"segment"`
	TotalReviews  int64   `parquet:"total_reviews"`
	VisibleRating float64 `parquet:"visible_rating"`
	StoreCount    int64   `parquet:"store_count"`
	Rating49Plus  int64   `parquet:"rating_49_plus"`
	Rating4To49   int64   `parquet:"rating_4_to_49"`
	RatingBelow4  int64   `parquet:"rating_below_4"`
}

// Archiver writes snapshots into Dir. A rerun on the same date replaces
// that date's files.
type Archiver struct {
	Dir     string
	Formats []string
}

// New returns an Archiver; an empty formats list means JSON only.
func New(dir string, formats []string) *Archiver {
	if len(formats) == 0 {
		formats = []string{FormatJSON}
	}
	return &Archiver{Dir: dir, Formats: formats}
}

// Save writes the snapshot in every configured format and returns the paths.
func (a *Archiver) Save(snapshot model.Snapshot) ([]string, error) {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "archive: create %s", a.Dir)
	}

	date := snapshot.Date()
	var paths []string
	for _, format := range a.Formats {
		switch format {
		case FormatJSON:
			p := filepath.Join(a.Dir, "snapshot_"+date+".json")
			if err := writeJSON(p, snapshot); err != nil {
				return paths, err
			}
			paths = append(paths, p)
		case FormatParquet:
			sp := filepath.Join(a.Dir, "store_data_"+date+".parquet")
			if err := writeParquet(sp, storeRows(snapshot)); err != nil {
				return paths, err
			}
			kp := filepath.Join(a.Dir, "kpi_data_"+date+".parquet")
			if err := writeParquet(kp, kpiRows(snapshot)); err != nil {
				return paths, err
			}
			paths = append(paths, sp, kp)
		default:
			return paths, eris.Errorf("archive: unknown format %q", format)
		}
	}

	zap.L().Info("archive: snapshot saved", zap.String("date", date), zap.Strings("paths", paths))
	return paths, nil
}

func writeJSON(path string, snapshot model.Snapshot) error {
	b, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return eris.Wrap(err, "archive: marshal snapshot")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return eris.Wrapf(err, "archive: write %s", path)
	}
	return nil
}

func writeParquet[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "archive: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := parquet.NewGenericWriter[T](f)
	if _, err := w.Write(rows); err != nil {
		return eris.Wrapf(err, "archive: write %s", path)
	}
	if err := w.Close(); err != nil {
		return eris.Wrapf(err, "archive: close %s", path)
	}
	return nil
}

func storeRows(s model.Snapshot) []StoreRow {
	date := s.Date()
	rows := make([]StoreRow, 0, len(s.StoreLevelData))
	for _, r := range s.StoreLevelData {
		rows = append(rows, StoreRow{
			SnapshotDate:     date,
			OriginalURL:      r.Store.URL,
			ExperienceCenter: int64(r.Store.ExperienceCenter),
			Region:           string(r.Store.Region),
			TotalReviews:     int64(r.TotalReviews),
			VisibleRating:    r.VisibleRating,
		})
	}
	return rows
}

func kpiRows(s model.Snapshot) []KPIRow {
	rows := make([]KPIRow, 0, len(s.AggregatedKPIData))
	for _, k := range s.AggregatedKPIData {
		rows = append(rows, KPIRow{
			SnapshotDate:  k.SnapshotDate,
			Segment:       k.Segment,
			TotalReviews:  int64(k.TotalReviews),
			VisibleRating: k.VisibleRating,
			StoreCount:    int64(k.StoreCount),
			Rating49Plus:  int64(k.Rating49Plus),
			Rating4To49:   int64(k.Rating4To49),
			RatingBelow4:  int64(k.RatingBelow4),
		})
	}
	return rows
}
