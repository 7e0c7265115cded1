package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
	"SentiCast/internal/services/features"
	applogger "SentiCast/pkg/logger"
)

// DatasetConfig controls labelling.
type DatasetConfig struct {
	NoiseCutoffPercent float64
	Workers            int
}

// DatasetBuilder slides an anchor across each asset's history and labels the next-day move.
type DatasetBuilder struct {
	loader  *features.Loader
	engine  *features.Engine
	cfg     DatasetConfig
	metrics domrepo.Metrics
	now     func() time.Time
	l       *applogger.Logger
}

func NewDatasetBuilder(loader *features.Loader, engine *features.Engine, cfg DatasetConfig, metrics domrepo.Metrics, l *applogger.Logger) *DatasetBuilder {
	return &DatasetBuilder{loader: loader, engine: engine, cfg: cfg, metrics: metrics, now: time.Now, l: l}
}

// Build returns labelled examples for all assets ordered by anchor date.
// Assets with too little history or failing reads contribute nothing.
func (b *DatasetBuilder) Build(ctx context.Context, assets []models.Asset) ([]models.TrainingExample, error) {
	start := time.Now()
	perAsset := make([][]models.TrainingExample, len(assets))
	upTo := b.now()
	lookback := b.engine.Config().NewsLookbackDays()

	failed, err := forEachAsset(ctx, assets, b.cfg.Workers, func(ctx context.Context, i int, a models.Asset) error {
		s, err := b.loader.Load(ctx, a.ID, upTo, lookback)
		if err != nil {
			return err
		}
		perAsset[i] = b.examplesFor(s)
		return nil
	})
	for id, ferr := range failed {
		b.l.Warn("dataset asset failed", applogger.String("asset", id), applogger.Error(ferr))
		b.recordSkip("asset_error")
	}
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}

	var out []models.TrainingExample
	for _, ex := range perAsset {
		out = append(out, ex...)
	}
	sortExamples(out)

	up := 0
	for _, ex := range out {
		up += ex.Target
	}
	b.l.Info("dataset built",
		applogger.Int("assets", len(assets)),
		applogger.Int("examples", len(out)),
		applogger.Int("up", up),
		applogger.Int("down", len(out)-up),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

// examplesFor anchors at every index with a full trailing window and a next day.
func (b *DatasetBuilder) examplesFor(s features.Series) []models.TrainingExample {
	window := b.engine.Config().PriceWindow
	n := len(s.Points)
	if n < window+1 {
		b.l.Warn("asset skipped",
			applogger.String("asset", s.AssetID),
			applogger.Error(models.DataInsufficient(s.AssetID, "%d price points, need %d", n, window+1)))
		b.recordSkip("insufficient_history")
		return nil
	}

	var out []models.TrainingExample
	for i := window; i <= n-2; i++ {
		anchor, next := s.Points[i], s.Points[i+1]
		change, ok := features.PercentChange(anchor.Price, next.Price)
		if !ok {
			b.recordSkip("zero_price")
			continue
		}
		if math.Abs(change) < b.cfg.NoiseCutoffPercent {
			continue
		}
		v, ok := b.engine.ComputeFromSeries(s, anchor.Date)
		if !ok {
			b.recordSkip("absent_features")
			continue
		}
		target := 0
		if change > 0 {
			target = 1
		}
		out = append(out, models.TrainingExample{FeatureVector: v, Target: target, RawChangePercent: change})
	}
	return out
}

func (b *DatasetBuilder) recordSkip(reason string) {
	if b.metrics != nil {
		b.metrics.RecordSkip("dataset", reason)
	}
}

func sortExamples(ex []models.TrainingExample) {
	sort.SliceStable(ex, func(i, j int) bool {
		if !ex[i].AnchorDate.Equal(ex[j].AnchorDate) {
			return ex[i].AnchorDate.Before(ex[j].AnchorDate)
		}
		return ex[i].AssetID < ex[j].AssetID
	})
}

// WriteCSV writes examples with a header row.
func WriteCSV(w io.Writer, examples []models.TrainingExample) error {
	cw := csv.NewWriter(w)
	header := append([]string{"asset_id", "date", "anchor_price", "target", "raw_change_percent"}, models.FeatureNames...)
	if err := cw.Write(header); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, ex := range examples {
		row := []string{
			ex.AssetID,
			ex.AnchorDate.Format(time.DateOnly),
			f(ex.AnchorPrice),
			strconv.Itoa(ex.Target),
			f(ex.RawChangePercent),
		}
		values, err := ex.Select(models.FeatureNames)
		if err != nil {
			return err
		}
		for _, v := range values {
			row = append(row, f(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes examples to path, replacing the file atomically.
func ExportCSV(path string, examples []models.TrainingExample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export dataset: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dataset-*.csv")
	if err != nil {
		return fmt.Errorf("export dataset: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, examples); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("export dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export dataset: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
