package usecase

import (
	"context"
	"fmt"
	"time"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
	"SentiCast/internal/services/analytics"
	"SentiCast/internal/services/features"
	applogger "SentiCast/pkg/logger"
)

// ScanResult summarizes an anomaly scan.
type ScanResult struct {
	Assets  int `json:"assets"`
	Events  int `json:"events"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// AnomalyScanner runs the detector over stored history and upserts its events.
type AnomalyScanner struct {
	loader    *features.Loader
	detector  *analytics.AnomalyDetector
	sink      domrepo.AnomalySink
	publisher domrepo.EventPublisher
	metrics   domrepo.Metrics
	workers   int
	now       func() time.Time
	l         *applogger.Logger
}

func NewAnomalyScanner(loader *features.Loader, detector *analytics.AnomalyDetector, sink domrepo.AnomalySink, publisher domrepo.EventPublisher, metrics domrepo.Metrics, workers int, l *applogger.Logger) *AnomalyScanner {
	return &AnomalyScanner{loader: loader, detector: detector, sink: sink, publisher: publisher, metrics: metrics, workers: workers, now: time.Now, l: l}
}

// Scan upserts anomaly events for one asset. Newly created events are published.
func (s *AnomalyScanner) Scan(ctx context.Context, assetID string, thresholdPercent float64) (ScanResult, error) {
	res := ScanResult{Assets: 1}
	series, err := s.loader.Load(ctx, assetID, s.now(), s.detector.NewsLookbackDays())
	if err != nil {
		return res, err
	}
	if len(series.Points) == 0 {
		s.l.Warn("scan skipped", applogger.Error(models.DataInsufficient(assetID, "empty price history")))
		return res, nil
	}
	events, err := s.detector.Detect(series, thresholdPercent)
	if err != nil {
		return res, err
	}
	for _, e := range events {
		created, err := s.sink.UpsertAnomalyEvent(ctx, e)
		if err != nil {
			return res, fmt.Errorf("upsert anomaly %s %s: %w", assetID, e.Date.Format(time.DateOnly), err)
		}
		res.Events++
		if !created {
			res.Updated++
			continue
		}
		res.Created++
		if s.publisher != nil {
			if err := s.publisher.PublishAnomaly(ctx, e); err != nil {
				s.l.Warn("publish anomaly", applogger.String("asset", assetID), applogger.Error(err))
			}
		}
	}
	return res, nil
}

// ScanAll scans every asset on the worker pool.
func (s *AnomalyScanner) ScanAll(ctx context.Context, assets []models.Asset, thresholdPercent float64) (ScanResult, error) {
	perAsset := make([]ScanResult, len(assets))
	failed, err := forEachAsset(ctx, assets, s.workers, func(ctx context.Context, i int, a models.Asset) error {
		r, err := s.Scan(ctx, a.ID, thresholdPercent)
		perAsset[i] = r
		return err
	})
	for id, ferr := range failed {
		s.l.Error("scan failed", applogger.String("asset", id), applogger.Error(ferr))
	}

	total := ScanResult{Assets: len(assets), Failed: len(failed)}
	for _, r := range perAsset {
		total.Events += r.Events
		total.Created += r.Created
		total.Updated += r.Updated
	}
	if s.metrics != nil {
		s.metrics.RecordRecords("anomaly", total.Created, total.Updated)
	}
	s.l.Info("anomaly scan done",
		applogger.Float64("threshold_percent", thresholdPercent),
		applogger.Int("assets", total.Assets),
		applogger.Int("events", total.Events),
		applogger.Int("created", total.Created),
		applogger.Int("updated", total.Updated),
		applogger.Int("failed", total.Failed))
	return total, err
}
