package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
	"SentiCast/internal/domain/service"
	"SentiCast/internal/services/ml"
	applogger "SentiCast/pkg/logger"
)

type PredictionConfig struct {
	// MoveScalePercent maps confidence to an estimated move: ±scale×confidence.
	MoveScalePercent float64
	Workers          int
}

// PredictionResult counts per-asset outcomes of one batch.
type PredictionResult struct {
	ModelVersion string `json:"model_version"`
	Created      int    `json:"created"`
	Updated      int    `json:"updated"`
	Skipped      int    `json:"skipped"`
	Failed       int    `json:"failed"`
}

// PredictionService turns live feature vectors into upserted direction predictions.
type PredictionService struct {
	engine    service.FeatureEngine
	sink      domrepo.PredictionSink
	publisher domrepo.EventPublisher
	metrics   domrepo.Metrics
	cfg       PredictionConfig
	now       func() time.Time
	l         *applogger.Logger
}

// NewPredictionService creates the service. publisher and metrics may be nil.
func NewPredictionService(engine service.FeatureEngine, sink domrepo.PredictionSink, publisher domrepo.EventPublisher, metrics domrepo.Metrics, cfg PredictionConfig, l *applogger.Logger) *PredictionService {
	return &PredictionService{engine: engine, sink: sink, publisher: publisher, metrics: metrics, cfg: cfg, now: time.Now, l: l}
}

// PredictAll predicts every asset for day using artifact. A nil artifact is an
// ArtifactMissing error; per-asset problems are counted and logged.
func (s *PredictionService) PredictAll(ctx context.Context, assets []models.Asset, artifact *ml.Artifact, day time.Time) (PredictionResult, error) {
	if artifact == nil {
		return PredictionResult{}, models.ArtifactMissing("prediction requires a trained artifact", nil)
	}
	day = models.Day(day)
	var created, updated, skipped int64

	failed, err := forEachAsset(ctx, assets, s.cfg.Workers, func(ctx context.Context, _ int, a models.Asset) error {
		v, ok, err := s.engine.Compute(ctx, a.ID, day)
		if err != nil {
			return err
		}
		if !ok {
			atomic.AddInt64(&skipped, 1)
			s.l.Warn("prediction skipped",
				applogger.String("asset", a.ID),
				applogger.Error(models.DataInsufficient(a.ID, "no full price window on %s", day.Format(time.DateOnly))))
			if s.metrics != nil {
				s.metrics.RecordSkip("prediction", "insufficient_history")
			}
			return nil
		}

		p, err := s.Predict(v, artifact, day)
		if err != nil {
			return err
		}
		isNew, err := s.sink.UpsertDirectionPrediction(ctx, p)
		if err != nil {
			return err
		}
		if isNew {
			atomic.AddInt64(&created, 1)
		} else {
			atomic.AddInt64(&updated, 1)
		}
		if s.publisher != nil {
			if err := s.publisher.PublishPrediction(ctx, p); err != nil {
				s.l.Warn("publish prediction", applogger.String("asset", a.ID), applogger.Error(err))
			}
		}
		return nil
	})
	for id, ferr := range failed {
		s.l.Error("prediction failed", applogger.String("asset", id), applogger.Error(ferr))
	}

	res := PredictionResult{
		ModelVersion: artifact.Version,
		Created:      int(created),
		Updated:      int(updated),
		Skipped:      int(skipped),
		Failed:       len(failed),
	}
	if s.metrics != nil {
		s.metrics.RecordRecords("prediction", res.Created, res.Updated)
	}
	s.l.Info("predictions done",
		applogger.String("model_version", res.ModelVersion),
		applogger.String("day", day.Format(time.DateOnly)),
		applogger.Int("created", res.Created),
		applogger.Int("updated", res.Updated),
		applogger.Int("skipped", res.Skipped),
		applogger.Int("failed", res.Failed))
	return res, err
}

// Predict builds the prediction record for one feature vector. It is deterministic.
func (s *PredictionService) Predict(v models.FeatureVector, artifact *ml.Artifact, day time.Time) (models.DirectionPrediction, error) {
	if artifact == nil {
		return models.DirectionPrediction{}, models.ArtifactMissing("prediction requires a trained artifact", nil)
	}
	x, err := v.Select(artifact.FeatureNames)
	if err != nil {
		return models.DirectionPrediction{}, err
	}
	up, down, err := artifact.Predict(x)
	if err != nil {
		return models.DirectionPrediction{}, err
	}
	if up < 0 || down < 0 {
		return models.DirectionPrediction{}, errors.New("classifier returned negative probability")
	}

	direction, confidence, sign := models.DirectionUp, up, 1.0
	if up < down {
		direction, confidence, sign = models.DirectionDown, down, -1.0
	}
	change := sign * s.cfg.MoveScalePercent * confidence
	current := models.Price(v.AnchorPrice)
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(change).Div(decimal.NewFromInt(100)))

	return models.DirectionPrediction{
		AssetID:                v.AssetID,
		PredictionDate:         models.Day(day),
		Direction:              direction,
		Confidence:             confidence,
		ProbabilityUp:          up,
		ProbabilityDown:        down,
		EstimatedChangePercent: change,
		CurrentPrice:           current,
		EstimatedPrice:         current.Mul(factor).Round(models.PricePlaces),
		ModelVersion:           artifact.Version,
		SignalStrength:         models.StrengthFor(confidence),
		CreatedAt:              s.now().UTC(),
	}, nil
}
