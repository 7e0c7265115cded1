package usecase

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"SentiCast/internal/domain/models"
	"SentiCast/internal/services/ml"
)

var day0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func series(assetID string, start time.Time, prices ...float64) []models.DailyPricePoint {
	out := make([]models.DailyPricePoint, len(prices))
	for i, p := range prices {
		out[i] = models.DailyPricePoint{AssetID: assetID, Date: start.AddDate(0, 0, i), Price: p, Volume: 1000}
	}
	return out
}

// fixedArtifact always predicts P(up) = pUp regardless of input.
func fixedArtifact(version string, pUp float64) *ml.Artifact {
	d := len(models.ClassifierFeatures)
	mean := make([]float64, d)
	scale := make([]float64, d)
	for i := range scale {
		scale[i] = 1
	}
	return &ml.Artifact{
		Format:       ml.FormatVersion,
		Version:      version,
		FeatureNames: append([]string(nil), models.ClassifierFeatures...),
		Scaler:       &ml.StandardScaler{Mean: mean, Scale: scale},
		Classifier: &ml.Classifier{
			InitScore:    math.Log(pUp / (1 - pUp)),
			LearningRate: 0.1,
			NFeatures:    d,
			Trees:        []ml.Tree{{Nodes: []ml.Node{{Feature: -1}}}},
			Importances:  make([]float64, d),
		},
		TrainedAt: day0,
	}
}

type MockFeatureEngine struct {
	mock.Mock
}

func (m *MockFeatureEngine) Compute(ctx context.Context, assetID string, anchor time.Time) (models.FeatureVector, bool, error) {
	args := m.Called(ctx, assetID, anchor)
	return args.Get(0).(models.FeatureVector), args.Bool(1), args.Error(2)
}

type recordingPublisher struct {
	mu          sync.Mutex
	predictions []models.DirectionPrediction
	anomalies   []models.PriceAnomalyEvent
}

func (p *recordingPublisher) PublishPrediction(_ context.Context, v models.DirectionPrediction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.predictions = append(p.predictions, v)
	return nil
}

func (p *recordingPublisher) PublishAnomaly(_ context.Context, e models.PriceAnomalyEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.anomalies = append(p.anomalies, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type stubLocker struct {
	acquired bool
	released int
}

func (s *stubLocker) TryLock(_ context.Context, _ string, _ time.Duration) (func(context.Context) error, bool, error) {
	if !s.acquired {
		return nil, false, nil
	}
	return func(context.Context) error {
		s.released++
		return nil
	}, true, nil
}
