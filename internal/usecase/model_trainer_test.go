package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
	"SentiCast/internal/repository/memory"
	"SentiCast/internal/services/ml"
	applogger "SentiCast/pkg/logger"
)

var trainedAt = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

func syntheticExamples(n int, label func(i int) int) []models.TrainingExample {
	out := make([]models.TrainingExample, n)
	// Fill in reverse so the trainer has to sort.
	for i := n - 1; i >= 0; i-- {
		target := label(i)
		trend := -2.0 + float64(i%5)*0.1
		if target == 1 {
			trend = 2.0 - float64(i%5)*0.1
		}
		out[n-1-i] = models.TrainingExample{
			FeatureVector: models.FeatureVector{
				AssetID:                 "btc",
				AnchorDate:              day0.AddDate(0, 0, i),
				AnchorPrice:             100 + float64(i),
				PriceTrend7d:            trend,
				Volatility7d:            1 + float64(i%3),
				AvgVolume7d:             1000 + float64(i),
				AvgPrice7d:              100 + float64(i),
				SentimentChange:         float64(i%4) * 0.05,
				PriceSentimentAlignment: trend * 0.1,
			},
			Target:           target,
			RawChangePercent: trend,
		}
	}
	return out
}

func alternating(i int) int { return i % 2 }

func newTestTrainer(store *memory.ArtifactStore, locker domrepo.Locker, cfg TrainerConfig) (*ModelTrainer, *ml.Registry) {
	registry := ml.NewRegistry(store, applogger.NewNop())
	tr := NewModelTrainer(registry, locker, nil, cfg, applogger.NewNop())
	tr.now = func() time.Time { return trainedAt }
	return tr, registry
}

func defaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		MinExamples:   50,
		TrainFraction: 0.8,
		ModelVersion:  "classifier_v2",
		LockTTL:       time.Minute,
		Params:        ml.DefaultParams(),
	}
}

func TestTrainPublishesArtifact(t *testing.T) {
	store := memory.NewArtifactStore()
	locker := &stubLocker{acquired: true}
	cfg := defaultTrainerConfig()
	cfg.ReportPath = t.TempDir() + "/report.json"
	tr, registry := newTestTrainer(store, locker, cfg)

	a, err := tr.Train(context.Background(), syntheticExamples(100, alternating))
	require.NoError(t, err)

	assert.Equal(t, "classifier_v2-20250401T120000", a.Version)
	assert.Same(t, a, registry.Current())
	assert.Equal(t, 1, store.Versions())
	assert.Equal(t, 1, locker.released)
	assert.FileExists(t, cfg.ReportPath)

	rep := a.Report
	require.NotNil(t, rep)
	assert.Equal(t, 100, rep.Examples)
	assert.Equal(t, 80, rep.TrainSize)
	assert.Equal(t, 20, rep.TestSize)
	assert.False(t, rep.TrainTo.After(rep.TestFrom))
	assert.Equal(t, day0, rep.TrainFrom)
	assert.Equal(t, day0.AddDate(0, 0, 99), rep.TestTo)
	assert.InDelta(t, 0.5, rep.UpShare, 1e-9)
	assert.InDelta(t, rep.TrainAccuracy-rep.TestAccuracy, rep.OverfittingGap, 1e-12)
	assert.Len(t, rep.FeatureImportance, len(models.ClassifierFeatures))
	assert.Equal(t, models.ClassifierFeatures, a.FeatureNames)
}

func TestCausalSplitNeverLeaksFuture(t *testing.T) {
	examples := syntheticExamples(37, alternating)
	sortExamples(examples)
	train, test := causalSplit(examples, 0.8)

	require.Len(t, train, 29)
	require.Len(t, test, 8)
	maxTrain := train[len(train)-1].AnchorDate
	for _, ex := range test {
		assert.False(t, ex.AnchorDate.Before(maxTrain))
	}
}

func TestTrainRejectsSmallDataset(t *testing.T) {
	store := memory.NewArtifactStore()
	tr, registry := newTestTrainer(store, nil, defaultTrainerConfig())

	_, err := tr.Train(context.Background(), syntheticExamples(10, alternating))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDatasetTooSmall)
	assert.ErrorIs(t, err, models.ErrTrainingFailed)
	assert.Nil(t, registry.Current())
	assert.Zero(t, store.Versions())
}

func TestTrainRejectsSingleClassAndKeepsPreviousArtifact(t *testing.T) {
	ctx := context.Background()
	store := memory.NewArtifactStore()
	tr, registry := newTestTrainer(store, nil, defaultTrainerConfig())

	first, err := tr.Train(ctx, syntheticExamples(100, alternating))
	require.NoError(t, err)

	tr.now = func() time.Time { return trainedAt.Add(time.Hour) }
	_, err = tr.Train(ctx, syntheticExamples(100, func(int) int { return 1 }))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSingleClass)

	assert.Same(t, first, registry.Current())
	assert.Equal(t, 1, store.Versions())
	loaded, err := registry.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Version, loaded.Version)
}

func TestTrainRespectsLock(t *testing.T) {
	store := memory.NewArtifactStore()
	tr, registry := newTestTrainer(store, &stubLocker{acquired: false}, defaultTrainerConfig())

	_, err := tr.Train(context.Background(), syntheticExamples(100, alternating))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTrainingFailed)
	assert.Nil(t, registry.Current())
}
