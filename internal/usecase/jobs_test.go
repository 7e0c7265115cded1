package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentiCast/internal/domain/models"
	"SentiCast/internal/repository/memory"
	"SentiCast/internal/services/analytics"
	"SentiCast/internal/services/features"
	"SentiCast/internal/services/ml"
	applogger "SentiCast/pkg/logger"
	"SentiCast/pkg/queue"
)

func newTestPipeline(store *memory.Store, artifacts *memory.ArtifactStore) *Pipeline {
	l := applogger.NewNop()
	loader := features.NewLoader(store, 0, l)
	engine := features.NewEngine(loader, features.DefaultConfig(), l)
	registry := ml.NewRegistry(artifacts, l)
	return NewPipeline(
		store,
		NewDatasetBuilder(loader, engine, DatasetConfig{NoiseCutoffPercent: 0.5, Workers: 2}, nil, l),
		NewModelTrainer(registry, nil, nil, defaultTrainerConfig(), l),
		registry,
		NewPredictionService(engine, store, nil, nil, PredictionConfig{MoveScalePercent: 1.5, Workers: 2}, l),
		NewAnomalyScanner(loader, analytics.NewAnomalyDetector(3), store, nil, nil, 2, l),
		nil,
		PipelineConfig{AnomalyThreshold: 1.5},
		l,
	)
}

func jobByType(t *testing.T, p *Pipeline, typ string) queue.Job {
	t.Helper()
	for _, j := range Jobs(p, applogger.NewNop()) {
		if j.Type() == typ {
			return j
		}
	}
	t.Fatalf("no job %s", typ)
	return nil
}

func TestScanJobUsesDefaultThreshold(t *testing.T) {
	store := memory.NewStore()
	store.AddAsset(models.Asset{ID: "btc"})
	store.AddPrices("btc", series("btc", day0, 100, 101.5, 103.1)...)
	job := jobByType(t, newTestPipeline(store, memory.NewArtifactStore()), JobTypeScan)

	require.NoError(t, job.Handle(context.Background(), nil))
	events := store.Anomalies()
	require.Len(t, events, 1)
	assert.Equal(t, day0.AddDate(0, 0, 2), events[0].Date)
}

func TestScanJobHonorsZeroThreshold(t *testing.T) {
	store := memory.NewStore()
	store.AddAsset(models.Asset{ID: "btc"})
	store.AddPrices("btc", series("btc", day0, 100, 100, 100.2)...)
	job := jobByType(t, newTestPipeline(store, memory.NewArtifactStore()), JobTypeScan)

	require.NoError(t, job.Handle(context.Background(), json.RawMessage(`{"threshold_percent":0}`)))
	events := store.Anomalies()
	require.Len(t, events, 1)
	assert.Equal(t, day0.AddDate(0, 0, 2), events[0].Date)
}

func TestScanJobFiltersAssets(t *testing.T) {
	store := memory.NewStore()
	store.AddAsset(models.Asset{ID: "btc"})
	store.AddAsset(models.Asset{ID: "eth"})
	store.AddPrices("btc", series("btc", day0, 100, 120)...)
	store.AddPrices("eth", series("eth", day0, 100, 120)...)
	job := jobByType(t, newTestPipeline(store, memory.NewArtifactStore()), JobTypeScan)

	require.NoError(t, job.Handle(context.Background(), json.RawMessage(`{"threshold_percent":5,"assets":["eth"]}`)))
	events := store.Anomalies()
	require.Len(t, events, 1)
	assert.Equal(t, "eth", events[0].AssetID)
}

func TestJobsRejectInvalidPayloads(t *testing.T) {
	p := newTestPipeline(memory.NewStore(), memory.NewArtifactStore())
	cases := []struct {
		typ     string
		payload string
	}{
		{JobTypeScan, `{"threshold_percent":-1}`},
		{JobTypePredict, `{"date":"03/01/2025"}`},
		{JobTypePredict, `{"assets":[""]}`},
		{JobTypeTrain, `not json`},
	}
	for _, tc := range cases {
		t.Run(tc.typ+" "+tc.payload, func(t *testing.T) {
			err := jobByType(t, p, tc.typ).Handle(context.Background(), json.RawMessage(tc.payload))
			require.Error(t, err)
			assert.True(t, queue.IsPermanent(err))
		})
	}
}

func TestPredictJobWithoutModelIsPermanent(t *testing.T) {
	job := jobByType(t, newTestPipeline(memory.NewStore(), memory.NewArtifactStore()), JobTypePredict)

	err := job.Handle(context.Background(), json.RawMessage(`{"date":"2025-03-10"}`))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
	assert.ErrorIs(t, err, models.ErrArtifactMissing)
}

func TestTrainJobOnTooLittleDataIsPermanent(t *testing.T) {
	store := memory.NewStore()
	store.AddAsset(models.Asset{ID: "btc"})
	store.AddPrices("btc", series("btc", day0, 99, 100, 101, 102, 103, 104, 105, 106, 110)...)
	job := jobByType(t, newTestPipeline(store, memory.NewArtifactStore()), JobTypeTrain)

	err := job.Handle(context.Background(), json.RawMessage(`{"predict":true}`))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
	assert.ErrorIs(t, err, models.ErrDatasetTooSmall)
}

func TestPredictJobWritesPredictions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.AddAsset(models.Asset{ID: "btc"})
	store.AddPrices("btc", series("btc", day0, 100, 101, 102, 103, 104, 105, 106)...)
	artifacts := memory.NewArtifactStore()
	blob, err := fixedArtifact("v7", 0.8).Marshal()
	require.NoError(t, err)
	require.NoError(t, artifacts.Save(ctx, "v7", blob))
	job := jobByType(t, newTestPipeline(store, artifacts), JobTypePredict)

	require.NoError(t, job.Handle(ctx, json.RawMessage(`{"date":"2025-03-07"}`)))
	stored := store.Predictions()
	require.Len(t, stored, 1)
	assert.Equal(t, "v7", stored[0].ModelVersion)
	assert.Equal(t, day0.AddDate(0, 0, 6), stored[0].PredictionDate)
}
