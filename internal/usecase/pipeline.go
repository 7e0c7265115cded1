package usecase

import (
	"context"
	"fmt"
	"time"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
	"SentiCast/internal/services/ml"
	applogger "SentiCast/pkg/logger"
)

type PipelineConfig struct {
	DatasetExportPath string
	AnomalyThreshold  float64
}

// Pipeline sequences the batch jobs: dataset, train, predict and scan.
type Pipeline struct {
	store     domrepo.TimeSeriesStore
	dataset   *DatasetBuilder
	trainer   *ModelTrainer
	registry  *ml.Registry
	predictor *PredictionService
	scanner   *AnomalyScanner
	metrics   domrepo.Metrics
	cfg       PipelineConfig
	now       func() time.Time
	l         *applogger.Logger
}

func NewPipeline(
	store domrepo.TimeSeriesStore,
	dataset *DatasetBuilder,
	trainer *ModelTrainer,
	registry *ml.Registry,
	predictor *PredictionService,
	scanner *AnomalyScanner,
	metrics domrepo.Metrics,
	cfg PipelineConfig,
	l *applogger.Logger,
) *Pipeline {
	return &Pipeline{
		store:     store,
		dataset:   dataset,
		trainer:   trainer,
		registry:  registry,
		predictor: predictor,
		scanner:   scanner,
		metrics:   metrics,
		cfg:       cfg,
		now:       time.Now,
		l:         l,
	}
}

// Registry exposes the loaded artifact for status endpoints.
func (p *Pipeline) Registry() *ml.Registry { return p.registry }

// BuildDataset builds the labelled dataset for the selected assets and exports it when configured.
func (p *Pipeline) BuildDataset(ctx context.Context, only []string) (examples []models.TrainingExample, err error) {
	defer p.observe("dataset", time.Now(), &err)
	assets, err := p.assets(ctx, only)
	if err != nil {
		return nil, err
	}
	examples, err = p.dataset.Build(ctx, assets)
	if err != nil {
		return nil, err
	}
	if p.cfg.DatasetExportPath != "" {
		if err := ExportCSV(p.cfg.DatasetExportPath, examples); err != nil {
			p.l.Warn("dataset export failed", applogger.String("path", p.cfg.DatasetExportPath), applogger.Error(err))
		} else {
			p.l.Info("dataset exported", applogger.String("path", p.cfg.DatasetExportPath), applogger.Int("rows", len(examples)))
		}
	}
	return examples, nil
}

// Train rebuilds the dataset and publishes a new artifact.
func (p *Pipeline) Train(ctx context.Context) (a *ml.Artifact, err error) {
	defer p.observe("train", time.Now(), &err)
	examples, err := p.BuildDataset(ctx, nil)
	if err != nil {
		return nil, err
	}
	return p.trainer.Train(ctx, examples)
}

// Predict loads the current artifact and predicts the selected assets for day.
func (p *Pipeline) Predict(ctx context.Context, day time.Time, only []string) (res PredictionResult, err error) {
	defer p.observe("predict", time.Now(), &err)
	artifact, err := p.registry.Load(ctx)
	if err != nil {
		return res, err
	}
	assets, err := p.assets(ctx, only)
	if err != nil {
		return res, err
	}
	if day.IsZero() {
		day = p.now()
	}
	return p.predictor.PredictAll(ctx, assets, artifact, day)
}

// Scan runs the anomaly scan. A nil threshold uses the configured default.
func (p *Pipeline) Scan(ctx context.Context, thresholdPercent *float64, only []string) (res ScanResult, err error) {
	defer p.observe("scan", time.Now(), &err)
	threshold := p.cfg.AnomalyThreshold
	if thresholdPercent != nil {
		threshold = *thresholdPercent
	}
	assets, err := p.assets(ctx, only)
	if err != nil {
		return res, err
	}
	return p.scanner.ScanAll(ctx, assets, threshold)
}

func (p *Pipeline) assets(ctx context.Context, only []string) ([]models.Asset, error) {
	all, err := p.store.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	if len(only) == 0 {
		return all, nil
	}
	want := make(map[string]struct{}, len(only))
	for _, id := range only {
		want[id] = struct{}{}
	}
	out := make([]models.Asset, 0, len(only))
	for _, a := range all {
		if _, ok := want[a.ID]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (p *Pipeline) observe(job string, start time.Time, err *error) {
	if p.metrics != nil {
		p.metrics.RecordJob(job, *err, time.Since(start).Seconds())
	}
	if *err != nil {
		p.l.Error("job failed", applogger.String("job", job), applogger.Error(*err))
	}
}
