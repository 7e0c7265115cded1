package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"SentiCast/internal/domain/models"
	applogger "SentiCast/pkg/logger"
	"SentiCast/pkg/queue"
	"SentiCast/pkg/util"
)

// Message types accepted on the job queue.
const (
	JobTypeDataset = "dataset.build"
	JobTypeTrain   = "model.train"
	JobTypePredict = "predictions.run"
	JobTypeScan    = "anomalies.scan"
)

type DatasetPayload struct {
	Assets []string `json:"assets,omitempty" validate:"omitempty,dive,required"`
}

type TrainPayload struct {
	// Predict runs a prediction pass right after a successful publish.
	Predict bool `json:"predict,omitempty"`
}

type PredictPayload struct {
	Date   string   `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Assets []string `json:"assets,omitempty" validate:"omitempty,dive,required"`
}

type ScanPayload struct {
	ThresholdPercent *float64 `json:"threshold_percent,omitempty" validate:"omitnil,gte=0"`
	Assets           []string `json:"assets,omitempty" validate:"omitempty,dive,required"`
}

// Jobs returns the queue handlers bound to p.
func Jobs(p *Pipeline, l *applogger.Logger) []queue.Job {
	return []queue.Job{
		&DatasetJob{p: p, l: l},
		&TrainJob{p: p, l: l},
		&PredictJob{p: p, l: l},
		&ScanJob{p: p, l: l},
	}
}

type DatasetJob struct {
	p *Pipeline
	l *applogger.Logger
}

func (j *DatasetJob) Name() string { return "DatasetJob" }
func (j *DatasetJob) Type() string { return JobTypeDataset }

func (j *DatasetJob) Handle(ctx context.Context, raw json.RawMessage) error {
	payload, err := queue.DecodePayload[DatasetPayload](raw)
	if err != nil {
		return queue.Permanent(err)
	}
	examples, err := j.p.BuildDataset(ctx, payload.Assets)
	if err != nil {
		return classify(err)
	}
	j.l.Info("dataset built", applogger.Int("rows", len(examples)))
	return nil
}

type TrainJob struct {
	p *Pipeline
	l *applogger.Logger
}

func (j *TrainJob) Name() string { return "TrainJob" }
func (j *TrainJob) Type() string { return JobTypeTrain }

func (j *TrainJob) Handle(ctx context.Context, raw json.RawMessage) error {
	payload, err := queue.DecodePayload[TrainPayload](raw)
	if err != nil {
		return queue.Permanent(err)
	}
	artifact, err := j.p.Train(ctx)
	if err != nil {
		return classify(err)
	}
	j.l.Info("model trained", applogger.String("version", artifact.Version))
	if !payload.Predict {
		return nil
	}
	res, err := j.p.Predict(ctx, time.Time{}, nil)
	if err != nil {
		return classify(err)
	}
	logPrediction(j.l, res)
	return nil
}

type PredictJob struct {
	p *Pipeline
	l *applogger.Logger
}

func (j *PredictJob) Name() string { return "PredictJob" }
func (j *PredictJob) Type() string { return JobTypePredict }

func (j *PredictJob) Handle(ctx context.Context, raw json.RawMessage) error {
	payload, err := queue.DecodePayload[PredictPayload](raw)
	if err != nil {
		return queue.Permanent(err)
	}
	day, err := util.ParseDay(payload.Date)
	if err != nil {
		return queue.Permanent(err)
	}
	res, err := j.p.Predict(ctx, day, payload.Assets)
	if err != nil {
		return classify(err)
	}
	logPrediction(j.l, res)
	return nil
}

type ScanJob struct {
	p *Pipeline
	l *applogger.Logger
}

func (j *ScanJob) Name() string { return "ScanJob" }
func (j *ScanJob) Type() string { return JobTypeScan }

func (j *ScanJob) Handle(ctx context.Context, raw json.RawMessage) error {
	payload, err := queue.DecodePayload[ScanPayload](raw)
	if err != nil {
		return queue.Permanent(err)
	}
	res, err := j.p.Scan(ctx, payload.ThresholdPercent, payload.Assets)
	if err != nil {
		return classify(err)
	}
	j.l.Info("anomaly scan finished",
		applogger.Int("assets", res.Assets),
		applogger.Int("events", res.Events),
		applogger.Int("created", res.Created),
		applogger.Int("failed", res.Failed))
	return nil
}

func logPrediction(l *applogger.Logger, res PredictionResult) {
	l.Info("predictions written",
		applogger.String("model_version", res.ModelVersion),
		applogger.Int("created", res.Created),
		applogger.Int("updated", res.Updated),
		applogger.Int("skipped", res.Skipped),
		applogger.Int("failed", res.Failed))
}

// classify marks failures that a retry cannot fix.
func classify(err error) error {
	switch {
	case errors.Is(err, models.ErrArtifactMissing),
		errors.Is(err, models.ErrTrainingFailed):
		return queue.Permanent(err)
	default:
		return err
	}
}
