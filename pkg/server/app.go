package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SentiCast/internal/usecase"
	xhttp "SentiCast/pkg/http"
	applogger "SentiCast/pkg/logger"
)

// Job names accepted by RunOnce.
const (
	JobDataset = "dataset"
	JobTrain   = "train"
	JobPredict = "predict"
	JobScan    = "scan"
)

// Consumer is the background job queue.
type Consumer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// OneShot carries the CLI overrides for a single job run.
type OneShot struct {
	Day              time.Time
	ThresholdPercent *float64
	Assets           []string
	PredictAfter     bool
}

// App owns the long-lived pieces and the order they are shut down in.
type App struct {
	pipeline        *usecase.Pipeline
	consumer        Consumer
	httpServer      *xhttp.Server
	shutdownTimeout time.Duration
	l               *applogger.Logger
}

// New creates an App. consumer and httpServer may be nil when disabled.
func New(pipeline *usecase.Pipeline, consumer Consumer, httpServer *xhttp.Server, shutdownTimeout time.Duration, l *applogger.Logger) *App {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	return &App{
		pipeline:        pipeline,
		consumer:        consumer,
		httpServer:      httpServer,
		shutdownTimeout: shutdownTimeout,
		l:               l,
	}
}

// Pipeline exposes the batch jobs.
func (a *App) Pipeline() *usecase.Pipeline { return a.pipeline }

// RunOnce runs one batch job synchronously.
func (a *App) RunOnce(ctx context.Context, job string, opts OneShot) error {
	a.l.Info("running job", applogger.String("job", job), applogger.Strings("assets", opts.Assets))
	switch job {
	case JobDataset:
		examples, err := a.pipeline.BuildDataset(ctx, opts.Assets)
		if err != nil {
			return err
		}
		a.l.Info("dataset built", applogger.Int("rows", len(examples)))
		return nil
	case JobTrain:
		artifact, err := a.pipeline.Train(ctx)
		if err != nil {
			return err
		}
		a.l.Info("model trained", applogger.String("version", artifact.Version))
		if !opts.PredictAfter {
			return nil
		}
		return a.predict(ctx, opts)
	case JobPredict:
		return a.predict(ctx, opts)
	case JobScan:
		res, err := a.pipeline.Scan(ctx, opts.ThresholdPercent, opts.Assets)
		if err != nil {
			return err
		}
		if res.Failed > 0 {
			a.l.Warn("scan finished with failures", applogger.Int("failed", res.Failed))
		}
		return nil
	default:
		return fmt.Errorf("unknown job %q", job)
	}
}

func (a *App) predict(ctx context.Context, opts OneShot) error {
	res, err := a.pipeline.Predict(ctx, opts.Day, opts.Assets)
	if err != nil {
		return err
	}
	a.l.Info("predictions written",
		applogger.String("model_version", res.ModelVersion),
		applogger.Int("created", res.Created),
		applogger.Int("updated", res.Updated),
		applogger.Int("skipped", res.Skipped),
		applogger.Int("failed", res.Failed))
	return nil
}

// Serve runs the queue consumer and the ops server until ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	if a.consumer == nil && a.httpServer == nil {
		return errors.New("nothing to serve: queue and http server are both disabled")
	}
	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			return fmt.Errorf("start queue: %w", err)
		}
	}
	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			return fmt.Errorf("start http: %w", err)
		}
	}
	a.l.Info("worker mode started",
		applogger.Bool("queue", a.consumer != nil),
		applogger.Bool("http", a.httpServer != nil))

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("queue: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	a.l.Info("shutdown complete")
	return nil
}
