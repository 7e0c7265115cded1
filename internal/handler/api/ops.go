package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"SentiCast/internal/domain/models"
	"SentiCast/internal/service/ratelimit"
	"SentiCast/internal/services/ml"
	"SentiCast/internal/usecase"
	xhttp "SentiCast/pkg/http"
	"SentiCast/pkg/queue"
	xlogger "SentiCast/pkg/logger"
)

// HealthCheck checks one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// JobRequest is the body of POST /api/jobs/:type.
type JobRequest struct {
	Type    string          `param:"type" validate:"required,oneof=dataset.build model.train predictions.run anomalies.scan"`
	Payload json.RawMessage `json:"payload"`
}

type ModelResponse struct {
	Version      string     `json:"version"`
	TrainedAt    time.Time  `json:"trained_at"`
	FeatureNames []string   `json:"feature_names"`
	Report       *ml.Report `json:"report,omitempty"`
}

// OpsHandler serves health, model status and job submission.
type OpsHandler struct {
	logger   *xlogger.Logger
	registry *ml.Registry
	queue    queue.QueueService
	checks   []HealthCheck
	limiter  *ratelimit.Limiter
	timeout  time.Duration
}

// NewOpsHandler builds the handler. A nil queue disables job submission.
func NewOpsHandler(logger *xlogger.Logger, registry *ml.Registry, q queue.QueueService, checks ...HealthCheck) *OpsHandler {
	return &OpsHandler{
		logger:   logger,
		registry: registry,
		queue:    q,
		checks:   checks,
		limiter:  ratelimit.New(5, 0.2),
		timeout:  2 * time.Second,
	}
}

func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/model", h.Model)
	g.POST("/jobs/:type", h.SubmitJob)
}

func (h *OpsHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	healthy := true
	for _, chk := range h.checks {
		if err := chk.Check(ctx); err != nil {
			h.logger.Warn("health check failed", xlogger.String("dependency", chk.Name), xlogger.Error(err))
			status[chk.Name] = err.Error()
			healthy = false
			continue
		}
		status[chk.Name] = "ok"
	}
	if !healthy {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("dependency unhealthy").WithParams(status))
	}
	return xhttp.SuccessResponse(c, status)
}

// Model reports the artifact currently used for inference.
func (h *OpsHandler) Model(c echo.Context) error {
	a := h.registry.Current()
	if a == nil {
		loaded, err := h.registry.Load(c.Request().Context())
		if err != nil {
			if errors.Is(err, models.ErrArtifactMissing) {
				return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no model has been trained").WithError(err))
			}
			h.logger.Error("load model", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		a = loaded
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, ModelResponse{
		Version:      a.Version,
		TrainedAt:    a.TrainedAt,
		FeatureNames: a.FeatureNames,
		Report:       a.Report,
	})
}

// SubmitJob enqueues a pipeline job for the background workers.
func (h *OpsHandler) SubmitJob(c echo.Context) error {
	if h.queue == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("job queue is disabled"))
	}
	if !h.limiter.Allow(c.RealIP()) {
		h.logger.Warn("job submission rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many job submissions", http.StatusTooManyRequests))
	}
	req := &JobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if verr := validatePayload(req.Type, req.Payload); verr != nil {
		return xhttp.BadRequestResponse(c, []*xhttp.AppError{verr})
	}

	id, err := h.queue.Enqueue(c.Request().Context(), req.Type, req.Payload)
	if err != nil {
		h.logger.Error("enqueue job", xlogger.String("type", req.Type), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not enqueue job").WithError(err))
	}
	h.logger.Info("job enqueued", xlogger.String("type", req.Type), xlogger.String("id", id))
	return xhttp.AcceptedResponse(c, map[string]string{"id": id, "type": req.Type})
}

// validatePayload rejects payloads the worker would dead-letter anyway.
func validatePayload(jobType string, raw json.RawMessage) *xhttp.AppError {
	var err error
	switch jobType {
	case usecase.JobTypeDataset:
		_, err = queue.DecodePayload[usecase.DatasetPayload](raw)
	case usecase.JobTypeTrain:
		_, err = queue.DecodePayload[usecase.TrainPayload](raw)
	case usecase.JobTypePredict:
		_, err = queue.DecodePayload[usecase.PredictPayload](raw)
	case usecase.JobTypeScan:
		_, err = queue.DecodePayload[usecase.ScanPayload](raw)
	}
	if err != nil {
		return xhttp.BadRequestError("payload", err.Error()).WithError(err)
	}
	return nil
}
