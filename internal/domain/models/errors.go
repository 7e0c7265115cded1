package models

import (
	"errors"
	"fmt"
)

var (
	ErrDataInsufficient = errors.New("data insufficient")
	ErrArtifactMissing  = errors.New("model not available")
	ErrUpstreamData     = errors.New("upstream data error")
	ErrTrainingFailed   = errors.New("training failed")
	ErrDatasetTooSmall  = fmt.Errorf("dataset too small: %w", ErrTrainingFailed)
	ErrSingleClass      = fmt.Errorf("single-class dataset: %w", ErrTrainingFailed)
)

// PipelineError carries a taxonomy kind (one of the Err* sentinels) plus context.
type PipelineError struct {
	Kind    error
	AssetID string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	msg := e.Kind.Error()
	if e.AssetID != "" {
		msg = fmt.Sprintf("%s [asset=%s]", msg, e.AssetID)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Code is a stable identifier for API envelopes.
func (e *PipelineError) Code() string {
	switch {
	case errors.Is(e.Kind, ErrDatasetTooSmall):
		return "ERR_DATASET_TOO_SMALL"
	case errors.Is(e.Kind, ErrSingleClass):
		return "ERR_SINGLE_CLASS"
	case errors.Is(e.Kind, ErrTrainingFailed):
		return "ERR_TRAINING_FAILED"
	case errors.Is(e.Kind, ErrArtifactMissing):
		return "ERR_MODEL_NOT_AVAILABLE"
	case errors.Is(e.Kind, ErrUpstreamData):
		return "ERR_UPSTREAM_DATA"
	case errors.Is(e.Kind, ErrDataInsufficient):
		return "ERR_DATA_INSUFFICIENT"
	}
	return "ERR_INTERNAL"
}

func DataInsufficient(assetID, format string, args ...interface{}) *PipelineError {
	return &PipelineError{Kind: ErrDataInsufficient, AssetID: assetID, Message: fmt.Sprintf(format, args...)}
}

func UpstreamData(assetID, message string, err error) *PipelineError {
	return &PipelineError{Kind: ErrUpstreamData, AssetID: assetID, Message: message, Err: err}
}

func ArtifactMissing(message string, err error) *PipelineError {
	return &PipelineError{Kind: ErrArtifactMissing, Message: message, Err: err}
}

// TrainingFailed builds a training error. kind should be ErrTrainingFailed or one of its refinements.
func TrainingFailed(kind error, format string, args ...interface{}) *PipelineError {
	if kind == nil {
		kind = ErrTrainingFailed
	}
	return &PipelineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
