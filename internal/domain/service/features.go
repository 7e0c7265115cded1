package service

import (
	"context"
	"time"

	"SentiCast/internal/domain/models"
)

// FeatureEngine computes the feature vector for one asset at one anchor date.
// ok is false when history is insufficient; err is reserved for store failures.
type FeatureEngine interface {
	Compute(ctx context.Context, assetID string, anchor time.Time) (v models.FeatureVector, ok bool, err error)
}
