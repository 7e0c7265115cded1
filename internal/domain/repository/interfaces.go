package repository

import (
	"context"
	"time"

	"SentiCast/internal/domain/models"
)

// AnomalySink persists anomaly events. Upsert is atomic on (asset, date) and
// reports whether a new row was created.
type AnomalySink interface {
	UpsertAnomalyEvent(ctx context.Context, e models.PriceAnomalyEvent) (created bool, err error)
}

// PredictionSink persists direction predictions. Upsert is atomic on (asset, prediction date).
type PredictionSink interface {
	UpsertDirectionPrediction(ctx context.Context, p models.DirectionPrediction) (created bool, err error)
}

// ArtifactStore persists opaque model blobs. Save also marks the version as current.
type ArtifactStore interface {
	Save(ctx context.Context, version string, blob []byte) error
	Load(ctx context.Context, version string) ([]byte, error)
	// Current returns the version and blob of the latest saved artifact, or
	// an error matching models.ErrArtifactMissing.
	Current(ctx context.Context) (string, []byte, error)
}

// Locker guards mutually exclusive jobs across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// EventPublisher forwards persisted records to downstream notifiers.
type EventPublisher interface {
	PublishPrediction(ctx context.Context, p models.DirectionPrediction) error
	PublishAnomaly(ctx context.Context, e models.PriceAnomalyEvent) error
	Close() error
}

type Metrics interface {
	RecordJob(job string, err error, seconds float64)
	RecordSkip(stage, reason string)
	RecordRecords(kind string, created, updated int)
	RecordModel(version string, testAccuracy, auc, overfittingGap float64)
}
