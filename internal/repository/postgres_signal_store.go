package repository

import (
	"context"
	"fmt"
	"time"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
	"SentiCast/pkg/postgres"
)

const upsertAnomalySQL = `
INSERT INTO price_anomaly_events
    (asset_id, event_date, event_type, change_percent, price_before, price_after, preceding_news_count, detected_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (asset_id, event_date) DO UPDATE SET
    event_type           = EXCLUDED.event_type,
    change_percent       = EXCLUDED.change_percent,
    price_before         = EXCLUDED.price_before,
    price_after          = EXCLUDED.price_after,
    preceding_news_count = EXCLUDED.preceding_news_count,
    detected_at          = EXCLUDED.detected_at
RETURNING (xmax = 0)`

// created_at is kept from the first insert.
const upsertPredictionSQL = `
INSERT INTO direction_predictions
    (asset_id, prediction_date, predicted_direction, confidence, probability_up, probability_down,
     estimated_change_percent, current_price, estimated_price, model_version, signal_strength, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
ON CONFLICT (asset_id, prediction_date) DO UPDATE SET
    predicted_direction      = EXCLUDED.predicted_direction,
    confidence               = EXCLUDED.confidence,
    probability_up           = EXCLUDED.probability_up,
    probability_down         = EXCLUDED.probability_down,
    estimated_change_percent = EXCLUDED.estimated_change_percent,
    current_price            = EXCLUDED.current_price,
    estimated_price          = EXCLUDED.estimated_price,
    model_version            = EXCLUDED.model_version,
    signal_strength          = EXCLUDED.signal_strength,
    updated_at               = EXCLUDED.updated_at
RETURNING (xmax = 0)`

// PGSignalStore upserts derived records keyed by (asset, day).
type PGSignalStore struct {
	db  postgres.Pool
	now func() time.Time
}

var (
	_ domrepo.AnomalySink    = (*PGSignalStore)(nil)
	_ domrepo.PredictionSink = (*PGSignalStore)(nil)
)

func NewPGSignalStore(db postgres.Pool) *PGSignalStore {
	return &PGSignalStore{db: db, now: time.Now}
}

// UpsertAnomalyEvent reports whether the row was inserted rather than updated.
func (s *PGSignalStore) UpsertAnomalyEvent(ctx context.Context, e models.PriceAnomalyEvent) (bool, error) {
	var created bool
	err := s.db.QueryRow(ctx, upsertAnomalySQL,
		e.AssetID,
		models.Day(e.Date),
		string(e.EventType),
		e.ChangePercent,
		e.PriceBefore,
		e.PriceAfter,
		e.PrecedingNewsCount,
		s.now().UTC(),
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert anomaly event %s: %w", e.AssetID, err)
	}
	return created, nil
}

// UpsertDirectionPrediction reports whether the row was inserted rather than updated.
func (s *PGSignalStore) UpsertDirectionPrediction(ctx context.Context, p models.DirectionPrediction) (bool, error) {
	var created bool
	err := s.db.QueryRow(ctx, upsertPredictionSQL,
		p.AssetID,
		models.Day(p.PredictionDate),
		string(p.Direction),
		p.Confidence,
		p.ProbabilityUp,
		p.ProbabilityDown,
		p.EstimatedChangePercent,
		p.CurrentPrice,
		p.EstimatedPrice,
		p.ModelVersion,
		string(p.SignalStrength),
		p.CreatedAt.UTC(),
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert direction prediction %s: %w", p.AssetID, err)
	}
	return created, nil
}
