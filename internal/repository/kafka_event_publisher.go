package repository

import (
	"context"
	"time"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
	pkgkafka "SentiCast/pkg/kafka"
)

type EventTopics struct {
	Predictions string
	Anomalies   string
}

// KafkaEventPublisher emits upserted records keyed by asset and day, so
// consumers see one partition per asset and can dedupe on the key.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topics   EventTopics
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(p *pkgkafka.Producer, topics EventTopics) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: p, topics: topics}
}

func (k *KafkaEventPublisher) PublishPrediction(ctx context.Context, p models.DirectionPrediction) error {
	return k.producer.PublishBatch(ctx, k.topics.Predictions, []pkgkafka.Message{{
		Key:     eventKey(p.AssetID, p.PredictionDate),
		Value:   p,
		Headers: map[string]string{"model_version": p.ModelVersion},
	}})
}

func (k *KafkaEventPublisher) PublishAnomaly(ctx context.Context, e models.PriceAnomalyEvent) error {
	return k.producer.PublishBatch(ctx, k.topics.Anomalies, []pkgkafka.Message{{
		Key:     eventKey(e.AssetID, e.Date),
		Value:   e,
		Headers: map[string]string{"event_type": string(e.EventType)},
	}})
}

func (k *KafkaEventPublisher) Close() error {
	return k.producer.Close()
}

func eventKey(assetID string, day time.Time) []byte {
	return []byte(assetID + ":" + models.Day(day).Format(time.DateOnly))
}

// NopEventPublisher drops events; used when Kafka is disabled.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishPrediction(context.Context, models.DirectionPrediction) error {
	return nil
}

func (NopEventPublisher) PublishAnomaly(context.Context, models.PriceAnomalyEvent) error {
	return nil
}

func (NopEventPublisher) Close() error { return nil }
