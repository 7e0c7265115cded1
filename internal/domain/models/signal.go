package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePlaces is the scale of stored prices.
const PricePlaces = 8

type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

type EventType string

const (
	EventSpike EventType = "spike"
	EventCrash EventType = "crash"
)

type SignalStrength string

const (
	StrengthStrong   SignalStrength = "strong"
	StrengthModerate SignalStrength = "moderate"
	StrengthWeak     SignalStrength = "weak"
)

// StrengthFor buckets a classifier confidence for presentation.
func StrengthFor(confidence float64) SignalStrength {
	switch {
	case confidence >= 0.7:
		return StrengthStrong
	case confidence >= 0.6:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// Price converts a float price to the stored decimal scale.
func Price(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(PricePlaces)
}

// PriceAnomalyEvent is unique per (AssetID, Date).
type PriceAnomalyEvent struct {
	AssetID            string          `json:"asset_id"`
	Date               time.Time       `json:"date"`
	EventType          EventType       `json:"event_type"`
	ChangePercent      float64         `json:"change_percent"`
	PriceBefore        decimal.Decimal `json:"price_before"`
	PriceAfter         decimal.Decimal `json:"price_after"`
	PrecedingNewsCount int             `json:"preceding_news_count"`
}

// DirectionPrediction is unique per (AssetID, PredictionDate).
type DirectionPrediction struct {
	AssetID                string          `json:"asset_id"`
	PredictionDate         time.Time       `json:"prediction_date"`
	Direction              Direction       `json:"predicted_direction"`
	Confidence             float64         `json:"confidence"`
	ProbabilityUp          float64         `json:"probability_up"`
	ProbabilityDown        float64         `json:"probability_down"`
	EstimatedChangePercent float64         `json:"estimated_change_percent"`
	CurrentPrice           decimal.Decimal `json:"current_price"`
	EstimatedPrice         decimal.Decimal `json:"estimated_price"`
	ModelVersion           string          `json:"model_version"`
	SignalStrength         SignalStrength  `json:"signal_strength"`
	CreatedAt              time.Time       `json:"created_at"`
}
