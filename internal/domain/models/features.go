package models

import (
	"fmt"
	"time"
)

const (
	FeaturePriceTrend7d            = "price_trend_7d"
	FeatureVolatility7d            = "volatility_7d"
	FeatureAvgVolume7d             = "avg_volume_7d"
	FeatureAvgPrice7d              = "avg_price_7d"
	FeatureNewsVolumeChange        = "news_volume_change"
	FeatureSentimentChange         = "sentiment_change"
	FeaturePositiveChange          = "positive_change"
	FeatureNegativeChange          = "negative_change"
	FeatureNegativeSpike           = "negative_spike"
	FeaturePositiveSpike           = "positive_spike"
	FeaturePriceSentimentAlignment = "price_sentiment_alignment"
	FeatureDivergence              = "divergence"
)

// FeatureNames lists every field of FeatureVector in export order.
var FeatureNames = []string{
	FeaturePriceTrend7d,
	FeatureVolatility7d,
	FeatureAvgVolume7d,
	FeatureAvgPrice7d,
	FeatureNewsVolumeChange,
	FeatureSentimentChange,
	FeaturePositiveChange,
	FeatureNegativeChange,
	FeatureNegativeSpike,
	FeaturePositiveSpike,
	FeaturePriceSentimentAlignment,
	FeatureDivergence,
}

// ClassifierFeatures is the ordered subset fed to the direction classifier.
var ClassifierFeatures = []string{
	FeaturePriceTrend7d,
	FeatureVolatility7d,
	FeatureAvgVolume7d,
	FeatureAvgPrice7d,
	FeatureSentimentChange,
	FeaturePriceSentimentAlignment,
}

// PriceFeatures and NewsFeatures partition ClassifierFeatures for importance reporting.
var (
	PriceFeatures = []string{FeaturePriceTrend7d, FeatureVolatility7d, FeatureAvgVolume7d, FeatureAvgPrice7d}
	NewsFeatures  = []string{FeatureSentimentChange, FeaturePriceSentimentAlignment}
)

// FeatureVector is computed for one asset at one anchor date.
type FeatureVector struct {
	AssetID     string    `json:"asset_id"`
	AnchorDate  time.Time `json:"anchor_date"`
	AnchorPrice float64   `json:"anchor_price"`

	PriceTrend7d            float64 `json:"price_trend_7d"`
	Volatility7d            float64 `json:"volatility_7d"`
	AvgVolume7d             float64 `json:"avg_volume_7d"`
	AvgPrice7d              float64 `json:"avg_price_7d"`
	NewsVolumeChange        float64 `json:"news_volume_change"`
	SentimentChange         float64 `json:"sentiment_change"`
	PositiveChange          float64 `json:"positive_change"`
	NegativeChange          float64 `json:"negative_change"`
	NegativeSpike           float64 `json:"negative_spike"`
	PositiveSpike           float64 `json:"positive_spike"`
	PriceSentimentAlignment float64 `json:"price_sentiment_alignment"`
	Divergence              float64 `json:"divergence"`
}

// Value returns a feature by name.
func (v FeatureVector) Value(name string) (float64, bool) {
	switch name {
	case FeaturePriceTrend7d:
		return v.PriceTrend7d, true
	case FeatureVolatility7d:
		return v.Volatility7d, true
	case FeatureAvgVolume7d:
		return v.AvgVolume7d, true
	case FeatureAvgPrice7d:
		return v.AvgPrice7d, true
	case FeatureNewsVolumeChange:
		return v.NewsVolumeChange, true
	case FeatureSentimentChange:
		return v.SentimentChange, true
	case FeaturePositiveChange:
		return v.PositiveChange, true
	case FeatureNegativeChange:
		return v.NegativeChange, true
	case FeatureNegativeSpike:
		return v.NegativeSpike, true
	case FeaturePositiveSpike:
		return v.PositiveSpike, true
	case FeaturePriceSentimentAlignment:
		return v.PriceSentimentAlignment, true
	case FeatureDivergence:
		return v.Divergence, true
	}
	return 0, false
}

// Select returns the named features in the given order.
func (v FeatureVector) Select(names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		x, ok := v.Value(name)
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
		out[i] = x
	}
	return out, nil
}

// TrainingExample is a feature vector labelled with the next-day direction.
type TrainingExample struct {
	FeatureVector
	Target           int     `json:"target"`
	RawChangePercent float64 `json:"raw_change_percent"`
}
