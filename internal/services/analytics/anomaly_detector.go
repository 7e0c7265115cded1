package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"SentiCast/internal/domain/models"
	"SentiCast/internal/services/features"
)

// AnomalyDetector flags single-day price moves larger than a threshold.
type AnomalyDetector struct {
	newsLookbackDays int
}

// NewAnomalyDetector creates a detector that counts news over the
// newsLookbackDays days before (and including) the day of the move.
func NewAnomalyDetector(newsLookbackDays int) *AnomalyDetector {
	if newsLookbackDays < 0 {
		newsLookbackDays = 0
	}
	return &AnomalyDetector{newsLookbackDays: newsLookbackDays}
}

func (d *AnomalyDetector) NewsLookbackDays() int { return d.newsLookbackDays }

// Detect walks consecutive points of s and returns one event per day whose
// absolute change strictly exceeds thresholdPercent.
func (d *AnomalyDetector) Detect(s features.Series, thresholdPercent float64) ([]models.PriceAnomalyEvent, error) {
	if math.IsNaN(thresholdPercent) || math.IsInf(thresholdPercent, 0) || thresholdPercent < 0 {
		return nil, fmt.Errorf("invalid threshold_percent %v", thresholdPercent)
	}

	threshold := decimal.NewFromFloat(thresholdPercent)
	var events []models.PriceAnomalyEvent
	for i := 1; i < len(s.Points); i++ {
		prev, curr := s.Points[i-1], s.Points[i]
		exact, ok := decimalPercentChange(prev.Price, curr.Price)
		if !ok {
			continue
		}
		if exact.Abs().LessThanOrEqual(threshold) {
			continue
		}
		change := exact.InexactFloat64()

		kind := models.EventCrash
		if exact.IsPositive() {
			kind = models.EventSpike
		}
		day := models.Day(curr.Date)
		news := features.ArticlesBetween(s.Articles, day.AddDate(0, 0, -d.newsLookbackDays), day.Add(24*time.Hour))

		events = append(events, models.PriceAnomalyEvent{
			AssetID:            s.AssetID,
			Date:               day,
			EventType:          kind,
			ChangePercent:      change,
			PriceBefore:        models.Price(prev.Price),
			PriceAfter:         models.Price(curr.Price),
			PrecedingNewsCount: len(news),
		})
	}
	return events, nil
}

// decimalPercentChange is features.PercentChange on the decimal values of the
// prices, so a move landing exactly on the threshold compares equal to it.
func decimalPercentChange(from, to float64) (decimal.Decimal, bool) {
	if from == 0 || !finite(from) || !finite(to) {
		return decimal.Zero, false
	}
	f := decimal.NewFromFloat(from)
	return decimal.NewFromFloat(to).Sub(f).Div(f).Mul(decimal.NewFromInt(100)), true
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
