package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentiCast/internal/domain/models"
	"SentiCast/internal/services/features"
)

var day0 = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

func series(prices ...float64) features.Series {
	s := features.Series{AssetID: "eth"}
	for i, p := range prices {
		s.Points = append(s.Points, models.DailyPricePoint{AssetID: "eth", Date: day0.AddDate(0, 0, i), Price: p})
	}
	return s
}

func TestDetectThresholdIsStrict(t *testing.T) {
	d := NewAnomalyDetector(3)

	events, err := d.Detect(series(100, 101.5), 1.5)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = d.Detect(series(100, 101.51), 1.5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventSpike, events[0].EventType)
	assert.InDelta(t, 1.51, events[0].ChangePercent, 1e-9)
}

func TestDetectThresholdBoundaryIsExact(t *testing.T) {
	d := NewAnomalyDetector(3)

	for _, prices := range [][]float64{{110, 111.65}, {0.7, 0.7105}, {100, 98.5}} {
		events, err := d.Detect(series(prices...), 1.5)
		require.NoError(t, err)
		assert.Empty(t, events, "%v -> %v", prices[0], prices[1])
	}

	events, err := d.Detect(series(110, 111.66), 1.5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.InDelta(t, 1.50909, events[0].ChangePercent, 1e-5)
}

func TestDetectClassifiesCrashAndRecordsPrices(t *testing.T) {
	d := NewAnomalyDetector(3)
	events, err := d.Detect(series(200, 190), 1.5)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, models.EventCrash, e.EventType)
	assert.Equal(t, "eth", e.AssetID)
	assert.Equal(t, day0.AddDate(0, 0, 1), e.Date)
	assert.InDelta(t, -5.0, e.ChangePercent, 1e-9)
	assert.Equal(t, "200", e.PriceBefore.String())
	assert.Equal(t, "190", e.PriceAfter.String())
}

func TestDetectSkipsZeroPreviousPrice(t *testing.T) {
	d := NewAnomalyDetector(3)
	events, err := d.Detect(series(0, 50, 50), 1.5)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDetectCountsPrecedingNews(t *testing.T) {
	d := NewAnomalyDetector(3)
	s := series(100, 100, 100, 100, 100, 110)
	moveDay := day0.AddDate(0, 0, 5)
	s.Articles = []models.Article{
		{PublishedAt: moveDay.AddDate(0, 0, -4).Add(23 * time.Hour)},
		{PublishedAt: moveDay.AddDate(0, 0, -3)},
		{PublishedAt: moveDay.AddDate(0, 0, -1).Add(time.Hour), Sentiment: models.SentimentOf(0.4)},
		{PublishedAt: moveDay.Add(22 * time.Hour)},
		{PublishedAt: moveDay.AddDate(0, 0, 1)},
	}

	events, err := d.Detect(s, 1.5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].PrecedingNewsCount)
}

func TestDetectIsDeterministic(t *testing.T) {
	d := NewAnomalyDetector(3)
	s := series(100, 103, 99, 99.5, 104)
	first, err := d.Detect(s, 1.5)
	require.NoError(t, err)
	second, err := d.Detect(s, 1.5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestDetectRejectsNegativeThreshold(t *testing.T) {
	_, err := NewAnomalyDetector(3).Detect(series(1, 2), -1)
	assert.Error(t, err)
}
