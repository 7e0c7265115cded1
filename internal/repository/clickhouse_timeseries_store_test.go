package repository

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
	"SentiCast/internal/services/features"
)

func TestPriceQueryBounds(t *testing.T) {
	to := time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC)

	q, args := priceQuery("daily_prices", "btc", domrepo.Until(to))
	assert.Equal(t, "SELECT date, price, volume, market_cap FROM daily_prices WHERE asset_id = ? AND date <= ? ORDER BY date ASC", q)
	assert.Equal(t, []any{"btc", to}, args)

	from := to.AddDate(0, 0, -30)
	_, args = priceQuery("daily_prices", "btc", domrepo.Between(from, to))
	assert.Equal(t, []any{"btc", from, to}, args)
}

func TestArticleQueryOpenRange(t *testing.T) {
	q, args := articleQuery("news_articles", "eth", domrepo.DateRange{})
	assert.Equal(t, "SELECT published_at, sentiment FROM news_articles WHERE asset_id = ? ORDER BY published_at ASC", q)
	assert.Equal(t, []any{"eth"}, args)
}

func TestPricePointFromRowNulls(t *testing.T) {
	day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	valid := func(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

	ok := pricePointFromRow("btc", day, valid(101.5), valid(2000), sql.NullFloat64{})
	assert.Equal(t, 101.5, ok.Price)
	assert.Equal(t, 2000.0, ok.Volume)
	assert.Zero(t, ok.MarketCap)

	noVolume := pricePointFromRow("btc", day.AddDate(0, 0, 1), valid(102), sql.NullFloat64{}, valid(1e9))
	assert.True(t, math.IsNaN(noVolume.Volume))
	assert.Equal(t, 1e9, noVolume.MarketCap)

	noPrice := pricePointFromRow("btc", day.AddDate(0, 0, 2), sql.NullFloat64{}, valid(10), valid(1e9))
	assert.True(t, math.IsNaN(noPrice.Price))

	kept, rejects := features.SanitizePoints("btc", []models.DailyPricePoint{ok, noVolume, noPrice})
	require.Len(t, kept, 1)
	assert.Equal(t, day, kept[0].Date)
	assert.Len(t, rejects, 2)
}
