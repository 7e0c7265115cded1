package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
	pkgch "SentiCast/pkg/clickhouse"
	applogger "SentiCast/pkg/logger"
)

// CHTables names the ClickHouse tables read by CHTimeSeriesStore.
type CHTables struct {
	Prices   string
	Articles string
	Assets   string
}

// CHTimeSeriesStore implements TimeSeriesStore backed by ClickHouse.
type CHTimeSeriesStore struct {
	db     *sql.DB
	tables CHTables
	l      *applogger.Logger
}

var _ domrepo.TimeSeriesStore = (*CHTimeSeriesStore)(nil)

func NewCHTimeSeriesStore(ch *pkgch.Client, tables CHTables, l *applogger.Logger) *CHTimeSeriesStore {
	return &CHTimeSeriesStore{db: ch.DB(), tables: tables, l: l}
}

func (s *CHTimeSeriesStore) ListAssets(ctx context.Context) ([]models.Asset, error) {
	q := fmt.Sprintf(`SELECT id, symbol, name FROM %s ORDER BY id`, s.tables.Assets)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, models.UpstreamData("", "list assets", err)
	}
	defer rows.Close()

	var out []models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Name); err != nil {
			return nil, models.UpstreamData("", "scan asset", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, models.UpstreamData("", "list assets", err)
	}
	return out, nil
}

func (s *CHTimeSeriesStore) GetDailyPricePoints(ctx context.Context, assetID string, r domrepo.DateRange) ([]models.DailyPricePoint, error) {
	start := time.Now()
	q, args := priceQuery(s.tables.Prices, assetID, r)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, models.UpstreamData(assetID, "query daily prices", err)
	}
	defer rows.Close()

	out := make([]models.DailyPricePoint, 0, 256)
	for rows.Next() {
		var (
			date                     time.Time
			price, volume, marketCap sql.NullFloat64
		)
		if err := rows.Scan(&date, &price, &volume, &marketCap); err != nil {
			return nil, models.UpstreamData(assetID, "scan daily price", err)
		}
		out = append(out, pricePointFromRow(assetID, date, price, volume, marketCap))
	}
	if err := rows.Err(); err != nil {
		return nil, models.UpstreamData(assetID, "query daily prices", err)
	}
	s.l.Debug("clickhouse daily prices ok",
		applogger.String("asset", assetID),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

func (s *CHTimeSeriesStore) GetSentimentedArticles(ctx context.Context, assetID string, r domrepo.DateRange) ([]models.Article, error) {
	start := time.Now()
	q, args := articleQuery(s.tables.Articles, assetID, r)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, models.UpstreamData(assetID, "query articles", err)
	}
	defer rows.Close()

	out := make([]models.Article, 0, 256)
	for rows.Next() {
		var (
			a     = models.Article{AssetID: assetID}
			score sql.NullFloat64
		)
		if err := rows.Scan(&a.PublishedAt, &score); err != nil {
			return nil, models.UpstreamData(assetID, "scan article", err)
		}
		if score.Valid {
			a.Sentiment = models.SentimentOf(score.Float64)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, models.UpstreamData(assetID, "query articles", err)
	}
	s.l.Debug("clickhouse articles ok",
		applogger.String("asset", assetID),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

// pricePointFromRow maps a NULL price or volume to NaN so sanitizing rejects
// the row on its own. A NULL market cap reads as zero.
func pricePointFromRow(assetID string, date time.Time, price, volume, marketCap sql.NullFloat64) models.DailyPricePoint {
	p := models.DailyPricePoint{AssetID: assetID, Date: date, Price: math.NaN(), Volume: math.NaN()}
	if price.Valid {
		p.Price = price.Float64
	}
	if volume.Valid {
		p.Volume = volume.Float64
	}
	if marketCap.Valid {
		p.MarketCap = marketCap.Float64
	}
	return p
}

func priceQuery(table, assetID string, r domrepo.DateRange) (string, []any) {
	where, args := rangeClause("date", assetID, r)
	return fmt.Sprintf(`SELECT date, price, volume, market_cap FROM %s WHERE %s ORDER BY date ASC`, table, where), args
}

func articleQuery(table, assetID string, r domrepo.DateRange) (string, []any) {
	where, args := rangeClause("published_at", assetID, r)
	return fmt.Sprintf(`SELECT published_at, sentiment FROM %s WHERE %s ORDER BY published_at ASC`, table, where), args
}

func rangeClause(column, assetID string, r domrepo.DateRange) (string, []any) {
	conds := []string{"asset_id = ?"}
	args := []any{assetID}
	if !r.From.IsZero() {
		conds = append(conds, column+" >= ?")
		args = append(args, r.From)
	}
	if !r.To.IsZero() {
		conds = append(conds, column+" <= ?")
		args = append(args, r.To)
	}
	return strings.Join(conds, " AND "), args
}
