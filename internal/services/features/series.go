package features

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
	applogger "SentiCast/pkg/logger"
)

// Series is a sanitized daily history for one asset: ascending, one point per day,
// plus the asset's scored articles over the same span.
type Series struct {
	AssetID  string
	Points   []models.DailyPricePoint
	Articles []models.Article
}

// SanitizePoints normalizes dates to UTC days, drops malformed points and
// keeps the last point seen for a duplicated day. Rejected points are returned
// as UpstreamData errors for the caller to log.
func SanitizePoints(assetID string, in []models.DailyPricePoint) ([]models.DailyPricePoint, []error) {
	var rejects []error
	byDay := make(map[time.Time]int, len(in))
	out := make([]models.DailyPricePoint, 0, len(in))
	for _, p := range in {
		if err := checkPoint(p); err != nil {
			rejects = append(rejects, models.UpstreamData(assetID, "price point "+p.Date.Format(time.DateOnly), err))
			continue
		}
		p.AssetID = assetID
		p.Date = models.Day(p.Date)
		if i, ok := byDay[p.Date]; ok {
			out[i] = p
			continue
		}
		byDay[p.Date] = len(out)
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, rejects
}

func checkPoint(p models.DailyPricePoint) error {
	switch {
	case p.Date.IsZero():
		return errors.New("missing date")
	case math.IsNaN(p.Price) || math.IsInf(p.Price, 0):
		return fmt.Errorf("non-numeric price %v", p.Price)
	case p.Price < 0:
		return fmt.Errorf("negative price %v", p.Price)
	case math.IsNaN(p.Volume) || math.IsInf(p.Volume, 0) || p.Volume < 0:
		return fmt.Errorf("invalid volume %v", p.Volume)
	}
	return nil
}

// SanitizeArticles drops undated articles and non-finite or out-of-range scores.
// An article with a bad score keeps counting toward volume without a sentiment.
func SanitizeArticles(assetID string, in []models.Article) ([]models.Article, []error) {
	var rejects []error
	out := make([]models.Article, 0, len(in))
	for _, a := range in {
		if a.PublishedAt.IsZero() {
			rejects = append(rejects, models.UpstreamData(assetID, "article", errors.New("missing published_at")))
			continue
		}
		if s, ok := a.Sentiment.Value(); ok && (math.IsNaN(s) || s < -1 || s > 1) {
			rejects = append(rejects, models.UpstreamData(assetID, "article sentiment", fmt.Errorf("score %v outside [-1,1]", s)))
			a.Sentiment = models.NoSentiment()
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.Before(out[j].PublishedAt) })
	return out, rejects
}

// Loader reads and sanitizes per-asset history from the time-series store.
type Loader struct {
	store       domrepo.TimeSeriesStore
	historyDays int
	l           *applogger.Logger
}

// NewLoader creates a loader. historyDays bounds how far back prices are read; 0 reads everything.
func NewLoader(store domrepo.TimeSeriesStore, historyDays int, l *applogger.Logger) *Loader {
	return &Loader{store: store, historyDays: historyDays, l: l}
}

// Load returns the asset history with price dates <= upTo's day. Articles are
// fetched far enough back to cover the news windows of the earliest point.
func (ld *Loader) Load(ctx context.Context, assetID string, upTo time.Time, newsLookbackDays int) (Series, error) {
	end := models.Day(upTo).Add(24*time.Hour - time.Nanosecond)
	priceRange := domrepo.Until(end)
	if ld.historyDays > 0 {
		priceRange.From = models.Day(upTo).AddDate(0, 0, -ld.historyDays)
	}

	raw, err := ld.store.GetDailyPricePoints(ctx, assetID, priceRange)
	if err != nil {
		return Series{}, fmt.Errorf("get daily price points %s: %w", assetID, err)
	}
	points, rejects := SanitizePoints(assetID, raw)
	ld.logRejects(rejects)

	s := Series{AssetID: assetID, Points: points}
	if len(points) == 0 {
		return s, nil
	}

	newsRange := domrepo.Between(points[0].Date.AddDate(0, 0, -newsLookbackDays), end)
	rawArticles, err := ld.store.GetSentimentedArticles(ctx, assetID, newsRange)
	if err != nil {
		return Series{}, fmt.Errorf("get articles %s: %w", assetID, err)
	}
	articles, rejects := SanitizeArticles(assetID, rawArticles)
	ld.logRejects(rejects)
	s.Articles = articles
	return s, nil
}

func (ld *Loader) logRejects(rejects []error) {
	for _, err := range rejects {
		ld.l.Warn("upstream record skipped", applogger.Error(err))
	}
}
