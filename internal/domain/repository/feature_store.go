package repository

import (
	"context"
	"time"

	"SentiCast/internal/domain/models"
)

// TimeSeriesStore provides read-only access to materialized daily prices and scored news.
// Implementations return price points in ascending date order.
type TimeSeriesStore interface {
	ListAssets(ctx context.Context) ([]models.Asset, error)
	GetDailyPricePoints(ctx context.Context, assetID string, r DateRange) ([]models.DailyPricePoint, error)
	GetSentimentedArticles(ctx context.Context, assetID string, r DateRange) ([]models.Article, error)
}

// DateRange is an inclusive range of instants. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Until returns a range open at the start and closed at t.
func Until(t time.Time) DateRange { return DateRange{To: t} }

// Between returns the inclusive range [from, to].
func Between(from, to time.Time) DateRange { return DateRange{From: from, To: to} }

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}
