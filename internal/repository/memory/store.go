// Package memory holds in-process implementations of the domain stores, used
// for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
)

type recordKey struct {
	assetID string
	day     time.Time
}

// Store is a mutex-guarded in-memory time-series store and record sink.
type Store struct {
	mu          sync.RWMutex
	assets      []models.Asset
	prices      map[string][]models.DailyPricePoint
	articles    map[string][]models.Article
	anomalies   map[recordKey]models.PriceAnomalyEvent
	predictions map[recordKey]models.DirectionPrediction
}

var (
	_ domrepo.TimeSeriesStore = (*Store)(nil)
	_ domrepo.AnomalySink     = (*Store)(nil)
	_ domrepo.PredictionSink  = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		prices:      make(map[string][]models.DailyPricePoint),
		articles:    make(map[string][]models.Article),
		anomalies:   make(map[recordKey]models.PriceAnomalyEvent),
		predictions: make(map[recordKey]models.DirectionPrediction),
	}
}

// AddAsset registers an asset; re-adding the same ID is a no-op.
func (s *Store) AddAsset(a models.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assets {
		if existing.ID == a.ID {
			return
		}
	}
	s.assets = append(s.assets, a)
}

// AddPrices appends raw price points for an asset without validation.
func (s *Store) AddPrices(assetID string, points ...models.DailyPricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		p.AssetID = assetID
		s.prices[assetID] = append(s.prices[assetID], p)
	}
}

func (s *Store) AddArticles(assetID string, articles ...models.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range articles {
		a.AssetID = assetID
		s.articles[assetID] = append(s.articles[assetID], a)
	}
}

func (s *Store) ListAssets(_ context.Context) ([]models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Asset, len(s.assets))
	copy(out, s.assets)
	return out, nil
}

func (s *Store) GetDailyPricePoints(_ context.Context, assetID string, r domrepo.DateRange) ([]models.DailyPricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DailyPricePoint
	for _, p := range s.prices[assetID] {
		if r.Contains(p.Date) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) GetSentimentedArticles(_ context.Context, assetID string, r domrepo.DateRange) ([]models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Article
	for _, a := range s.articles[assetID] {
		if r.Contains(a.PublishedAt) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) UpsertAnomalyEvent(_ context.Context, e models.PriceAnomalyEvent) (bool, error) {
	if e.AssetID == "" {
		return false, fmt.Errorf("anomaly event without asset")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := recordKey{assetID: e.AssetID, day: models.Day(e.Date)}
	_, exists := s.anomalies[k]
	s.anomalies[k] = e
	return !exists, nil
}

func (s *Store) UpsertDirectionPrediction(_ context.Context, p models.DirectionPrediction) (bool, error) {
	if p.AssetID == "" {
		return false, fmt.Errorf("prediction without asset")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := recordKey{assetID: p.AssetID, day: models.Day(p.PredictionDate)}
	prev, exists := s.predictions[k]
	if exists {
		p.CreatedAt = prev.CreatedAt
	}
	s.predictions[k] = p
	return !exists, nil
}

// Anomalies returns stored events ordered by asset then date.
func (s *Store) Anomalies() []models.PriceAnomalyEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PriceAnomalyEvent, 0, len(s.anomalies))
	for _, e := range s.anomalies {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssetID != out[j].AssetID {
			return out[i].AssetID < out[j].AssetID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Predictions returns stored predictions ordered by asset then date.
func (s *Store) Predictions() []models.DirectionPrediction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DirectionPrediction, 0, len(s.predictions))
	for _, p := range s.predictions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssetID != out[j].AssetID {
			return out[i].AssetID < out[j].AssetID
		}
		return out[i].PredictionDate.Before(out[j].PredictionDate)
	})
	return out
}
