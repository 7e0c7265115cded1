package features

import (
	"context"
	"sort"
	"time"

	"SentiCast/internal/domain/models"
	"SentiCast/internal/domain/service"
	applogger "SentiCast/pkg/logger"
)

// Config holds window sizes and thresholds.
type Config struct {
	PriceWindow         int
	NewsCurrentDays     int
	NewsPreviousDays    int
	PositiveThreshold   float64
	NegativeThreshold   float64
	SpikeMinCount       int
	SpikeMinChange      float64
	DivergenceTrend     float64
	DivergenceSentiment float64
}

func DefaultConfig() Config {
	return Config{
		PriceWindow:         7,
		NewsCurrentDays:     3,
		NewsPreviousDays:    3,
		PositiveThreshold:   0.05,
		NegativeThreshold:   -0.05,
		SpikeMinCount:       5,
		SpikeMinChange:      3,
		DivergenceTrend:     -1,
		DivergenceSentiment: 0.1,
	}
}

// NewsLookbackDays is how many days of news before a price point the engine reads.
func (c Config) NewsLookbackDays() int {
	return c.NewsCurrentDays + c.NewsPreviousDays
}

// Engine computes feature vectors from trailing price and news windows.
type Engine struct {
	loader *Loader
	cfg    Config
	l      *applogger.Logger
}

var _ service.FeatureEngine = (*Engine)(nil)

func NewEngine(loader *Loader, cfg Config, l *applogger.Logger) *Engine {
	return &Engine{loader: loader, cfg: cfg, l: l}
}

func (e *Engine) Config() Config { return e.cfg }

// Compute loads the asset's history up to anchor and computes its vector.
// ok is false when fewer than PriceWindow points exist on or before anchor.
func (e *Engine) Compute(ctx context.Context, assetID string, anchor time.Time) (models.FeatureVector, bool, error) {
	s, err := e.loader.Load(ctx, assetID, anchor, e.cfg.NewsLookbackDays())
	if err != nil {
		return models.FeatureVector{}, false, err
	}
	v, ok := e.ComputeFromSeries(s, anchor)
	return v, ok, nil
}

// ComputeFromSeries is the pure part of Compute.
func (e *Engine) ComputeFromSeries(s Series, anchor time.Time) (models.FeatureVector, bool) {
	day := models.Day(anchor)
	end := sort.Search(len(s.Points), func(i int) bool { return s.Points[i].Date.After(day) })
	if end < e.cfg.PriceWindow {
		return models.FeatureVector{}, false
	}
	window := s.Points[end-e.cfg.PriceWindow : end]

	prices := make([]float64, len(window))
	volumes := make([]float64, len(window))
	for i, p := range window {
		prices[i] = p.Price
		volumes[i] = p.Volume
	}
	trend, ok := PercentChange(prices[0], prices[len(prices)-1])
	if !ok {
		e.l.Warn("zero price at window start",
			applogger.String("asset", s.AssetID),
			applogger.String("anchor", day.Format(time.DateOnly)))
		return models.FeatureVector{}, false
	}

	currFrom := day.AddDate(0, 0, -(e.cfg.NewsCurrentDays - 1))
	prevFrom := currFrom.AddDate(0, 0, -e.cfg.NewsPreviousDays)
	curr := e.summarize(ArticlesBetween(s.Articles, currFrom, day.AddDate(0, 0, 1)))
	prev := e.summarize(ArticlesBetween(s.Articles, prevFrom, currFrom))

	v := models.FeatureVector{
		AssetID:     s.AssetID,
		AnchorDate:  day,
		AnchorPrice: prices[len(prices)-1],

		PriceTrend7d: trend,
		Volatility7d: populationStd(prices),
		AvgVolume7d:  mean(volumes),
		AvgPrice7d:   mean(prices),

		NewsVolumeChange: float64(curr.count - prev.count),
		SentimentChange:  curr.meanSentiment - prev.meanSentiment,
		PositiveChange:   float64(curr.positive - prev.positive),
		NegativeChange:   float64(curr.negative - prev.negative),

		PriceSentimentAlignment: trend * curr.meanSentiment,
	}
	if curr.negative > e.cfg.SpikeMinCount && v.NegativeChange > e.cfg.SpikeMinChange {
		v.NegativeSpike = 1
	}
	if curr.positive > e.cfg.SpikeMinCount && v.PositiveChange > e.cfg.SpikeMinChange {
		v.PositiveSpike = 1
	}
	if trend < e.cfg.DivergenceTrend && curr.meanSentiment > e.cfg.DivergenceSentiment {
		v.Divergence = 1
	}
	return v, true
}

type newsWindow struct {
	count         int
	meanSentiment float64
	positive      int
	negative      int
}

// summarize counts every article but averages only scored ones.
func (e *Engine) summarize(articles []models.Article) newsWindow {
	w := newsWindow{count: len(articles)}
	scores := make([]float64, 0, len(articles))
	for _, a := range articles {
		s, ok := a.Sentiment.Value()
		if !ok {
			continue
		}
		scores = append(scores, s)
		if s > e.cfg.PositiveThreshold {
			w.positive++
		}
		if s < e.cfg.NegativeThreshold {
			w.negative++
		}
	}
	w.meanSentiment = mean(scores)
	return w
}

// ArticlesBetween returns the articles published in [from, to).
// articles must be sorted by PublishedAt.
func ArticlesBetween(articles []models.Article, from, to time.Time) []models.Article {
	lo := sort.Search(len(articles), func(i int) bool { return !articles[i].PublishedAt.Before(from) })
	hi := sort.Search(len(articles), func(i int) bool { return !articles[i].PublishedAt.Before(to) })
	if hi < lo {
		return nil
	}
	return articles[lo:hi]
}
