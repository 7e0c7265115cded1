package models

import "time"

// Asset is a tradable instrument tracked by the pipeline.
type Asset struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// DailyPricePoint is one end-of-day observation for an asset.
type DailyPricePoint struct {
	AssetID   string    `json:"asset_id"`
	Date      time.Time `json:"date"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	MarketCap float64   `json:"market_cap"`
}

// Sentiment is an optional sentiment score. The zero value is "absent".
type Sentiment struct {
	score float64
	ok    bool
}

// SentimentOf returns a present sentiment.
func SentimentOf(score float64) Sentiment {
	return Sentiment{score: score, ok: true}
}

// NoSentiment returns an absent sentiment.
func NoSentiment() Sentiment {
	return Sentiment{}
}

// Value reports the score and whether it is present.
func (s Sentiment) Value() (float64, bool) {
	return s.score, s.ok
}

func (s Sentiment) Present() bool { return s.ok }

// Article is a news item. An empty AssetID means market-wide news.
type Article struct {
	AssetID     string    `json:"asset_id,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Sentiment   Sentiment `json:"-"`
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
