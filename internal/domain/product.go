package domain

import "time"

// ProductCandidate is a listing entry before review and sentiment enrichment.
type ProductCandidate struct {
	Name   string
	Link   string
	Price  *string
	Rating *float64
	// Rank is the 1-based acceptance position inside one extraction run.
	Rank int
}

// LabelScore is a single class probability returned by the sentiment classifier.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// SentimentSummary aggregates classifier output for one product's reviews.
type SentimentSummary struct {
	AverageSentiment float64
	PositiveRatio    float64
}

// NeutralSentiment is returned when there is nothing to score or scoring fails.
var NeutralSentiment = SentimentSummary{AverageSentiment: 0.5, PositiveRatio: 0.5}

// RankedProduct is the unit served to callers and persisted in snapshots.
type RankedProduct struct {
	Name             string    `json:"name"`
	Link             string    `json:"link"`
	Price            *string   `json:"price"`
	Rating           *float64  `json:"rating"`
	ReviewCount      int       `json:"review_count"`
	AverageSentiment float64   `json:"average_sentiment"`
	PositiveRatio    float64   `json:"positive_ratio"`
	CompositeScore   float64   `json:"composite_score"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Snapshot is the on-disk representation of the ranked list.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Data      []RankedProduct `json:"data"`
}

// RankingRun is one successful pipeline execution recorded in history.
type RankingRun struct {
	ID          string          `json:"id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Products    []RankedProduct `json:"products"`
}
