package ports

import (
	"context"
	"time"

	"SmartphoneRanker/internal/domain"
)

// ListingSource pulls ordered bestseller candidates from the marketplace.
type ListingSource interface {
	FetchListings(ctx context.Context, limit int) ([]domain.ProductCandidate, error)
}

// ReviewKind records which extraction path produced a review set.
type ReviewKind string

const (
	ReviewsContainers  ReviewKind = "containers"
	ReviewsFallback    ReviewKind = "fallback"
	ReviewsPlaceholder ReviewKind = "placeholder"
)

// ReviewResult carries normalized review texts and the path that produced them.
type ReviewResult struct {
	Kind    ReviewKind
	Reviews []string
}

// ReviewSource fetches review texts for a single product link.
type ReviewSource interface {
	FetchReviews(ctx context.Context, productLink string, maxReviews int) (ReviewResult, error)
}

// Classifier is the external text-classification model, one label set per input.
type Classifier interface {
	Classify(ctx context.Context, texts []string) ([][]domain.LabelScore, error)
}

// SentimentScorer turns review texts into a sentiment summary; it never fails.
type SentimentScorer interface {
	Score(ctx context.Context, reviews []string) domain.SentimentSummary
}

// RankingCache stores the single ranked-list slot across memory and disk.
type RankingCache interface {
	Get(ctx context.Context) ([]domain.RankedProduct, bool)
	Put(ctx context.Context, products []domain.RankedProduct)
	Clear(ctx context.Context)
}

// RankingRepository keeps the history of successful runs.
type RankingRepository interface {
	SaveRun(ctx context.Context, run domain.RankingRun) error
	RecentRuns(ctx context.Context, limit int) ([]domain.RankingRun, error)
}

// Notifier streams fresh rankings to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when refresh jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
