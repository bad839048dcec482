package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SmartphoneRanker/internal/domain"
	"SmartphoneRanker/internal/ports"
	"SmartphoneRanker/internal/ranking"
)

const (
	DefaultListingLimit = 20
	DefaultMaxReviews   = 50
)

// placeholderReviews stand in when a product yields no usable review text.
var placeholderReviews = []string{
	"Good phone with decent features",
	"Value for money product",
	"Camera quality is satisfactory",
	"Battery life is okay",
	"Build quality could be better",
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Listings ports.ListingSource
	Reviews  ports.ReviewSource
	Scorer   ports.SentimentScorer
	Logger   *slog.Logger

	ListingLimit int
	MaxReviews   int
	// CourtesyDelay pauses between candidates; zero disables it.
	CourtesyDelay time.Duration

	// Sleep and Now default to a context-aware timer and time.Now.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Pipeline implements the listing → reviews → sentiment → ranking workflow.
type Pipeline struct {
	listings ports.ListingSource
	reviews  ports.ReviewSource
	scorer   ports.SentimentScorer
	logger   *slog.Logger

	listingLimit int
	maxReviews   int
	delay        time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		listings:     deps.Listings,
		reviews:      deps.Reviews,
		scorer:       deps.Scorer,
		listingLimit: deps.ListingLimit,
		maxReviews:   deps.MaxReviews,
		delay:        deps.CourtesyDelay,
		sleep:        deps.Sleep,
		now:          deps.Now,
	}
	if deps.Logger != nil {
		p.logger = deps.Logger.With("component", "pipeline")
	}
	if p.listingLimit <= 0 {
		p.listingLimit = DefaultListingLimit
	}
	if p.maxReviews <= 0 {
		p.maxReviews = DefaultMaxReviews
	}
	if p.delay < 0 {
		p.delay = 0
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Run produces at most ranking.TopCount products ordered by composite score.
// It fails with domain.ErrExtractionUnavailable when the listing yields nothing
// and with domain.ErrNoDataProcessed when every candidate failed.
func (p *Pipeline) Run(ctx context.Context) ([]domain.RankedProduct, error) {
	if p.listings == nil {
		return nil, domain.ErrExtractionUnavailable
	}

	candidates, err := p.listings.FetchListings(ctx, p.listingLimit)
	if err != nil {
		p.logError("listing fetch failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionUnavailable, err)
	}
	if len(candidates) == 0 {
		p.logError("no candidates extracted")
		return nil, domain.ErrExtractionUnavailable
	}
	p.info("processing candidates", "count", len(candidates))

	processed := make([]domain.RankedProduct, 0, len(candidates))
	for i, candidate := range candidates {
		if i > 0 && p.delay > 0 {
			if err := p.sleep(ctx, p.delay); err != nil {
				return nil, fmt.Errorf("pipeline interrupted: %w", err)
			}
		}

		product, err := p.processCandidate(ctx, candidate)
		if err != nil {
			p.logError("candidate dropped", "rank", candidate.Rank, "name", truncate(candidate.Name, 50), "error", err)
			continue
		}
		processed = append(processed, product)
	}

	if len(processed) == 0 {
		return nil, domain.ErrNoDataProcessed
	}

	return ranking.TopN(processed, ranking.TopCount), nil
}

func (p *Pipeline) processCandidate(ctx context.Context, candidate domain.ProductCandidate) (product domain.RankedProduct, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if candidate.Name == "" || candidate.Link == "" {
		return product, errors.New("candidate missing name or link")
	}
	p.debug("processing candidate", "rank", candidate.Rank, "name", truncate(candidate.Name, 50))

	reviews := p.collectReviews(ctx, candidate)

	summary := domain.NeutralSentiment
	if p.scorer != nil {
		summary = p.scorer.Score(ctx, reviews)
	}

	return domain.RankedProduct{
		Name:             candidate.Name,
		Link:             candidate.Link,
		Price:            candidate.Price,
		Rating:           candidate.Rating,
		ReviewCount:      len(reviews),
		AverageSentiment: ranking.Round4(summary.AverageSentiment),
		PositiveRatio:    ranking.Round4(summary.PositiveRatio),
		CompositeScore:   ranking.CompositeScore(candidate.Rank, summary.PositiveRatio),
		LastUpdated:      p.now(),
	}, nil
}

func (p *Pipeline) collectReviews(ctx context.Context, candidate domain.ProductCandidate) []string {
	if p.reviews == nil {
		return placeholders()
	}

	res, err := p.reviews.FetchReviews(ctx, candidate.Link, p.maxReviews)
	if err != nil {
		p.warn("review fetch failed, using placeholders", "rank", candidate.Rank, "error", err)
		return placeholders()
	}
	if len(res.Reviews) == 0 {
		p.debug("no reviews extracted, using placeholders", "rank", candidate.Rank)
		return placeholders()
	}
	p.debug("reviews extracted", "rank", candidate.Rank, "kind", res.Kind, "count", len(res.Reviews))
	return res.Reviews
}

func placeholders() []string {
	out := make([]string, len(placeholderReviews))
	copy(out, placeholderReviews)
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Debug(msg, args...)
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Info(msg, args...)
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Warn(msg, args...)
}

func (p *Pipeline) logError(msg string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Error(msg, args...)
}
