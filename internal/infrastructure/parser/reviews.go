package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"SmartphoneRanker/internal/domain"
	"SmartphoneRanker/internal/ports"
	"SmartphoneRanker/internal/textnorm"
)

// DefaultReviewsURLTemplate receives the product identifier in place of {id}.
const DefaultReviewsURLTemplate = "https://www.amazon.in/product-reviews/{id}?reviewerType=all_reviews&language=en_IN&sortBy=recent"

const (
	minReviewLength      = 20
	minFallbackSpanChars = 50
	maxFallbackSpanChars = 1000
)

var (
	reviewContainerSelectors = []string{
		`div[data-hook="review"]`,
		`div[class*="review"]`,
		`div[id*="review"]`,
		`.review-item`,
		`.cr-original-review-text`,
	}

	reviewTextSelectors = []string{
		`span[data-hook="review-body"]`,
		`.cr-original-review-text`,
		`.review-text`,
		`span[class*="review"]`,
		`div[class*="text"]`,
	}

	reviewIndicators = []string{
		"good", "bad", "excellent", "poor", "love", "hate", "recommend", "buy",
		"purchase", "quality", "price", "value", "phone", "mobile",
	}

	placeholderReviews = []string{
		"Great product, very satisfied with the quality and performance.",
		"Good value for money, works as expected.",
		"Fast delivery and excellent build quality.",
		"Highly recommended, meets all my requirements.",
		"Decent product but could be better in some aspects.",
		"Amazing phone with great camera quality.",
		"Battery life is excellent, lasts all day.",
		"Fast charging feature is very convenient.",
		"Display quality is outstanding and vibrant.",
		"Performance is smooth for gaming and apps.",
	}
)

// ReviewSource implements ports.ReviewSource by scraping the product's reviews page.
type ReviewSource struct {
	fetcher  *Fetcher
	template string
	logger   *slog.Logger
}

var _ ports.ReviewSource = (*ReviewSource)(nil)

// NewReviewSource wires a fetcher with a reviews URL template containing {id}.
func NewReviewSource(fetcher *Fetcher, template string, log *slog.Logger) *ReviewSource {
	if template == "" {
		template = DefaultReviewsURLTemplate
	}
	return &ReviewSource{fetcher: fetcher, template: template, logger: log}
}

// FetchReviews downloads the reviews page for productLink and extracts at most maxReviews texts.
func (r *ReviewSource) FetchReviews(ctx context.Context, productLink string, maxReviews int) (ports.ReviewResult, error) {
	reviewsURL, err := ReviewsURL(r.template, productLink)
	if err != nil {
		return ports.ReviewResult{}, err
	}

	r.debug("fetch reviews", "url", reviewsURL)
	doc, err := r.fetcher.Fetch(ctx, reviewsURL)
	if err != nil {
		return ports.ReviewResult{}, fmt.Errorf("fetch reviews: %w", err)
	}

	res := r.Extract(doc, maxReviews)
	r.debug("reviews extracted", "kind", res.Kind, "count", len(res.Reviews))
	return res, nil
}

// Extract applies container selectors, then the span fallback, then placeholders.
func (r *ReviewSource) Extract(doc *goquery.Document, maxReviews int) ports.ReviewResult {
	if maxReviews <= 0 {
		return ports.ReviewResult{Kind: ports.ReviewsContainers}
	}

	if containers := firstMatch(doc.Selection, reviewContainerSelectors); containers != nil {
		return ports.ReviewResult{
			Kind:    ports.ReviewsContainers,
			Reviews: r.fromContainers(containers, maxReviews),
		}
	}

	if reviews := fallbackSpans(doc, maxReviews); len(reviews) > 0 {
		return ports.ReviewResult{Kind: ports.ReviewsFallback, Reviews: reviews}
	}

	r.warn("no reviews found, using placeholder reviews")
	return ports.ReviewResult{Kind: ports.ReviewsPlaceholder, Reviews: PlaceholderReviews(maxReviews)}
}

func (r *ReviewSource) fromContainers(containers *goquery.Selection, maxReviews int) []string {
	reviews := make([]string, 0, maxReviews)

	containers.EachWithBreak(func(i int, container *goquery.Selection) bool {
		if i >= maxReviews {
			return false
		}

		raw := ""
		if el := firstMatch(container, reviewTextSelectors); el != nil {
			raw = el.First().Text()
		}
		if strings.TrimSpace(raw) == "" {
			raw = container.Text()
		}

		text := textnorm.Normalize(raw)
		if utf8.RuneCountInString(text) < minReviewLength {
			r.debug("skip short review", "index", i)
			return true
		}
		reviews = append(reviews, text)
		return true
	})

	return reviews
}

func fallbackSpans(doc *goquery.Document, maxReviews int) []string {
	var reviews []string

	doc.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		raw := strings.TrimSpace(span.Text())
		size := utf8.RuneCountInString(raw)
		if size < minFallbackSpanChars || size >= maxFallbackSpanChars {
			return true
		}
		if !hasIndicator(strings.ToLower(raw)) {
			return true
		}

		text := textnorm.Normalize(raw)
		if utf8.RuneCountInString(text) < minReviewLength {
			return true
		}
		reviews = append(reviews, text)
		return len(reviews) < maxReviews
	})

	return reviews
}

// PlaceholderReviews returns the fixed generic review set, capped at n.
func PlaceholderReviews(n int) []string {
	if n > len(placeholderReviews) {
		n = len(placeholderReviews)
	}
	if n < 0 {
		n = 0
	}
	out := make([]string, n)
	copy(out, placeholderReviews[:n])
	return out
}

// ReviewsURL substitutes the identifier following /dp/ in productLink into template.
func ReviewsURL(template, productLink string) (string, error) {
	_, rest, found := strings.Cut(productLink, "/dp/")
	if !found {
		return "", fmt.Errorf("%s: %w", productLink, domain.ErrNoReviewURL)
	}

	id := rest
	if idx := strings.IndexAny(id, "/?#"); idx >= 0 {
		id = id[:idx]
	}
	if id == "" {
		return "", fmt.Errorf("%s: %w", productLink, domain.ErrNoReviewURL)
	}

	return strings.ReplaceAll(template, "{id}", url.PathEscape(id)), nil
}

func firstMatch(scope *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := scope.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func hasIndicator(lower string) bool {
	for _, word := range reviewIndicators {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

func (r *ReviewSource) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *ReviewSource) warn(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
