package ranking

import (
	"math"
	"sort"

	"SmartphoneRanker/internal/domain"
)

const (
	rankWeight  = 0.4
	ratioWeight = 0.6

	// TopCount is the number of products served per ranked list.
	TopCount = 5
)

// CompositeScore blends sales rank and positive ratio, rounded to 4 decimals.
// A rank below 1 contributes nothing.
func CompositeScore(rank int, positiveRatio float64) float64 {
	var rankComponent float64
	if rank >= 1 {
		rankComponent = 1 / float64(rank)
	}
	return Round4(rankWeight*rankComponent + ratioWeight*positiveRatio)
}

// TopN returns a new slice sorted by composite score, descending, keeping input
// order for ties, truncated to n.
func TopN(products []domain.RankedProduct, n int) []domain.RankedProduct {
	sorted := make([]domain.RankedProduct, len(products))
	copy(sorted, products)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CompositeScore > sorted[j].CompositeScore
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Round4 rounds half away from zero to 4 decimal places.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
