package sentiment

import (
	"context"
	"log/slog"
	"strings"

	"SmartphoneRanker/internal/domain"
	"SmartphoneRanker/internal/ports"
)

// Scorer aggregates classifier output into a per-product sentiment summary.
type Scorer struct {
	classifier ports.Classifier
	logger     *slog.Logger
}

var _ ports.SentimentScorer = (*Scorer)(nil)

// NewScorer wires the classifier. A nil classifier scores everything neutral.
func NewScorer(classifier ports.Classifier, log *slog.Logger) *Scorer {
	var componentLogger *slog.Logger
	if log != nil {
		componentLogger = log.With("component", "sentiment")
	}
	return &Scorer{classifier: classifier, logger: componentLogger}
}

// Score never fails: empty input or a classifier error yields the neutral summary.
func (s *Scorer) Score(ctx context.Context, reviews []string) domain.SentimentSummary {
	if len(reviews) == 0 || s.classifier == nil {
		return domain.NeutralSentiment
	}

	rows, err := s.classifier.Classify(ctx, reviews)
	if err != nil {
		s.warn("classification failed", "reviews", len(reviews), "error", err)
		return domain.NeutralSentiment
	}
	if len(rows) < len(reviews) {
		s.debug("classifier returned fewer rows than inputs", "inputs", len(reviews), "rows", len(rows))
	}

	var sum float64
	var positives int
	for i := range reviews {
		p := 0.5
		if i < len(rows) {
			p = PositiveProbability(rows[i])
		}
		sum += p
		if p > 0.5 {
			positives++
		}
	}

	n := float64(len(reviews))
	return domain.SentimentSummary{
		AverageSentiment: sum / n,
		PositiveRatio:    float64(positives) / n,
	}
}

// PositiveProbability returns the positive-class score, or 0.5 when no positive label is present.
func PositiveProbability(scores []domain.LabelScore) float64 {
	for _, ls := range scores {
		if isPositive(ls.Label) {
			return ls.Score
		}
	}
	return 0.5
}

func isPositive(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positive", "label_1", "pos":
		return true
	}
	return false
}

func (s *Scorer) debug(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Debug(msg, args...)
}

func (s *Scorer) warn(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, args...)
}
