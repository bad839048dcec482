package parser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"SmartphoneRanker/internal/domain"
	"SmartphoneRanker/internal/extract"
	"SmartphoneRanker/internal/ports"
)

// ListingSource implements ports.ListingSource via an ordered strategy chain.
type ListingSource struct {
	fetcher *Fetcher
	chain   *extract.Chain
	listURL string
	logger  *slog.Logger
}

var _ ports.ListingSource = (*ListingSource)(nil)

// NewListingSource wires the bestseller page URL with its extraction chain.
func NewListingSource(fetcher *Fetcher, chain *extract.Chain, listURL string, log *slog.Logger) *ListingSource {
	return &ListingSource{
		fetcher: fetcher,
		chain:   chain,
		listURL: listURL,
		logger:  log,
	}
}

// DefaultRegistry registers the built-in listing strategies.
func DefaultRegistry(baseURL string) *extract.Registry {
	reg := extract.NewRegistry()
	reg.Register(NewDirectLinkStrategy(baseURL))
	reg.Register(NewContainerStrategy(baseURL))
	return reg
}

// FetchListings downloads the bestseller page and extracts up to limit candidates.
// A fetch failure is returned as an error; a document without candidates is an empty slice.
func (s *ListingSource) FetchListings(ctx context.Context, limit int) ([]domain.ProductCandidate, error) {
	if s.fetcher == nil || s.chain == nil {
		return nil, fmt.Errorf("listing source is not configured")
	}

	s.debug("fetch listings", "url", s.listURL, "limit", limit, "strategies", s.chain.Names())
	doc, err := s.fetcher.Fetch(ctx, s.listURL)
	if err != nil {
		return nil, fmt.Errorf("fetch bestsellers: %w", err)
	}

	return s.Extract(doc, limit), nil
}

// Extract runs the strategy chain against an already parsed document.
func (s *ListingSource) Extract(doc *goquery.Document, limit int) []domain.ProductCandidate {
	if limit <= 0 {
		return nil
	}

	res := s.chain.Run(doc, limit)
	if res.Kind == extract.Empty {
		s.warn("no candidates found by any strategy", "strategies", s.chain.Names())
		return []domain.ProductCandidate{}
	}

	s.debug("listing extracted", "strategy", res.Strategy, "count", len(res.Candidates))
	return res.Candidates
}

func (s *ListingSource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *ListingSource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
