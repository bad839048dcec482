// Package extract models ordered listing-extraction strategies with explicit results.
package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"SmartphoneRanker/internal/domain"
)

// Kind tells the caller whether a strategy produced usable candidates.
type Kind int

const (
	// Empty means the strategy ran but accepted nothing.
	Empty Kind = iota
	// Found means at least one candidate was accepted.
	Found
)

func (k Kind) String() string {
	if k == Found {
		return "found"
	}
	return "empty"
}

// Result is the outcome of a single strategy run.
type Result struct {
	Strategy   string
	Kind       Kind
	Candidates []domain.ProductCandidate
}

// Strategy captures one way of locating product candidates in a listing document.
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document, limit int) Result
}

// Chain runs strategies in order and stops at the first one that finds candidates.
type Chain struct {
	strategies []Strategy
}

// NewChain keeps the provided order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Names lists the strategies in execution order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Run returns the first Found result, or an Empty result when all strategies miss.
// Results are never merged across strategies.
func (c *Chain) Run(doc *goquery.Document, limit int) Result {
	for _, s := range c.strategies {
		res := s.Extract(doc, limit)
		if res.Kind == Found && len(res.Candidates) > 0 {
			if len(res.Candidates) > limit {
				res.Candidates = res.Candidates[:limit]
			}
			return res
		}
	}
	return Result{Kind: Empty}
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(strategy Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[strategy.Name()] = strategy
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if strategy, ok := r.strategies[name]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("strategy %s is not registered", name)
}

// Chain resolves names into an ordered chain.
func (r *Registry) Chain(names []string) (*Chain, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no strategies configured")
	}
	strategies := make([]Strategy, 0, len(names))
	for _, name := range names {
		s, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return NewChain(strategies...), nil
}
