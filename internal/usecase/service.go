package usecase

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"SmartphoneRanker/internal/cache"
	"SmartphoneRanker/internal/domain"
	"SmartphoneRanker/internal/ports"
)

// Runner executes one full ranking run.
type Runner interface {
	Run(ctx context.Context) ([]domain.RankedProduct, error)
}

// StatusCache is a ranking cache that can describe its tiers.
type StatusCache interface {
	ports.RankingCache
	Status() cache.Status
}

// ServiceDeps wires the ranking service.
type ServiceDeps struct {
	Pipeline Runner
	Cache    StatusCache
	History  ports.RankingRepository
	Notifier ports.Notifier
	Logger   *slog.Logger

	ClassifierConfigured bool
	Now                  func() time.Time
}

// RankingService is the entry point for the transport layer and the scheduler.
type RankingService struct {
	pipeline Runner
	cache    StatusCache
	history  ports.RankingRepository
	notifier ports.Notifier
	logger   *slog.Logger

	classifierConfigured bool
	now                  func() time.Time

	group    singleflight.Group
	inFlight atomic.Bool

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// RefreshAck acknowledges an invalidation request.
type RefreshAck struct {
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceStatus summarises service state for health reporting.
type ServiceStatus struct {
	ClassifierConfigured bool         `json:"model_loaded"`
	Cached               bool         `json:"cached"`
	RunInFlight          bool         `json:"run_in_flight"`
	HistoryEnabled       bool         `json:"history_enabled"`
	Storage              cache.Status `json:"storage"`
}

// NewRankingService constructs the service.
func NewRankingService(deps ServiceDeps) *RankingService {
	s := &RankingService{
		pipeline:             deps.Pipeline,
		cache:                deps.Cache,
		history:              deps.History,
		notifier:             deps.Notifier,
		classifierConfigured: deps.ClassifierConfigured,
		now:                  deps.Now,
		entropy:              ulid.Monotonic(rand.Reader, 0),
	}
	if deps.Logger != nil {
		s.logger = deps.Logger.With("component", "ranking_service")
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// RankedList serves the cached list or runs the pipeline. Concurrent callers on
// a miss share a single run.
func (s *RankingService) RankedList(ctx context.Context) ([]domain.RankedProduct, error) {
	if products, ok := s.cache.Get(ctx); ok {
		s.debug("serving cached ranking", "count", len(products))
		return products, nil
	}
	return s.shared(ctx, true)
}

// RefreshJob runs the pipeline bypassing the cache and stores the result.
// A caller going away does not abort a run others may be waiting on.
func (s *RankingService) RefreshJob(ctx context.Context) ([]domain.RankedProduct, error) {
	return s.shared(ctx, false)
}

// shared funnels runs through one flight. With recheck set, a caller arriving
// after a finished run picks up its cached result instead of starting another.
func (s *RankingService) shared(ctx context.Context, recheck bool) ([]domain.RankedProduct, error) {
	v, err, joined := s.group.Do(cache.Key, func() (any, error) {
		if recheck {
			if products, ok := s.cache.Get(ctx); ok {
				s.debug("cache filled by a finished run", "count", len(products))
				return products, nil
			}
		}
		s.inFlight.Store(true)
		defer s.inFlight.Store(false)
		return s.run(context.WithoutCancel(ctx))
	})
	if joined {
		s.debug("joined in-flight run")
	}
	if err != nil {
		return nil, err
	}

	products := v.([]domain.RankedProduct)
	out := make([]domain.RankedProduct, len(products))
	copy(out, products)
	return out, nil
}

// Refresh clears both cache tiers and starts a background run unless one is
// already in flight. It never cancels a running pipeline.
func (s *RankingService) Refresh(ctx context.Context) RefreshAck {
	s.cache.Clear(ctx)
	s.info("cache cleared")

	ack := RefreshAck{Timestamp: s.now()}
	if s.inFlight.Load() {
		ack.Detail = "Cache and persistent storage cleared, refresh already in progress"
		return ack
	}

	go func() {
		if _, err := s.RefreshJob(context.Background()); err != nil {
			s.warn("background refresh failed", "error", err)
		}
	}()
	ack.Detail = "Cache and persistent storage cleared, refresh initiated"
	return ack
}

// Status reports cache, history and run state.
func (s *RankingService) Status() ServiceStatus {
	storage := s.cache.Status()
	return ServiceStatus{
		ClassifierConfigured: s.classifierConfigured,
		Cached:               storage.Memory.Size > 0,
		RunInFlight:          s.inFlight.Load(),
		HistoryEnabled:       s.history != nil,
		Storage:              storage,
	}
}

// History returns recent runs, newest first.
func (s *RankingService) History(ctx context.Context, limit int) ([]domain.RankingRun, error) {
	if s.history == nil {
		return []domain.RankingRun{}, nil
	}
	return s.history.RecentRuns(ctx, limit)
}

func (s *RankingService) run(ctx context.Context) ([]domain.RankedProduct, error) {
	started := s.now()
	products, err := s.pipeline.Run(ctx)
	if err != nil {
		s.warn("pipeline run failed", "error", err, "duration", s.now().Sub(started))
		return nil, err
	}
	s.info("pipeline run finished", "products", len(products), "duration", s.now().Sub(started))

	s.cache.Put(ctx, products)

	run := domain.RankingRun{
		ID:          s.newID(started),
		GeneratedAt: started,
		Products:    products,
	}
	if s.history != nil {
		if err := s.history.SaveRun(ctx, run); err != nil {
			s.warn("history save failed", "run", run.ID, "error", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.PublishDigest(ctx, BuildDigestMessage(run)); err != nil {
			s.warn("digest publish failed", "run", run.ID, "error", err)
		}
	}

	return products, nil
}

func (s *RankingService) newID(at time.Time) string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

func (s *RankingService) debug(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Debug(msg, args...)
}

func (s *RankingService) info(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Info(msg, args...)
}

func (s *RankingService) warn(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, args...)
}
