package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SmartphoneRanker/internal/cache"
	"SmartphoneRanker/internal/domain"
)

type stubRunner struct {
	calls    atomic.Int32
	started  chan struct{}
	release  chan struct{}
	products []domain.RankedProduct
	err      error
}

func (r *stubRunner) Run(ctx context.Context) ([]domain.RankedProduct, error) {
	r.calls.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	return r.products, r.err
}

type stubHistory struct {
	mu    sync.Mutex
	runs  []domain.RankingRun
	err   error
	saved chan domain.RankingRun
}

func (h *stubHistory) SaveRun(ctx context.Context, run domain.RankingRun) error {
	h.mu.Lock()
	h.runs = append(h.runs, run)
	h.mu.Unlock()
	if h.saved != nil {
		h.saved <- run
	}
	return h.err
}

func (h *stubHistory) RecentRuns(ctx context.Context, limit int) ([]domain.RankingRun, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.RankingRun, len(h.runs))
	copy(out, h.runs)
	return out, nil
}

type stubNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *stubNotifier) PublishDigest(ctx context.Context, digest string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, digest)
	return n.err
}

func rankedFixture() []domain.RankedProduct {
	return []domain.RankedProduct{
		{Name: "Phone 1", Link: "https://www.amazon.in/dp/B01", ReviewCount: 10, PositiveRatio: 0.9, CompositeScore: 0.94},
		{Name: "Phone 3", Link: "https://www.amazon.in/dp/B03", ReviewCount: 10, PositiveRatio: 0.5, CompositeScore: 0.4333},
	}
}

func TestRankedListRunsOnceThenServesCache(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{products: rankedFixture()}
	history := &stubHistory{}
	notifier := &stubNotifier{}
	svc := NewRankingService(ServiceDeps{
		Pipeline: runner,
		Cache:    cache.New(t.TempDir(), nil),
		History:  history,
		Notifier: notifier,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := svc.RankedList(ctx)
		if err != nil {
			t.Fatalf("RankedList: %v", err)
		}
		if len(got) != 2 || got[0].Name != "Phone 1" {
			t.Fatalf("unexpected products: %+v", got)
		}
	}

	if runner.calls.Load() != 1 {
		t.Fatalf("expected one pipeline run, got %d", runner.calls.Load())
	}
	if len(history.runs) != 1 || len(history.runs[0].ID) != 26 {
		t.Fatalf("expected one saved run with a ULID, got %+v", history.runs)
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "Phone 1") {
		t.Fatalf("unexpected digests: %q", notifier.messages)
	}
}

func TestRankedListCoalescesConcurrentMisses(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{
		products: rankedFixture(),
		started:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	svc := NewRankingService(ServiceDeps{Pipeline: runner, Cache: cache.New(t.TempDir(), nil)})

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	call := func() {
		defer wg.Done()
		got, err := svc.RankedList(context.Background())
		if err == nil && len(got) != 2 {
			err = errors.New("unexpected result size")
		}
		errs <- err
	}

	wg.Add(1)
	go call()
	<-runner.started

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go call()
	}
	time.Sleep(50 * time.Millisecond)
	if !svc.Status().RunInFlight {
		t.Fatal("expected run in flight")
	}
	close(runner.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("RankedList: %v", err)
		}
	}
	if runner.calls.Load() != 1 {
		t.Fatalf("expected a single pipeline run, got %d", runner.calls.Load())
	}
}

// staleReadCache reports a miss on its first Get, like a caller that looked
// just before a concurrent run stored its result.
type staleReadCache struct {
	*cache.Store
	missed atomic.Bool
}

func (c *staleReadCache) Get(ctx context.Context) ([]domain.RankedProduct, bool) {
	if c.missed.CompareAndSwap(false, true) {
		return nil, false
	}
	return c.Store.Get(ctx)
}

func TestRankedListReusesResultStoredAfterMiss(t *testing.T) {
	t.Parallel()

	store := cache.New(t.TempDir(), nil)
	store.Put(context.Background(), rankedFixture())

	runner := &stubRunner{products: rankedFixture()[:1]}
	svc := NewRankingService(ServiceDeps{Pipeline: runner, Cache: &staleReadCache{Store: store}})

	got, err := svc.RankedList(context.Background())
	if err != nil {
		t.Fatalf("RankedList: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected the stored list, got %+v", got)
	}
	if runner.calls.Load() != 0 {
		t.Fatalf("expected no pipeline run, got %d", runner.calls.Load())
	}

	if _, err := svc.RefreshJob(context.Background()); err != nil {
		t.Fatalf("RefreshJob: %v", err)
	}
	if runner.calls.Load() != 1 {
		t.Fatalf("expected refresh to bypass the cache, got %d runs", runner.calls.Load())
	}
}

func TestRankedListPropagatesPipelineErrors(t *testing.T) {
	t.Parallel()

	store := cache.New(t.TempDir(), nil)
	history := &stubHistory{}
	svc := NewRankingService(ServiceDeps{
		Pipeline: &stubRunner{err: domain.ErrExtractionUnavailable},
		Cache:    store,
		History:  history,
	})

	_, err := svc.RankedList(context.Background())
	if !errors.Is(err, domain.ErrExtractionUnavailable) {
		t.Fatalf("expected ErrExtractionUnavailable, got %v", err)
	}
	if _, ok := store.Get(context.Background()); ok {
		t.Fatal("failed run must not populate the cache")
	}
	if len(history.runs) != 0 {
		t.Fatal("failed run must not be recorded")
	}
}

func TestRankedListIgnoresSideEffectFailures(t *testing.T) {
	t.Parallel()

	svc := NewRankingService(ServiceDeps{
		Pipeline: &stubRunner{products: rankedFixture()},
		Cache:    cache.New(t.TempDir(), nil),
		History:  &stubHistory{err: errors.New("disk full")},
		Notifier: &stubNotifier{err: errors.New("telegram down")},
	})

	if _, err := svc.RankedList(context.Background()); err != nil {
		t.Fatalf("side-effect failures must not fail the request: %v", err)
	}
}

func TestRefreshClearsAndRepopulates(t *testing.T) {
	t.Parallel()

	store := cache.New(t.TempDir(), nil)
	store.Put(context.Background(), rankedFixture()[:1])

	history := &stubHistory{saved: make(chan domain.RankingRun, 1)}
	runner := &stubRunner{products: rankedFixture()}
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := NewRankingService(ServiceDeps{
		Pipeline: runner,
		Cache:    store,
		History:  history,
		Now:      func() time.Time { return now },
	})

	ack := svc.Refresh(context.Background())
	if ack.Detail != "Cache and persistent storage cleared, refresh initiated" || !ack.Timestamp.Equal(now) {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	select {
	case <-history.saved:
	case <-time.After(2 * time.Second):
		t.Fatal("background refresh did not finish")
	}

	got, ok := store.Get(context.Background())
	if !ok || len(got) != 2 {
		t.Fatalf("expected repopulated cache, got %v %+v", ok, got)
	}
}

func TestRefreshDuringRunDoesNotStartAnother(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{
		products: rankedFixture(),
		started:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	svc := NewRankingService(ServiceDeps{Pipeline: runner, Cache: cache.New(t.TempDir(), nil)})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.RankedList(context.Background())
	}()
	<-runner.started

	ack := svc.Refresh(context.Background())
	if !strings.Contains(ack.Detail, "already in progress") {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	close(runner.release)
	<-done
	if runner.calls.Load() != 1 {
		t.Fatalf("expected the in-flight run only, got %d runs", runner.calls.Load())
	}
}

func TestServiceStatusAndHistory(t *testing.T) {
	t.Parallel()

	history := &stubHistory{}
	svc := NewRankingService(ServiceDeps{
		Pipeline:             &stubRunner{products: rankedFixture()},
		Cache:                cache.New(t.TempDir(), nil),
		History:              history,
		ClassifierConfigured: true,
	})

	st := svc.Status()
	if st.Cached || !st.ClassifierConfigured || !st.HistoryEnabled || st.RunInFlight {
		t.Fatalf("unexpected initial status: %+v", st)
	}

	if _, err := svc.RankedList(context.Background()); err != nil {
		t.Fatalf("RankedList: %v", err)
	}
	if st := svc.Status(); !st.Cached || st.Storage.Snapshot.DataCount != 2 {
		t.Fatalf("unexpected status after run: %+v", st)
	}

	runs, err := svc.History(context.Background(), 10)
	if err != nil || len(runs) != 1 {
		t.Fatalf("History: %v %+v", err, runs)
	}

	empty := NewRankingService(ServiceDeps{Cache: cache.New(t.TempDir(), nil)})
	if runs, err := empty.History(context.Background(), 10); err != nil || len(runs) != 0 {
		t.Fatalf("expected empty history without a store, got %v %+v", err, runs)
	}
}
