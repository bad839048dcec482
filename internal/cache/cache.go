package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"SmartphoneRanker/internal/domain"
	"SmartphoneRanker/internal/ports"
	"SmartphoneRanker/internal/ranking"
)

const (
	// Key is the single logical slot holding the ranked list.
	Key = "top_mobiles"
	// SnapshotFile is the disk tier file name inside the cache directory.
	SnapshotFile = "smartphones_data.json"

	DefaultMemoryTTL = time.Hour
	DefaultDiskTTL   = 2 * time.Hour
)

type entry struct {
	products []domain.RankedProduct
	// written is the snapshot timestamp; loaded is when the entry entered memory.
	written time.Time
	loaded  time.Time
}

// Store is a two-tier ranked-list cache: a TTL memory slot over a JSON snapshot.
type Store struct {
	mu        sync.Mutex
	memory    *expirable.LRU[string, entry]
	path      string
	memoryTTL time.Duration
	diskTTL   time.Duration
	now       func() time.Time
	// lastWrite outlives memory expiry so a foreign newer snapshot can be detected.
	lastWrite time.Time
	logger    *slog.Logger
}

var _ ports.RankingCache = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTTLs overrides the memory and disk lifetimes; zero keeps the default.
func WithTTLs(memory, disk time.Duration) Option {
	return func(s *Store) {
		if memory > 0 {
			s.memoryTTL = memory
		}
		if disk > 0 {
			s.diskTTL = disk
		}
	}
}

// New builds a store persisting its snapshot under dir.
func New(dir string, log *slog.Logger, opts ...Option) *Store {
	var componentLogger *slog.Logger
	if log != nil {
		componentLogger = log.With("component", "cache")
	}

	s := &Store{
		path:      filepath.Join(dir, SnapshotFile),
		memoryTTL: DefaultMemoryTTL,
		diskTTL:   DefaultDiskTTL,
		now:       time.Now,
		logger:    componentLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.memory = expirable.NewLRU[string, entry](1, nil, s.memoryTTL)
	return s
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the cached list from memory, or from a fresh disk snapshot which
// then repopulates memory. Every failure is a miss.
func (s *Store) Get(ctx context.Context) ([]domain.RankedProduct, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.memory.Get(Key); ok {
		if now.Sub(e.loaded) <= s.memoryTTL {
			return cloneProducts(e.products), true
		}
		s.memory.Remove(Key)
	}

	snap, err := s.readSnapshot()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.warn("snapshot unreadable", "path", s.path, "error", err)
		}
		return nil, false
	}
	if now.Sub(snap.Timestamp) > s.diskTTL {
		s.debug("snapshot stale", "timestamp", snap.Timestamp)
		return nil, false
	}
	if !s.lastWrite.IsZero() && snap.Timestamp.After(s.lastWrite) {
		s.warn("snapshot newer than last memory write, ignoring", "snapshot", snap.Timestamp, "memory", s.lastWrite)
		return nil, false
	}

	s.memory.Add(Key, entry{products: cloneProducts(snap.Data), written: snap.Timestamp, loaded: now})
	s.lastWrite = snap.Timestamp
	s.debug("memory repopulated from snapshot", "records", len(snap.Data))
	return cloneProducts(snap.Data), true
}

// Put writes both tiers. A disk failure is logged and otherwise ignored.
func (s *Store) Put(ctx context.Context, products []domain.RankedProduct) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	data := cloneProducts(products)
	s.memory.Add(Key, entry{products: data, written: now, loaded: now})
	s.lastWrite = now

	if err := s.writeSnapshot(domain.Snapshot{Timestamp: now, Data: data}); err != nil {
		s.warn("snapshot write failed", "path", s.path, "error", err)
	}
}

// Clear drops the memory slot and deletes the snapshot file.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.memory.Purge()
	s.lastWrite = time.Time{}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.warn("snapshot delete failed", "path", s.path, "error", err)
	}
}

// Status describes both tiers for the health and storage endpoints.
type Status struct {
	Directory   string         `json:"data_directory"`
	Snapshot    SnapshotStatus `json:"smartphones_file"`
	Memory      MemoryStatus   `json:"memory_cache"`
	DiskTTLSecs int64          `json:"disk_ttl_seconds"`
}

// SnapshotStatus reports the disk tier.
type SnapshotStatus struct {
	Exists    bool       `json:"exists"`
	Path      string     `json:"path"`
	SizeBytes int64      `json:"size_bytes,omitempty"`
	Modified  *time.Time `json:"modified,omitempty"`
	DataCount int        `json:"data_count"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Fresh     bool       `json:"fresh"`
	Error     string     `json:"error,omitempty"`
}

// MemoryStatus reports the memory tier.
type MemoryStatus struct {
	Size       int     `json:"size"`
	MaxSize    int     `json:"max_size"`
	TTLSeconds int64   `json:"ttl"`
	AgeSeconds float64 `json:"age_seconds,omitempty"`
}

// Status inspects both tiers without mutating either.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := Status{
		Directory:   filepath.Dir(s.path),
		DiskTTLSecs: int64(s.diskTTL / time.Second),
		Snapshot:    SnapshotStatus{Path: s.path},
		Memory: MemoryStatus{
			MaxSize:    1,
			TTLSeconds: int64(s.memoryTTL / time.Second),
		},
	}

	if e, ok := s.memory.Peek(Key); ok && now.Sub(e.loaded) <= s.memoryTTL {
		st.Memory.Size = 1
		st.Memory.AgeSeconds = now.Sub(e.written).Seconds()
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			st.Snapshot.Error = err.Error()
		}
		return st
	}
	modified := info.ModTime()
	st.Snapshot.Exists = true
	st.Snapshot.SizeBytes = info.Size()
	st.Snapshot.Modified = &modified

	snap, err := s.readSnapshot()
	if err != nil {
		st.Snapshot.Error = err.Error()
		return st
	}
	ts := snap.Timestamp
	st.Snapshot.DataCount = len(snap.Data)
	st.Snapshot.Timestamp = &ts
	st.Snapshot.Fresh = now.Sub(ts) <= s.diskTTL
	return st
}

func (s *Store) readSnapshot() (domain.Snapshot, error) {
	var snap domain.Snapshot
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Timestamp.IsZero() {
		return snap, fmt.Errorf("decode snapshot: missing timestamp")
	}
	if len(snap.Data) == 0 || len(snap.Data) > ranking.TopCount {
		return snap, fmt.Errorf("decode snapshot: %d records, want 1..%d", len(snap.Data), ranking.TopCount)
	}
	for i, p := range snap.Data {
		if p.Name == "" || p.Link == "" {
			return snap, fmt.Errorf("decode snapshot: record %d missing name or link", i)
		}
	}
	return snap, nil
}

// writeSnapshot replaces the file atomically via a temp file and rename.
func (s *Store) writeSnapshot(snap domain.Snapshot) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, SnapshotFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func cloneProducts(in []domain.RankedProduct) []domain.RankedProduct {
	if in == nil {
		return nil
	}
	out := make([]domain.RankedProduct, len(in))
	copy(out, in)
	return out
}

func (s *Store) debug(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Debug(msg, args...)
}

func (s *Store) warn(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, args...)
}
