package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"SmartphoneRanker/internal/domain"
	"SmartphoneRanker/internal/ports"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ranking_runs (
		id            TEXT PRIMARY KEY,
		generated_at  TEXT NOT NULL,
		product_count INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ranked_products (
		run_id            TEXT NOT NULL REFERENCES ranking_runs(id) ON DELETE CASCADE,
		position          INTEGER NOT NULL,
		name              TEXT NOT NULL,
		link              TEXT NOT NULL,
		price             TEXT,
		rating            DOUBLE PRECISION,
		review_count      INTEGER NOT NULL,
		average_sentiment DOUBLE PRECISION NOT NULL,
		positive_ratio    DOUBLE PRECISION NOT NULL,
		composite_score   DOUBLE PRECISION NOT NULL,
		last_updated      TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	)`,
}

// Repository persists ranking runs into Postgres or SQLite.
type Repository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.RankingRepository = (*Repository)(nil)

// Open connects to the given driver and ensures the schema exists.
func Open(ctx context.Context, driver, dsn string) (*Repository, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create history dir: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	repo := NewRepository(db, driver)
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewRepository wires an existing sql.DB; the driver selects the placeholder format.
func NewRepository(db *sql.DB, driver string) *Repository {
	format := sq.PlaceholderFormat(sq.Question)
	if driver == DriverPostgres {
		format = sq.Dollar
	}
	return &Repository{db: db, builder: sq.StatementBuilder.PlaceholderFormat(format)}
}

// Close releases the connection pool.
func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}
	return nil
}

// SaveRun stores a run and its ordered products in one transaction.
func (r *Repository) SaveRun(ctx context.Context, run domain.RankingRun) error {
	if r.db == nil {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query, args, err := r.builder.
		Insert("ranking_runs").
		Columns("id", "generated_at", "product_count").
		Values(run.ID, formatTime(run.GeneratedAt), len(run.Products)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	if len(run.Products) > 0 {
		insert := r.builder.
			Insert("ranked_products").
			Columns("run_id", "position", "name", "link", "price", "rating",
				"review_count", "average_sentiment", "positive_ratio", "composite_score", "last_updated")
		for i, p := range run.Products {
			insert = insert.Values(run.ID, i+1, p.Name, p.Link, nullString(p.Price), nullFloat(p.Rating),
				p.ReviewCount, p.AverageSentiment, p.PositiveRatio, p.CompositeScore, formatTime(p.LastUpdated))
		}

		query, args, err = insert.ToSql()
		if err != nil {
			return fmt.Errorf("build product insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert products for run %s: %w", run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first. Run IDs are ULIDs, so
// ordering by ID is ordering by creation time.
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]domain.RankingRun, error) {
	if r.db == nil {
		return []domain.RankingRun{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	query, args, err := r.builder.
		Select("id", "generated_at").
		From("ranking_runs").
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build runs query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	runs := make([]domain.RankingRun, 0, limit)
	index := make(map[string]int)
	for rows.Next() {
		var (
			run       domain.RankingRun
			generated string
		)
		if err := rows.Scan(&run.ID, &generated); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.GeneratedAt, err = parseTime(generated); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		run.Products = []domain.RankedProduct{}
		index[run.ID] = len(runs)
		runs = append(runs, run)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	if len(runs) == 0 {
		return runs, nil
	}

	ids := make([]string, len(runs))
	for i, run := range runs {
		ids[i] = run.ID
	}
	if err := r.loadProducts(ctx, ids, runs, index); err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *Repository) loadProducts(ctx context.Context, ids []string, runs []domain.RankingRun, index map[string]int) error {
	query, args, err := r.builder.
		Select("run_id", "name", "link", "price", "rating", "review_count",
			"average_sentiment", "positive_ratio", "composite_score", "last_updated").
		From("ranked_products").
		Where(sq.Eq{"run_id": ids}).
		OrderBy("run_id", "position").
		ToSql()
	if err != nil {
		return fmt.Errorf("build products query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			runID   string
			p       domain.RankedProduct
			price   sql.NullString
			rating  sql.NullFloat64
			updated string
		)
		if err := rows.Scan(&runID, &p.Name, &p.Link, &price, &rating, &p.ReviewCount,
			&p.AverageSentiment, &p.PositiveRatio, &p.CompositeScore, &updated); err != nil {
			return fmt.Errorf("scan product: %w", err)
		}
		if price.Valid {
			v := price.String
			p.Price = &v
		}
		if rating.Valid {
			v := rating.Float64
			p.Rating = &v
		}
		if p.LastUpdated, err = parseTime(updated); err != nil {
			return fmt.Errorf("product of run %s: %w", runID, err)
		}

		i, ok := index[runID]
		if !ok {
			continue
		}
		runs[i].Products = append(runs[i].Products, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
