package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"

	"SmartphoneRanker/internal/domain"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "history", "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func testRun(id string, at time.Time, names ...string) domain.RankingRun {
	price := "₹15,499"
	rating := 4.3
	products := make([]domain.RankedProduct, len(names))
	for i, name := range names {
		products[i] = domain.RankedProduct{
			Name:             name,
			Link:             fmt.Sprintf("https://www.amazon.in/dp/%s%d", id, i),
			ReviewCount:      7,
			AverageSentiment: 0.6123,
			PositiveRatio:    0.5714,
			CompositeScore:   0.7429,
			LastUpdated:      at,
		}
		if i == 0 {
			products[i].Price = &price
			products[i].Rating = &rating
		}
	}
	return domain.RankingRun{ID: id, GeneratedAt: at, Products: products}
}

func TestSaveAndLoadRuns(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 8, 0, 0, 123000000, time.UTC)

	runs := []domain.RankingRun{
		testRun("01HQ0000000000000000000001", base, "Phone A", "Phone B"),
		testRun("01HQ0000000000000000000002", base.Add(time.Hour), "Phone C"),
		testRun("01HQ0000000000000000000003", base.Add(2*time.Hour)),
	}
	for _, run := range runs {
		if err := repo.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun %s: %v", run.ID, err)
		}
	}

	got, err := repo.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}
	if got[0].ID != runs[2].ID || got[1].ID != runs[1].ID {
		t.Fatalf("expected newest first, got %s, %s", got[0].ID, got[1].ID)
	}
	if len(got[0].Products) != 0 || len(got[1].Products) != 1 {
		t.Fatalf("unexpected product counts: %d, %d", len(got[0].Products), len(got[1].Products))
	}
	if !got[1].GeneratedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected generated_at: %v", got[1].GeneratedAt)
	}

	all, err := repo.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	oldest := all[len(all)-1]
	if len(oldest.Products) != 2 || oldest.Products[0].Name != "Phone A" || oldest.Products[1].Name != "Phone B" {
		t.Fatalf("unexpected products: %+v", oldest.Products)
	}

	first := oldest.Products[0]
	if first.Price == nil || *first.Price != "₹15,499" || first.Rating == nil || *first.Rating != 4.3 {
		t.Fatalf("optional fields lost: %+v", first)
	}
	if oldest.Products[1].Price != nil || oldest.Products[1].Rating != nil {
		t.Fatalf("expected nil optional fields: %+v", oldest.Products[1])
	}
	if first.CompositeScore != 0.7429 || first.ReviewCount != 7 || !first.LastUpdated.Equal(base) {
		t.Fatalf("unexpected scalar fields: %+v", first)
	}
}

func TestSaveRunDuplicateIDFails(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()
	run := testRun("01HQ0000000000000000000009", time.Now(), "Phone A")

	if err := repo.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := repo.SaveRun(ctx, run); err == nil {
		t.Fatal("expected duplicate run id to fail")
	}

	got, err := repo.RecentRuns(ctx, 10)
	if err != nil || len(got) != 1 || len(got[0].Products) != 1 {
		t.Fatalf("failed save must roll back, got %v %+v", err, got)
	}
}

func TestRecentRunsEmpty(t *testing.T) {
	t.Parallel()

	got, err := openTestRepo(t).RecentRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), "mysql", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestPlaceholderFormatPerDriver(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		DriverPostgres: "$1",
		DriverSQLite:   "?",
	}
	for driver, want := range cases {
		query, _, err := NewRepository(nil, driver).builder.
			Select("id").From("ranking_runs").Where(sq.Eq{"id": "x"}).ToSql()
		if err != nil {
			t.Fatalf("%s: %v", driver, err)
		}
		if !strings.Contains(query, want) {
			t.Fatalf("%s: expected %s placeholder in %q", driver, want, query)
		}
	}
}
