package ranking

import (
	"fmt"
	"testing"

	"SmartphoneRanker/internal/domain"
)

func TestCompositeScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		rank  int
		ratio float64
		want  float64
	}{
		{rank: 1, ratio: 0.9, want: 0.94},
		{rank: 2, ratio: 0.1, want: 0.26},
		{rank: 3, ratio: 0.5, want: 0.4333},
		{rank: 4, ratio: 0.5, want: 0.4},
		{rank: 5, ratio: 0.5, want: 0.38},
		{rank: 7, ratio: 0, want: 0.0571},
		{rank: 0, ratio: 1, want: 0.6},
	}

	for _, tc := range cases {
		if got := CompositeScore(tc.rank, tc.ratio); got != tc.want {
			t.Fatalf("CompositeScore(%d, %v) = %v, want %v", tc.rank, tc.ratio, got, tc.want)
		}
	}
}

func TestCompositeScoreMonotonic(t *testing.T) {
	t.Parallel()

	for rank := 1; rank < 20; rank++ {
		for step := 0; step < 10; step++ {
			ratio := float64(step) / 10
			here := CompositeScore(rank, ratio)
			if worse := CompositeScore(rank+1, ratio); worse >= here {
				t.Fatalf("rank %d->%d at ratio %v: %v !< %v", rank, rank+1, ratio, worse, here)
			}
			if better := CompositeScore(rank, ratio+0.1); better <= here {
				t.Fatalf("ratio %v->%v at rank %d: %v !> %v", ratio, ratio+0.1, rank, better, here)
			}
		}
	}
}

func TestTopNOrdersAndTruncates(t *testing.T) {
	t.Parallel()

	ratios := []float64{0.9, 0.1, 0.5, 0.5, 0.5, 0.2, 0.3}
	products := make([]domain.RankedProduct, len(ratios))
	for i, r := range ratios {
		products[i] = domain.RankedProduct{
			Name:           fmt.Sprintf("r%d", i+1),
			PositiveRatio:  r,
			CompositeScore: CompositeScore(i+1, r),
		}
	}

	got := TopN(products, TopCount)
	want := []string{"r1", "r3", "r4", "r5", "r2"}
	if len(got) != len(want) {
		t.Fatalf("expected %d products, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Fatalf("position %d = %s, want %s", i, got[i].Name, want[i])
		}
	}
	if products[0].Name != "r1" || products[1].Name != "r2" {
		t.Fatal("input slice must not be reordered")
	}
}

func TestTopNStableTies(t *testing.T) {
	t.Parallel()

	products := []domain.RankedProduct{
		{Name: "a", CompositeScore: 0.5},
		{Name: "b", CompositeScore: 0.7},
		{Name: "c", CompositeScore: 0.5},
		{Name: "d", CompositeScore: 0.5},
	}

	got := TopN(products, 10)
	order := ""
	for _, p := range got {
		order += p.Name
	}
	if order != "bacd" {
		t.Fatalf("unexpected order %q", order)
	}
}
