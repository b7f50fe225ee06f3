package random

import (
	"math"
	"testing"
)

type entry struct {
	id     string
	weight float64
}

func TestWeightedProportional(t *testing.T) {
	src := Seeded(42)
	items := []entry{{"a", 1}, {"b", 3}, {"zero", 0}, {"neg", -2}}

	counts := map[string]int{}
	const trials = 20000
	for i := 0; i < trials; i++ {
		got, ok := Weighted(src, items, func(e entry) float64 { return e.weight })
		if !ok {
			t.Fatal("expected a draw")
		}
		counts[got.id]++
	}

	if counts["zero"] != 0 || counts["neg"] != 0 {
		t.Fatalf("non-positive weights drawn: %v", counts)
	}
	ratio := float64(counts["b"]) / float64(trials)
	if math.Abs(ratio-0.75) > 0.02 {
		t.Errorf("b drawn %.3f of the time, want ~0.75", ratio)
	}
}

func TestWeightedEmpty(t *testing.T) {
	_, ok := Weighted(Seeded(1), []entry{{"x", 0}}, func(e entry) float64 { return e.weight })
	if ok {
		t.Fatal("expected no draw when every weight is zero")
	}
	_, ok = Weighted(Seeded(1), nil, func(e entry) float64 { return e.weight })
	if ok {
		t.Fatal("expected no draw from nil slice")
	}
}

func TestBetweenAndD100(t *testing.T) {
	src := Seeded(7)
	for i := 0; i < 500; i++ {
		if v := Between(src, 5, 2); v < 2 || v > 5 {
			t.Fatalf("Between out of range: %d", v)
		}
		if v := D100(src); v < 1 || v > 100 {
			t.Fatalf("D100 out of range: %d", v)
		}
	}
}

func TestShuffleKeepsElements(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	Shuffle(Seeded(3), items)
	sum := 0
	for _, v := range items {
		sum += v
	}
	if sum != 15 || len(items) != 5 {
		t.Fatalf("shuffle lost elements: %v", items)
	}
}
