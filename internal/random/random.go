// Package random provides the single weighted-sampling primitive used for
// deadline events, mission templates, modifiers and vote tiebreaks.
//
// Every function takes a caller-supplied Source so tests can seed it.
package random

import (
	"math"
	"math/rand/v2"
)

// Source is the subset of *rand.Rand the engine needs.
type Source interface {
	IntN(n int) int
	Float64() float64
}

type globalSource struct{}

func (globalSource) IntN(n int) int   { return rand.IntN(n) }
func (globalSource) Float64() float64 { return rand.Float64() }

// Default returns a goroutine-safe source backed by the runtime generator.
func Default() Source { return globalSource{} }

// Seeded returns a deterministic source. Not safe for concurrent use.
func Seeded(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Weighted draws one item with probability proportional to weight(item).
// Items with non-positive or non-finite weight are never drawn. ok is false
// when nothing is drawable.
func Weighted[T any](src Source, items []T, weight func(T) float64) (T, bool) {
	var zero T
	total := 0.0
	for _, it := range items {
		if w := weight(it); w > 0 && !math.IsInf(w, 0) {
			total += w
		}
	}
	if total <= 0 {
		return zero, false
	}

	roll := src.Float64() * total
	cumulative := 0.0
	last := -1
	for i, it := range items {
		w := weight(it)
		if w <= 0 || math.IsInf(w, 0) || math.IsNaN(w) {
			continue
		}
		last = i
		cumulative += w
		if roll < cumulative {
			return it, true
		}
	}
	// Float rounding can leave roll == total.
	return items[last], true
}

// Pick draws uniformly from items.
func Pick[T any](src Source, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[src.IntN(len(items))], true
}

// Shuffle permutes items in place (Fisher-Yates).
func Shuffle[T any](src Source, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// Between returns an integer in [lo, hi]. Swapped bounds are tolerated.
func Between(src Source, lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + src.IntN(hi-lo+1)
}

// D100 is a uniform 1–100 roll.
func D100(src Source) int {
	return src.IntN(100) + 1
}
