package main

import (
	"math"

	"golang.org/x/exp/constraints"
)

// clamp limits v to the range spanned by a and b. The bounds may be given in
// either order.
func clamp[T constraints.Ordered](v, a, b T) T {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// expo blends x with its cube: (1-k)x + kx^3. k is clamped to [0,1] so the
// result stays monotone and inside [-1,1] for x in [-1,1].
func expo(x, k float64) float64 {
	k = clamp(k, 0, 1)
	return (1-k)*x + k*x*x*x
}

// finiteOr returns v, or fallback when v is NaN or infinite.
func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
