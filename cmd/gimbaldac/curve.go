package main

import (
	"fmt"
	"math"
	"strings"
)

// CurveType selects the acceleration curve applied to throttle magnitude.
type CurveType string

const (
	CurveLinear      CurveType = "linear"
	CurveExponential CurveType = "exponential"
	CurveQuadratic   CurveType = "quadratic"
	CurveSCurve      CurveType = "s_curve"
)

// CurveTypes lists the supported curves in display order.
var CurveTypes = []CurveType{CurveLinear, CurveExponential, CurveQuadratic, CurveSCurve}

// ParseCurveType converts a config string into a CurveType.
func ParseCurveType(s string) (CurveType, error) {
	switch c := CurveType(strings.ToLower(strings.TrimSpace(s))); c {
	case CurveLinear, CurveExponential, CurveQuadratic, CurveSCurve:
		return c, nil
	case "":
		return CurveLinear, nil
	default:
		return "", fmt.Errorf("unknown curve %q (must be linear, exponential, quadratic or s_curve)", s)
	}
}

// minSCurveStrength is the strength below which the s-curve is treated as linear.
// The renormalised logistic degenerates to 0/0 as strength approaches zero.
const minSCurveStrength = 1e-3

// Shape maps progress in [0,1] onto a shaped magnitude in [0,1].
//
// Every curve satisfies Shape(0)=0, Shape(1)=1 and is monotone non-decreasing.
// Progress outside [0,1] is clamped; NaN is treated as 0.
func Shape(progress float64, curve CurveType, strength float64) float64 {
	p := clamp(finiteOr(progress, 0), 0, 1)
	if p == 0 || p == 1 {
		return p
	}
	strength = finiteOr(strength, 0)

	switch curve {
	case CurveExponential:
		// Strength below 1 would make the curve concave (fast start).
		return math.Pow(p, math.Max(1, strength))

	case CurveQuadratic:
		w := clamp(strength, 0, 1)
		return (1-w)*p + w*p*p

	case CurveSCurve:
		if strength < minSCurveStrength {
			return p
		}
		k := 2 * strength
		lo := logistic(-0.5 * k)
		hi := logistic(0.5 * k)
		return clamp((logistic((p-0.5)*k)-lo)/(hi-lo), 0, 1)

	default:
		return p
	}
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
