// Package money provides the fixed-decimal arithmetic used for every
// price, size, and percentage in the engine. Floating point is never used
// for money or ratios that drive trading decisions.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Dec is the fixed-decimal type used throughout the engine.
type Dec = decimal.Decimal

var (
	Zero = decimal.Zero
	One  = decimal.NewFromInt(1)
)

// D parses a float64 into a Dec. Reserved for boundary conversions
// (external JSON payloads, test fixtures) — internal math never round-trips
// through float64.
func D(f float64) Dec {
	return decimal.NewFromFloat(f)
}

// Pct converts a fraction (0.0042) into a basis-free percentage (0.42).
func Pct(d Dec) Dec {
	return d.Mul(decimal.NewFromInt(100))
}

// Abs returns the absolute value of d.
func Abs(d Dec) Dec {
	return d.Abs()
}

// Min returns the smaller of a and b.
func Min(a, b Dec) Dec {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Dec) Dec {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi Dec) Dec {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// Mean returns the arithmetic mean of a non-empty slice of Dec.
func Mean(vals []Dec) Dec {
	if len(vals) == 0 {
		return Zero
	}
	sum := Zero
	for _, v := range vals {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(vals))))
}

// StdDev returns the population standard deviation of vals.
func StdDev(vals []Dec) Dec {
	if len(vals) == 0 {
		return Zero
	}
	m := Mean(vals)
	sumSq := Zero
	for _, v := range vals {
		diff := v.Sub(m)
		sumSq = sumSq.Add(diff.Mul(diff))
	}
	variance := sumSq.Div(decimal.NewFromInt(int64(len(vals))))
	f, _ := variance.Float64()
	return D(math.Sqrt(f))
}
