package model

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Fixed formats v with the given number of decimals, rounding exact ties away
// from zero (0.25 -> "0.3") where strconv would round half to even.
func Fixed(v float64, decimals int) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	if math.IsInf(v, 0) {
		if v > 0 {
			return "Infinity"
		}
		return "-Infinity"
	}
	if decimals < 0 {
		decimals = 0
	}
	neg := v < 0
	if neg {
		v = -v
	}

	// Exact decimal arithmetic: a float64 times a power of ten fits easily in
	// 256 bits of mantissa, so the tie test below is exact.
	x := new(big.Float).SetPrec(256).SetFloat64(v)
	scale := new(big.Float).SetPrec(256).SetFloat64(math.Pow10(decimals))
	x.Mul(x, scale)

	n, _ := x.Int(nil)
	frac := new(big.Float).SetPrec(256).Sub(x, new(big.Float).SetPrec(256).SetInt(n))
	if frac.Cmp(big.NewFloat(0.5)) >= 0 {
		n.Add(n, big.NewInt(1))
	}

	digits := n.String()
	if decimals > 0 {
		for len(digits) <= decimals {
			digits = "0" + digits
		}
		digits = digits[:len(digits)-decimals] + "." + digits[len(digits)-decimals:]
	}
	if neg && n.Sign() != 0 {
		digits = "-" + digits
	}
	return digits
}

// Percent formats part/total as a percentage with one decimal.
func Percent(part, total float64) string {
	return Fixed(part/total*100, 1)
}

// ParseNumber coerces a CSV cell: surrounding whitespace is ignored, an empty
// cell is zero and anything unparseable is NaN.
func ParseNumber(s string) float64 {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
