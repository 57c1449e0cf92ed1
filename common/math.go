package common

import (
	"math"

	"github.com/shopspring/decimal"
)

// https://stackoverflow.com/questions/18390266/how-can-we-truncate-float64-type-to-a-particular-precision
func Round(num float64) int {
	return int(num + math.Copysign(0.5, num))
}

func DecimalToFixed(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	return float64(Round(num*output)) / output
}

// FixedString renders num with exactly places decimal places.
// NaN and infinities render as their usual names.
func FixedString(num float64, places int32) string {
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return decimalUnrepresentable(num)
	}
	return decimal.NewFromFloat(num).StringFixed(places)
}

func decimalUnrepresentable(num float64) string {
	switch {
	case math.IsNaN(num):
		return "NaN"
	case math.IsInf(num, 1):
		return "+Inf"
	}
	return "-Inf"
}
