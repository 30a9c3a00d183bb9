// Package stats provides residual diagnostics for fitted models.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ACF calculates the sample autocorrelation of values for lags 0 to maxLag.
// It returns nil for constant or too short input.
func ACF(values []float64, maxLag int) []float64 {
	n := len(values)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}

	mean := stat.Mean(values, nil)
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	if variance == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (values[i] - mean) * (values[i-k] - mean)
		}
		acf[k] = sum / variance
	}
	return acf
}

// ConfidenceBound returns the approximate 95% bound ±1.96/sqrt(n) for
// autocorrelations of white noise.
func ConfidenceBound(n int) float64 {
	if n <= 0 {
		return math.Inf(1)
	}
	return 1.96 / math.Sqrt(float64(n))
}

// SignificantLags returns the lags (excluding 0) whose ACF value exceeds the
// bound in absolute value.
func SignificantLags(acf []float64, bound float64) []int {
	var lags []int
	for k := 1; k < len(acf); k++ {
		if math.Abs(acf[k]) > bound {
			lags = append(lags, k)
		}
	}
	return lags
}
