// Package stats provides residual diagnostics for fitted models.
//
// # Autocorrelation
//
//	acf := stats.ACF(residuals, 22)
//	bound := stats.ConfidenceBound(len(residuals))
//	fmt.Println("significant lags:", stats.SignificantLags(acf, bound))
//
// # Ljung-Box
//
// Test the residuals (or squared residuals, for remaining volatility
// clustering) for autocorrelation:
//
//	lb := stats.LjungBox(residuals, 10, len(lags))
//	if lb.Rejects(0.05) {
//	    fmt.Printf("autocorrelation left: Q=%.2f p=%.4f\n", lb.Statistic, lb.PValue)
//	}
package stats
