// Package timeseries provides the Series type the HAR and HARCH models are
// fitted on, together with CSV loading and the transformations they need.
//
// # Creating a Series
//
//	prices := timeseries.New([]float64{100, 102, 105, 103, 108, 110})
//	returns := prices.LogReturns().Scale(100) // percent log returns
//
// # Loading from CSV
//
//	opts := timeseries.DefaultCSVOptions()
//	opts.ValueColumn = "adj_close"
//	opts.IDColumn = "symbol"
//	opts.IDFilter = "SPY"
//	series, err := timeseries.LoadCSV("prices.csv", opts)
//
// # HAR Regressors
//
// TrailingMeans(w) gives, for every t, the mean of the w observations before
// t, which is the regressor of a HAR term with lag w:
//
//	daily := series.TrailingMeans(1)
//	weekly := series.TrailingMeans(5)
//	monthly := series.TrailingMeans(22)
package timeseries
