// Package goharch selects lags for HAR mean and HARCH volatility models.
//
// GoHARCH searches the lag set of a heterogeneous autoregressive model greedily:
// it adds the lag that lowers an information criterion the most, then tries to
// swap out older lags, and repeats until neither step helps. The search works
// with any model that can be scored for a given lag set. Candidate models can
// then be fitted in parallel and the best one kept.
//
// # Features
//
//   - Stepwise forward selection with backward refinement of lag sets
//   - HAR mean models estimated by least squares
//   - HARCH volatility models with an optional leverage term
//   - Gaussian or Student-t errors; BIC, AIC or AICc as criterion
//   - Parallel best-of selection with failure isolation
//   - Ljung-Box residual diagnostics
//
// # Quick Start
//
// Find the mean lags of a return series:
//
//	fitter := har.LagFitter{Series: returns, Params: har.Params{HoldBack: 22}}
//	opt, _ := stepwise.New(ctx, fitter, 22, nil)
//	opt.Converge(ctx)
//	mean := fitter.Model(opt.Lags())
//
// Then race the mean model against HARCH variants:
//
//	vol, _ := harch.New(mean, 1, 5, 22)
//	best, _ := bestof.New(bestof.WithLeverage(true)).Select(ctx, mean, vol)
//
// # Packages
//
// The library is organized into the following packages:
//
//   - score: Score tracker remembering whether the last change was an improvement
//   - stepwise: Greedy lag-set optimizer over any Fitter
//   - bestof: Parallel best-of model selection
//   - har: HAR mean models
//   - harch: HARCH volatility models
//   - stats: Autocorrelation and Ljung-Box diagnostics
//   - timeseries: Series type, CSV loading and transformations
package goharch
