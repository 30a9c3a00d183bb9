/*
Package har implements heterogeneous autoregressive (HAR) mean models.

A HAR model regresses an observation on trailing means of the series over
several horizons, e.g. a day, a week and a month of daily returns:

	y[t] = c + β1·mean(y[t-1]) + β5·mean(y[t-5..t-1]) + β22·mean(y[t-22..t-1]) + e[t]

All models share the estimation sample t in [HoldBack, n), so criteria of
models with different lags are comparable. HoldBack is also the largest lag
a model may use.

# Basic Usage

	series := timeseries.New(returns)
	model := har.New(series, har.Params{HoldBack: 22, Constant: true}, 1, 5, 22)
	if err := model.Fit(); err != nil {
	    log.Fatal(err)
	}
	fmt.Printf("%s BIC=%.4f\n", model.Name(), model.BIC)

# Lag Search

LagFitter adapts a series and parameters to stepwise.Fitter:

	fitter := har.LagFitter{Series: series, Params: params}
	opt, err := stepwise.New(ctx, fitter, params.HoldBack, nil)
	if err != nil {
	    log.Fatal(err)
	}
	if _, err := opt.Converge(ctx); err != nil {
	    log.Fatal(err)
	}
	best := fitter.Model(opt.Lags())

# Errors

Errors are Gaussian by default. Params.Nu > 2 selects Student-t errors with
fixed degrees of freedom, scaled to the residual variance.
*/
package har
