package harch

import (
	"context"

	"github.com/sartorproj/goharch/har"
)

// LagFitter scores HARCH lag sets on the residuals of a fixed mean model.
// It implements stepwise.Fitter. Mean should be fitted before the fitter is
// used.
type LagFitter struct {
	Mean     *har.Model
	Leverage bool
}

// ScoreWith fits a HARCH model with lags and returns its criterion rounded
// to four decimals.
func (f LagFitter) ScoreWith(ctx context.Context, lags []int) (float64, error) {
	m, err := f.Model(lags)
	if err != nil {
		return 0, err
	}
	s, err := m.Criterion(ctx)
	if err != nil {
		return 0, err
	}
	return har.Round(s), nil
}

// Model returns an unfitted model with lags.
func (f LagFitter) Model(lags []int) (*Model, error) {
	m, err := New(f.Mean, lags...)
	if err != nil {
		return nil, err
	}
	if f.Leverage {
		m.AddLeverage()
	}
	return m, nil
}

// Bound returns the largest admissible lag.
func (f LagFitter) Bound() int {
	return f.Mean.Params.HoldBack
}
