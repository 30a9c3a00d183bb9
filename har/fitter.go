package har

import (
	"context"
	"math"

	"github.com/sartorproj/goharch/timeseries"
)

// LagFitter scores HAR lag sets on a fixed series. It implements
// stepwise.Fitter.
type LagFitter struct {
	Series *timeseries.Series
	Params Params
}

// ScoreWith fits a HAR model with lags and returns its criterion rounded to
// four decimals, so that numerically equal fits compare equal.
func (f LagFitter) ScoreWith(ctx context.Context, lags []int) (float64, error) {
	s, err := f.Model(lags).Criterion(ctx)
	if err != nil {
		return 0, err
	}
	return Round(s), nil
}

// Model returns an unfitted model with lags.
func (f LagFitter) Model(lags []int) *Model {
	return New(f.Series, f.Params, lags...)
}

// Round rounds a score to four decimals.
func Round(score float64) float64 {
	return math.Round(score*1e4) / 1e4
}
