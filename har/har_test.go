package har

import (
	"context"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/goharch/stepwise"
	"github.com/sartorproj/goharch/timeseries"
)

// simulate draws y[t] = c + Σ beta[l]·mean(y[t-l..t-1]) + e[t] with a fixed seed.
func simulate(n int, c float64, beta map[int]float64) *timeseries.Series {
	rng := rand.New(rand.NewPCG(7, 11))
	y := make([]float64, n)
	for t := range y {
		v := c + rng.NormFloat64()
		for _, l := range slices.Sorted(maps.Keys(beta)) {
			b := beta[l]
			if t < l {
				continue
			}
			sum := 0.0
			for j := 1; j <= l; j++ {
				sum += y[t-j]
			}
			v += b * sum / float64(l)
		}
		y[t] = v
	}
	return timeseries.New(y)
}

func TestName(t *testing.T) {
	m := New(timeseries.New(nil), Params{HoldBack: 22}, 1, 5, 22)
	assert.Equal(t, "HAR[1,5,22]", m.Name())
	assert.Equal(t, "HAR[]", New(nil, Params{HoldBack: 1}).Name())
}

func TestParseCriterion(t *testing.T) {
	c, err := ParseCriterion("AICc")
	require.NoError(t, err)
	assert.Equal(t, AICc, c)

	c, err = ParseCriterion("")
	require.NoError(t, err)
	assert.Equal(t, BIC, c)

	_, err = ParseCriterion("hqic")
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestFitRecoversCoefficients(t *testing.T) {
	series := simulate(3000, 0, map[int]float64{1: 0.4, 5: 0.3})

	m := New(series, Params{HoldBack: 22}, 1, 5)
	require.NoError(t, m.Fit())

	require.Len(t, m.Coeffs, 2)
	assert.InDelta(t, 0.4, m.Coeffs[0], 0.15)
	assert.InDelta(t, 0.3, m.Coeffs[1], 0.2)
	assert.InDelta(t, 1.0, m.Variance, 0.15)
	assert.Len(t, m.Residuals(), 3000-22)
	assert.Len(t, m.FittedValues(), 3000-22)
	assert.Zero(t, m.Intercept)
}

func TestFitWithConstant(t *testing.T) {
	series := simulate(3000, 1, map[int]float64{1: 0.5})

	m := New(series, Params{HoldBack: 5, Constant: true}, 1)
	require.NoError(t, m.Fit())

	assert.InDelta(t, 1.0, m.Intercept, 0.3)
	assert.InDelta(t, 0.5, m.Coeffs[0], 0.1)
	assert.Equal(t, 3, m.NumParams())
}

func TestCriterionDropsWithRelevantLag(t *testing.T) {
	series := simulate(3000, 0, map[int]float64{1: 0.2, 10: 0.5})
	ctx := context.Background()

	short, err := New(series, Params{HoldBack: 22}, 1).Criterion(ctx)
	require.NoError(t, err)
	long, err := New(series, Params{HoldBack: 22}, 1, 10).Criterion(ctx)
	require.NoError(t, err)

	assert.Less(t, long, short)
}

func TestCriteriaOrdering(t *testing.T) {
	series := simulate(500, 0, map[int]float64{1: 0.3})

	m := New(series, Params{HoldBack: 22}, 1, 5)
	require.NoError(t, m.Fit())

	// ln(478) > 2 so BIC penalizes harder than AIC, and AICc > AIC.
	assert.Greater(t, m.BIC, m.AIC)
	assert.Greater(t, m.AICc, m.AIC)

	for c, want := range map[Criterion]float64{AIC: m.AIC, AICc: m.AICc, BIC: m.BIC} {
		m.Params.Criterion = c
		got, err := m.Score()
		require.NoError(t, err)
		assert.Equal(t, want, got, "criterion %s", c)
	}
}

func TestStudentsTLikelihood(t *testing.T) {
	series := simulate(500, 0, map[int]float64{1: 0.3})

	gauss := New(series, Params{HoldBack: 22}, 1)
	require.NoError(t, gauss.Fit())
	student := New(series, Params{HoldBack: 22, Nu: 5}, 1)
	require.NoError(t, student.Fit())

	assert.False(t, math.IsNaN(student.LogLik))
	assert.NotEqual(t, gauss.LogLik, student.LogLik)
	assert.Equal(t, gauss.Coeffs, student.Coeffs)
}

func TestFitErrors(t *testing.T) {
	series := simulate(100, 0, map[int]float64{1: 0.3})

	tests := []struct {
		name   string
		params Params
		lags   []int
		series *timeseries.Series
		want   error
	}{
		{"hold back", Params{HoldBack: 0}, []int{1}, series, ErrHoldBack},
		{"lag above hold back", Params{HoldBack: 5}, []int{1, 6}, series, ErrInvalidLag},
		{"lag zero", Params{HoldBack: 5}, []int{0}, series, ErrInvalidLag},
		{"nu", Params{HoldBack: 5, Nu: 1.5}, []int{1}, series, ErrInvalidParams},
		{"criterion", Params{HoldBack: 5, Criterion: "hqic"}, []int{1}, series, ErrInvalidParams},
		{"short", Params{HoldBack: 5}, []int{1, 2, 3}, timeseries.New([]float64{1, 2, 3, 4, 5, 6, 7, 8}), ErrInsufficientData},
		{"no room for aicc", Params{HoldBack: 1, Criterion: AICc}, []int{1}, timeseries.New([]float64{0.3, -0.1, 0.4, 0.2}), ErrInsufficientData},
		{"nan", Params{HoldBack: 1}, []int{1}, timeseries.New([]float64{1, math.NaN(), 3, 4, 5, 6}), ErrMissingValues},
		{"zero series", Params{HoldBack: 1}, nil, timeseries.New([]float64{0, 0, 0, 0, 0, 0}), ErrDegenerate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.series, tt.params, tt.lags...)
			assert.ErrorIs(t, m.Fit(), tt.want)
			assert.False(t, m.Fitted())
		})
	}
}

func TestAccessorsBeforeFit(t *testing.T) {
	m := New(simulate(100, 0, nil), Params{HoldBack: 5}, 1)

	assert.Nil(t, m.Residuals())
	assert.Nil(t, m.FittedValues())
	assert.Nil(t, m.Summary())

	_, err := m.Score()
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestCriterionHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(simulate(100, 0, nil), Params{HoldBack: 5}, 1).Criterion(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummary(t *testing.T) {
	m := New(simulate(500, 0, map[int]float64{1: 0.3}), Params{HoldBack: 22}, 1, 5)
	require.NoError(t, m.Fit())

	s := m.Summary()
	require.NotNil(t, s)
	assert.Equal(t, "HAR[1,5]", s.Name)
	assert.Equal(t, 478, s.NObs)
	require.NotNil(t, s.LjungBox)
	assert.Equal(t, 8, s.LjungBox.DOF)
}

func TestLagFitterRoundsScores(t *testing.T) {
	series := simulate(500, 0, map[int]float64{1: 0.3})
	fitter := LagFitter{Series: series, Params: Params{HoldBack: 22}}

	got, err := fitter.ScoreWith(context.Background(), []int{1, 5})
	require.NoError(t, err)

	m := fitter.Model([]int{1, 5})
	require.NoError(t, m.Fit())
	assert.Equal(t, Round(m.BIC), got)
	assert.Equal(t, got, Round(got))
}

func TestLagFitterDrivesOptimizer(t *testing.T) {
	series := simulate(1500, 0, map[int]float64{1: 0.2, 10: 0.5})
	fitter := LagFitter{Series: series, Params: Params{HoldBack: 22}}
	ctx := context.Background()

	opt, err := stepwise.New(ctx, fitter, 22, nil)
	require.NoError(t, err)
	initial := opt.Score().Value()

	_, err = opt.Converge(ctx)
	require.NoError(t, err)

	assert.Less(t, opt.Score().Value(), initial)
	for _, l := range opt.Lags() {
		assert.GreaterOrEqual(t, l, 1)
		assert.LessOrEqual(t, l, 22)
	}

	final, err := fitter.ScoreWith(ctx, opt.Lags())
	require.NoError(t, err)
	assert.Equal(t, opt.Score().Value(), final)
}

func TestAICcFiniteAtSmallestSample(t *testing.T) {
	// hold back 1, one lag: k = 2, so five values leave the minimal nobs = k+2.
	series := timeseries.New([]float64{0.3, -0.1, 0.4, 0.2, -0.5})

	m := New(series, Params{HoldBack: 1, Criterion: AICc}, 1)
	require.NoError(t, m.Fit())

	got, err := m.Score()
	require.NoError(t, err)
	assert.False(t, math.IsInf(got, 0))
	assert.Greater(t, m.AICc, m.AIC)
}
