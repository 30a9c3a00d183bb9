package stepwise

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squaredDistance scores a lag set by (sum(lags) - target)^2.
func squaredDistance(target int) FitterFunc {
	return func(_ context.Context, lags []int) (float64, error) {
		sum := 0
		for _, l := range lags {
			sum += l
		}
		d := float64(sum - target)
		return d * d, nil
	}
}

// weighted scores a lag set by the sum of per-lag weights.
func weighted(w map[int]float64) FitterFunc {
	return func(_ context.Context, lags []int) (float64, error) {
		total := 0.0
		for _, l := range lags {
			total += w[l]
		}
		return total, nil
	}
}

type countingRecorder struct {
	fits  int
	fails int
	sizes []int
}

func (r *countingRecorder) ObserveFit(_ string, _ time.Duration, err error) {
	r.fits++
	if err != nil {
		r.fails++
	}
}

func (r *countingRecorder) ObserveLagSetSize(_ string, size int) {
	r.sizes = append(r.sizes, size)
}

func TestNewDefaultsToFirstLag(t *testing.T) {
	o, err := New(context.Background(), squaredDistance(6), 3, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, o.Lags())
	assert.Equal(t, 25.0, o.Score().Value())
	assert.True(t, o.Score().Improved())
	assert.Equal(t, 3, o.Bound())
	assert.Equal(t, 1, o.Fits())
}

func TestNewRejectsInvalidLags(t *testing.T) {
	cases := []struct {
		name  string
		bound int
		lags  []int
	}{
		{"zero bound", 0, []int{1}},
		{"lag above bound", 3, []int{4}},
		{"non-positive lag", 3, []int{0}},
		{"repeated lag", 3, []int{2, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(context.Background(), squaredDistance(6), tc.bound, tc.lags)
			assert.ErrorIs(t, err, ErrInvalidLags)
		})
	}
}

func TestNewCopiesInitialLags(t *testing.T) {
	lags := []int{2}
	o, err := New(context.Background(), squaredDistance(6), 3, lags)
	require.NoError(t, err)

	require.NoError(t, o.Extend(context.Background()))
	assert.Equal(t, []int{2}, lags)

	got := o.Lags()
	got[0] = 99
	assert.NotEqual(t, 99, o.Lags()[0])
}

func TestExtendPicksBestLag(t *testing.T) {
	ctx := context.Background()
	o, err := New(ctx, squaredDistance(6), 3, nil)
	require.NoError(t, err)

	// {1,3} scores 4, better than {1,2} at 9.
	require.NoError(t, o.Extend(ctx))
	assert.Equal(t, []int{1, 3}, o.Lags())
	assert.Equal(t, 4.0, o.Score().Value())
	assert.True(t, o.Score().Improved())

	require.NoError(t, o.Extend(ctx))
	assert.Equal(t, []int{1, 3, 2}, o.Lags())
	assert.Equal(t, 0.0, o.Score().Value())
}

func TestExtendTieGoesToLaterLag(t *testing.T) {
	ctx := context.Background()
	flat := FitterFunc(func(context.Context, []int) (float64, error) { return 1, nil })

	o, err := New(ctx, flat, 4, nil)
	require.NoError(t, err)
	require.NoError(t, o.Extend(ctx))

	assert.Equal(t, []int{1, 4}, o.Lags())
	assert.False(t, o.Score().Improved())
}

func TestExtendKeepsSetWhenMemberWins(t *testing.T) {
	ctx := context.Background()
	o, err := New(ctx, weighted(map[int]float64{1: -1, 2: 1, 3: 1}), 3, nil)
	require.NoError(t, err)

	require.NoError(t, o.Extend(ctx))
	assert.Equal(t, []int{1}, o.Lags())
	assert.Equal(t, -1.0, o.Score().Value())
	assert.False(t, o.Score().Improved())
}

func TestExtendNeverRemovesLags(t *testing.T) {
	ctx := context.Background()
	o, err := New(ctx, weighted(map[int]float64{1: 2, 2: -3, 3: 1, 4: -1, 5: 0.5}), 5, nil)
	require.NoError(t, err)

	for range 5 {
		before := o.Lags()
		require.NoError(t, o.Extend(ctx))
		assert.Subset(t, o.Lags(), before)
	}
	assert.Contains(t, o.Lags(), 1)
}

func TestRefineDropsUselessLag(t *testing.T) {
	ctx := context.Background()
	o, err := New(ctx, weighted(map[int]float64{1: 1, 2: -3, 3: 2, 4: -1, 5: 0.5}), 5, nil)
	require.NoError(t, err)

	require.NoError(t, o.Extend(ctx))
	assert.Equal(t, []int{1, 2}, o.Lags())

	require.NoError(t, o.Refine(ctx))
	assert.Equal(t, []int{4, 2}, o.Lags())
	assert.Equal(t, -4.0, o.Score().Value())
	assert.True(t, o.Score().Improved())
}

func TestRefineRotatesSingleton(t *testing.T) {
	ctx := context.Background()
	o, err := New(ctx, weighted(map[int]float64{1: 1, 2: -2, 3: 0}), 3, nil)
	require.NoError(t, err)

	require.NoError(t, o.Refine(ctx))
	assert.Equal(t, []int{2}, o.Lags())
	assert.Equal(t, -2.0, o.Score().Value())
}

func TestRefineIsFixedPoint(t *testing.T) {
	ctx := context.Background()
	o, err := New(ctx, squaredDistance(6), 3, nil)
	require.NoError(t, err)
	_, err = o.Converge(ctx)
	require.NoError(t, err)

	lags := o.Lags()
	value := o.Score().Value()

	require.NoError(t, o.Refine(ctx))
	assert.ElementsMatch(t, lags, o.Lags())
	assert.Equal(t, value, o.Score().Value())
	assert.False(t, o.Score().Improved())
}

func TestConvergeSquaredDistance(t *testing.T) {
	ctx := context.Background()
	o, err := New(ctx, squaredDistance(6), 3, []int{1})
	require.NoError(t, err)

	rounds, err := o.Converge(ctx)
	require.NoError(t, err)

	assert.LessOrEqual(t, rounds, 3)
	assert.Equal(t, 0.0, o.Score().Value())
	sum := 0
	for _, l := range o.Lags() {
		assert.GreaterOrEqual(t, l, 1)
		assert.LessOrEqual(t, l, 3)
		sum += l
	}
	assert.Equal(t, 6, sum)
}

func TestConvergeReachesAnalyticMinimum(t *testing.T) {
	ctx := context.Background()
	o, err := New(ctx, weighted(map[int]float64{1: 1, 2: -3, 3: 2, 4: -1, 5: 0.5}), 5, nil)
	require.NoError(t, err)

	rounds, err := o.Converge(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, rounds)
	assert.ElementsMatch(t, []int{2, 4}, o.Lags())
	assert.Equal(t, -4.0, o.Score().Value())
}

func TestFitFailureCarriesLags(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("did not converge")
	fitter := FitterFunc(func(_ context.Context, lags []int) (float64, error) {
		if len(lags) > 1 && lags[1] == 2 {
			return 0, boom
		}
		return 1, nil
	})

	o, err := New(ctx, fitter, 3, nil)
	require.NoError(t, err)

	err = o.Extend(ctx)
	require.ErrorIs(t, err, boom)

	var fe *FitError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []int{1, 2}, fe.Lags)
	assert.Contains(t, err.Error(), "[1 2]")
}

func TestNaNScoresYieldNoCandidate(t *testing.T) {
	ctx := context.Background()
	calls := 0
	fitter := FitterFunc(func(context.Context, []int) (float64, error) {
		calls++
		if calls == 1 {
			return 1, nil
		}
		return math.NaN(), nil
	})

	o, err := New(ctx, fitter, 2, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, o.Extend(ctx), ErrNoCandidate)
}

func TestCanceledContextStopsSearch(t *testing.T) {
	o, err := New(context.Background(), squaredDistance(6), 3, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, o.Extend(ctx), context.Canceled)
}

func TestRecorderObservesFits(t *testing.T) {
	ctx := context.Background()
	rec := &countingRecorder{}
	o, err := New(ctx, squaredDistance(6), 3, nil, WithRecorder(rec), WithName("mean"))
	require.NoError(t, err)

	require.NoError(t, o.Extend(ctx))
	assert.Equal(t, 4, rec.fits)
	assert.Equal(t, o.Fits(), rec.fits)
	assert.Zero(t, rec.fails)
	assert.Equal(t, []int{1, 2}, rec.sizes)
}
