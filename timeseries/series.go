// Package timeseries provides the series type that the models are fitted on.
package timeseries

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Series represents a time series with timestamps and values.
type Series struct {
	Timestamps []time.Time
	Values     []float64
	Name       string
}

// New creates a new time series from values with hourly timestamps.
func New(values []float64) *Series {
	timestamps := make([]time.Time, len(values))
	base := time.Now()
	for i := range timestamps {
		timestamps[i] = base.Add(time.Duration(i) * time.Hour)
	}
	return &Series{
		Timestamps: timestamps,
		Values:     values,
	}
}

// NewWithTimestamps creates a time series with explicit timestamps.
func NewWithTimestamps(timestamps []time.Time, values []float64) (*Series, error) {
	if len(timestamps) != len(values) {
		return nil, errors.New("timestamps and values must have the same length")
	}
	return &Series{
		Timestamps: timestamps,
		Values:     values,
	}, nil
}

// Len returns the length of the series.
func (s *Series) Len() int {
	return len(s.Values)
}

// Mean calculates the arithmetic mean of the series.
func (s *Series) Mean() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return stat.Mean(s.Values, nil)
}

// Variance calculates the sample variance of the series.
func (s *Series) Variance() float64 {
	if len(s.Values) < 2 {
		return 0
	}
	return stat.Variance(s.Values, nil)
}

// Std calculates the sample standard deviation of the series.
func (s *Series) Std() float64 {
	return math.Sqrt(s.Variance())
}

// Slice returns a copy of the series from start to end (exclusive).
func (s *Series) Slice(start, end int) *Series {
	start = max(start, 0)
	end = min(end, len(s.Values))
	if start >= end {
		return &Series{Values: []float64{}, Name: s.Name}
	}

	values := make([]float64, end-start)
	copy(values, s.Values[start:end])

	var timestamps []time.Time
	if len(s.Timestamps) >= end {
		timestamps = make([]time.Time, len(values))
		copy(timestamps, s.Timestamps[start:end])
	}

	return &Series{
		Timestamps: timestamps,
		Values:     values,
		Name:       s.Name,
	}
}

// Copy creates a deep copy of the series.
func (s *Series) Copy() *Series {
	return s.Slice(0, len(s.Values))
}

// Scale multiplies every value by factor, e.g. 100 for percent returns.
func (s *Series) Scale(factor float64) *Series {
	out := s.Copy()
	floats.Scale(factor, out.Values)
	return out
}

// LogReturns returns log(v[t]/v[t-1]). The first observation is dropped.
// Non-positive prices yield NaN.
func (s *Series) LogReturns() *Series {
	if len(s.Values) < 2 {
		return &Series{Values: []float64{}, Name: s.Name + "_logret"}
	}

	values := make([]float64, len(s.Values)-1)
	for i := 1; i < len(s.Values); i++ {
		prev, cur := s.Values[i-1], s.Values[i]
		if prev <= 0 || cur <= 0 {
			values[i-1] = math.NaN()
			continue
		}
		values[i-1] = math.Log(cur / prev)
	}

	var timestamps []time.Time
	if len(s.Timestamps) == len(s.Values) {
		timestamps = make([]time.Time, len(values))
		copy(timestamps, s.Timestamps[1:])
	}

	return &Series{
		Timestamps: timestamps,
		Values:     values,
		Name:       s.Name + "_logret",
	}
}

// TrailingMeans returns out[t] = mean(v[t-window], ..., v[t-1]), the
// regressor a HAR term of the given window contributes at time t.
// Entries with t < window are NaN.
func (s *Series) TrailingMeans(window int) []float64 {
	return TrailingMeans(s.Values, window)
}

// TrailingMeans is the slice form of Series.TrailingMeans.
func TrailingMeans(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window < 1 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	cum := make([]float64, len(values)+1)
	floats.CumSum(cum[1:], values)

	w := float64(window)
	for t := range out {
		if t < window {
			out[t] = math.NaN()
			continue
		}
		out[t] = (cum[t] - cum[t-window]) / w
	}
	return out
}

// HasNaN reports whether any value is NaN.
func (s *Series) HasNaN() bool {
	return floats.HasNaN(s.Values)
}
