// Package stepwise implements greedy forward/backward selection of model lags.
package stepwise

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/sartorproj/goharch/score"
)

var (
	// ErrInvalidLags is returned for a bound below one or lags outside [1, bound]
	// or repeated lags.
	ErrInvalidLags = errors.New("invalid lag set")

	// ErrNoCandidate is returned when no lag scores at least as well as the
	// running best, which only happens with NaN or non-reproducible scores.
	ErrNoCandidate = errors.New("no lag matched the running best score")
)

// Fitter fits a model with the given lags and returns its information
// criterion (lower is better). Calls with equal lag sets must return equal
// scores.
type Fitter interface {
	ScoreWith(ctx context.Context, lags []int) (float64, error)
}

// FitterFunc adapts a function to the Fitter interface.
type FitterFunc func(ctx context.Context, lags []int) (float64, error)

// ScoreWith calls f.
func (f FitterFunc) ScoreWith(ctx context.Context, lags []int) (float64, error) {
	return f(ctx, lags)
}

// Recorder receives one observation per fit.
type Recorder interface {
	ObserveFit(component string, elapsed time.Duration, err error)
	ObserveLagSetSize(component string, size int)
}

// FitError reports a failed fit together with the lag set that caused it.
type FitError struct {
	Lags []int
	Err  error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("fit with lags %v: %v", e.Lags, e.Err)
}

func (e *FitError) Unwrap() error {
	return e.Err
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Optimizer) {
		o.logger = logger
	}
}

// WithRecorder sets a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Optimizer) {
		o.recorder = r
	}
}

// WithName sets the component name used in logs and metrics (default "lags").
func WithName(name string) Option {
	return func(o *Optimizer) {
		o.name = name
	}
}

// Optimizer owns a lag set and its score and improves both through Extend and
// Refine. It is not safe for concurrent use.
//
// After any method returns an error the lag set may be left mid-rotation and
// the optimizer should be discarded.
type Optimizer struct {
	fitter   Fitter
	bound    int
	lags     []int
	score    *score.Tracker
	fits     int
	name     string
	logger   zerolog.Logger
	recorder Recorder
}

// New validates lags against bound, fits them and returns the optimizer.
// A nil or empty lags starts from the single lag 1.
func New(ctx context.Context, fitter Fitter, bound int, lags []int, opts ...Option) (*Optimizer, error) {
	if len(lags) == 0 {
		lags = []int{1}
	}
	if err := validate(bound, lags); err != nil {
		return nil, err
	}

	o := &Optimizer{
		fitter: fitter,
		bound:  bound,
		lags:   slices.Clone(lags),
		name:   "lags",
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	initial, err := o.scoreWith(ctx, o.lags)
	if err != nil {
		return nil, err
	}
	o.score = score.New(initial)
	o.observeSize()

	o.logger.Debug().
		Str("component", o.name).
		Ints("lags", o.lags).
		Float64("score", initial).
		Msg("initial lag set fitted")

	return o, nil
}

func validate(bound int, lags []int) error {
	if bound < 1 {
		return fmt.Errorf("%w: bound %d must be at least 1", ErrInvalidLags, bound)
	}
	seen := make(map[int]bool, len(lags))
	for _, lag := range lags {
		if lag < 1 || lag > bound {
			return fmt.Errorf("%w: lag %d outside [1, %d] in %v", ErrInvalidLags, lag, bound, lags)
		}
		if seen[lag] {
			return fmt.Errorf("%w: lag %d repeated in %v", ErrInvalidLags, lag, lags)
		}
		seen[lag] = true
	}
	return nil
}

// Lags returns a copy of the current lag set in insertion order.
func (o *Optimizer) Lags() []int {
	return slices.Clone(o.lags)
}

// Score returns a copy of the score tracker. Improved on the copy tells
// whether the last Extend or Refine lowered the score.
func (o *Optimizer) Score() *score.Tracker {
	return o.score.Copy()
}

// Bound returns the largest lag the optimizer may select.
func (o *Optimizer) Bound() int {
	return o.bound
}

// Fits returns the number of fits performed so far.
func (o *Optimizer) Fits() int {
	return o.fits
}

// Extend tries every lag in [1, bound] alongside the current set and keeps
// the best one. The score is refreshed even when the winner is already a
// member, in which case the set is unchanged.
func (o *Optimizer) Extend(ctx context.Context) error {
	lag, best, err := o.searchOneMoreLag(ctx, o.score.Value())
	if err != nil {
		return err
	}
	added := !slices.Contains(o.lags, lag)
	if added {
		o.lags = append(o.lags, lag)
	}
	o.score.ChangesTo(best)
	o.observeSize()

	o.logger.Info().
		Str("component", o.name).
		Int("lag", lag).
		Bool("added", added).
		Ints("lags", o.lags).
		Float64("score", best).
		Msg("extend")
	return nil
}

// Refine re-optimizes the existing lags. Each pass removes the oldest lag
// max(len-1, 1) times, searches the best lag to hold alongside the rest and
// appends it unless already present. Passes repeat while they lower the
// score. The set may shrink.
func (o *Optimizer) Refine(ctx context.Context) error {
	working := score.New(o.score.Value())
	passes := 0
	for working.Improved() {
		best, err := o.cycled(ctx, working.Value())
		if err != nil {
			return err
		}
		working.ChangesTo(best)
		passes++
	}
	o.score.ChangesTo(working.Value())
	o.observeSize()

	o.logger.Info().
		Str("component", o.name).
		Int("passes", passes).
		Ints("lags", o.lags).
		Float64("score", o.score.Value()).
		Msg("refine")
	return nil
}

// Converge alternates Extend and Refine until a round no longer lowers the
// score, for at most bound rounds. It returns the number of rounds run.
func (o *Optimizer) Converge(ctx context.Context) (int, error) {
	rounds := 0
	for rounds < o.bound {
		before := o.score.Value()
		if err := o.Extend(ctx); err != nil {
			return rounds, err
		}
		if err := o.Refine(ctx); err != nil {
			return rounds, err
		}
		rounds++
		if !(o.score.Value() < before) {
			break
		}
	}
	return rounds, nil
}

func (o *Optimizer) cycled(ctx context.Context, best float64) (float64, error) {
	rotations := max(len(o.lags)-1, 1)
	for range rotations {
		o.lags = o.lags[1:]
		lag, s, err := o.searchOneMoreLag(ctx, best)
		if err != nil {
			return 0, err
		}
		if !slices.Contains(o.lags, lag) {
			o.lags = append(o.lags, lag)
		}
		best = s
	}
	return best, nil
}

// searchOneMoreLag fits lags ∪ {l} for every l in [1, bound] and returns the
// lag with the lowest score not worse than best. On ties the larger lag wins.
func (o *Optimizer) searchOneMoreLag(ctx context.Context, best float64) (int, float64, error) {
	running := score.New(best)
	winner := 0
	for lag := 1; lag <= o.bound; lag++ {
		s, err := o.scoreWith(ctx, union(o.lags, lag))
		if err != nil {
			return 0, 0, err
		}
		if running.AtLeast(s) {
			running.ChangesTo(s)
			winner = lag
		}
	}
	if winner == 0 {
		return 0, 0, &FitError{Lags: slices.Clone(o.lags), Err: ErrNoCandidate}
	}
	return winner, running.Value(), nil
}

func (o *Optimizer) scoreWith(ctx context.Context, lags []int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &FitError{Lags: lags, Err: err}
	}

	start := time.Now()
	s, err := o.fitter.ScoreWith(ctx, lags)
	o.fits++
	if o.recorder != nil {
		o.recorder.ObserveFit(o.name, time.Since(start), err)
	}
	if err != nil {
		o.logger.Debug().Str("component", o.name).Ints("lags", lags).Err(err).Msg("fit failed")
		return 0, &FitError{Lags: lags, Err: err}
	}
	o.logger.Debug().Str("component", o.name).Ints("lags", lags).Float64("score", s).Msg("fit")
	return s, nil
}

func (o *Optimizer) observeSize() {
	if o.recorder != nil {
		o.recorder.ObserveLagSetSize(o.name, len(o.lags))
	}
}

// union returns a new slice with lag appended to lags unless already present.
func union(lags []int, lag int) []int {
	out := make([]int, len(lags), len(lags)+1)
	copy(out, lags)
	if !slices.Contains(out, lag) {
		out = append(out, lag)
	}
	return out
}
