// Package bestof races independently fittable models and keeps the one with
// the lowest information criterion.
package bestof

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

var (
	// ErrNoCandidates is returned when Select or Race receive no models.
	ErrNoCandidates = errors.New("no candidate models to select from")

	// ErrAllFailed is returned when every candidate failed to fit.
	ErrAllFailed = errors.New("every candidate model failed to fit")
)

// Model is a candidate that can fit itself and report its criterion.
// Candidates must not share mutable state, they are fitted concurrently.
type Model interface {
	Name() string
	Criterion(ctx context.Context) (float64, error)
}

// Leverager is implemented by models that can add a leverage term before
// fitting. AddLeverage must be safe to call more than once.
type Leverager interface {
	AddLeverage()
}

// Recorder receives fit and selection observations.
type Recorder interface {
	ObserveFit(component string, elapsed time.Duration, err error)
	ObserveSelection(outcome string)
}

// CandidateError reports the failure of one candidate.
type CandidateError struct {
	Name string
	Err  error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("candidate %q: %v", e.Name, e.Err)
}

func (e *CandidateError) Unwrap() error {
	return e.Err
}

// Outcome is the result of fitting one candidate.
type Outcome struct {
	Name    string
	Score   float64
	Err     error
	Elapsed time.Duration
	order   int
}

// Report describes a finished race.
type Report struct {
	ID       string
	Workers  int
	Winner   Model
	Best     Outcome
	Outcomes []Outcome // completion order
}

// Failed returns the outcomes that carry an error.
func (r *Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Option configures a Selector.
type Option func(*Selector)

// WithWorkers caps the number of concurrent fits. Zero or less selects
// max(runtime.NumCPU(), number of candidates).
func WithWorkers(n int) Option {
	return func(s *Selector) {
		s.workers = n
	}
}

// WithLeverage makes the selector call AddLeverage on every Leverager before
// fitting it, and once more on the winner.
func WithLeverage(on bool) Option {
	return func(s *Selector) {
		s.leverage = on
	}
}

// WithFailFast aborts the race on the first failed candidate instead of
// excluding it.
func WithFailFast(on bool) Option {
	return func(s *Selector) {
		s.failFast = on
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Selector) {
		s.logger = logger
	}
}

// WithRecorder sets a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Selector) {
		s.recorder = r
	}
}

// Selector runs best-of races. A Selector holds only configuration and may
// be reused and shared.
type Selector struct {
	workers  int
	leverage bool
	failFast bool
	logger   zerolog.Logger
	recorder Recorder
}

// New creates a Selector.
func New(opts ...Option) *Selector {
	s := &Selector{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select fits all models concurrently and returns the one with the lowest
// criterion. Models are keyed by name: a later model with a name already
// seen replaces the earlier one.
func (s *Selector) Select(ctx context.Context, models ...Model) (Model, error) {
	report, err := s.Race(ctx, models...)
	if err != nil {
		return nil, err
	}
	return report.Winner, nil
}

type entry struct {
	name  string
	model Model
	lev   Leverager
}

// Race fits all models concurrently and reports every outcome along with the
// winner. Equal minimal scores go to the model registered first, so the
// result does not depend on the number of workers. If ctx is done before every
// fit has finished, Race returns ctx.Err() and no winner.
func (s *Selector) Race(ctx context.Context, models ...Model) (*Report, error) {
	entries := register(models)
	if len(entries) == 0 {
		s.observeSelection("empty")
		return nil, ErrNoCandidates
	}

	workers := s.workers
	if workers <= 0 {
		workers = max(runtime.NumCPU(), len(entries))
	}
	id := uuid.NewString()
	logger := s.logger.With().Str("race", id).Logger()

	logger.Info().
		Int("candidates", len(entries)).
		Int("workers", workers).
		Bool("leverage", s.leverage).
		Msg("race started")

	p := pool.NewWithResults[Outcome]().
		WithContext(ctx).
		WithMaxGoroutines(workers)
	if s.failFast {
		p = p.WithCancelOnError().WithFirstError()
	}

	for i, e := range entries {
		leverage := s.leverage
		failFast := s.failFast
		p.Go(func(ctx context.Context) (Outcome, error) {
			out := s.fit(ctx, i, e, leverage)
			if out.Err != nil && failFast {
				return out, out.Err
			}
			return out, nil
		})
	}

	outcomes, err := p.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.observeSelection("canceled")
		logger.Warn().Err(ctxErr).Int("finished", len(outcomes)).Msg("race canceled")
		return nil, ctxErr
	}
	if err != nil {
		s.observeSelection("failed")
		logger.Error().Err(err).Msg("race aborted")
		return nil, err
	}

	report := &Report{ID: id, Workers: workers, Outcomes: outcomes}
	best := -1
	var errs []error
	for i, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
			logger.Warn().Str("model", o.Name).Err(o.Err).Msg("candidate excluded")
			continue
		}
		if best < 0 || better(o, outcomes[best]) {
			best = i
		}
	}
	if best < 0 {
		s.observeSelection("all_failed")
		return nil, errors.Join(append([]error{ErrAllFailed}, errs...)...)
	}

	report.Best = outcomes[best]
	winner := entries[report.Best.order]
	if s.leverage && winner.lev != nil {
		winner.lev.AddLeverage()
	}
	report.Winner = winner.model
	s.observeSelection("selected")

	logger.Info().
		Str("winner", report.Best.Name).
		Float64("score", report.Best.Score).
		Int("failed", len(errs)).
		Msg("race finished")
	return report, nil
}

func (s *Selector) fit(ctx context.Context, order int, e entry, leverage bool) Outcome {
	if leverage && e.lev != nil {
		e.lev.AddLeverage()
	}

	start := time.Now()
	value, err := e.model.Criterion(ctx)
	if err == nil && math.IsNaN(value) {
		err = errors.New("criterion is NaN")
	}
	elapsed := time.Since(start)
	if s.recorder != nil {
		s.recorder.ObserveFit("bestof", elapsed, err)
	}

	out := Outcome{Name: e.name, Score: value, Elapsed: elapsed, order: order}
	if err != nil {
		out.Err = &CandidateError{Name: e.name, Err: err}
	}
	return out
}

func (s *Selector) observeSelection(outcome string) {
	if s.recorder != nil {
		s.recorder.ObserveSelection(outcome)
	}
}

// register keys models by name and detects the leverage capability once.
func register(models []Model) []entry {
	entries := make([]entry, 0, len(models))
	index := make(map[string]int, len(models))
	for _, m := range models {
		if m == nil {
			continue
		}
		e := entry{name: m.Name(), model: m}
		if lev, ok := m.(Leverager); ok {
			e.lev = lev
		}
		if i, seen := index[e.name]; seen {
			entries[i] = e
			continue
		}
		index[e.name] = len(entries)
		entries = append(entries, e)
	}
	return entries
}

func better(a, b Outcome) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.order < b.order
}
