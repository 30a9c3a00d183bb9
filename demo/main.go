// Package main runs a stepwise HAR / HARCH lag search on a price file and
// races the resulting models against each other.
//
// Usage:
//
//	demo -config run.yaml [-out report.json]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/sartorproj/goharch/bestof"
	"github.com/sartorproj/goharch/har"
	"github.com/sartorproj/goharch/harch"
	"github.com/sartorproj/goharch/internal/config"
	"github.com/sartorproj/goharch/internal/logging"
	"github.com/sartorproj/goharch/internal/metrics"
	"github.com/sartorproj/goharch/stepwise"
	"github.com/sartorproj/goharch/timeseries"
)

// Search describes one converged lag search.
type Search struct {
	Lags   []int   `json:"lags"`
	Score  float64 `json:"score"`
	Rounds int     `json:"rounds"`
	Fits   int     `json:"fits"`
}

// Candidate describes one model of the final race.
type Candidate struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score,omitempty"`
	Error     string  `json:"error,omitempty"`
	ElapsedMS float64 `json:"elapsed_ms"`
}

// Race describes the final best-of selection.
type Race struct {
	ID         string      `json:"id"`
	Workers    int         `json:"workers"`
	Winner     string      `json:"winner"`
	Score      float64     `json:"score"`
	Summary    any         `json:"summary,omitempty"`
	Candidates []Candidate `json:"candidates"`
}

// Report is written as JSON at the end of a run.
type Report struct {
	Series     string  `json:"series"`
	NObs       int     `json:"n_obs"`
	Criterion  string  `json:"criterion"`
	Mean       Search  `json:"mean"`
	Volatility *Search `json:"volatility,omitempty"`
	Race       Race    `json:"race"`
}

func main() {
	configPath := flag.String("config", "run.yaml", "path to the run configuration")
	outPath := flag.String("out", "", "write the JSON report to this file instead of stdout")
	flag.Parse()

	if err := execute(*configPath, *outPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func execute(configPath, outPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	report, runErr := run(ctx, cfg, logger, rec)

	if cfg.Metrics.DumpFile != "" {
		if err := dumpMetrics(cfg.Metrics.DumpFile, reg); err != nil {
			logger.Error().Err(err).Str("file", cfg.Metrics.DumpFile).Msg("metrics dump failed")
		}
	}
	if runErr != nil {
		return runErr
	}

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// run loads the data, converges the mean and volatility lags and races the
// resulting models.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, rec *metrics.Recorder) (*Report, error) {
	series, err := loadSeries(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("series", series.Name).Int("n_obs", series.Len()).Msg("series loaded")

	params := cfg.HARParams()
	meanFitter := har.LagFitter{Series: series, Params: params}

	meanLags, meanSearch, err := converge(ctx, meanFitter, params.HoldBack, cfg.Mean.Lags, "har", logger, rec)
	if err != nil {
		return nil, fmt.Errorf("mean lag search: %w", err)
	}
	mean := meanFitter.Model(meanLags)
	if err := mean.Fit(); err != nil {
		return nil, fmt.Errorf("fit mean model: %w", err)
	}

	report := &Report{
		Series:    series.Name,
		NObs:      series.Len(),
		Criterion: string(params.Criterion),
		Mean:      meanSearch,
	}

	candidates := []bestof.Model{mean}
	if len(cfg.Mean.Lags) > 0 && !slices.Equal(cfg.Mean.Lags, meanLags) {
		candidates = append(candidates, meanFitter.Model(cfg.Mean.Lags))
	}

	if cfg.Volatility.Enabled {
		volFitter := harch.LagFitter{Mean: mean, Leverage: cfg.Volatility.Leverage}
		volLags, volSearch, err := converge(ctx, volFitter, volFitter.Bound(), cfg.Volatility.Lags, "harch", logger, rec)
		if err != nil {
			return nil, fmt.Errorf("volatility lag search: %w", err)
		}
		report.Volatility = &volSearch

		for _, lags := range [][]int{volLags, cfg.Volatility.Lags} {
			if len(lags) == 0 {
				continue
			}
			m, err := volFitter.Model(lags)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, m)
		}
	}

	selector := bestof.New(
		bestof.WithWorkers(cfg.Selection.Workers),
		bestof.WithLeverage(cfg.Selection.Leverage),
		bestof.WithFailFast(cfg.Selection.FailFast),
		bestof.WithLogger(logger),
		bestof.WithRecorder(rec),
	)
	race, err := selector.Race(ctx, candidates...)
	if err != nil {
		return nil, fmt.Errorf("select model: %w", err)
	}

	report.Race = Race{
		ID:      race.ID,
		Workers: race.Workers,
		Winner:  race.Winner.Name(),
		Score:   race.Best.Score,
		Summary: summarize(race.Winner),
	}
	for _, o := range race.Outcomes {
		c := Candidate{Name: o.Name, ElapsedMS: float64(o.Elapsed.Microseconds()) / 1000}
		if o.Err != nil {
			c.Error = o.Err.Error()
		} else {
			c.Score = o.Score
		}
		report.Race.Candidates = append(report.Race.Candidates, c)
	}
	return report, nil
}

// summarize returns the fitted parameters and residual diagnostics of the
// winning model.
func summarize(m bestof.Model) any {
	switch m := m.(type) {
	case *har.Model:
		return m.Summary()
	case *harch.Model:
		return m.Summary()
	}
	return nil
}

func converge(ctx context.Context, fitter stepwise.Fitter, bound int, initial []int, name string,
	logger zerolog.Logger, rec *metrics.Recorder) ([]int, Search, error) {
	opt, err := stepwise.New(ctx, fitter, bound, initial,
		stepwise.WithName(name),
		stepwise.WithLogger(logger),
		stepwise.WithRecorder(rec),
	)
	if err != nil {
		return nil, Search{}, err
	}
	rounds, err := opt.Converge(ctx)
	if err != nil {
		return nil, Search{}, err
	}

	lags := opt.Lags()
	logger.Info().
		Str("component", name).
		Ints("lags", lags).
		Float64("score", opt.Score().Value()).
		Int("rounds", rounds).
		Int("fits", opt.Fits()).
		Msg("lag search converged")

	return lags, Search{Lags: lags, Score: opt.Score().Value(), Rounds: rounds, Fits: opt.Fits()}, nil
}

func loadSeries(cfg *config.Config) (*timeseries.Series, error) {
	opts := timeseries.DefaultCSVOptions()
	opts.ValueColumn = cfg.Data.ValueColumn
	opts.DateColumn = cfg.Data.DateColumn
	opts.IDColumn = cfg.Data.IDColumn
	opts.IDFilter = cfg.Data.ID

	series, err := timeseries.LoadCSV(cfg.Data.File, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.Data.File, err)
	}
	name := series.Name
	if cfg.Data.LogReturns {
		series = series.LogReturns()
	}
	series = series.Scale(cfg.Data.Scale)
	series.Name = name
	if series.HasNaN() {
		return nil, errors.New("series contains non-positive prices or missing values")
	}
	return series, nil
}

func dumpMetrics(path string, g prometheus.Gatherer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return metrics.WriteText(f, g)
}
