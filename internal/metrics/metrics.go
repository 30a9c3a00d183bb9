// Package metrics records fit and selection metrics with Prometheus.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Recorder implements stepwise.Recorder and bestof.Recorder.
type Recorder struct {
	fits       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	selections *prometheus.CounterVec
	lagSetSize *prometheus.GaugeVec
}

// New creates a recorder registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		fits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goharch_fits_total",
				Help: "Total number of model fits",
			},
			[]string{"component", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goharch_fit_duration_seconds",
				Help:    "Duration of model fits in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"component"},
		),
		selections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goharch_selections_total",
				Help: "Total number of best-of selections",
			},
			[]string{"outcome"},
		),
		lagSetSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "goharch_lag_set_size",
				Help: "Current number of lags held by an optimizer",
			},
			[]string{"component"},
		),
	}
}

// ObserveFit records one fit.
func (r *Recorder) ObserveFit(component string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.fits.WithLabelValues(component, outcome).Inc()
	r.duration.WithLabelValues(component).Observe(elapsed.Seconds())
}

// ObserveLagSetSize records the size of an optimizer's lag set.
func (r *Recorder) ObserveLagSetSize(component string, size int) {
	r.lagSetSize.WithLabelValues(component).Set(float64(size))
}

// ObserveSelection records the outcome of a best-of race.
func (r *Recorder) ObserveSelection(outcome string) {
	r.selections.WithLabelValues(outcome).Inc()
}

// WriteText writes everything g gathers in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
