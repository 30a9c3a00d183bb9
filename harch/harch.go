// Package harch implements HARCH volatility models on top of a fitted HAR
// mean model.
package harch

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/goharch/har"
	"github.com/sartorproj/goharch/stats"
	"github.com/sartorproj/goharch/timeseries"
)

var (
	// ErrInvalidLag is returned for a lag outside [1, HoldBack] of the mean.
	ErrInvalidLag = errors.New("invalid HARCH lag")

	// ErrNoConvergence is returned when the likelihood could not be optimized.
	ErrNoConvergence = errors.New("variance parameters did not converge")
)

const (
	backcastObs   = 75
	backcastDecay = 0.94
	maxLogParam   = 30.0
)

// Model is a HARCH volatility model on the residuals e of a mean model:
//
//	σ²[t] = ω + Σ α_i · mean(e²[t-ℓ_i], ..., e²[t-1]) + γ · e²[t-1]·1[e[t-1] < 0]
//
// The leverage term γ is only present after AddLeverage. Residuals before the
// start of the sample are replaced by a backcast.
type Model struct {
	Lags     []int
	Leverage bool
	Omega    float64
	Alphas   []float64
	Gamma    float64
	LogLik   float64
	AIC      float64
	AICc     float64
	BIC      float64

	meanName   string
	meanParams int
	holdBack   int
	nu         float64
	criterion  har.Criterion
	residuals  []float64
	variances  []float64
	fitted     bool
}

// New creates a HARCH model on the residuals of mean. An unfitted mean is
// fitted first, so New must not run concurrently with other users of mean.
// The model copies what it needs and never touches mean again.
func New(mean *har.Model, lags ...int) (*Model, error) {
	if !mean.Fitted() {
		if err := mean.Fit(); err != nil {
			return nil, fmt.Errorf("mean model: %w", err)
		}
	}
	hb := mean.Params.HoldBack
	for _, l := range lags {
		if l < 1 || l > hb {
			return nil, fmt.Errorf("%w: %d outside [1, %d]", ErrInvalidLag, l, hb)
		}
	}

	return &Model{
		Lags:       append([]int(nil), lags...),
		meanName:   mean.Name(),
		meanParams: mean.NumParams() - 1,
		holdBack:   hb,
		nu:         mean.Params.Nu,
		criterion:  mean.Params.Criterion,
		residuals:  mean.Residuals(),
	}, nil
}

// Name returns e.g. HAR[1,5]-HARCH[1,22], with a -LEV suffix when the
// leverage term is present.
func (m *Model) Name() string {
	name := m.meanName + "-HARCH" + har.FormatLags(m.Lags)
	if m.Leverage {
		name += "-LEV"
	}
	return name
}

// AddLeverage adds the asymmetric term γ. Calling it again has no effect.
func (m *Model) AddLeverage() {
	if m.Leverage {
		return
	}
	m.Leverage = true
	m.fitted = false
}

// HoldBack returns the largest admissible lag.
func (m *Model) HoldBack() int {
	return m.holdBack
}

// NumParams returns the number of parameters of mean and variance together.
func (m *Model) NumParams() int {
	k := m.meanParams + 1 + len(m.Lags)
	if m.Leverage {
		k++
	}
	return k
}

// Fitted reports whether Fit has succeeded since the last change.
func (m *Model) Fitted() bool {
	return m.fitted
}

// Fit estimates ω, α and γ by maximum likelihood with the mean parameters
// held fixed.
func (m *Model) Fit(ctx context.Context) error {
	m.fitted = false
	nobs := len(m.residuals)
	if nobs <= m.NumParams()+1 {
		return fmt.Errorf("%w: %d residuals for %d parameters",
			har.ErrInsufficientData, nobs, m.NumParams())
	}

	r := m.newRecursion()
	x0 := r.start(stat.Variance(m.residuals, nil))

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return -r.logLik(x, nil)
		},
	}
	settings := &optimize.Settings{
		MajorIterations: 5000,
		FuncEvaluations: 50000,
		Converger: &contextConverger{
			ctx:   ctx,
			inner: &optimize.FunctionConverge{Absolute: 1e-9, Iterations: 200},
		},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if result == nil || math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		if err == nil {
			err = errors.New("non-finite likelihood")
		}
		return fmt.Errorf("%w: %v", ErrNoConvergence, err)
	}

	params := r.unpack(result.X)
	m.Omega = params[0]
	m.Alphas = append([]float64(nil), params[1:1+len(m.Lags)]...)
	m.Gamma = 0
	if m.Leverage {
		m.Gamma = params[len(params)-1]
	}

	m.variances = make([]float64, nobs)
	m.LogLik = r.logLik(result.X, m.variances)
	m.AIC, m.AICc, m.BIC = har.InformationCriteria(m.LogLik, m.NumParams(), nobs)

	m.fitted = true
	return nil
}

// Score returns the criterion of the mean model's parameters.
func (m *Model) Score() (float64, error) {
	if !m.fitted {
		return 0, har.ErrNotFitted
	}
	return har.Select(m.criterion, m.AIC, m.AICc, m.BIC), nil
}

// Criterion fits the model unless already fitted and returns its score.
func (m *Model) Criterion(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !m.fitted {
		if err := m.Fit(ctx); err != nil {
			return 0, err
		}
	}
	return m.Score()
}

// ConditionalVariances returns σ² for the estimation sample.
func (m *Model) ConditionalVariances() []float64 {
	if !m.fitted {
		return nil
	}
	return append([]float64(nil), m.variances...)
}

// StandardizedResiduals returns e[t]/σ[t].
func (m *Model) StandardizedResiduals() []float64 {
	if !m.fitted {
		return nil
	}
	z := make([]float64, len(m.residuals))
	for t, e := range m.residuals {
		z[t] = e / math.Sqrt(m.variances[t])
	}
	return z
}

// Summary describes a fitted model.
type Summary struct {
	Name     string                 `json:"name"`
	Omega    float64                `json:"omega"`
	Alphas   []float64              `json:"alphas"`
	Gamma    float64                `json:"gamma"`
	LogLik   float64                `json:"loglik"`
	AIC      float64                `json:"aic"`
	AICc     float64                `json:"aicc"`
	BIC      float64                `json:"bic"`
	NObs     int                    `json:"n_obs"`
	LjungBox *stats.LjungBoxResult `json:"ljung_box,omitempty"` // on squared standardized residuals
}

// Summary returns a summary of the fitted model, or nil before Fit.
func (m *Model) Summary() *Summary {
	if !m.fitted {
		return nil
	}
	z := m.StandardizedResiduals()
	floats.Mul(z, z)
	return &Summary{
		Name:     m.Name(),
		Omega:    m.Omega,
		Alphas:   append([]float64(nil), m.Alphas...),
		Gamma:    m.Gamma,
		LogLik:   m.LogLik,
		AIC:      m.AIC,
		AICc:     m.AICc,
		BIC:      m.BIC,
		NObs:     len(m.residuals),
		LjungBox: stats.LjungBox(z, 10, len(m.Lags)),
	}
}

// recursion holds the regressors of the variance equation, which do not
// depend on the parameters.
type recursion struct {
	resid    []float64
	terms    [][]float64 // per lag: mean of e² over the lag window
	negative []float64   // e²[t-1]·1[e[t-1] < 0]
	leverage bool
	nu       float64
}

func (m *Model) newRecursion() *recursion {
	nobs := len(m.residuals)
	bc := backcast(m.residuals)

	maxLag := 0
	for _, l := range m.Lags {
		maxLag = max(maxLag, l)
	}
	padded := make([]float64, maxLag+nobs)
	for i := range maxLag {
		padded[i] = bc
	}
	for t, e := range m.residuals {
		padded[maxLag+t] = e * e
	}

	r := &recursion{
		resid:    m.residuals,
		terms:    make([][]float64, len(m.Lags)),
		leverage: m.Leverage,
		nu:       m.nu,
	}
	for i, l := range m.Lags {
		r.terms[i] = timeseries.TrailingMeans(padded, l)[maxLag:]
	}
	if m.Leverage {
		r.negative = make([]float64, nobs)
		r.negative[0] = bc / 2
		for t := 1; t < nobs; t++ {
			if e := m.residuals[t-1]; e < 0 {
				r.negative[t] = e * e
			}
		}
	}
	return r
}

// start returns log parameters whose unconditional variance matches variance.
func (r *recursion) start(variance float64) []float64 {
	x := make([]float64, 0, len(r.terms)+2)
	persistence := 0.6
	omega := variance * (1 - persistence)
	if r.leverage {
		omega -= variance * 0.05
	}
	x = append(x, math.Log(omega))
	for range r.terms {
		x = append(x, math.Log(persistence/float64(len(r.terms))))
	}
	if r.leverage {
		x = append(x, math.Log(0.1))
	}
	return x
}

// unpack maps unconstrained parameters to positive ones.
func (r *recursion) unpack(x []float64) []float64 {
	p := make([]float64, len(x))
	for i, v := range x {
		p[i] = math.Exp(math.Max(-maxLogParam, math.Min(maxLogParam, v)))
	}
	return p
}

// logLik evaluates the log-likelihood at log parameters x and stores σ² in
// variances when it is not nil.
func (r *recursion) logLik(x []float64, variances []float64) float64 {
	p := r.unpack(x)
	omega, alphas := p[0], p[1:1+len(r.terms)]
	gamma := 0.0
	if r.leverage {
		gamma = p[len(p)-1]
	}

	ll := 0.0
	for t, e := range r.resid {
		s2 := omega
		for i, term := range r.terms {
			s2 += alphas[i] * term[t]
		}
		if r.leverage {
			s2 += gamma * r.negative[t]
		}
		if variances != nil {
			variances[t] = s2
		}
		ll += logDensity(e, s2, r.nu)
	}
	if math.IsNaN(ll) {
		return math.Inf(-1)
	}
	return ll
}

// logDensity is the log density of e under zero-mean errors with variance s2,
// Student-t with nu degrees of freedom when nu > 2 and Gaussian otherwise.
func logDensity(e, s2, nu float64) float64 {
	if nu > 2 {
		return distuv.StudentsT{Mu: 0, Sigma: math.Sqrt(s2 * (nu - 2) / nu), Nu: nu}.LogProb(e)
	}
	return distuv.Normal{Mu: 0, Sigma: math.Sqrt(s2)}.LogProb(e)
}

// backcast is an exponentially weighted mean of the first squared residuals.
func backcast(resid []float64) float64 {
	n := min(backcastObs, len(resid))
	sum, weights := 0.0, 0.0
	w := 1.0
	for i := range n {
		sum += w * resid[i] * resid[i]
		weights += w
		w *= backcastDecay
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

// contextConverger stops the optimizer once ctx is done.
type contextConverger struct {
	ctx   context.Context
	inner optimize.Converger
}

func (c *contextConverger) Init(dim int) {
	c.inner.Init(dim)
}

func (c *contextConverger) Converged(loc *optimize.Location) optimize.Status {
	if c.ctx.Err() != nil {
		return optimize.Failure
	}
	return c.inner.Converged(loc)
}
