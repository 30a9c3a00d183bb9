// Package har implements heterogeneous autoregressive (HAR) mean models.
package har

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/goharch/stats"
	"github.com/sartorproj/goharch/timeseries"
)

var (
	// ErrHoldBack is returned when HoldBack is not positive.
	ErrHoldBack = errors.New("hold back must be at least 1")

	// ErrInvalidLag is returned for a lag outside [1, HoldBack].
	ErrInvalidLag = errors.New("invalid HAR lag")

	// ErrInvalidParams is returned for an unknown criterion or a Student-t
	// degrees of freedom not above 2.
	ErrInvalidParams = errors.New("invalid HAR parameters")

	// ErrInsufficientData is returned when the estimation sample is too short
	// for the number of parameters.
	ErrInsufficientData = errors.New("insufficient data points for the specified lags")

	// ErrMissingValues is returned when the series contains NaN.
	ErrMissingValues = errors.New("series contains NaN values")

	// ErrDegenerate is returned when the residual variance is zero.
	ErrDegenerate = errors.New("residual variance is zero")

	// ErrNotFitted is returned by accessors called before Fit.
	ErrNotFitted = errors.New("model must be fitted first")
)

// Criterion names an information criterion.
type Criterion string

const (
	BIC  Criterion = "bic"
	AIC  Criterion = "aic"
	AICc Criterion = "aicc"
)

// ParseCriterion parses a criterion name case-insensitively. The empty
// string selects BIC.
func ParseCriterion(s string) (Criterion, error) {
	switch c := Criterion(strings.ToLower(s)); c {
	case "":
		return BIC, nil
	case BIC, AIC, AICc:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown criterion %q", ErrInvalidParams, s)
}

// Params holds everything but the lags.
type Params struct {
	// HoldBack is the number of leading observations excluded from the
	// estimation sample. It is also the largest admissible lag.
	HoldBack int
	// Constant adds an intercept to the regression.
	Constant bool
	// Nu is the Student-t degrees of freedom. Zero selects Gaussian errors.
	Nu float64
	// Criterion selects the score returned by Criterion. Defaults to BIC.
	Criterion Criterion
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.HoldBack < 1 {
		return fmt.Errorf("%w: got %d", ErrHoldBack, p.HoldBack)
	}
	if p.Nu != 0 && !(p.Nu > 2) {
		return fmt.Errorf("%w: nu must be above 2, got %g", ErrInvalidParams, p.Nu)
	}
	if _, err := ParseCriterion(string(p.Criterion)); err != nil {
		return err
	}
	return nil
}

// Model represents a HAR model
//
//	y[t] = c + Σ β_i · mean(y[t-ℓ_i], ..., y[t-1]) + e[t]
//
// estimated by least squares over t in [HoldBack, n).
type Model struct {
	Params    Params
	Lags      []int
	Intercept float64
	Coeffs    []float64 // one per lag, in lag order
	Variance  float64   // ML residual variance SSE/T
	LogLik    float64
	AIC       float64
	AICc      float64
	BIC       float64
	fitted    bool
	data      *timeseries.Series
	residuals []float64
	fittedVal []float64
}

// New creates a HAR model of series with the given lags.
func New(series *timeseries.Series, params Params, lags ...int) *Model {
	if params.Criterion == "" {
		params.Criterion = BIC
	}
	l := make([]int, len(lags))
	copy(l, lags)
	return &Model{
		Params: params,
		Lags:   l,
		data:   series,
	}
}

// Name returns the model name, e.g. HAR[1,5,22].
func (m *Model) Name() string {
	return "HAR" + FormatLags(m.Lags)
}

// FormatLags renders lags as [1,5,22].
func FormatLags(lags []int) string {
	parts := make([]string, len(lags))
	for i, l := range lags {
		parts[i] = strconv.Itoa(l)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// NumParams returns the number of estimated parameters: the regressors plus
// the residual variance.
func (m *Model) NumParams() int {
	k := len(m.Lags) + 1
	if m.Params.Constant {
		k++
	}
	return k
}

// Fitted reports whether Fit has succeeded.
func (m *Model) Fitted() bool {
	return m.fitted
}

// Fit estimates the model.
func (m *Model) Fit() error {
	m.fitted = false
	if err := m.Params.Validate(); err != nil {
		return err
	}
	hb := m.Params.HoldBack
	for _, l := range m.Lags {
		if l < 1 || l > hb {
			return fmt.Errorf("%w: %d outside [1, %d]", ErrInvalidLag, l, hb)
		}
	}
	if m.data == nil || m.data.HasNaN() {
		return ErrMissingValues
	}

	y := m.data.Values
	nobs := len(y) - hb
	regressors := m.NumParams() - 1
	// AICc needs nobs > k+1 with k = regressors+1.
	if nobs <= regressors+2 {
		return fmt.Errorf("%w: %d observations after hold back, %d regressors",
			ErrInsufficientData, max(nobs, 0), regressors)
	}

	x := m.design(nobs)
	target := mat.NewVecDense(nobs, append([]float64(nil), y[hb:]...))

	var beta *mat.VecDense
	if regressors > 0 {
		var err error
		beta, err = leastSquares(x, target)
		if err != nil {
			return err
		}
	}

	m.residuals = make([]float64, nobs)
	m.fittedVal = make([]float64, nobs)
	sse := 0.0
	for t := range nobs {
		pred := 0.0
		for j := range regressors {
			pred += x.At(t, j) * beta.AtVec(j)
		}
		m.fittedVal[t] = pred
		m.residuals[t] = target.AtVec(t) - pred
		sse += m.residuals[t] * m.residuals[t]
	}

	m.Intercept = 0
	m.Coeffs = make([]float64, len(m.Lags))
	offset := 0
	if m.Params.Constant {
		m.Intercept = beta.AtVec(0)
		offset = 1
	}
	for i := range m.Lags {
		m.Coeffs[i] = beta.AtVec(offset + i)
	}

	m.Variance = sse / float64(nobs)
	if !(m.Variance > 0) {
		return ErrDegenerate
	}
	m.LogLik = LogLikelihood(m.residuals, m.Variance, m.Params.Nu)
	m.calculateIC(nobs)

	m.fitted = true
	return nil
}

// design builds the regressor matrix for the estimation sample.
func (m *Model) design(nobs int) *mat.Dense {
	cols := m.NumParams() - 1
	if cols == 0 {
		return nil
	}
	hb := m.Params.HoldBack
	x := mat.NewDense(nobs, cols, nil)
	col := 0
	if m.Params.Constant {
		for t := range nobs {
			x.Set(t, 0, 1)
		}
		col++
	}
	for _, l := range m.Lags {
		means := m.data.TrailingMeans(l)
		for t := range nobs {
			x.Set(t, col, means[hb+t])
		}
		col++
	}
	return x
}

// leastSquares solves min |x·b - y| by QR and falls back to a rank revealing
// SVD solve when x is rank deficient.
func leastSquares(x *mat.Dense, y *mat.VecDense) (*mat.VecDense, error) {
	var qr mat.QR
	qr.Factorize(x)
	var beta mat.VecDense
	err := qr.SolveVecTo(&beta, false, y)
	if err == nil {
		return &beta, nil
	}

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, fmt.Errorf("least squares: QR failed (%v) and SVD factorization failed", err)
	}
	_, cols := x.Dims()
	rank := svd.Rank(1e-12)
	if rank == 0 {
		return mat.NewVecDense(cols, nil), nil
	}
	var b mat.VecDense
	svd.SolveVecTo(&b, y, rank)
	return &b, nil
}

// LogLikelihood returns the log-likelihood of residuals with the given
// variance. nu > 2 selects Student-t errors scaled to that variance, zero
// selects Gaussian errors.
func LogLikelihood(residuals []float64, variance, nu float64) float64 {
	var logProb func(float64) float64
	if nu > 2 {
		dist := distuv.StudentsT{Mu: 0, Sigma: math.Sqrt(variance * (nu - 2) / nu), Nu: nu}
		logProb = dist.LogProb
	} else {
		dist := distuv.Normal{Mu: 0, Sigma: math.Sqrt(variance)}
		logProb = dist.LogProb
	}
	ll := 0.0
	for _, e := range residuals {
		ll += logProb(e)
	}
	return ll
}

func (m *Model) calculateIC(nobs int) {
	m.AIC, m.AICc, m.BIC = InformationCriteria(m.LogLik, m.NumParams(), nobs)
}

// InformationCriteria returns AIC, AICc and BIC for a log-likelihood with k
// parameters over n observations. AICc is +Inf when n <= k+1.
func InformationCriteria(logLik float64, k, n int) (aic, aicc, bic float64) {
	kf, nf := float64(k), float64(n)
	aic = -2*logLik + 2*kf
	if nf-kf-1 > 0 {
		aicc = aic + 2*kf*(kf+1)/(nf-kf-1)
	} else {
		aicc = math.Inf(1)
	}
	bic = -2*logLik + kf*math.Log(nf)
	return aic, aicc, bic
}

// Select returns the criterion c out of aic, aicc and bic.
func Select(c Criterion, aic, aicc, bic float64) float64 {
	switch c {
	case AIC:
		return aic
	case AICc:
		return aicc
	default:
		return bic
	}
}

// Score returns the configured criterion of the fitted model.
func (m *Model) Score() (float64, error) {
	if !m.fitted {
		return 0, ErrNotFitted
	}
	return Select(m.Params.Criterion, m.AIC, m.AICc, m.BIC), nil
}

// Criterion fits the model unless already fitted and returns its score.
func (m *Model) Criterion(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !m.fitted {
		if err := m.Fit(); err != nil {
			return 0, err
		}
	}
	return m.Score()
}

// Residuals returns the residuals of the estimation sample.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	result := make([]float64, len(m.residuals))
	copy(result, m.residuals)
	return result
}

// FittedValues returns the fitted values of the estimation sample.
func (m *Model) FittedValues() []float64 {
	if !m.fitted {
		return nil
	}
	result := make([]float64, len(m.fittedVal))
	copy(result, m.fittedVal)
	return result
}

// Summary describes a fitted model.
type Summary struct {
	Name      string                 `json:"name"`
	Lags      []int                  `json:"lags"`
	Intercept float64                `json:"intercept"`
	Coeffs    []float64              `json:"coeffs"`
	Variance  float64                `json:"variance"`
	LogLik    float64                `json:"loglik"`
	AIC       float64                `json:"aic"`
	AICc      float64                `json:"aicc"`
	BIC       float64                `json:"bic"`
	NObs      int                    `json:"n_obs"`
	LjungBox  *stats.LjungBoxResult `json:"ljung_box,omitempty"`
}

// Summary returns a summary of the fitted model, or nil before Fit.
func (m *Model) Summary() *Summary {
	if !m.fitted {
		return nil
	}
	return &Summary{
		Name:      m.Name(),
		Lags:      append([]int(nil), m.Lags...),
		Intercept: m.Intercept,
		Coeffs:    append([]float64(nil), m.Coeffs...),
		Variance:  m.Variance,
		LogLik:    m.LogLik,
		AIC:       m.AIC,
		AICc:      m.AICc,
		BIC:       m.BIC,
		NObs:      len(m.residuals),
		LjungBox:  stats.LjungBox(m.residuals, 10, len(m.Lags)),
	}
}
