package arima

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"webtraffic/internal/timeseries"
)

var (
	ErrUnsupportedOrder = errors.New("only non-negative ARIMA(p,d,0) orders are supported")
	ErrInsufficientData = errors.New("insufficient data points for the specified order")
	ErrSingularFit      = errors.New("singular or ill-conditioned lag matrix")
	ErrNonFinite        = errors.New("model produced non-finite values")
	ErrNonStationary    = errors.New("autoregressive polynomial is not stationary")
	ErrNotFitted        = errors.New("model must be fitted before prediction")
)

// Order represents ARIMA model order (p, d, q).
type Order struct {
	P int // AR order (number of autoregressive terms)
	D int // Differencing order
	Q int // MA order, must be 0
}

func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

// MinObservations is the shortest history Fit accepts for the order.
func MinObservations(o Order) int {
	return o.P + o.D + o.Q + 10
}

// Estimation methods reported in Model.Method.
const (
	MethodCLS        = "cls"
	MethodYuleWalker = "yule-walker"
)

// Model represents an ARIMA(p,d,0) model.
type Model struct {
	Order    Order
	Method   string    // MethodCLS or MethodYuleWalker
	ARCoeffs []float64 // phi_1..phi_p
	Variance float64   // residual variance
	LogLik   float64
	AIC      float64
	BIC      float64
	NObs     int

	fitted    bool
	data      []float64
	diffData  []float64
	residuals []float64
}

// New creates a new model with the specified order.
func New(p, d, q int) *Model {
	return &Model{
		Order: Order{P: p, D: d, Q: q},
	}
}

// Fit estimates the AR coefficients from values, which must already be in
// time order with no missing entries.
func (m *Model) Fit(values []float64) error {
	if m.Order.Q != 0 || m.Order.P < 0 || m.Order.D < 0 {
		return fmt.Errorf("%w: got %s", ErrUnsupportedOrder, m.Order)
	}

	need := MinObservations(m.Order)
	if len(values) < need {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(values), need)
	}

	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: input contains NaN or Inf", ErrNonFinite)
		}
	}

	m.fitted = false
	m.data = make([]float64, len(values))
	copy(m.data, values)
	m.diffData = timeseries.DiffN(m.data, m.Order.D)
	m.NObs = len(values)

	if err := m.fitCLS(); err != nil {
		return err
	}
	if err := m.checkStationary(); err != nil {
		// least squares can land outside the stationary region on short
		// histories; Yule-Walker cannot
		log.Printf("ARIMA%s: %v, refitting with Yule-Walker", m.Order, err)
		if err := m.fitYuleWalker(); err != nil {
			return err
		}
		if err := m.checkStationary(); err != nil {
			return err
		}
	}

	m.calculateIC()
	m.fitted = true
	return nil
}

// fitCLS solves y_t = sum_i phi_i * y_{t-i} by least squares.
func (m *Model) fitCLS() error {
	y := m.diffData
	n := len(y)
	p := m.Order.P
	rows := n - p

	if rows <= p {
		return fmt.Errorf("%w: %d usable rows for %d coefficients", ErrInsufficientData, rows, p)
	}

	m.Method = MethodCLS
	m.ARCoeffs = make([]float64, p)

	if p > 0 {
		x := mat.NewDense(rows, p, nil)
		for t := p; t < n; t++ {
			for i := 0; i < p; i++ {
				x.Set(t-p, i, y[t-i-1])
			}
		}
		target := make([]float64, rows)
		copy(target, y[p:])

		var beta mat.VecDense
		if err := beta.SolveVec(x, mat.NewVecDense(rows, target)); err != nil {
			return fmt.Errorf("%w: %v", ErrSingularFit, err)
		}
		for i := 0; i < p; i++ {
			m.ARCoeffs[i] = beta.AtVec(i)
			if math.IsNaN(m.ARCoeffs[i]) || math.IsInf(m.ARCoeffs[i], 0) {
				return fmt.Errorf("%w: coefficient %d is %v", ErrNonFinite, i+1, m.ARCoeffs[i])
			}
		}
	}

	m.computeResiduals()
	return nil
}

// fitYuleWalker replaces the coefficients with the Yule-Walker estimate
// from the autocorrelations of the differenced series.
func (m *Model) fitYuleWalker() error {
	phi := timeseries.YuleWalker(m.diffData, m.Order.P)
	if phi == nil {
		return fmt.Errorf("%w: no autocorrelation structure for Yule-Walker", ErrSingularFit)
	}
	for i, c := range phi {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: coefficient %d is %v", ErrNonFinite, i+1, c)
		}
	}

	m.Method = MethodYuleWalker
	m.ARCoeffs = phi
	m.computeResiduals()
	return nil
}

func (m *Model) computeResiduals() {
	y := m.diffData
	p := m.Order.P
	m.residuals = make([]float64, len(y)-p)

	sse := 0.0
	for t := p; t < len(y); t++ {
		r := y[t] - m.predictAt(y, t)
		m.residuals[t-p] = r
		sse += r * r
	}
	m.Variance = sse / float64(len(m.residuals))
}

// checkStationary rejects coefficient sets whose companion matrix has an
// eigenvalue on or outside the unit circle.
func (m *Model) checkStationary() error {
	p := m.Order.P
	if p == 0 {
		return nil
	}

	companion := mat.NewDense(p, p, nil)
	for i := 0; i < p; i++ {
		companion.Set(0, i, m.ARCoeffs[i])
		if i > 0 {
			companion.Set(i, i-1, 1)
		}
	}

	var eig mat.Eigen
	if ok := eig.Factorize(companion, mat.EigenNone); !ok {
		return fmt.Errorf("%w: eigen decomposition of the companion matrix failed", ErrNonStationary)
	}
	for _, root := range eig.Values(nil) {
		if modulus := cmplx.Abs(root); modulus >= 1 {
			return fmt.Errorf("%w: companion eigenvalue modulus %.4f", ErrNonStationary, modulus)
		}
	}
	return nil
}

// calculateIC fills the Gaussian log-likelihood, AIC and BIC.
func (m *Model) calculateIC() {
	n := float64(len(m.residuals))
	k := float64(m.Order.P + 1) // AR terms + variance

	if m.Variance > 0 {
		m.LogLik = -n / 2 * (math.Log(2*math.Pi*m.Variance) + 1)
	} else {
		m.LogLik = math.Inf(1)
	}

	m.AIC = -2*m.LogLik + 2*k
	m.BIC = -2*m.LogLik + k*math.Log(n)
}

// Predict generates point forecasts for the next steps values on the original scale.
func (m *Model) Predict(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}

	if steps < 1 {
		return nil, errors.New("steps must be at least 1")
	}

	y := m.diffData
	n := len(y)

	ext := make([]float64, n+steps)
	copy(ext, y)
	for h := 0; h < steps; h++ {
		ext[n+h] = m.predictAt(ext, n+h)
	}

	forecasts := make([]float64, steps)
	copy(forecasts, ext[n:])

	if m.Order.D > 0 {
		forecasts = m.integrate(forecasts)
	}

	for i, v := range forecasts {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: forecast step %d is %v", ErrNonFinite, i+1, v)
		}
	}

	return forecasts, nil
}

func (m *Model) predictAt(y []float64, t int) float64 {
	pred := 0.0
	for i := 0; i < m.Order.P && t-i-1 >= 0; i++ {
		pred += m.ARCoeffs[i] * y[t-i-1]
	}
	return pred
}

// integrate undoes differencing, one level at a time from the innermost,
// anchoring each level on the last observed value of that level.
func (m *Model) integrate(forecasts []float64) []float64 {
	result := forecasts
	for k := m.Order.D - 1; k >= 0; k-- {
		level := timeseries.DiffN(m.data, k)
		acc := level[len(level)-1]

		integrated := make([]float64, len(result))
		for j, v := range result {
			acc += v
			integrated[j] = acc
		}
		result = integrated
	}
	return result
}

// Residuals returns the in-sample residuals on the differenced scale.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	result := make([]float64, len(m.residuals))
	copy(result, m.residuals)
	return result
}
