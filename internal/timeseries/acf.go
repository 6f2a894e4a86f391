package timeseries

import "math"

// ACF calculates the sample autocorrelation for lags 0..maxLag using the
// biased (1/n) autocovariance. Returns nil for a constant or empty series.
func ACF(values []float64, maxLag int) []float64 {
	n := len(values)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}

	mean := Mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}

	if variance == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (values[i] - mean) * (values[i-k] - mean)
		}
		acf[k] = sum / variance
	}

	return acf
}

// PACF calculates the partial autocorrelation for lags 0..maxLag by running
// the Durbin-Levinson recursion over the ACF (Yule-Walker estimates).
func PACF(values []float64, maxLag int) []float64 {
	acf := ACF(values, maxLag)
	if len(acf) < 2 {
		return nil
	}
	pacf, _ := durbinLevinson(acf)
	return pacf
}

// YuleWalker estimates AR(p) coefficients phi_1..phi_p from the sample
// autocorrelations. With the biased ACF the estimate is always stationary.
// Returns nil when the series is constant or shorter than p+1.
func YuleWalker(values []float64, p int) []float64 {
	if p < 1 || len(values) <= p {
		return nil
	}
	acf := ACF(values, p)
	if len(acf) != p+1 {
		return nil
	}
	_, phi := durbinLevinson(acf)
	return phi
}

// durbinLevinson solves the Yule-Walker equations for every order up to
// len(acf)-1. It returns the partial autocorrelations and the coefficients
// of the highest order.
func durbinLevinson(acf []float64) (pacf, phi []float64) {
	maxLag := len(acf) - 1

	pacf = make([]float64, maxLag+1)
	pacf[0] = 1.0

	prev := []float64{acf[1]}
	pacf[1] = acf[1]

	for k := 2; k <= maxLag; k++ {
		num := acf[k]
		den := 1.0
		for j := 1; j < k; j++ {
			num -= prev[j-1] * acf[k-j]
			den -= prev[j-1] * acf[j]
		}

		kk := 0.0
		if den != 0 {
			kk = num / den
		}
		pacf[k] = kk

		next := make([]float64, k)
		for j := 1; j < k; j++ {
			next[j-1] = prev[j-1] - kk*prev[k-j-1]
		}
		next[k-1] = kk
		prev = next
	}

	return pacf, prev
}

// Autocorr is the Pearson correlation between the series and itself shifted
// by lag. It is NaN when either side has no variance or too few points.
func Autocorr(values []float64, lag int) float64 {
	if lag < 0 || len(values)-lag < 2 {
		return math.NaN()
	}
	x := values[lag:]
	y := values[:len(values)-lag]

	mx, my := Mean(x), Mean(y)
	var sxy, sxx, syy float64
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

// ConfidenceBound is the approximate 95% band (±1.96/sqrt(n)) for a white-noise correlogram.
func ConfidenceBound(n int) float64 {
	if n <= 0 {
		return 0
	}
	return 1.96 / math.Sqrt(float64(n))
}
