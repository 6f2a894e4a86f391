// Package arima implements autoregressive integrated models without moving
// average terms, ARIMA(p,d,0).
//
// Fitting uses conditional least squares on the d-times differenced series:
// the first p differenced values seed the lag matrix and the remaining ones
// are regressed on their p predecessors with no constant term. The fit is a
// closed-form linear solve, so the same input always yields the same
// coefficients.
//
// When the least-squares coefficients are not stationary (spectral radius of
// the companion matrix at least 1), which happens mostly on short histories,
// the model is refitted with Yule-Walker estimates from the autocorrelations
// of the differenced series. Model.Method records which estimate was kept.
//
// A fit is rejected when the lag matrix is singular or ill-conditioned, or
// when any coefficient is not finite.
//
// Example:
//
//	model := arima.New(5, 1, 0)
//	if err := model.Fit(values); err != nil {
//		return err
//	}
//	next, err := model.Predict(30)
package arima
