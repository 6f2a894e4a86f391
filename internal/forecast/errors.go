package forecast

import (
	"fmt"

	"webtraffic/internal/config"
)

// HorizonError reports a forecast horizon outside the supported range.
type HorizonError struct {
	Horizon int
}

func (e *HorizonError) Error() string {
	return fmt.Sprintf("forecast horizon must be between %d and %d days, got %d",
		config.MinHorizon, config.MaxHorizon, e.Horizon)
}

// InsufficientDataError reports a series too short to fit the model.
type InsufficientDataError struct {
	Series string
	Have   int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("not enough data to forecast %s: have %d observations, need at least %d",
		e.Series, e.Have, e.Need)
}

// ModelFitError reports a model that could not be estimated or produced unusable values.
type ModelFitError struct {
	Series string
	Err    error
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("failed to fit model for %s: %v", e.Series, e.Err)
}

func (e *ModelFitError) Unwrap() error {
	return e.Err
}
