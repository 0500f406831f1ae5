// Package forecast fits simple linear trends over monthly series and
// projects them forward. Series values are cents.
package forecast

import (
	"errors"
)

// MinHistory is the number of observations needed for a linear fit.
const MinHistory = 3

var ErrInsufficientHistory = errors.New("insufficient history")

// Method records how a series was produced.
type Method string

const (
	// MethodLinear is an ordinary least-squares trend fit.
	MethodLinear Method = "linear"
	// MethodFlat repeats the last observation; used when history is
	// too short for a fit.
	MethodFlat Method = "flat"
)

type (
	// Model is a fitted linear trend over observation index.
	Model struct {
		Intercept float64
		Slope     float64
	}

	// Series is a projection over the coming months. Degraded marks
	// flat-line output produced from short history.
	Series struct {
		Values   []int64 // cents per future month, index 0 = next month
		Method   Method
		Degraded bool
	}
)

// Fit computes an ordinary least-squares line over the history, with
// observation index as the independent variable.
func Fit(history []float64) (*Model, error) {
	n := len(history)
	if n < MinHistory {
		return nil, ErrInsufficientHistory
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range history {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return nil, ErrInsufficientHistory
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn
	return &Model{Intercept: intercept, Slope: slope}, nil
}

// Predict projects the fitted trend for the given number of future
// steps, continuing after the fitted range.
func (m *Model) Predict(start, horizon int) []float64 {
	out := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		out[i] = m.Intercept + m.Slope*float64(start+i)
	}
	return out
}

// Forecast projects a monthly expense series. Empty history is an
// error; one or two observations produce a degraded flat line; three
// or more produce a linear trend. Values clamp at zero since a
// projected expense cannot go negative.
func Forecast(history []int64, horizon int) (Series, error) {
	if len(history) == 0 {
		return Series{}, ErrInsufficientHistory
	}
	if horizon <= 0 {
		return Series{Method: MethodLinear}, nil
	}

	if len(history) < MinHistory {
		values := make([]int64, horizon)
		last := history[len(history)-1]
		for i := range values {
			values[i] = last
		}
		return Series{Values: values, Method: MethodFlat, Degraded: true}, nil
	}

	floats := make([]float64, len(history))
	for i, v := range history {
		floats[i] = float64(v)
	}
	model, err := Fit(floats)
	if err != nil {
		return Series{}, err
	}

	predicted := model.Predict(len(history), horizon)
	values := make([]int64, horizon)
	for i, v := range predicted {
		if v < 0 {
			v = 0
		}
		values[i] = int64(v + 0.5)
	}
	return Series{Values: values, Method: MethodLinear}, nil
}
