package charts

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"webtraffic/internal/models"
)

const (
	pngWidth  = 1024
	pngHeight = 480

	// historyDays of observed data drawn before a forecast
	historyDays = 60
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to render")

var seriesColors = []drawing.Color{
	chart.ColorBlue,
	chart.ColorOrange,
	chart.ColorGreen,
	chart.ColorRed,
}

func lineStyle(col drawing.Color, dashed bool) chart.Style {
	st := chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
	}
	if dashed {
		st.StrokeDashArray = []float64{5, 3}
	}
	return st
}

// timeSeries pads a single point to two so go-chart can compute an x range.
func timeSeries(name string, xs []time.Time, ys []float64, style chart.Style) chart.TimeSeries {
	if len(xs) == 1 {
		xs = []time.Time{xs[0], xs[0].Add(12 * time.Hour)}
		ys = []float64{ys[0], ys[0]}
	}
	return chart.TimeSeries{Name: name, XValues: xs, YValues: ys, Style: style}
}

// valueRange returns an explicit y range when every value is equal, which go-chart cannot scale.
func valueRange(values ...[]float64) chart.Range {
	first := true
	var lo, hi float64
	for _, vs := range values {
		for _, v := range vs {
			if first {
				lo, hi, first = v, v, false
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if first || lo != hi {
		return nil
	}
	return &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
}

func render(ch chart.Chart, w io.Writer) error {
	ch.Width = pngWidth
	ch.Height = pngHeight
	ch.Background = chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// RenderMovingAveragePNG draws unique visits and their trailing mean.
func RenderMovingAveragePNG(w io.Writer, data MovingAverageData) error {
	if len(data.Values) == 0 {
		return ErrNoData
	}

	var rollDates []time.Time
	var rollValues []float64
	for i, r := range data.Rolling {
		if r != nil {
			rollDates = append(rollDates, data.Dates[i])
			rollValues = append(rollValues, *r)
		}
	}

	series := []chart.Series{
		timeSeries("Unique visits", data.Dates, data.Values, lineStyle(chart.ColorAlternateGray, false)),
	}
	if len(rollValues) > 0 {
		series = append(series, timeSeries(fmt.Sprintf("%d-day moving average", data.Window),
			rollDates, rollValues, lineStyle(chart.ColorBlue, false)))
	}

	ch := chart.Chart{
		Title:  "Unique visits",
		XAxis:  chart.XAxis{Name: "Date", ValueFormatter: chart.TimeDateValueFormatter},
		YAxis:  chart.YAxis{Name: "Visits", Range: valueRange(data.Values)},
		Series: series,
	}
	return render(ch, w)
}

// RenderCorrelogramPNG draws ACF and PACF against lag with the white-noise band.
func RenderCorrelogramPNG(w io.Writer, data CorrelogramData) error {
	if len(data.Lags) < 2 {
		return ErrNoData
	}

	lags := make([]float64, len(data.Lags))
	for i, l := range data.Lags {
		lags[i] = float64(l)
	}
	first, last := lags[0], lags[len(lags)-1]
	band := data.ConfidenceBound

	ch := chart.Chart{
		Title: "Autocorrelation of unique visits",
		XAxis: chart.XAxis{Name: "Lag"},
		YAxis: chart.YAxis{Name: "Correlation", Range: &chart.ContinuousRange{Min: -1, Max: 1}},
		Series: []chart.Series{
			chart.ContinuousSeries{Name: "ACF", XValues: lags, YValues: data.ACF, Style: lineStyle(chart.ColorBlue, false)},
			chart.ContinuousSeries{Name: "PACF", XValues: lags[:len(data.PACF)], YValues: data.PACF, Style: lineStyle(chart.ColorOrange, false)},
			chart.ContinuousSeries{Name: "95% band", XValues: []float64{first, last}, YValues: []float64{band, band}, Style: lineStyle(chart.ColorAlternateGray, true)},
			chart.ContinuousSeries{XValues: []float64{first, last}, YValues: []float64{-band, -band}, Style: lineStyle(chart.ColorAlternateGray, true)},
		},
	}
	return render(ch, w)
}

// RenderForecastPNG draws the tail of each observed series followed by its
// daily forecast as a dashed line.
func RenderForecastPNG(w io.Writer, observations []models.Observation, result *models.ForecastResult) error {
	if result == nil || len(result.Series) == 0 {
		return ErrNoData
	}

	history := sortedByDate(observations)
	if len(history) > historyDays {
		history = history[len(history)-historyDays:]
	}

	var series []chart.Series
	var all [][]float64
	for i, name := range result.Series {
		points := result.Daily[name]
		if len(points) == 0 {
			continue
		}
		col := seriesColors[i%len(seriesColors)]

		if len(history) > 0 {
			dates := make([]time.Time, len(history))
			values := make([]float64, len(history))
			for j, o := range history {
				dates[j] = o.Date
				values[j], _ = o.Value(name)
			}
			series = append(series, timeSeries(name, dates, values, lineStyle(col, false)))
			all = append(all, values)
		}

		dates := make([]time.Time, len(points))
		values := make([]float64, len(points))
		for j, p := range points {
			dates[j] = p.Date
			values[j] = p.Value
		}
		series = append(series, timeSeries(name+" forecast", dates, values, lineStyle(col, true)))
		all = append(all, values)
	}
	if len(series) == 0 {
		return ErrNoData
	}

	ch := chart.Chart{
		Title:  fmt.Sprintf("%d-day forecast", result.Horizon),
		XAxis:  chart.XAxis{Name: "Date", ValueFormatter: chart.TimeDateValueFormatter},
		YAxis:  chart.YAxis{Name: "Visits", Range: valueRange(all...)},
		Series: series,
	}
	return render(ch, w)
}
