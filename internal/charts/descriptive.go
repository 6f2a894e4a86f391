// Package charts turns filtered observations into chart payloads and PNG images.
// Every function here is pure: the input observations are never modified.
package charts

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"webtraffic/internal/models"
	"webtraffic/internal/timeseries"
)

const (
	DefaultWindow    = 7
	DefaultLags      = 30
	DefaultBins      = 30
	densityPoints    = 64
	whiskerIQRFactor = 1.5
)

// visitTypes are the boxplot categories and the field each one reads.
var visitTypes = []struct {
	label string
	field string
}{
	{"Unique", models.FieldUniqueVisits},
	{"New User", models.FieldFirstTimeVisits},
	{"Returning User", models.FieldReturningVisits},
}

// HeatmapData holds mean unique visits by weekday (rows, Monday first) and month (columns).
type HeatmapData struct {
	Weekdays []string     `json:"weekdays"`
	Months   []string     `json:"months"`
	Values   [][]*float64 `json:"values"`
}

// BoxStats summarizes one visit type.
type BoxStats struct {
	Label        string    `json:"label"`
	Count        int       `json:"count"`
	Min          float64   `json:"min"`
	Q1           float64   `json:"q1"`
	Median       float64   `json:"median"`
	Q3           float64   `json:"q3"`
	Max          float64   `json:"max"`
	LowerWhisker float64   `json:"lower_whisker"`
	UpperWhisker float64   `json:"upper_whisker"`
	Outliers     []float64 `json:"outliers"`
}

// DensityPoint is one sample of a kernel density estimate.
type DensityPoint struct {
	Value   float64 `json:"value"`
	Density float64 `json:"density"`
}

// ViolinData is the unique-visit distribution of one weekday.
type ViolinData struct {
	Weekday   string         `json:"weekday"`
	Count     int            `json:"count"`
	Q1        float64        `json:"q1"`
	Median    float64        `json:"median"`
	Q3        float64        `json:"q3"`
	Bandwidth float64        `json:"bandwidth"`
	Density   []DensityPoint `json:"density"`
}

// HistogramBin is a half-open bin [Lower, Upper).
type HistogramBin struct {
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Count   int     `json:"count"`
	Density float64 `json:"density"`
}

// HistogramData is the density histogram of unique visits.
type HistogramData struct {
	Bins   []HistogramBin `json:"bins"`
	Mean   float64        `json:"mean"`
	Median float64        `json:"median"`
}

// MovingAverageData pairs unique visits with their trailing mean.
type MovingAverageData struct {
	Window  int         `json:"window"`
	Dates   []time.Time `json:"dates"`
	Values  []float64   `json:"values"`
	Rolling []*float64  `json:"rolling"`
}

// CorrelogramData holds ACF and PACF of unique visits for lags 0..n.
type CorrelogramData struct {
	Lags            []int     `json:"lags"`
	ACF             []float64 `json:"acf"`
	PACF            []float64 `json:"pacf"`
	ConfidenceBound float64   `json:"confidence_bound"`
}

func field(observations []models.Observation, name string) []float64 {
	values := make([]float64, 0, len(observations))
	for _, o := range observations {
		if v, ok := o.Value(name); ok {
			values = append(values, v)
		}
	}
	return values
}

// sortedByDate returns the observations ordered by date without touching the input.
func sortedByDate(observations []models.Observation) []models.Observation {
	out := make([]models.Observation, len(observations))
	copy(out, observations)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Date.Before(out[b].Date)
	})
	return out
}

// Heatmap pivots mean unique visits into weekday x month cells. Cells without data are nil.
func Heatmap(observations []models.Observation) HeatmapData {
	var sums, counts [7][12]float64
	for _, o := range observations {
		wd := models.WeekdayIndex(o.Date.Weekday())
		m := int(o.Date.Month()) - 1
		sums[wd][m] += float64(o.UniqueVisits)
		counts[wd][m]++
	}

	data := HeatmapData{
		Weekdays: models.WeekdayNames(),
		Months:   make([]string, 12),
		Values:   make([][]*float64, 7),
	}
	for m := 0; m < 12; m++ {
		data.Months[m] = time.Month(m + 1).String()
	}
	for wd := 0; wd < 7; wd++ {
		data.Values[wd] = make([]*float64, 12)
		for m := 0; m < 12; m++ {
			if counts[wd][m] == 0 {
				continue
			}
			mean := sums[wd][m] / counts[wd][m]
			data.Values[wd][m] = &mean
		}
	}
	return data
}

// Boxplot summarizes unique, new and returning visits. Whiskers reach the
// most extreme points within 1.5 IQR of the quartiles; anything beyond is an outlier.
func Boxplot(observations []models.Observation) []BoxStats {
	if len(observations) == 0 {
		return []BoxStats{}
	}

	boxes := make([]BoxStats, 0, len(visitTypes))
	for _, vt := range visitTypes {
		values := field(observations, vt.field)
		sort.Float64s(values)

		q := timeseries.Quantiles(values, 0, 0.25, 0.5, 0.75, 1)
		box := BoxStats{
			Label:    vt.label,
			Count:    len(values),
			Min:      q[0],
			Q1:       q[1],
			Median:   q[2],
			Q3:       q[3],
			Max:      q[4],
			Outliers: []float64{},
		}

		iqr := box.Q3 - box.Q1
		lowFence := box.Q1 - whiskerIQRFactor*iqr
		highFence := box.Q3 + whiskerIQRFactor*iqr
		box.LowerWhisker, box.UpperWhisker = box.Q1, box.Q3
		for _, v := range values {
			if v < lowFence || v > highFence {
				box.Outliers = append(box.Outliers, v)
				continue
			}
			box.LowerWhisker = math.Min(box.LowerWhisker, v)
			box.UpperWhisker = math.Max(box.UpperWhisker, v)
		}
		boxes = append(boxes, box)
	}
	return boxes
}

// Violin returns the unique-visit distribution of every weekday, Monday first.
// Weekdays without data have a zero count and no density.
func Violin(observations []models.Observation) []ViolinData {
	var byDay [7][]float64
	for _, o := range observations {
		wd := models.WeekdayIndex(o.Date.Weekday())
		byDay[wd] = append(byDay[wd], float64(o.UniqueVisits))
	}

	violins := make([]ViolinData, 7)
	for i, wd := range models.Weekdays {
		values := byDay[i]
		v := ViolinData{Weekday: wd.String(), Count: len(values), Density: []DensityPoint{}}
		if len(values) > 0 {
			q := timeseries.Quantiles(values, 0.25, 0.5, 0.75)
			v.Q1, v.Median, v.Q3 = q[0], q[1], q[2]
			v.Bandwidth, v.Density = KDE(values, densityPoints)
		}
		violins[i] = v
	}
	return violins
}

// ScottBandwidth is sigma * n^(-1/5), the rule of thumb for Gaussian kernels.
func ScottBandwidth(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	_, std := stat.MeanStdDev(values, nil)
	return std * math.Pow(float64(len(values)), -0.2)
}

// KDE estimates a Gaussian kernel density on points evenly spaced from two
// bandwidths below the minimum to two above the maximum. It returns no
// points when the bandwidth is zero.
func KDE(values []float64, points int) (float64, []DensityPoint) {
	bw := ScottBandwidth(values)
	if bw == 0 || points < 2 {
		return bw, []DensityPoint{}
	}

	lo, hi := floats.Min(values)-2*bw, floats.Max(values)+2*bw
	grid := floats.Span(make([]float64, points), lo, hi)

	kernel := distuv.Normal{Mu: 0, Sigma: bw}
	n := float64(len(values))
	density := make([]DensityPoint, points)
	for i, x := range grid {
		sum := 0.0
		for _, v := range values {
			sum += kernel.Prob(x - v)
		}
		density[i] = DensityPoint{Value: x, Density: sum / n}
	}
	return bw, density
}

// Histogram bins unique visits into equal-width bins normalized to a density.
func Histogram(observations []models.Observation, bins int) HistogramData {
	values := field(observations, models.FieldUniqueVisits)
	data := HistogramData{Bins: []HistogramBin{}}
	if len(values) == 0 || bins < 1 {
		return data
	}

	sort.Float64s(values)
	data.Mean = stat.Mean(values, nil)
	data.Median = timeseries.Quantile(values, 0.5)

	lo, hi := values[0], values[len(values)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	dividers := floats.Span(make([]float64, bins+1), lo, hi)
	// the top divider must lie strictly above the largest value
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, values, nil)
	n := float64(len(values))
	width := (hi - lo) / float64(bins)
	for i, c := range counts {
		data.Bins = append(data.Bins, HistogramBin{
			Lower:   dividers[i],
			Upper:   dividers[i+1],
			Count:   int(c),
			Density: c / (n * width),
		})
	}
	return data
}

// MovingAverage returns unique visits in date order with a trailing mean
// that stays nil until window days are available.
func MovingAverage(observations []models.Observation, window int) MovingAverageData {
	sorted := sortedByDate(observations)
	values := field(sorted, models.FieldUniqueVisits)
	rolling := timeseries.RollingMean(values, window)

	data := MovingAverageData{
		Window:  window,
		Dates:   make([]time.Time, len(sorted)),
		Values:  values,
		Rolling: make([]*float64, len(rolling)),
	}
	for i, o := range sorted {
		data.Dates[i] = o.Date
	}
	for i, r := range rolling {
		if math.IsNaN(r) {
			continue
		}
		r := r
		data.Rolling[i] = &r
	}
	return data
}

// Correlogram returns ACF and PACF of unique visits for lags 0..nlags,
// fewer when the range is short. A constant series yields empty slices.
func Correlogram(observations []models.Observation, nlags int) CorrelogramData {
	values := field(sortedByDate(observations), models.FieldUniqueVisits)

	data := CorrelogramData{
		Lags:            []int{},
		ACF:             []float64{},
		PACF:            []float64{},
		ConfidenceBound: timeseries.ConfidenceBound(len(values)),
	}

	acf := timeseries.ACF(values, nlags)
	if acf == nil {
		return data
	}
	pacf := timeseries.PACF(values, nlags)
	if pacf == nil {
		pacf = []float64{1}
	}

	data.ACF = acf
	data.PACF = pacf
	for k := range acf {
		data.Lags = append(data.Lags, k)
	}
	return data
}
