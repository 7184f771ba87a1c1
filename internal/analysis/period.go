// Package analysis computes period-over-period comparisons for daily metric
// series: totals, averages, trend classification and median positioning.
package analysis

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"sellerpulse/pkg/contracts/domain"
)

// ErrEmptyWindow reports that a series cannot supply the requested current
// period. It is distinct from a successful empty extraction: an aggregation
// with nothing to aggregate is a caller error, not "no data".
var ErrEmptyWindow = errors.New("analysis: series has no values in the requested window")

// Trend classifies the direction of a period-over-period change.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Flat-change thresholds, in percent. Whole-history comparisons use the
// tighter threshold; interactive period reselection uses the looser one.
// The two call sites intentionally differ and are kept as configuration.
const (
	HistoryFlatThreshold     = 1.0
	ReselectionFlatThreshold = 5.0
)

// averageTokens marks rate/ratio/average-style metrics whose periods compare
// by mean instead of sum. Matching is a case-insensitive substring test.
var averageTokens = []string{"rate", "aov", "units per order", "$ per", "avg"}

// UseAverageMetric reports whether a metric's periods compare by mean.
func UseAverageMetric(name string) bool {
	lower := strings.ToLower(name)
	for _, token := range averageTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// PeriodWindow summarizes one side of a comparison.
type PeriodWindow struct {
	Total       float64             `json:"total"`
	Average     float64             `json:"average"`
	DailyValues []domain.DatedValue `json:"daily_values"`
}

// PeriodSummary is the derived comparison for one metric. It is recomputed
// on every query and never mutated in place.
type PeriodSummary struct {
	Name           string       `json:"name"`
	CurrentPeriod  PeriodWindow `json:"current_period"`
	PreviousPeriod PeriodWindow `json:"previous_period"`
	Change         float64      `json:"change"`
	ChangePercent  float64      `json:"change_percent"`
	Trend          Trend        `json:"trend"`
	Median         float64      `json:"median"`
	AboveMedian    bool         `json:"above_median"`
	UseAverage     bool         `json:"use_average"`
}

// Options configures an Analyzer.
type Options struct {
	// FlatThresholdPercent is the |change%| below which a trend is flat.
	FlatThresholdPercent float64
}

// Analyzer computes period summaries over ascending daily series. It holds
// no mutable state; the same inputs always produce the same summary.
type Analyzer struct {
	opts Options
}

// NewAnalyzer creates an analyzer; a zero threshold falls back to the
// whole-history default.
func NewAnalyzer(opts Options) *Analyzer {
	if opts.FlatThresholdPercent <= 0 {
		opts.FlatThresholdPercent = HistoryFlatThreshold
	}
	return &Analyzer{opts: opts}
}

// AnalyzePeriod splits the series into a current window of up to days
// entries and the immediately preceding window of the same length, then
// summarizes both.
//
// With a nil endDate the current window ends at the series' last entry.
// When endDate is given and found in the series, the current window ends at
// it inclusively; an endDate not present falls back to the default anchor.
func (a *Analyzer) AnalyzePeriod(series domain.MetricSeries, days int, endDate *time.Time) (PeriodSummary, error) {
	values := series.Values
	n := len(values)

	var current, previous []domain.DatedValue
	if idx := findDateIndex(values, endDate); idx >= 0 {
		start := maxInt(0, idx-days+1)
		prevStart := maxInt(0, start-days)
		current = values[start : idx+1]
		previous = values[prevStart:start]
	} else {
		current = values[maxInt(0, n-days):]
		previous = values[maxInt(0, n-2*days):maxInt(0, n-days)]
	}

	if len(current) == 0 {
		return PeriodSummary{}, ErrEmptyWindow
	}

	return a.summarize(series, current, previous), nil
}

// AnalyzeHistory compares the two most recent halves of the whole series,
// with a floor of seven entries per period.
func (a *Analyzer) AnalyzeHistory(series domain.MetricSeries) (PeriodSummary, error) {
	days := maxInt(7, len(series.Values)/2)
	return a.AnalyzePeriod(series, days, nil)
}

func (a *Analyzer) summarize(series domain.MetricSeries, current, previous []domain.DatedValue) PeriodSummary {
	currentWindow := window(current)
	previousWindow := window(previous)

	useAverage := UseAverageMetric(series.Name)
	currentValue := currentWindow.Total
	previousValue := previousWindow.Total
	if useAverage {
		currentValue = currentWindow.Average
		previousValue = previousWindow.Average
	}

	change := currentValue - previousValue
	changePercent := 0.0
	if previousValue != 0 {
		changePercent = change / previousValue * 100
	}

	median := Median(series.Floats())

	return PeriodSummary{
		Name:           series.Name,
		CurrentPeriod:  currentWindow,
		PreviousPeriod: previousWindow,
		Change:         change,
		ChangePercent:  changePercent,
		Trend:          a.trend(change, changePercent),
		Median:         median,
		AboveMedian:    currentWindow.Average >= median,
		UseAverage:     useAverage,
	}
}

func (a *Analyzer) trend(change, changePercent float64) Trend {
	switch {
	case math.Abs(changePercent) < a.opts.FlatThresholdPercent:
		return TrendFlat
	case change > 0:
		return TrendUp
	default:
		return TrendDown
	}
}

func window(values []domain.DatedValue) PeriodWindow {
	w := PeriodWindow{DailyValues: values}
	for _, v := range values {
		w.Total += v.Value
	}
	if len(values) > 0 {
		w.Average = w.Total / float64(len(values))
	}
	return w
}

// Median returns the median of values, averaging the two middle elements
// for even-length input. An empty input yields 0.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func findDateIndex(values []domain.DatedValue, date *time.Time) int {
	if date == nil {
		return -1
	}
	for i, v := range values {
		if sameDay(v.Date, *date) {
			return i
		}
	}
	return -1
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
