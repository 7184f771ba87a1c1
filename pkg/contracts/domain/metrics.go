// Package domain defines the shared data contracts exchanged between the
// extraction, analysis and persistence layers.
package domain

import "time"

// DatedValue is a single observation in a daily metric series.
type DatedValue struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// MetricSeries is an ordered daily series for one canonical metric.
// Dates are unique and ascending as produced by the extractors; values are
// always finite (unparseable cells resolve to 0, never to absence).
type MetricSeries struct {
	Name   string       `json:"name"`
	Values []DatedValue `json:"values"`
}

// Floats returns the raw values in chronological order.
func (s MetricSeries) Floats() []float64 {
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		out[i] = v.Value
	}
	return out
}

// Dates returns the observation dates in chronological order.
func (s MetricSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Values))
	for i, v := range s.Values {
		out[i] = v.Date
	}
	return out
}

// DashboardDataset is the result of one extraction call: every metric series
// recovered from a single source export. It is produced fresh per fetch and
// never persisted by the core.
type DashboardDataset struct {
	SourceName string         `json:"source_name"`
	Metrics    []MetricSeries `json:"metrics"`
}

// Metric returns the series with the given canonical name, if present.
func (d DashboardDataset) Metric(name string) (MetricSeries, bool) {
	for _, m := range d.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return MetricSeries{}, false
}
