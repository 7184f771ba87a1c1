// Package forecast implements a recent-weighted linear regression over daily
// metric series: the most recent observations carry exponentially more
// weight, which keeps short-horizon projections responsive to current
// momentum without the machinery of a full statistical model.
package forecast

import (
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientData reports that the input series is shorter than the
// minimum the regression needs. It is a handled failure, distinguishable
// from a successful empty result.
var ErrInsufficientData = errors.New("forecast: need at least 7 data points")

// Config holds the forecaster tunables.
type Config struct {
	// MinPoints is the minimum input length; shorter series fail with
	// ErrInsufficientData.
	MinPoints int
	// MaxLookback caps how many of the most recent points feed the
	// regression.
	MaxLookback int
	// SmoothWindow is the trailing moving-average width applied to the
	// full input series.
	SmoothWindow int
	// DampenHorizon is the horizon length above which far-future points
	// are linearly attenuated.
	DampenHorizon int
	// FloorRatio clamps every projection to this fraction of the lookback
	// window's mean.
	FloorRatio float64
}

// DefaultConfig returns the production tuning: a 14-day lookback, 3-day
// smoothing, dampening beyond 21 days and a 70% floor.
func DefaultConfig() Config {
	return Config{
		MinPoints:     7,
		MaxLookback:   14,
		SmoothWindow:  3,
		DampenHorizon: 21,
		FloorRatio:    0.7,
	}
}

// Result is the pure output of one forecast computation.
type Result struct {
	// Smoothed is the moving-average view of the full input series.
	Smoothed []float64 `json:"smoothed"`
	// Values holds one projection per horizon day.
	Values []float64 `json:"values"`

	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	// ConfidenceScore rates trend consistency on [0, 100].
	ConfidenceScore int     `json:"confidence_score"`
	RecentAverage   float64 `json:"recent_average"`
	LookbackDays    int     `json:"lookback_days"`
}

// Forecaster projects a daily series forward. It is stateless; the same
// inputs always yield the same result.
type Forecaster struct {
	cfg Config
}

// New creates a forecaster, filling zero config fields from DefaultConfig.
func New(cfg Config) *Forecaster {
	def := DefaultConfig()
	if cfg.MinPoints <= 0 {
		cfg.MinPoints = def.MinPoints
	}
	if cfg.MaxLookback <= 0 {
		cfg.MaxLookback = def.MaxLookback
	}
	if cfg.SmoothWindow <= 0 {
		cfg.SmoothWindow = def.SmoothWindow
	}
	if cfg.DampenHorizon <= 0 {
		cfg.DampenHorizon = def.DampenHorizon
	}
	if cfg.FloorRatio <= 0 {
		cfg.FloorRatio = def.FloorRatio
	}
	return &Forecaster{cfg: cfg}
}

// Forecast fits a weighted trend over the most recent points of values
// (ascending chronological) and projects horizon days ahead.
func (f *Forecaster) Forecast(values []float64, horizon int) (Result, error) {
	if len(values) < f.cfg.MinPoints {
		return Result{}, fmt.Errorf("%w (got %d)", ErrInsufficientData, len(values))
	}
	if horizon <= 0 {
		return Result{}, fmt.Errorf("forecast horizon must be positive, got %d", horizon)
	}

	lookback := min(f.cfg.MaxLookback, len(values))
	recent := values[len(values)-lookback:]

	weights := exponentialWeights(lookback)
	slope, intercept := weightedRegression(recent, weights)

	recentAvg := mean(recent)
	floor := recentAvg * f.cfg.FloorRatio
	lastIndex := lookback - 1

	forecasts := make([]float64, horizon)
	for i := 1; i <= horizon; i++ {
		projected := intercept + slope*float64(lastIndex+i)

		// Long horizons get a linear fade toward 85% to temper
		// overconfident extrapolation; short horizons run undamped.
		dampening := 1.0
		if horizon > f.cfg.DampenHorizon {
			dampening = math.Max(0.85, 1-float64(i)/float64(horizon)*0.15)
		}

		forecasts[i-1] = math.Max(floor, projected*dampening)
	}

	return Result{
		Smoothed:        movingAverage(values, f.cfg.SmoothWindow),
		Values:          forecasts,
		Slope:           slope,
		Intercept:       intercept,
		ConfidenceScore: confidence(recent, slope, intercept),
		RecentAverage:   recentAvg,
		LookbackDays:    lookback,
	}, nil
}

// exponentialWeights returns normalized weights 2^(i/n) for i = 0..n-1, so
// the newest point in the window carries roughly 4x the oldest's weight.
func exponentialWeights(n int) []float64 {
	weights := make([]float64, n)
	sum := 0.0
	for i := range weights {
		weights[i] = math.Pow(2, float64(i)/float64(n))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

// weightedRegression fits value on position index by weighted least squares.
// A degenerate weighted variance of x yields a zero slope.
func weightedRegression(values, weights []float64) (slope, intercept float64) {
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range values {
		x := float64(i)
		w := weights[i]
		sumX += w * x
		sumY += w * y
		sumXY += w * x * y
		sumX2 += w * x * x
	}

	denominator := sumX2 - sumX*sumX
	if denominator != 0 {
		slope = (sumXY - sumX*sumY) / denominator
	}
	intercept = sumY - slope*sumX
	return slope, intercept
}

// movingAverage applies a trailing simple moving average; the first
// window-1 points pass through unsmoothed.
func movingAverage(values []float64, windowSize int) []float64 {
	smoothed := make([]float64, len(values))
	for i := range values {
		if i < windowSize-1 {
			smoothed[i] = values[i]
			continue
		}
		sum := 0.0
		for j := i - windowSize + 1; j <= i; j++ {
			sum += values[j]
		}
		smoothed[i] = sum / float64(windowSize)
	}
	return smoothed
}

// confidence converts the mean absolute relative deviation of the lookback
// actuals from the fitted line into a 0-100 score. A zero actual contributes
// zero deviation rather than an undefined term.
func confidence(recent []float64, slope, intercept float64) int {
	sum := 0.0
	for i, actual := range recent {
		if actual == 0 {
			continue
		}
		predicted := intercept + slope*float64(i)
		sum += math.Abs(actual-predicted) / actual
	}
	avgDeviation := sum / float64(len(recent))

	score := (1 - avgDeviation) * 100
	score = math.Min(100, math.Max(0, score))
	return int(math.Round(score))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
