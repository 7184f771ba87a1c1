package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerpulse/pkg/contracts/domain"
)

func day(n int) time.Time {
	return time.Date(2026, time.January, n, 0, 0, 0, 0, time.UTC)
}

func series(name string, values ...float64) domain.MetricSeries {
	s := domain.MetricSeries{Name: name}
	for i, v := range values {
		s.Values = append(s.Values, domain.DatedValue{Date: day(i + 1), Value: v})
	}
	return s
}

func TestAnalyzePeriod_SumMetric(t *testing.T) {
	a := NewAnalyzer(Options{})
	s := series("GMV", 10, 20, 30, 40, 100, 200, 300, 400)

	summary, err := a.AnalyzePeriod(s, 4, nil)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, summary.CurrentPeriod.Total)
	assert.Equal(t, 100.0, summary.PreviousPeriod.Total)
	assert.Equal(t, 900.0, summary.Change)
	assert.InDelta(t, 900.0, summary.ChangePercent, 1e-9)
	assert.Equal(t, TrendUp, summary.Trend)
	assert.False(t, summary.UseAverage)
}

func TestAnalyzePeriod_AverageMetric(t *testing.T) {
	a := NewAnalyzer(Options{})
	s := series("Conv. Rate", 1, 1, 1, 1, 2, 2, 2, 2)

	summary, err := a.AnalyzePeriod(s, 4, nil)
	require.NoError(t, err)

	assert.True(t, summary.UseAverage)
	assert.Equal(t, 2.0, summary.CurrentPeriod.Average)
	assert.Equal(t, 1.0, summary.PreviousPeriod.Average)
	assert.Equal(t, 1.0, summary.Change, "average metrics compare means, not totals")
	assert.InDelta(t, 100.0, summary.ChangePercent, 1e-9)
}

func TestAnalyzePeriod_ZeroPreviousGuardsPercent(t *testing.T) {
	a := NewAnalyzer(Options{})
	s := series("GMV", 0, 0, 0, 0, 10, 20, 30, 40)

	summary, err := a.AnalyzePeriod(s, 4, nil)
	require.NoError(t, err)

	assert.Equal(t, 100.0, summary.Change)
	assert.Zero(t, summary.ChangePercent, "zero previous period must not divide")
	assert.Equal(t, TrendFlat, summary.Trend, "without a percent the change reads flat")
}

func TestAnalyzePeriod_EndDateAnchor(t *testing.T) {
	a := NewAnalyzer(Options{})
	s := series("Orders", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	t.Run("anchor mid-series", func(t *testing.T) {
		anchor := day(6)
		summary, err := a.AnalyzePeriod(s, 3, &anchor)
		require.NoError(t, err)

		assert.Equal(t, 4.0+5+6, summary.CurrentPeriod.Total)
		assert.Equal(t, 1.0+2+3, summary.PreviousPeriod.Total)
	})

	t.Run("anchor not in series falls back to latest", func(t *testing.T) {
		anchor := time.Date(2030, time.June, 1, 0, 0, 0, 0, time.UTC)
		summary, err := a.AnalyzePeriod(s, 3, &anchor)
		require.NoError(t, err)

		assert.Equal(t, 8.0+9+10, summary.CurrentPeriod.Total)
	})

	t.Run("anchor near start truncates windows", func(t *testing.T) {
		anchor := day(2)
		summary, err := a.AnalyzePeriod(s, 3, &anchor)
		require.NoError(t, err)

		assert.Equal(t, 1.0+2, summary.CurrentPeriod.Total)
		assert.Empty(t, summary.PreviousPeriod.DailyValues)
	})
}

func TestAnalyzePeriod_ShortSeriesTruncatesWindows(t *testing.T) {
	a := NewAnalyzer(Options{})
	s := series("Orders", 5, 6, 7)

	summary, err := a.AnalyzePeriod(s, 7, nil)
	require.NoError(t, err)

	assert.Len(t, summary.CurrentPeriod.DailyValues, 3)
	assert.Empty(t, summary.PreviousPeriod.DailyValues)
}

func TestAnalyzePeriod_EmptySeries(t *testing.T) {
	a := NewAnalyzer(Options{})

	_, err := a.AnalyzePeriod(domain.MetricSeries{Name: "GMV"}, 7, nil)
	assert.ErrorIs(t, err, ErrEmptyWindow)
}

func TestAnalyzePeriod_Idempotent(t *testing.T) {
	a := NewAnalyzer(Options{})
	s := series("GMV", 3, 1, 4, 1, 5, 9, 2, 6)

	first, err := a.AnalyzePeriod(s, 4, nil)
	require.NoError(t, err)
	second, err := a.AnalyzePeriod(s, 4, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnalyzePeriod_FlatThresholds(t *testing.T) {
	s := series("GMV", 100, 100, 100, 100, 103, 100, 100, 100)

	t.Run("history threshold calls 0.75 percent flat", func(t *testing.T) {
		a := NewAnalyzer(Options{})
		summary, err := a.AnalyzePeriod(s, 4, nil)
		require.NoError(t, err)
		assert.Equal(t, TrendFlat, summary.Trend)
	})

	t.Run("looser threshold widens the flat band", func(t *testing.T) {
		a := NewAnalyzer(Options{FlatThresholdPercent: ReselectionFlatThreshold})
		wobbly := series("GMV", 100, 100, 100, 100, 104, 104, 104, 104)
		summary, err := a.AnalyzePeriod(wobbly, 4, nil)
		require.NoError(t, err)
		assert.Equal(t, TrendFlat, summary.Trend)

		tight := NewAnalyzer(Options{})
		summary, err = tight.AnalyzePeriod(wobbly, 4, nil)
		require.NoError(t, err)
		assert.Equal(t, TrendUp, summary.Trend)
	})
}

func TestAnalyzeHistory_HalvesWithSevenDayFloor(t *testing.T) {
	a := NewAnalyzer(Options{})

	t.Run("long series splits in half", func(t *testing.T) {
		values := make([]float64, 20)
		for i := range values {
			values[i] = float64(i + 1)
		}
		summary, err := a.AnalyzeHistory(series("GMV", values...))
		require.NoError(t, err)
		assert.Len(t, summary.CurrentPeriod.DailyValues, 10)
		assert.Len(t, summary.PreviousPeriod.DailyValues, 10)
	})

	t.Run("short series floors at seven", func(t *testing.T) {
		summary, err := a.AnalyzeHistory(series("GMV", 1, 2, 3, 4, 5, 6, 7, 8))
		require.NoError(t, err)
		assert.Len(t, summary.CurrentPeriod.DailyValues, 7)
		assert.Len(t, summary.PreviousPeriod.DailyValues, 1)
	})
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"odd length", []float64{5, 1, 3}, 3},
		{"even length averages middles", []float64{1, 2, 3, 4}, 2.5},
		{"single value", []float64{7}, 7},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Median(tt.values))
		})
	}
}

func TestMedian_DoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Median(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestAboveMedian(t *testing.T) {
	a := NewAnalyzer(Options{})
	s := series("GMV", 1, 1, 1, 1, 9, 9, 9, 9)

	summary, err := a.AnalyzePeriod(s, 4, nil)
	require.NoError(t, err)

	assert.Equal(t, 5.0, summary.Median)
	assert.True(t, summary.AboveMedian, "current average 9 sits above median 5")
}

func TestUseAverageMetric(t *testing.T) {
	assert.True(t, UseAverageMetric("Conv. Rate"))
	assert.True(t, UseAverageMetric("AOV"))
	assert.True(t, UseAverageMetric("Units per Order"))
	assert.True(t, UseAverageMetric("$ per Visitor"))
	assert.True(t, UseAverageMetric("Avg Visitors"))
	assert.False(t, UseAverageMetric("GMV"))
	assert.False(t, UseAverageMetric("Orders"))
	assert.False(t, UseAverageMetric("Subscribers"))
}
