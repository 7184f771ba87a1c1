package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerpulse/pkg/contracts/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.EnsureTables(context.Background(), []string{"toner_1pack_daily"}))
	return s
}

func TestStore_UpsertDailyAndHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []domain.DailyMetricRecord{
		{Date: "2026-01-02", GMV: 200, Orders: 4, ItemsSold: 6},
		{Date: "2026-01-01", GMV: 100, Orders: 2, ItemsSold: 3},
	}
	require.NoError(t, s.UpsertDaily(ctx, "toner_1pack_daily", records))

	history, err := s.DailyHistory(ctx, "toner_1pack_daily", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, "2026-01-01", history[0].Date, "history is ascending")
	assert.Equal(t, 100.0, history[0].GMV)
	assert.Equal(t, "2026-01-02", history[1].Date)

	// Re-upserting the same date replaces the row.
	require.NoError(t, s.UpsertDaily(ctx, "toner_1pack_daily", []domain.DailyMetricRecord{
		{Date: "2026-01-02", GMV: 999, Orders: 9},
	}))
	history, err = s.DailyHistory(ctx, "toner_1pack_daily", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 999.0, history[1].GMV)
	assert.Zero(t, history[1].ItemsSold, "full-row upsert overwrites every column")
}

func TestStore_UpsertColumnsLeavesOthersAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertDaily(ctx, "toner_1pack_daily", []domain.DailyMetricRecord{
		{Date: "2026-01-01", GMV: 100, Orders: 2},
	}))

	require.NoError(t, s.UpsertColumns(ctx, "toner_1pack_daily", "2026-01-01",
		map[string]float64{"gmv": 150}))

	history, err := s.DailyHistory(ctx, "toner_1pack_daily", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 150.0, history[0].GMV)
	assert.Equal(t, 2.0, history[0].Orders, "untouched column survives a sparse upsert")
}

func TestStore_UpsertColumnsNewDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertColumns(ctx, "toner_1pack_daily", "2026-02-01",
		map[string]float64{"orders": 7, "visitors": 30}))

	history, err := s.DailyHistory(ctx, "toner_1pack_daily", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 7.0, history[0].Orders)
	assert.Equal(t, 30.0, history[0].Visitors)
	assert.Zero(t, history[0].GMV)
}

func TestStore_UpsertColumnsRejectsUnknownColumn(t *testing.T) {
	s := newTestStore(t)

	err := s.UpsertColumns(context.Background(), "toner_1pack_daily", "2026-01-01",
		map[string]float64{"evil_column": 1})
	assert.Error(t, err)
}

func TestStore_DailyHistoryLimitKeepsMostRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertDaily(ctx, "toner_1pack_daily", []domain.DailyMetricRecord{
		{Date: "2026-01-01", GMV: 1},
		{Date: "2026-01-02", GMV: 2},
		{Date: "2026-01-03", GMV: 3},
	}))

	history, err := s.DailyHistory(ctx, "toner_1pack_daily", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2026-01-02", history[0].Date)
	assert.Equal(t, "2026-01-03", history[1].Date)
}

func TestStore_MetricSeries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertDaily(ctx, "toner_1pack_daily", []domain.DailyMetricRecord{
		{Date: "2026-01-01", GMV: 100},
		{Date: "2026-01-02", GMV: 200},
	}))

	series, err := s.MetricSeries(ctx, "toner_1pack_daily", "gmv")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 100.0, series[0].Value)
	assert.Equal(t, 2026, series[0].Date.Year())
	assert.True(t, series[0].Date.Before(series[1].Date))

	_, err = s.MetricSeries(ctx, "toner_1pack_daily", "nope")
	assert.Error(t, err)
}

func TestStore_RejectsInvalidTableNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"Drop Table", "x; DROP TABLE y", "UPPER", "1starts_with_digit", ""} {
		assert.Error(t, s.EnsureTables(ctx, []string{table}), "table %q", table)
		_, err := s.DailyHistory(ctx, table, 0)
		assert.Error(t, err, "table %q", table)
	}
}

func TestStore_EmptyUpsertIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.UpsertDaily(ctx, "toner_1pack_daily", nil))
	assert.NoError(t, s.UpsertColumns(ctx, "toner_1pack_daily", "2026-01-01", nil))

	history, err := s.DailyHistory(ctx, "toner_1pack_daily", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}
