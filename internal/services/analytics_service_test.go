package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerpulse/internal/analysis"
	"sellerpulse/pkg/contracts/domain"
)

// fakeHistoryStore serves canned records and series per table.
type fakeHistoryStore struct {
	history map[string][]domain.DailyMetricRecord
	series  map[string]map[string][]domain.DatedValue
}

func (f *fakeHistoryStore) DailyHistory(ctx context.Context, table string, limit int) ([]domain.DailyMetricRecord, error) {
	recs, ok := f.history[table]
	if !ok {
		return nil, nil
	}
	return recs, nil
}

func (f *fakeHistoryStore) MetricSeries(ctx context.Context, table, column string) ([]domain.DatedValue, error) {
	if f.series == nil {
		return nil, nil
	}
	return f.series[table][column], nil
}

func dated(startDay int, values ...float64) []domain.DatedValue {
	out := make([]domain.DatedValue, len(values))
	for i, v := range values {
		out[i] = domain.DatedValue{
			Date:  time.Date(2026, time.January, startDay+i, 0, 0, 0, 0, time.UTC),
			Value: v,
		}
	}
	return out
}

func TestAnalyticsService_DashboardFromCSV(t *testing.T) {
	svc := NewAnalyticsService(testCatalog(), &fakeHistoryStore{}, nil, narrowExtractor(), nil)

	body := strings.Join([]string{
		",,1-Jan,2-Jan",
		",Orders,3,4",
		",Conv. Rate,1.5,2.5",
	}, "\n")

	dashboard, err := svc.DashboardFromCSV(context.Background(), "pasted", body, "")
	require.NoError(t, err)

	assert.Equal(t, "pasted", dashboard.Product)
	require.Len(t, dashboard.Metrics, 2)

	var orders *MetricDashboard
	for i := range dashboard.Metrics {
		if dashboard.Metrics[i].Name == "Orders" {
			orders = &dashboard.Metrics[i]
		}
	}
	require.NotNil(t, orders)
	assert.NotEmpty(t, orders.Weekly)
	assert.Equal(t, 7.0, orders.Summary.CurrentPeriod.Total)
}

func TestAnalyticsService_DashboardFromCSV_Empty(t *testing.T) {
	svc := NewAnalyticsService(testCatalog(), &fakeHistoryStore{}, nil, narrowExtractor(), nil)

	_, err := svc.DashboardFromCSV(context.Background(), "pasted", "nothing,useful", "")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestAnalyticsService_StoredDashboard(t *testing.T) {
	store := &fakeHistoryStore{history: map[string][]domain.DailyMetricRecord{
		"nad_cream_daily": {
			{Date: "2026-01-01", GMV: 100, Orders: 5},
			{Date: "2026-01-02", GMV: 200, Orders: 6},
			{Date: "2026-01-03", GMV: 300, Orders: 7},
			{Date: "2026-01-04", GMV: 400, Orders: 8},
		},
	}}
	svc := NewAnalyticsService(testCatalog(), store, nil, narrowExtractor(), nil)

	dashboard, err := svc.StoredDashboard(context.Background(), "NAD+ Cream", 2, nil)
	require.NoError(t, err)

	var gmv *MetricDashboard
	for i := range dashboard.Metrics {
		if dashboard.Metrics[i].Name == "GMV" {
			gmv = &dashboard.Metrics[i]
		}
	}
	require.NotNil(t, gmv)
	assert.Equal(t, 700.0, gmv.Summary.CurrentPeriod.Total)
	assert.Equal(t, 300.0, gmv.Summary.PreviousPeriod.Total)
}

func TestAnalyticsService_StoredDashboard_SmallChangeIsFlat(t *testing.T) {
	// A 3% week-over-week move sits inside the reselection flat band even
	// though the whole-history band would call it up.
	records := make([]domain.DailyMetricRecord, 0, 14)
	for day := 1; day <= 14; day++ {
		gmv := 100.0
		if day > 7 {
			gmv = 103.0
		}
		records = append(records, domain.DailyMetricRecord{
			Date: fmt.Sprintf("2026-01-%02d", day),
			GMV:  gmv,
		})
	}
	store := &fakeHistoryStore{history: map[string][]domain.DailyMetricRecord{
		"nad_cream_daily": records,
	}}
	svc := NewAnalyticsService(testCatalog(), store, nil, narrowExtractor(), nil)

	dashboard, err := svc.StoredDashboard(context.Background(), "NAD+ Cream", 7, nil)
	require.NoError(t, err)

	var gmv *MetricDashboard
	for i := range dashboard.Metrics {
		if dashboard.Metrics[i].Name == "GMV" {
			gmv = &dashboard.Metrics[i]
		}
	}
	require.NotNil(t, gmv)
	assert.InDelta(t, 3.0, gmv.Summary.ChangePercent, 1e-6)
	assert.Equal(t, analysis.TrendFlat, gmv.Summary.Trend)
}

func TestAnalyticsService_DashboardFromCSV_SmallChangeTrendsUp(t *testing.T) {
	// The same 3% move over a pasted history clears the tighter
	// whole-history band and classifies as up.
	header := []string{"", ""}
	row := []string{"", "Orders"}
	for day := 1; day <= 14; day++ {
		header = append(header, fmt.Sprintf("%d-Jan", day))
		if day <= 7 {
			row = append(row, "100")
		} else {
			row = append(row, "103")
		}
	}
	body := strings.Join(header, ",") + "\n" + strings.Join(row, ",")

	svc := NewAnalyticsService(testCatalog(), &fakeHistoryStore{}, nil, narrowExtractor(), nil)

	dashboard, err := svc.DashboardFromCSV(context.Background(), "pasted", body, "")
	require.NoError(t, err)

	require.Len(t, dashboard.Metrics, 1)
	assert.InDelta(t, 3.0, dashboard.Metrics[0].Summary.ChangePercent, 1e-6)
	assert.Equal(t, analysis.TrendUp, dashboard.Metrics[0].Summary.Trend)
}

func TestAnalyticsService_StoredDashboard_UnknownProduct(t *testing.T) {
	svc := NewAnalyticsService(testCatalog(), &fakeHistoryStore{}, nil, narrowExtractor(), nil)

	_, err := svc.StoredDashboard(context.Background(), "Nope", 7, nil)
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestAnalyticsService_Forecast(t *testing.T) {
	store := &fakeHistoryStore{series: map[string]map[string][]domain.DatedValue{
		"nad_cream_daily": {
			"gmv": dated(1, 100, 110, 120, 130, 140, 150, 160, 170, 180, 55),
		},
	}}
	svc := NewAnalyticsService(testCatalog(), store, nil, narrowExtractor(), nil)

	resp, err := svc.Forecast(context.Background(), "NAD+ Cream", "GMV", 7)
	require.NoError(t, err)

	assert.Equal(t, "NAD+ Cream", resp.Product)
	assert.Equal(t, "GMV", resp.Metric)

	// The trailing partial day (55) is excluded from the fit.
	require.Len(t, resp.History, 9)
	assert.Equal(t, 180.0, resp.History[8])
	assert.Equal(t, "2026-01-09", resp.HistoryDates[8])

	require.Len(t, resp.ForecastDates, 7)
	assert.Equal(t, "2026-01-10", resp.ForecastDates[0])
	assert.Equal(t, "2026-01-16", resp.ForecastDates[6])
	require.Len(t, resp.Forecast.Values, 7)
	assert.InDelta(t, 10.0, resp.Forecast.Slope, 1e-6)
}

func TestAnalyticsService_Forecast_TooFewDays(t *testing.T) {
	store := &fakeHistoryStore{series: map[string]map[string][]domain.DatedValue{
		"nad_cream_daily": {"gmv": dated(1, 1, 2, 3, 4, 5, 6, 7)},
	}}
	svc := NewAnalyticsService(testCatalog(), store, nil, narrowExtractor(), nil)

	_, err := svc.Forecast(context.Background(), "NAD+ Cream", "GMV", 7)
	assert.ErrorContains(t, err, "at least 8 stored days")
}

func TestAnalyticsService_Forecast_UnknownMetric(t *testing.T) {
	svc := NewAnalyticsService(testCatalog(), &fakeHistoryStore{}, nil, narrowExtractor(), nil)

	_, err := svc.Forecast(context.Background(), "NAD+ Cream", "Nonsense", 7)
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestAnalyticsService_Forecast_AllProducts(t *testing.T) {
	store := &fakeHistoryStore{series: map[string]map[string][]domain.DatedValue{
		"toner_1pack_daily": {"gmv": dated(1, 10, 10, 10, 10, 10, 10, 10, 10, 10)},
		"nad_cream_daily":   {"gmv": dated(1, 5, 5, 5, 5, 5, 5, 5, 5, 5)},
	}}
	svc := NewAnalyticsService(testCatalog(), store, nil, narrowExtractor(), nil)

	resp, err := svc.Forecast(context.Background(), AllProductsName, "GMV", 7)
	require.NoError(t, err)

	// Per-date totals sum across tables; the last day is then dropped.
	require.Len(t, resp.History, 8)
	assert.Equal(t, 15.0, resp.History[0])
}

func TestAnalyticsService_Forecast_AllProductsRejectsRatioMetrics(t *testing.T) {
	svc := NewAnalyticsService(testCatalog(), &fakeHistoryStore{}, nil, narrowExtractor(), nil)

	_, err := svc.Forecast(context.Background(), AllProductsName, "Conv. Rate", 7)
	assert.ErrorIs(t, err, ErrUnknownMetric)
	assert.ErrorContains(t, err, "cannot be aggregated")
}

func TestAnalyticsService_DashboardFromSheet_RequiresURL(t *testing.T) {
	svc := NewAnalyticsService(testCatalog(), &fakeHistoryStore{}, nil, narrowExtractor(), nil)

	_, err := svc.DashboardFromSheet(context.Background(), "NAD+ Cream")
	assert.ErrorContains(t, err, "no publish URL")
}

func TestAnalyticsService_DashboardFromSheet(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{
		"http://sheets/1pack": strings.Join([]string{
			",,1-Jan,2-Jan",
			",Orders,3,4",
		}, "\n"),
	}}
	svc := NewAnalyticsService(testCatalog(), &fakeHistoryStore{}, fetcher, narrowExtractor(), nil)

	dashboard, err := svc.DashboardFromSheet(context.Background(), "Toner Pads 1 Pack")
	require.NoError(t, err)
	require.Len(t, dashboard.Metrics, 1)
	assert.Equal(t, "Orders", dashboard.Metrics[0].Name)
}

func TestAnalyticsService_DashboardFromSheet_FetchError(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{
		"http://sheets/1pack": fmt.Errorf("boom"),
	}}
	svc := NewAnalyticsService(testCatalog(), &fakeHistoryStore{}, fetcher, narrowExtractor(), nil)

	_, err := svc.DashboardFromSheet(context.Background(), "Toner Pads 1 Pack")
	assert.ErrorIs(t, err, ErrFetchFailed)
}
