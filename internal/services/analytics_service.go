package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"sellerpulse/internal/analysis"
	"sellerpulse/internal/config"
	"sellerpulse/internal/dataprocessing"
	"sellerpulse/internal/forecast"
	"sellerpulse/pkg/contracts/domain"
)

// AllProductsName is the virtual product aggregating every catalog table.
const AllProductsName = "All Products"

// aggregatedColumns are the metrics that sum meaningfully across products.
// Ratio metrics are excluded; averaging ratios of unequal volumes misleads.
var aggregatedColumns = []string{"gmv", "orders", "items_sold", "visitors"}

// HistoryStore is the persistence surface the analytics side depends on.
type HistoryStore interface {
	DailyHistory(ctx context.Context, table string, limit int) ([]domain.DailyMetricRecord, error)
	MetricSeries(ctx context.Context, table, column string) ([]domain.DatedValue, error)
}

// MetricDashboard is one metric's analyzed view for the dashboard.
type MetricDashboard struct {
	Name    string                 `json:"name"`
	Summary analysis.PeriodSummary `json:"summary"`
	Weekly  []analysis.WeekBucket  `json:"weekly"`
}

// Dashboard is the full analyzed response for one data source.
type Dashboard struct {
	Product string            `json:"product"`
	Metrics []MetricDashboard `json:"metrics"`
}

// ForecastResponse pairs stored history with projected values and the dates
// each projection lands on.
type ForecastResponse struct {
	Product       string          `json:"product"`
	Metric        string          `json:"metric"`
	HistoryDates  []string        `json:"history_dates"`
	History       []float64       `json:"history"`
	ForecastDates []string        `json:"forecast_dates"`
	Forecast      forecast.Result `json:"forecast"`
}

// AnalyticsService computes period summaries, weekly rollups and forecasts
// over stored product history.
type AnalyticsService struct {
	catalog   config.CatalogConfig
	store     HistoryStore
	fetcher   CSVFetcher
	extractor *dataprocessing.Extractor
	// Whole-history comparisons and interactive period reselection use
	// different flat bands, so each path gets its own analyzer.
	historyAnalyzer *analysis.Analyzer
	periodAnalyzer  *analysis.Analyzer
	forecaster      *forecast.Forecaster
	logger          *slog.Logger
}

// NewAnalyticsService creates the analytics service.
func NewAnalyticsService(catalog config.CatalogConfig, store HistoryStore, fetcher CSVFetcher, extractor *dataprocessing.Extractor, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsService{
		catalog:   catalog,
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		historyAnalyzer: analysis.NewAnalyzer(analysis.Options{
			FlatThresholdPercent: analysis.HistoryFlatThreshold,
		}),
		periodAnalyzer: analysis.NewAnalyzer(analysis.Options{
			FlatThresholdPercent: analysis.ReselectionFlatThreshold,
		}),
		forecaster: forecast.New(forecast.DefaultConfig()),
		logger:     logger.With(slog.String("component", "analytics_service")),
	}
}

// DashboardFromSheet fetches a product's published CSV, extracts its metric
// series and analyzes each over its full history. Nothing is persisted;
// this is the live view of the sheet as it stands.
func (s *AnalyticsService) DashboardFromSheet(ctx context.Context, productName string) (Dashboard, error) {
	product, ok := s.catalog.ProductByName(productName)
	if !ok {
		return Dashboard{}, fmt.Errorf("%w %q", ErrUnknownProduct, productName)
	}
	if product.PublishURL == "" {
		return Dashboard{}, fmt.Errorf("product %q has no publish URL configured", productName)
	}
	if s.fetcher == nil {
		return Dashboard{}, fmt.Errorf("sheet fetching is not configured")
	}

	csvText, err := s.fetcher.FetchCSV(ctx, product.PublishURL)
	if err != nil {
		return Dashboard{}, fmt.Errorf("fetch sheet for %q: %w: %w", productName, ErrFetchFailed, err)
	}

	result := s.extractor.Extract(csvText, dataprocessing.ExtractOptions{
		SourceName: productName,
		FilterPack: product.FilterPack,
	})
	return s.dashboardFromDataset(ctx, productName, result.Dataset)
}

// FetchSheet downloads raw CSV text from a published spreadsheet URL,
// acting as a proxy for clients that cannot fetch cross-origin.
func (s *AnalyticsService) FetchSheet(ctx context.Context, sheetURL string) (string, error) {
	if s.fetcher == nil {
		return "", fmt.Errorf("sheet fetching is not configured")
	}
	csvText, err := s.fetcher.FetchCSV(ctx, sheetURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return csvText, nil
}

// DashboardFromCSV analyzes pasted tabular CSV text without persisting it.
func (s *AnalyticsService) DashboardFromCSV(ctx context.Context, sourceName, csvText, filterPack string) (Dashboard, error) {
	result := s.extractor.Extract(csvText, dataprocessing.ExtractOptions{
		SourceName: sourceName,
		FilterPack: filterPack,
	})
	return s.dashboardFromDataset(ctx, sourceName, result.Dataset)
}

func (s *AnalyticsService) dashboardFromDataset(ctx context.Context, name string, dataset domain.DashboardDataset) (Dashboard, error) {
	if len(dataset.Metrics) == 0 {
		return Dashboard{}, fmt.Errorf("no recognizable metrics for %q: %w", name, ErrNoData)
	}

	dashboard := Dashboard{Product: name}
	for _, series := range dataset.Metrics {
		summary, err := s.historyAnalyzer.AnalyzeHistory(series)
		if err != nil {
			continue
		}
		dashboard.Metrics = append(dashboard.Metrics, MetricDashboard{
			Name:    series.Name,
			Summary: summary,
			Weekly:  analysis.AggregateByWeek(series.Values, analysis.UseAverageMetric(series.Name)),
		})
	}

	s.logger.InfoContext(ctx, "built dashboard",
		slog.String("product", name),
		slog.Int("metrics", len(dashboard.Metrics)))
	return dashboard, nil
}

// StoredDashboard analyzes the persisted history for a product over a
// trailing window of days, optionally anchored at endDate.
func (s *AnalyticsService) StoredDashboard(ctx context.Context, productName string, days int, endDate *time.Time) (Dashboard, error) {
	product, ok := s.catalog.ProductByName(productName)
	if !ok {
		return Dashboard{}, fmt.Errorf("%w %q", ErrUnknownProduct, productName)
	}

	records, err := s.store.DailyHistory(ctx, product.Table, 0)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load history for %q: %w", productName, err)
	}
	if len(records) == 0 {
		return Dashboard{}, fmt.Errorf("no stored history for %q: %w", productName, ErrNoData)
	}

	dashboard := Dashboard{Product: productName}
	for _, metric := range metricSeriesNames() {
		series := seriesFromRecords(metric.label, metric.value, records)
		if len(series.Values) == 0 {
			continue
		}
		summary, err := s.periodAnalyzer.AnalyzePeriod(series, days, endDate)
		if err != nil {
			continue
		}
		dashboard.Metrics = append(dashboard.Metrics, MetricDashboard{
			Name:    series.Name,
			Summary: summary,
			Weekly:  analysis.AggregateByWeek(series.Values, analysis.UseAverageMetric(series.Name)),
		})
	}
	if len(dashboard.Metrics) == 0 {
		return Dashboard{}, fmt.Errorf("no analyzable metrics for %q: %w", productName, ErrNoData)
	}
	return dashboard, nil
}

// Forecast projects one stored metric forward. The most recent stored day
// is dropped before fitting since it is usually a partial day; including it
// would bias the trend down. AllProductsName sums supported metrics across
// every catalog table first.
func (s *AnalyticsService) Forecast(ctx context.Context, productName, metricLabel string, horizon int) (ForecastResponse, error) {
	column, ok := dataprocessing.ColumnForMetric(metricLabel)
	if !ok {
		return ForecastResponse{}, fmt.Errorf("%w %q", ErrUnknownMetric, metricLabel)
	}

	var series []domain.DatedValue
	var err error
	if productName == AllProductsName {
		series, err = s.aggregateSeries(ctx, column)
	} else {
		product, found := s.catalog.ProductByName(productName)
		if !found {
			return ForecastResponse{}, fmt.Errorf("%w %q", ErrUnknownProduct, productName)
		}
		series, err = s.store.MetricSeries(ctx, product.Table, column)
	}
	if err != nil {
		return ForecastResponse{}, fmt.Errorf("load %s series for %q: %w", metricLabel, productName, err)
	}

	if len(series) < 8 {
		return ForecastResponse{}, fmt.Errorf("forecast for %q needs at least 8 stored days, have %d: %w",
			productName, len(series), forecast.ErrInsufficientData)
	}
	series = series[:len(series)-1]

	values := make([]float64, len(series))
	historyDates := make([]string, len(series))
	for i, dv := range series {
		values[i] = dv.Value
		historyDates[i] = dv.Date.Format("2006-01-02")
	}

	result, err := s.forecaster.Forecast(values, horizon)
	if err != nil {
		return ForecastResponse{}, fmt.Errorf("forecast %s for %q: %w", metricLabel, productName, err)
	}

	lastDate := series[len(series)-1].Date
	forecastDates := make([]string, horizon)
	for i := range forecastDates {
		forecastDates[i] = lastDate.AddDate(0, 0, i+1).Format("2006-01-02")
	}

	s.logger.InfoContext(ctx, "computed forecast",
		slog.String("product", productName),
		slog.String("metric", metricLabel),
		slog.Int("horizon", horizon),
		slog.Int("confidence", result.ConfidenceScore))

	return ForecastResponse{
		Product:       productName,
		Metric:        metricLabel,
		HistoryDates:  historyDates,
		History:       values,
		ForecastDates: forecastDates,
		Forecast:      result,
	}, nil
}

// aggregateSeries sums one column across every catalog table by date.
// Only additive columns are supported.
func (s *AnalyticsService) aggregateSeries(ctx context.Context, column string) ([]domain.DatedValue, error) {
	supported := false
	for _, c := range aggregatedColumns {
		if c == column {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("%w: column %q cannot be aggregated across products", ErrUnknownMetric, column)
	}

	totals := make(map[string]float64)
	dates := make(map[string]time.Time)
	for _, product := range s.catalog.Products {
		series, err := s.store.MetricSeries(ctx, product.Table, column)
		if err != nil {
			return nil, fmt.Errorf("load %s from %s: %w", column, product.Table, err)
		}
		for _, dv := range series {
			key := dv.Date.Format("2006-01-02")
			totals[key] += dv.Value
			dates[key] = dv.Date
		}
	}

	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.DatedValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.DatedValue{Date: dates[k], Value: totals[k]})
	}
	return out, nil
}

// metricColumn pairs a display label with a record field accessor.
type metricColumn struct {
	label string
	value func(domain.DailyMetricRecord) float64
}

func metricSeriesNames() []metricColumn {
	return []metricColumn{
		{dataprocessing.MetricGMV, func(r domain.DailyMetricRecord) float64 { return r.GMV }},
		{dataprocessing.MetricItemsSold, func(r domain.DailyMetricRecord) float64 { return r.ItemsSold }},
		{dataprocessing.MetricOrders, func(r domain.DailyMetricRecord) float64 { return r.Orders }},
		{dataprocessing.MetricAOV, func(r domain.DailyMetricRecord) float64 { return r.AOV }},
		{dataprocessing.MetricUnitsPerOrder, func(r domain.DailyMetricRecord) float64 { return r.UnitsPerOrder }},
		{dataprocessing.MetricProductImpressions, func(r domain.DailyMetricRecord) float64 { return r.ProductImpressions }},
		{dataprocessing.MetricPageViews, func(r domain.DailyMetricRecord) float64 { return r.PageViews }},
		{dataprocessing.MetricClickThroughRate, func(r domain.DailyMetricRecord) float64 { return r.ClickThroughRate }},
		{dataprocessing.MetricAvgVisitors, func(r domain.DailyMetricRecord) float64 { return r.Visitors }},
		{dataprocessing.MetricAvgCustomers, func(r domain.DailyMetricRecord) float64 { return r.Customers }},
		{dataprocessing.MetricConvRate, func(r domain.DailyMetricRecord) float64 { return r.ConversionRate }},
		{dataprocessing.MetricDollarPerVisitor, func(r domain.DailyMetricRecord) float64 { return r.DollarPerVisitor }},
		{dataprocessing.MetricDollarPerCustomer, func(r domain.DailyMetricRecord) float64 { return r.DollarPerCustomer }},
		{dataprocessing.MetricSubscribers, func(r domain.DailyMetricRecord) float64 { return r.Subscribers }},
	}
}

// seriesFromRecords builds a dated series for one metric, keeping only rows
// whose date parses.
func seriesFromRecords(label string, value func(domain.DailyMetricRecord) float64, records []domain.DailyMetricRecord) domain.MetricSeries {
	series := domain.MetricSeries{Name: label}
	for _, r := range records {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			continue
		}
		series.Values = append(series.Values, domain.DatedValue{Date: date, Value: value(r)})
	}
	return series
}
