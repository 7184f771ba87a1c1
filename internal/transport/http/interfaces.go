package http

import (
	"context"
	"io"
	"time"

	"sellerpulse/internal/services"
)

// ImportServiceInterface is the import surface the handlers depend on.
type ImportServiceInterface interface {
	ImportTabular(ctx context.Context, productName, csvText string) (services.ImportReport, error)
	ImportDailyCSV(ctx context.Context, productName, csvText string) (services.ImportReport, error)
	AddMetrics(ctx context.Context, productName, date string, metrics map[string]float64) error
	AutoImportAll(ctx context.Context) ([]services.ImportReport, error)
	ImportWorkbook(ctx context.Context, productList io.Reader, traffic map[string]io.Reader) ([]services.ImportReport, error)
}

// AnalyticsServiceInterface is the analytics surface the handlers depend on.
type AnalyticsServiceInterface interface {
	DashboardFromSheet(ctx context.Context, productName string) (services.Dashboard, error)
	FetchSheet(ctx context.Context, sheetURL string) (string, error)
	DashboardFromCSV(ctx context.Context, sourceName, csvText, filterPack string) (services.Dashboard, error)
	StoredDashboard(ctx context.Context, productName string, days int, endDate *time.Time) (services.Dashboard, error)
	Forecast(ctx context.Context, productName, metricLabel string, horizon int) (services.ForecastResponse, error)
}

// ExportServiceInterface is the export surface the handlers depend on.
type ExportServiceInterface interface {
	WriteTemplate(w io.Writer) error
	WriteHistory(ctx context.Context, w io.Writer, productName string) error
}
