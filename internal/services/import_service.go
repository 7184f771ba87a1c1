package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sellerpulse/internal/config"
	"sellerpulse/internal/dataprocessing"
	"sellerpulse/pkg/contracts/domain"
)

// MetricStore is the persistence surface the import side depends on.
type MetricStore interface {
	EnsureTables(ctx context.Context, tables []string) error
	UpsertDaily(ctx context.Context, table string, records []domain.DailyMetricRecord) error
	UpsertColumns(ctx context.Context, table, date string, columns map[string]float64) error
}

// CSVFetcher downloads published spreadsheet CSV text.
type CSVFetcher interface {
	FetchCSV(ctx context.Context, url string) (string, error)
}

// ImportReport summarizes one product's import outcome. RunID groups
// the reports of a single auto-import run.
type ImportReport struct {
	Product     string `json:"product"`
	DaysWritten int    `json:"days_written"`
	Metrics     int    `json:"metrics"`
	Skipped     bool   `json:"skipped,omitempty"`
	Error       string `json:"error,omitempty"`
	RunID       string `json:"run_id,omitempty"`
}

// ImportService ingests metric data from pasted CSV text, published
// spreadsheets and platform workbook exports, and writes it to the store.
type ImportService struct {
	catalog   config.CatalogConfig
	store     MetricStore
	fetcher   CSVFetcher
	extractor *dataprocessing.Extractor
	logger    *slog.Logger
}

// NewImportService creates the import service.
func NewImportService(catalog config.CatalogConfig, store MetricStore, fetcher CSVFetcher, extractor *dataprocessing.Extractor, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		catalog:   catalog,
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger.With(slog.String("component", "import_service")),
	}
}

// ImportTabular ingests a metrics-by-date tabular CSV export for the named
// product: metric labels down the side, one column per date.
func (s *ImportService) ImportTabular(ctx context.Context, productName, csvText string) (ImportReport, error) {
	product, ok := s.catalog.ProductByName(productName)
	if !ok {
		return ImportReport{}, fmt.Errorf("%w %q", ErrUnknownProduct, productName)
	}

	result := s.extractor.Extract(csvText, dataprocessing.ExtractOptions{
		SourceName: productName,
		FilterPack: product.FilterPack,
	})
	updates := dataprocessing.UpdatesFromResult(result)
	if len(updates) == 0 {
		return ImportReport{Product: productName}, fmt.Errorf("no recognizable metrics in CSV for %q: %w", productName, ErrNoData)
	}

	report, err := s.writeUpdates(ctx, product, updates)
	if err != nil {
		return report, err
	}
	report.Metrics = len(result.Dataset.Metrics)

	s.logger.InfoContext(ctx, "imported tabular CSV",
		slog.String("product", productName),
		slog.Int("days", report.DaysWritten),
		slog.Int("metrics", report.Metrics))
	return report, nil
}

// ImportDailyCSV ingests a column-per-metric CSV, one row per date. Only
// the columns present in the header are written; existing values in other
// columns stay untouched.
func (s *ImportService) ImportDailyCSV(ctx context.Context, productName, csvText string) (ImportReport, error) {
	product, ok := s.catalog.ProductByName(productName)
	if !ok {
		return ImportReport{}, fmt.Errorf("%w %q", ErrUnknownProduct, productName)
	}

	updates, err := dataprocessing.ParseDailyCSV(csvText)
	if err != nil {
		return ImportReport{Product: productName}, fmt.Errorf("parse daily CSV for %q: %w", productName, err)
	}
	if len(updates) == 0 {
		return ImportReport{Product: productName}, fmt.Errorf("no data rows in CSV for %q: %w", productName, ErrNoData)
	}

	report, err := s.writeUpdates(ctx, product, updates)
	if err != nil {
		return report, err
	}

	s.logger.InfoContext(ctx, "imported daily CSV",
		slog.String("product", productName),
		slog.Int("days", report.DaysWritten))
	return report, nil
}

// AddMetrics writes a handful of manually entered metric values for one
// date. Labels resolve through the metric vocabulary; an unknown label
// fails the whole call so a typo never half-writes a day.
func (s *ImportService) AddMetrics(ctx context.Context, productName, date string, metrics map[string]float64) error {
	product, ok := s.catalog.ProductByName(productName)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownProduct, productName)
	}

	columns := make(map[string]float64, len(metrics))
	for label, value := range metrics {
		col, ok := dataprocessing.ColumnForMetric(label)
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownMetric, label)
		}
		columns[col] = value
	}
	if len(columns) == 0 {
		return fmt.Errorf("no metrics given for %q on %s", productName, date)
	}

	if err := s.store.UpsertColumns(ctx, product.Table, date, columns); err != nil {
		return fmt.Errorf("store metrics for %q: %w", productName, err)
	}

	s.logger.InfoContext(ctx, "added manual metrics",
		slog.String("product", productName),
		slog.String("date", date),
		slog.Int("columns", len(columns)))
	return nil
}

// AutoImportAll fetches every catalog product's published CSV concurrently
// and imports each one. Products without a publish URL are skipped. One
// product's failure does not abort the others; the per-product reports
// carry the outcome.
func (s *ImportService) AutoImportAll(ctx context.Context) ([]ImportReport, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("auto import is not configured")
	}

	runID := uuid.New().String()
	s.logger.InfoContext(ctx, "auto import started",
		slog.String("run_id", runID),
		slog.Int("products", len(s.catalog.Products)))

	// Skipped products are recorded before any worker starts so the
	// slice is only shared under the mutex.
	reports := make([]ImportReport, 0, len(s.catalog.Products))
	var active []config.Product
	for _, product := range s.catalog.Products {
		if product.PublishURL == "" {
			reports = append(reports, ImportReport{Product: product.Name, Skipped: true, RunID: runID})
			continue
		}
		active = append(active, product)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, product := range active {
		product := product
		g.Go(func() error {
			report := s.autoImportOne(gctx, product)
			report.RunID = runID
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].Product < reports[j].Product })
	return reports, nil
}

func (s *ImportService) autoImportOne(ctx context.Context, product config.Product) ImportReport {
	csvText, err := s.fetcher.FetchCSV(ctx, product.PublishURL)
	if err != nil {
		s.logger.WarnContext(ctx, "auto import fetch failed",
			slog.String("product", product.Name),
			slog.String("error", err.Error()))
		return ImportReport{Product: product.Name, Error: err.Error()}
	}

	report, err := s.ImportTabular(ctx, product.Name, csvText)
	if err != nil {
		report.Product = product.Name
		report.Error = err.Error()
	}
	return report
}

// ImportWorkbook ingests an uploaded XLSX workbook export: the product-list
// sheet plus any per-product traffic sheets, merged into daily records and
// distributed to each product's table.
func (s *ImportService) ImportWorkbook(ctx context.Context, productList io.Reader, traffic map[string]io.Reader) ([]ImportReport, error) {
	listGrid, err := dataprocessing.LoadWorkbookGridFromReader(productList)
	if err != nil {
		return nil, fmt.Errorf("read product list workbook: %w", err)
	}

	trafficGrids := make(map[string][][]string, len(traffic))
	for productID, r := range traffic {
		grid, err := dataprocessing.LoadWorkbookGridFromReader(r)
		if err != nil {
			return nil, fmt.Errorf("read traffic workbook for product %s: %w", productID, err)
		}
		trafficGrids[productID] = grid
	}

	refs := make([]dataprocessing.ProductRef, 0, len(s.catalog.Products))
	tableByName := make(map[string]string, len(s.catalog.Products))
	for _, p := range s.catalog.Products {
		refs = append(refs, dataprocessing.ProductRef{ID: p.ID, Name: p.Name})
		tableByName[p.Name] = p.Table
	}

	records := dataprocessing.NewWorkbookExtractor(refs, s.logger).Merge(listGrid, trafficGrids)
	if len(records) == 0 {
		return nil, fmt.Errorf("no recognizable rows in workbook")
	}

	byProduct := make(map[string][]domain.DailyMetricRecord)
	for _, r := range records {
		byProduct[r.ProductName] = append(byProduct[r.ProductName], r)
	}

	reports := make([]ImportReport, 0, len(byProduct))
	for name, recs := range byProduct {
		table := tableByName[name]
		if err := s.store.UpsertDaily(ctx, table, recs); err != nil {
			return reports, fmt.Errorf("store workbook records for %q: %w", name, err)
		}
		reports = append(reports, ImportReport{Product: name, DaysWritten: len(recs)})
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Product < reports[j].Product })

	s.logger.InfoContext(ctx, "imported workbook",
		slog.Int("records", len(records)),
		slog.Int("products", len(byProduct)))
	return reports, nil
}

func (s *ImportService) writeUpdates(ctx context.Context, product config.Product, updates []dataprocessing.DailyUpdate) (ImportReport, error) {
	report := ImportReport{Product: product.Name}
	for _, u := range updates {
		if len(u.Columns) == 0 {
			continue
		}
		if err := s.store.UpsertColumns(ctx, product.Table, u.Date, u.Columns); err != nil {
			return report, fmt.Errorf("store %s for %q: %w", u.Date, product.Name, err)
		}
		report.DaysWritten++
	}
	return report, nil
}
