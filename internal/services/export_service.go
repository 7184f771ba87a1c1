package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"sellerpulse/internal/config"
	"sellerpulse/internal/exporter"
)

// ExportService writes stored history and import templates as CSV.
type ExportService struct {
	catalog config.CatalogConfig
	store   HistoryStore
	logger  *slog.Logger
}

// NewExportService creates the export service.
func NewExportService(catalog config.CatalogConfig, store HistoryStore, logger *slog.Logger) *ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportService{
		catalog: catalog,
		store:   store,
		logger:  logger.With(slog.String("component", "export_service")),
	}
}

// WriteTemplate writes the fillable import template.
func (s *ExportService) WriteTemplate(w io.Writer) error {
	return exporter.WriteTemplate(w)
}

// WriteHistory writes a product's full stored history as CSV.
func (s *ExportService) WriteHistory(ctx context.Context, w io.Writer, productName string) error {
	product, ok := s.catalog.ProductByName(productName)
	if !ok {
		return fmt.Errorf("unknown product %q", productName)
	}

	records, err := s.store.DailyHistory(ctx, product.Table, 0)
	if err != nil {
		return fmt.Errorf("load history for %q: %w", productName, err)
	}

	if err := exporter.WriteDailySeries(w, records); err != nil {
		return fmt.Errorf("write history for %q: %w", productName, err)
	}
	s.logger.InfoContext(ctx, "exported history",
		slog.String("product", productName),
		slog.Int("rows", len(records)))
	return nil
}
