// Command importer ingests metric files from the command line, bypassing
// the web server. Useful for backfilling history from saved exports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"sellerpulse/internal/config"
	"sellerpulse/internal/dataprocessing"
	"sellerpulse/internal/infrastructure"
	"sellerpulse/internal/services"
	"sellerpulse/internal/store"
)

func main() {
	configFile := flag.String("config", "config.yaml", "path to YAML config file")
	product := flag.String("product", "", "catalog product name")
	file := flag.String("file", "", "path to the CSV or XLSX file to import")
	format := flag.String("format", "tabular", "input format: tabular, daily or workbook")
	flag.Parse()

	if err := run(*configFile, *product, *file, *format); err != nil {
		slog.Error("Import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configFile, product, file, format string) error {
	if file == "" {
		return fmt.Errorf("-file is required")
	}
	if format != "workbook" && product == "" {
		return fmt.Errorf("-product is required for %s imports", format)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := infrastructure.InitializeLogger(cfg.Logging)
	ctx := context.Background()

	metricStore, err := store.Open(cfg.Storage.Path, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer metricStore.Close()

	if err := metricStore.EnsureTables(ctx, cfg.Catalog.Tables()); err != nil {
		return fmt.Errorf("ensure tables: %w", err)
	}

	extractor := dataprocessing.NewExtractor(dataprocessing.DefaultExtractorConfig(), logger)
	svc := services.NewImportService(cfg.Catalog, metricStore, nil, extractor, logger)

	switch format {
	case "tabular", "daily":
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		var report services.ImportReport
		if format == "daily" {
			report, err = svc.ImportDailyCSV(ctx, product, string(data))
		} else {
			report, err = svc.ImportTabular(ctx, product, string(data))
		}
		if err != nil {
			return err
		}
		fmt.Printf("imported %d days for %s\n", report.DaysWritten, report.Product)
	case "workbook":
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open %s: %w", file, err)
		}
		defer f.Close()
		reports, err := svc.ImportWorkbook(ctx, f, nil)
		if err != nil {
			return err
		}
		for _, r := range reports {
			fmt.Printf("imported %d days for %s\n", r.DaysWritten, r.Product)
		}
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}
