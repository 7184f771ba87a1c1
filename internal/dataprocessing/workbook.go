package dataprocessing

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"sellerpulse/pkg/contracts/domain"
)

// ProductRef identifies a catalog product inside workbook exports.
type ProductRef struct {
	ID   string
	Name string
}

var (
	dateRangePattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s*~\s*(\d{4}-\d{2}-\d{2})`)
	isoDatePattern   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// WorkbookExtractor merges a Product List sheet and per-product Traffic
// Breakdown sheets into one denormalized daily record per (product, date).
// The product catalog is a closed, externally supplied lookup: rows whose ID
// is not in it are silently dropped.
type WorkbookExtractor struct {
	products map[string]ProductRef
	logger   *slog.Logger
}

// NewWorkbookExtractor creates a workbook extractor for the given catalog.
func NewWorkbookExtractor(products []ProductRef, logger *slog.Logger) *WorkbookExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	byID := make(map[string]ProductRef, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &WorkbookExtractor{
		products: byID,
		logger:   logger.With(slog.String("component", "workbook_extractor")),
	}
}

// Merge combines a Product List grid with Traffic grids keyed by product ID.
// GMV/Orders/Items-Sold merge by assignment (single source of truth); traffic
// metrics merge by addition, since multiple content-type rows may contribute
// to the same date. Derived ratios are computed once per merged record.
func (w *WorkbookExtractor) Merge(productList [][]string, traffic map[string][][]string) []domain.DailyMetricRecord {
	merged := make(map[string]*domain.DailyMetricRecord)

	w.applyProductList(productList, merged)
	for productID, grid := range traffic {
		w.applyTraffic(productID, grid, merged)
	}

	records := make([]domain.DailyMetricRecord, 0, len(merged))
	for _, rec := range merged {
		rec.ComputeDerived()
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].ProductName != records[j].ProductName {
			return records[i].ProductName < records[j].ProductName
		}
		return records[i].Date < records[j].Date
	})

	w.logger.Debug("workbook merge complete", slog.Int("records", len(records)))
	return records
}

// applyProductList reads GMV, Orders and Items sold per product ID. The whole
// sheet represents one reporting period: the date is the end of the
// "YYYY-MM-DD ~ YYYY-MM-DD" range found in the sheet's first row.
func (w *WorkbookExtractor) applyProductList(grid [][]string, merged map[string]*domain.DailyMetricRecord) {
	if len(grid) == 0 {
		return
	}

	headerIdx, headers := findHeaderRow(grid, 5, "ID", "Product", "GMV")
	if headerIdx < 0 {
		w.logger.Warn("no header row in product list sheet")
		return
	}

	rangeMatch := dateRangePattern.FindStringSubmatch(strings.Join(grid[0], " "))
	if rangeMatch == nil {
		w.logger.Warn("no reporting date range in product list sheet")
		return
	}
	date := rangeMatch[2]

	for i := headerIdx + 1; i < len(grid); i++ {
		row := cellsByHeader(headers, grid[i])

		productID := strings.TrimSpace(row["ID"])
		if productID == "" || productID == "0" {
			continue
		}
		product, ok := w.products[productID]
		if !ok {
			w.logger.Debug("unknown product id in product list", slog.String("product_id", productID))
			continue
		}

		rec := w.record(merged, product, date)
		rec.GMV = cellNumber(row["GMV"])
		rec.Orders = cellNumber(row["Orders"])
		rec.ItemsSold = cellNumber(row["Items sold"])
	}
}

// applyTraffic reads impressions, page views, visitors and customers keyed by
// each row's own End Date cell; a traffic sheet may span multiple dates.
func (w *WorkbookExtractor) applyTraffic(productID string, grid [][]string, merged map[string]*domain.DailyMetricRecord) {
	product, ok := w.products[productID]
	if !ok {
		return
	}

	headerIdx, headers := findHeaderRow(grid, 5, "Start Date", "End Date")
	if headerIdx < 0 {
		w.logger.Warn("no header row in traffic sheet", slog.String("product_id", productID))
		return
	}

	for i := headerIdx + 1; i < len(grid); i++ {
		row := cellsByHeader(headers, grid[i])

		date := isoDatePattern.FindString(strings.TrimSpace(row["End Date"]))
		if date == "" {
			continue
		}

		rec := w.record(merged, product, date)
		rec.ProductImpressions += cellNumber(row["Product Impressions"])
		rec.PageViews += cellNumber(row["Page Views"])
		rec.Visitors += cellNumber(row["Average Visitors"])
		rec.Customers += cellNumber(row["Average Daily Customers"])
	}
}

func (w *WorkbookExtractor) record(merged map[string]*domain.DailyMetricRecord, product ProductRef, date string) *domain.DailyMetricRecord {
	key := product.ID + "_" + date
	if rec, ok := merged[key]; ok {
		return rec
	}
	rec := &domain.DailyMetricRecord{
		Date:        date,
		ProductID:   product.ID,
		ProductName: product.Name,
	}
	merged[key] = rec
	return rec
}

// findHeaderRow returns the first row within the leading rows that contains
// every required label as an exact trimmed cell, plus its trimmed headers.
func findHeaderRow(grid [][]string, within int, required ...string) (int, []string) {
	limit := min(within, len(grid))
	for i := 0; i < limit; i++ {
		if rowContainsAll(grid[i], required) {
			headers := make([]string, len(grid[i]))
			for j, h := range grid[i] {
				headers[j] = strings.TrimSpace(h)
			}
			return i, headers
		}
	}
	return -1, nil
}

func rowContainsAll(row []string, required []string) bool {
	for _, want := range required {
		found := false
		for _, cell := range row {
			if strings.TrimSpace(cell) == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// cellsByHeader zips one data row with the header labels.
func cellsByHeader(headers []string, row []string) map[string]string {
	out := make(map[string]string, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		if i < len(row) {
			out[h] = row[i]
		} else {
			out[h] = ""
		}
	}
	return out
}

// cellNumber parses a workbook cell as a number, tolerating currency and
// thousands separators. Unparseable cells resolve to 0.
func cellNumber(raw string) float64 {
	v, ok := parseCell(raw)
	if !ok {
		return 0
	}
	return v
}
