package dataprocessing

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"sellerpulse/pkg/contracts/domain"
)

// ExtractorConfig holds the tunables for tabular metric extraction.
type ExtractorConfig struct {
	Vocabulary Vocabulary
	Seasons    SeasonPolicy
	// MaxHeaderScan caps how many leading lines are searched for the
	// date-header row.
	MaxHeaderScan int
	// MinHeaderCells is the minimum parsed cell count a line needs to
	// qualify as a header row.
	MinHeaderCells int
	// MinDateCells is the minimum number of date-token cells the header
	// row must contain.
	MinDateCells int
}

// DefaultExtractorConfig returns the thresholds used for seller-platform
// Google Sheets publishes.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Vocabulary:     DefaultVocabulary(),
		Seasons:        DefaultSeasonPolicy(),
		MaxHeaderScan:  15,
		MinHeaderCells: 11,
		MinDateCells:   6,
	}
}

// ExtractOptions selects the source name recorded on the dataset and an
// optional pack-size filter (e.g. "2 Pack") used to pick one product
// variant's row out of several sharing a category.
type ExtractOptions struct {
	SourceName string
	FilterPack string
}

// ExtractResult carries the calendar dates the columns represent and the
// recovered metric series. Dates and each series' values are index-aligned.
type ExtractResult struct {
	Dates   []time.Time
	Dataset domain.DashboardDataset
}

// Extractor locates the date-header row in a loosely structured CSV export
// and classifies the following rows into canonical metric series.
type Extractor struct {
	cfg    ExtractorConfig
	rules  []rowRule
	logger *slog.Logger
}

// NewExtractor creates an extractor; a nil logger falls back to slog.Default.
func NewExtractor(cfg ExtractorConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxHeaderScan <= 0 {
		cfg.MaxHeaderScan = 15
	}
	return &Extractor{
		cfg:    cfg,
		rules:  scanRules(),
		logger: logger.With(slog.String("component", "extractor")),
	}
}

type dateColumn struct {
	index int
	date  time.Time
}

// Extract parses raw CSV text into a dashboard dataset. Malformed input is
// not an error: when no header row is found the result is simply empty.
func (e *Extractor) Extract(csvText string, opts ExtractOptions) ExtractResult {
	lines := splitLines(csvText)
	result := ExtractResult{
		Dataset: domain.DashboardDataset{SourceName: opts.SourceName},
	}

	headerIdx, dateCols := e.findHeaderRow(lines)
	if headerIdx < 0 {
		e.logger.Warn("no date-header row found",
			slog.String("source", opts.SourceName),
			slog.Int("lines_scanned", min(len(lines), e.cfg.MaxHeaderScan)))
		return result
	}

	for _, dc := range dateCols {
		result.Dates = append(result.Dates, dc.date)
	}

	scan := &rowScan{
		extractor: e,
		opts:      opts,
		dateCols:  dateCols,
		state:     stateIdle,
		captured:  make(map[string]bool),
		seen:      make(map[string]bool),
	}

	for i := headerIdx + 1; i < len(lines); i++ {
		scan.classify(newRowContext(lines[i], dateCols))
	}

	result.Dataset.Metrics = scan.metrics
	e.logger.Debug("extraction complete",
		slog.String("source", opts.SourceName),
		slog.Int("dates", len(result.Dates)),
		slog.Int("metrics", len(result.Dataset.Metrics)))
	return result
}

// findHeaderRow scans the leading lines for the first one with enough cells
// and enough date-token cells, returning its index and date columns.
func (e *Extractor) findHeaderRow(lines []string) (int, []dateColumn) {
	limit := min(len(lines), e.cfg.MaxHeaderScan)
	for i := 0; i < limit; i++ {
		cells := ParseLine(lines[i])
		if len(cells) < e.cfg.MinHeaderCells {
			continue
		}
		var cols []dateColumn
		for idx, cell := range cells {
			if date, ok := e.cfg.Seasons.ParseDayMonth(strings.TrimSpace(cell)); ok {
				cols = append(cols, dateColumn{index: idx, date: date})
			}
		}
		if len(cols) >= e.cfg.MinDateCells {
			e.logger.Debug("found header row",
				slog.Int("row", i), slog.Int("date_columns", len(cols)))
			return i, cols
		}
	}
	return -1, nil
}

// scanState is the category machine: either no category is pending, or a
// marker row has been seen and the next qualifying row supplies its data.
type scanState int

const (
	stateIdle scanState = iota
	statePendingCategory
)

// rowContext is one classified row: its cells plus the two label readings.
// Category markers prefer the first cell, metric rows prefer the second,
// matching how the export nests labels.
type rowContext struct {
	cells         []string
	categoryLabel string
	metricLabel   string
}

func newRowContext(line string, dateCols []dateColumn) rowContext {
	cells := ParseLine(line)
	first, second := "", ""
	if len(cells) > 0 {
		first = strings.TrimSpace(cells[0])
	}
	if len(cells) > 1 {
		second = strings.TrimSpace(cells[1])
	}
	ctx := rowContext{cells: cells}
	ctx.categoryLabel = firstNonEmpty(first, second)
	ctx.metricLabel = firstNonEmpty(second, first)
	return ctx
}

// rowScan carries the mutable state of one extraction pass.
type rowScan struct {
	extractor *Extractor
	opts      ExtractOptions
	dateCols  []dateColumn

	state           scanState
	pendingCategory string
	captured        map[string]bool
	seen            map[string]bool
	metrics         []domain.MetricSeries
}

// rowRule pairs a predicate with its action. Rules are evaluated top to
// bottom per row; the first rule whose predicate holds consumes the row.
type rowRule struct {
	name    string
	applies func(*rowScan, rowContext) bool
	apply   func(*rowScan, rowContext)
}

func scanRules() []rowRule {
	return []rowRule{
		{
			name: "blank",
			applies: func(_ *rowScan, ctx rowContext) bool {
				for _, c := range ctx.cells {
					if strings.TrimSpace(c) != "" {
						return false
					}
				}
				return true
			},
			apply: func(*rowScan, rowContext) {},
		},
		{
			name: "sku-boilerplate",
			applies: func(_ *rowScan, ctx rowContext) bool {
				lower := strings.ToLower(ctx.metricLabel)
				return strings.Contains(lower, "seller") || strings.Contains(lower, "sku")
			},
			apply: func(*rowScan, rowContext) {},
		},
		{
			name: "category-marker",
			applies: func(s *rowScan, ctx rowContext) bool {
				return s.extractor.cfg.Vocabulary.IsCategory(ctx.categoryLabel) &&
					!s.hasNumericData(ctx.cells)
			},
			apply: func(s *rowScan, ctx rowContext) {
				s.state = statePendingCategory
				s.pendingCategory = ctx.categoryLabel
				s.extractor.logger.Debug("found category marker",
					slog.String("category", s.pendingCategory))
			},
		},
		{
			name: "category-pack-row",
			applies: func(s *rowScan, ctx rowContext) bool {
				return s.state == statePendingCategory && s.isPackLabel(ctx.metricLabel)
			},
			apply: func(s *rowScan, ctx rowContext) {
				if s.opts.FilterPack != "" && ctx.metricLabel != s.opts.FilterPack {
					// Keep waiting for the variant the filter selects.
					return
				}
				if s.captured[s.pendingCategory] {
					s.clearCategory()
					return
				}
				if !s.hasNumericData(ctx.cells) {
					return
				}
				category := s.pendingCategory
				s.emit(category, s.extractValues(ctx.cells))
				s.captured[category] = true
				s.clearCategory()
			},
		},
		{
			name: "category-product-row",
			applies: func(s *rowScan, ctx rowContext) bool {
				return s.state == statePendingCategory &&
					ctx.metricLabel != "" &&
					!isReservedLabel(ctx.metricLabel) &&
					!s.captured[s.pendingCategory]
			},
			apply: func(s *rowScan, ctx rowContext) {
				// Single-variant products have no pack sub-row; the row right
				// after the marker carries the category's data. The category
				// is consumed either way, but an all-zero row yields nothing.
				category := s.pendingCategory
				s.captured[category] = true
				s.clearCategory()

				values := s.extractValues(ctx.cells)
				if anyNonZero(values) {
					s.emit(category, values)
				}
			},
		},
		{
			name: "general-metric",
			applies: func(s *rowScan, ctx rowContext) bool {
				_, ok := s.resolveGeneral(ctx)
				return ok
			},
			apply: func(s *rowScan, ctx rowContext) {
				canonical, _ := s.resolveGeneral(ctx)
				values := s.extractValues(ctx.cells)
				if anyNonZero(values) {
					s.emit(canonical, values)
				}
			},
		},
	}
}

func (s *rowScan) classify(ctx rowContext) {
	for _, rule := range s.extractor.rules {
		if rule.applies(s, ctx) {
			rule.apply(s, ctx)
			return
		}
	}
}

// resolveGeneral matches a general metric by either label reading. Wide
// exports put the label in the second cell, narrow ones in the first.
func (s *rowScan) resolveGeneral(ctx rowContext) (string, bool) {
	if canonical, ok := s.extractor.cfg.Vocabulary.CanonicalGeneral(ctx.metricLabel); ok {
		return canonical, true
	}
	return s.extractor.cfg.Vocabulary.CanonicalGeneral(ctx.categoryLabel)
}

func (s *rowScan) clearCategory() {
	s.state = stateIdle
	s.pendingCategory = ""
}

// isPackLabel reports whether label names a pack variant: it contains the
// "Pack" token or equals the active pack-size filter.
func (s *rowScan) isPackLabel(label string) bool {
	if label == "" {
		return false
	}
	if strings.Contains(label, "Pack") {
		return true
	}
	return s.opts.FilterPack != "" && label == s.opts.FilterPack
}

// isReservedLabel guards the product-row rule against swallowing structural
// rows that belong to other rules.
func isReservedLabel(label string) bool {
	for _, token := range []string{"Pack", "SKU", "Items Sold", "GMV"} {
		if strings.Contains(label, token) {
			return true
		}
	}
	return false
}

// hasNumericData reports whether at least one date-column cell parses as a
// number after stripping formatting characters.
func (s *rowScan) hasNumericData(cells []string) bool {
	for _, dc := range s.dateCols {
		if dc.index >= len(cells) {
			continue
		}
		if _, ok := parseCell(cells[dc.index]); ok {
			return true
		}
	}
	return false
}

// extractValues reads every date column in order. Unparseable cells resolve
// to 0 rather than being dropped, so positions stay aligned with the dates.
func (s *rowScan) extractValues(cells []string) []float64 {
	values := make([]float64, len(s.dateCols))
	for i, dc := range s.dateCols {
		if dc.index >= len(cells) {
			continue
		}
		if v, ok := parseCell(cells[dc.index]); ok {
			values[i] = v
		}
	}
	return values
}

// emit records one series under name unless a series with that name was
// already captured in this extraction (first match wins).
func (s *rowScan) emit(name string, values []float64) {
	if s.seen[name] {
		s.extractor.logger.Debug("skipping duplicate metric", slog.String("metric", name))
		return
	}
	s.seen[name] = true

	dated := make([]domain.DatedValue, len(values))
	for i, v := range values {
		dated[i] = domain.DatedValue{Date: s.dateCols[i].date, Value: v}
	}
	s.metrics = append(s.metrics, domain.MetricSeries{Name: name, Values: dated})
	s.extractor.logger.Debug("found metric",
		slog.String("metric", name), slog.Int("values", len(values)))
}

// parseCell strips quote, comma, currency and percent characters and parses
// the remainder as a float.
func parseCell(raw string) (float64, bool) {
	clean := strings.NewReplacer(`"`, "", ",", "", "$", "", "%", "").Replace(raw)
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func anyNonZero(values []float64) bool {
	for _, v := range values {
		if v != 0 {
			return true
		}
	}
	return false
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
