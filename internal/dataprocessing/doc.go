// Package dataprocessing turns loosely structured seller-platform exports
// into canonical per-metric daily series.
//
// Three import shapes are supported:
//
//   - Google Sheets CSV publishes, where a date-header row must be located
//     heuristically and subsequent rows classified by an ordered rule table
//     (Extractor)
//   - spreadsheet-exported XLSX workbooks with a Product List sheet and
//     per-product Traffic Breakdown sheets, merged by (product, date)
//     (WorkbookExtractor)
//   - column-header daily CSVs produced from the manual-entry template
//     (ParseDailyCSV)
//
// All transformations are pure: no I/O, no shared state, and single-cell
// parse failures recover locally to 0 rather than failing an extraction.
package dataprocessing
