package dataprocessing

import "strings"

// Canonical metric names. This vocabulary is the contract boundary with the
// persistence layer: each name maps 1:1 to a storage column, and the set is
// closed; adding a name is a breaking change for stored data.
const (
	MetricGMV                = "GMV"
	MetricItemsSold          = "Items Sold"
	MetricOrders             = "Orders"
	MetricAOV                = "AOV"
	MetricUnitsPerOrder      = "Units per Order"
	MetricProductImpressions = "Product Impressions"
	MetricPageViews          = "Page Views"
	MetricClickThroughRate   = "Click-through Rate"
	MetricAvgVisitors        = "Avg Visitors"
	MetricAvgCustomers       = "Avg. Customers"
	MetricConvRate           = "Conv. Rate"
	MetricDollarPerVisitor   = "$ per Visitor"
	MetricDollarPerCustomer  = "$ per Customer"
	MetricSubscribers        = "Subscribers"
)

// Vocabulary is the injected metric-name configuration for an Extractor.
// Categories name the section markers that precede per-variant rows;
// General names match plain metric rows directly.
type Vocabulary struct {
	Categories []string
	General    []string
}

// DefaultVocabulary returns the vocabulary used by seller-platform exports.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Categories: []string{MetricItemsSold, MetricGMV},
		General: []string{
			MetricOrders,
			MetricAOV,
			MetricUnitsPerOrder,
			MetricProductImpressions,
			MetricPageViews,
			MetricClickThroughRate,
			MetricAvgVisitors,
			MetricAvgCustomers,
			MetricConvRate,
			MetricDollarPerVisitor,
			MetricDollarPerCustomer,
			MetricSubscribers,
		},
	}
}

// IsCategory reports whether label names a category marker (exact match).
func (v Vocabulary) IsCategory(label string) bool {
	for _, c := range v.Categories {
		if label == c {
			return true
		}
	}
	return false
}

// CanonicalGeneral resolves label to its exact-cased canonical general-metric
// name. Matching is case-insensitive on input.
func (v Vocabulary) CanonicalGeneral(label string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(label))
	for _, g := range v.General {
		if strings.ToLower(g) == lower {
			return g, true
		}
	}
	return "", false
}

// storageColumns maps lowercased metric labels to storage column names.
// "Visitors" and "Customers" are accepted as aliases since column-header CSV
// exports label them without the Avg prefix.
var storageColumns = map[string]string{
	"gmv":                 "gmv",
	"items sold":          "items_sold",
	"orders":              "orders",
	"aov":                 "aov",
	"units per order":     "units_per_order",
	"product impressions": "product_impressions",
	"page views":          "page_views",
	"click-through rate":  "click_through_rate",
	"visitors":            "visitors",
	"avg visitors":        "visitors",
	"customers":           "customers",
	"avg. customers":      "customers",
	"conv. rate":          "conversion_rate",
	"$ per visitor":       "dollar_per_visitor",
	"$ per customer":      "dollar_per_customer",
	"subscribers":         "subscribers",
}

// ColumnForMetric resolves a metric label to its storage column name.
// Unknown labels return false; the vocabulary is an allowlist, so callers
// drop them silently rather than erroring.
func ColumnForMetric(name string) (string, bool) {
	col, ok := storageColumns[strings.ToLower(strings.TrimSpace(name))]
	return col, ok
}

// MetricColumns lists the storage columns in canonical order.
func MetricColumns() []string {
	return []string{
		"gmv", "items_sold", "orders", "aov", "units_per_order",
		"product_impressions", "page_views", "click_through_rate",
		"visitors", "customers", "conversion_rate",
		"dollar_per_visitor", "dollar_per_customer", "subscribers",
	}
}
