// Package exporter writes CSV output: a fillable import template and full
// daily history exports.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"sellerpulse/pkg/contracts/domain"
)

// templateHeaders is the column order for template and export files. The
// labels must stay resolvable by the import side's metric vocabulary.
var templateHeaders = []string{
	"Date", "GMV", "Items Sold", "Orders", "AOV", "Units per Order",
	"Product Impressions", "Page Views", "Click-through Rate",
	"Visitors", "Customers", "Conv. Rate",
	"$ per Visitor", "$ per Customer", "Subscribers",
}

// TemplateHeaders returns a copy of the canonical export column labels.
func TemplateHeaders() []string {
	out := make([]string, len(templateHeaders))
	copy(out, templateHeaders)
	return out
}

// WriteTemplate writes the import template: the header row plus one sample
// row showing the expected date format.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	sample := make([]string, len(templateHeaders))
	sample[0] = "2026-01-15"
	for i := 1; i < len(sample); i++ {
		sample[i] = "0"
	}
	if err := cw.Write(templateHeaders); err != nil {
		return fmt.Errorf("write template header: %w", err)
	}
	if err := cw.Write(sample); err != nil {
		return fmt.Errorf("write template sample row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// WriteDailySeries writes records as a CSV document using the template
// column order.
func WriteDailySeries(w io.Writer, records []domain.DailyMetricRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(templateHeaders); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Date,
			num(r.GMV), num(r.ItemsSold), num(r.Orders),
			num(r.AOV), num(r.UnitsPerOrder),
			num(r.ProductImpressions), num(r.PageViews), num(r.ClickThroughRate),
			num(r.Visitors), num(r.Customers), num(r.ConversionRate),
			num(r.DollarPerVisitor), num(r.DollarPerCustomer), num(r.Subscribers),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write export row %s: %w", r.Date, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
