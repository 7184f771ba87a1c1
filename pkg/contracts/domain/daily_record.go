package domain

// DailyMetricRecord is one denormalized day of metrics for a single product.
// Field names mirror the storage columns keyed on Date, so a persistence
// collaborator can upsert records by fixed column names.
type DailyMetricRecord struct {
	Date        string `json:"date"` // 2006-01-02
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`

	GMV                float64 `json:"gmv"`
	Orders             float64 `json:"orders"`
	ItemsSold          float64 `json:"items_sold"`
	Visitors           float64 `json:"visitors"`
	Customers          float64 `json:"customers"`
	ProductImpressions float64 `json:"product_impressions"`
	PageViews          float64 `json:"page_views"`
	Subscribers        float64 `json:"subscribers"`

	// Derived ratios, recomputed via ComputeDerived.
	ConversionRate   float64 `json:"conversion_rate"`
	AOV              float64 `json:"aov"`
	UnitsPerOrder    float64 `json:"units_per_order"`
	ClickThroughRate float64 `json:"click_through_rate"`
	DollarPerVisitor float64 `json:"dollar_per_visitor"`
	DollarPerCustomer float64 `json:"dollar_per_customer"`
}

// ComputeDerived recalculates the ratio fields from the base metrics,
// guarding every division against a zero denominator.
func (r *DailyMetricRecord) ComputeDerived() {
	r.ConversionRate = ratio(r.Orders, r.Visitors) * 100
	r.AOV = ratio(r.GMV, r.Orders)
	r.UnitsPerOrder = ratio(r.ItemsSold, r.Orders)
	r.ClickThroughRate = ratio(r.PageViews, r.ProductImpressions) * 100
	r.DollarPerVisitor = ratio(r.GMV, r.Visitors)
	r.DollarPerCustomer = ratio(r.GMV, r.Customers)
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
