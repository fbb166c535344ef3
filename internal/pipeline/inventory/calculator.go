package inventory

// Calculator derives reorder metrics for every row of a normalized table.
type Calculator struct {
	safetyFactor float64
}

func NewCalculator(safetyFactor float64) *Calculator {
	return &Calculator{safetyFactor: safetyFactor}
}

// Apply fills Metrics on every row in place and returns the rows whose
// metrics came out non-finite. When the schema lacks any of the three
// source columns every row keeps all-zero metrics.
func (c *Calculator) Apply(schema DetectedSchema, rows []InventoryRow) []DataQualityIssue {
	if !schema.CanComputeMetrics() {
		for i := range rows {
			rows[i].Metrics = DerivedMetrics{}
		}
		return nil
	}

	var issues []DataQualityIssue
	for i := range rows {
		r := &rows[i]
		if r.TotalSales == nil || r.ElapsedDays == nil || r.LeadTime == nil {
			r.Metrics = DerivedMetrics{}
			continue
		}
		r.Metrics = c.compute(*r.TotalSales, *r.ElapsedDays, *r.LeadTime)
		if !r.Metrics.IsFinite() {
			issues = append(issues, DataQualityIssue{
				Row:   r.Row,
				Field: FieldElapsedDays,
				Kind:  IssueNonFiniteMetrics,
				Value: r.Metrics.DailyDemand.String(),
			})
		}
	}
	return issues
}

func (c *Calculator) compute(total, days, lead float64) DerivedMetrics {
	demand := total / days
	minimum := demand * lead
	safety := minimum * c.safetyFactor
	return DerivedMetrics{
		DailyDemand:  Metric(demand),
		MinimumStock: Metric(minimum),
		SafetyStock:  Metric(safety),
		MaximumStock: Metric(minimum + safety),
	}
}
