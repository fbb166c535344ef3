package inventory

import (
	"sort"
)

// Aggregates are the product and month summaries of one run.
type Aggregates struct {
	TotalSales          float64
	BestSeller          string
	WorstSeller         string
	TotalExpenses       float64
	SalesByProductMonth []SalesByProductMonth
	ExpensesByMonth     []ExpensesByMonth
	StockSummary        []ProductMonthSummary
	// LatestMonth is the most recent month carrying a dated row, nil when
	// no row has a parseable date.
	LatestMonth *MonthKey
}

type productMonth struct {
	product string
	month   MonthKey
}

// Aggregate groups rows by product and month. It does not modify rows, so
// running it twice over the same slice gives identical results.
func Aggregate(schema DetectedSchema, rows []InventoryRow) Aggregates {
	var agg Aggregates
	agg.TotalSales, agg.BestSeller, agg.WorstSeller = salesSummary(rows)
	agg.TotalExpenses = totalExpenses(rows)
	agg.SalesByProductMonth = salesByProductMonth(rows)
	agg.ExpensesByMonth = expensesByMonth(schema, rows)
	if schema.Has(FieldEndingStock) {
		agg.StockSummary = stockSummary(rows)
	}

	for _, r := range rows {
		if r.Date == nil {
			continue
		}
		m := MonthOf(*r.Date)
		if agg.LatestMonth == nil || agg.LatestMonth.Before(m) {
			agg.LatestMonth = &m
		}
	}
	return agg
}

// salesSummary totals sales and picks the best and worst seller by summed
// quantity. Ties go to the product seen first. Rows without a product count
// toward the total only.
func salesSummary(rows []InventoryRow) (total float64, best, worst string) {
	best, worst = NotAvailable, NotAvailable
	sums := make(map[string]float64)
	var order []string
	for _, r := range rows {
		if r.Sales == nil {
			continue
		}
		total += *r.Sales
		if r.Product == "" {
			continue
		}
		if _, seen := sums[r.Product]; !seen {
			order = append(order, r.Product)
		}
		sums[r.Product] += *r.Sales
	}
	if len(order) == 0 {
		return total, best, worst
	}

	best, worst = order[0], order[0]
	for _, p := range order[1:] {
		if sums[p] > sums[best] {
			best = p
		}
		if sums[p] < sums[worst] {
			worst = p
		}
	}
	return total, best, worst
}

func totalExpenses(rows []InventoryRow) float64 {
	var total float64
	for _, r := range rows {
		if r.Expenses != nil {
			total += *r.Expenses
		}
	}
	return total
}

func salesByProductMonth(rows []InventoryRow) []SalesByProductMonth {
	sums := make(map[productMonth]float64)
	for _, r := range rows {
		if r.Date == nil || r.Sales == nil || r.Product == "" {
			continue
		}
		sums[productMonth{r.Product, MonthOf(*r.Date)}] += *r.Sales
	}

	out := make([]SalesByProductMonth, 0, len(sums))
	for k, v := range sums {
		out = append(out, SalesByProductMonth{Product: k.product, Month: k.month, Sales: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return productMonthLess(out[i].Product, out[i].Month, out[j].Product, out[j].Month)
	})
	return out
}

func expensesByMonth(schema DetectedSchema, rows []InventoryRow) []ExpensesByMonth {
	if !schema.Has(FieldExpenses) {
		return []ExpensesByMonth{}
	}
	sums := make(map[MonthKey]float64)
	for _, r := range rows {
		if r.Date == nil || r.Expenses == nil {
			continue
		}
		sums[MonthOf(*r.Date)] += *r.Expenses
	}

	out := make([]ExpensesByMonth, 0, len(sums))
	for k, v := range sums {
		out = append(out, ExpensesByMonth{Month: k, Expenses: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// stockSummary walks dated rows with a product in date order so the last ending stock seen
// in a month is the latest one.
func stockSummary(rows []InventoryRow) []ProductMonthSummary {
	dated := make([]InventoryRow, 0, len(rows))
	for _, r := range rows {
		if r.Date != nil && r.Product != "" {
			dated = append(dated, r)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool { return dated[i].Date.Before(dated[j].Date.Time) })

	type acc struct {
		ending   *float64
		min, max Metric
		n        int
	}
	groups := make(map[productMonth]*acc)
	for _, r := range dated {
		k := productMonth{r.Product, MonthOf(*r.Date)}
		g, ok := groups[k]
		if !ok {
			g = &acc{}
			groups[k] = g
		}
		if r.EndingStock != nil {
			g.ending = floatPtr(*r.EndingStock)
		}
		g.min += r.Metrics.MinimumStock
		g.max += r.Metrics.MaximumStock
		g.n++
	}

	out := make([]ProductMonthSummary, 0, len(groups))
	for k, g := range groups {
		out = append(out, ProductMonthSummary{
			Product:          k.product,
			Month:            k.month,
			EndingStock:      g.ending,
			MeanMinimumStock: g.min / Metric(g.n),
			MeanMaximumStock: g.max / Metric(g.n),
			Observations:     g.n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return productMonthLess(out[i].Product, out[i].Month, out[j].Product, out[j].Month)
	})
	return out
}

func productMonthLess(p1 string, m1 MonthKey, p2 string, m2 MonthKey) bool {
	if p1 != p2 {
		return p1 < p2
	}
	return m1.Before(m2)
}
