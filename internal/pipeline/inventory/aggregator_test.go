package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datePtr(y int, m time.Month, d int) *Date {
	v := NewDate(y, m, d)
	return &v
}

func TestAggregate_SalesSummary(t *testing.T) {
	rows := []InventoryRow{
		{Row: 1, Product: "a", Sales: floatPtr(5)},
		{Row: 2, Product: "b", Sales: floatPtr(7)},
		{Row: 3, Product: "c", Sales: floatPtr(5)},
		{Row: 4, Product: "a", Sales: floatPtr(2)},
		{Row: 5, Product: "d"},
	}

	agg := Aggregate(NewDetectedSchema(FieldProduct, FieldSales), rows)

	assert.Equal(t, 19.0, agg.TotalSales)
	// a=7 and b=7 tie for best; c=5 is the only minimum.
	assert.Equal(t, "a", agg.BestSeller)
	assert.Equal(t, "c", agg.WorstSeller)
}

func TestAggregate_NoSales(t *testing.T) {
	agg := Aggregate(NewDetectedSchema(FieldProduct), []InventoryRow{{Row: 1, Product: "a"}})

	assert.Equal(t, NotAvailable, agg.BestSeller)
	assert.Equal(t, NotAvailable, agg.WorstSeller)
	assert.Zero(t, agg.TotalSales)
	assert.Nil(t, agg.LatestMonth)
}

func TestAggregate_UndatedRowsCountOnlyInTotals(t *testing.T) {
	rows := []InventoryRow{
		{Row: 1, Product: "a", Date: datePtr(2025, time.March, 2), Sales: floatPtr(4), Expenses: floatPtr(1)},
		{Row: 2, Product: "a", Sales: floatPtr(6), Expenses: floatPtr(9)},
	}

	agg := Aggregate(NewDetectedSchema(FieldProduct, FieldDate, FieldSales, FieldExpenses), rows)

	assert.Equal(t, 10.0, agg.TotalSales)
	assert.Equal(t, 10.0, agg.TotalExpenses)
	assert.Equal(t, []SalesByProductMonth{{Product: "a", Month: MonthKey{2025, time.March}, Sales: 4}}, agg.SalesByProductMonth)
	assert.Equal(t, []ExpensesByMonth{{Month: MonthKey{2025, time.March}, Expenses: 1}}, agg.ExpensesByMonth)
}

func TestAggregate_BlankProductCountsOnlyInTotals(t *testing.T) {
	march := datePtr(2025, time.March, 3)
	rows := []InventoryRow{
		{Row: 1, Product: "a", Date: march, Sales: floatPtr(5), EndingStock: floatPtr(10)},
		{Row: 2, Product: "", Date: march, Sales: floatPtr(50), EndingStock: floatPtr(1)},
		{Row: 3, Product: "b", Date: march, Sales: floatPtr(2), EndingStock: floatPtr(4)},
		{Row: 4, Product: "", Date: march, Sales: floatPtr(0)},
	}

	agg := Aggregate(NewDetectedSchema(FieldProduct, FieldDate, FieldSales, FieldEndingStock), rows)

	assert.Equal(t, 57.0, agg.TotalSales)
	assert.Equal(t, "a", agg.BestSeller)
	assert.Equal(t, "b", agg.WorstSeller)
	require.Len(t, agg.SalesByProductMonth, 2)
	for _, s := range agg.SalesByProductMonth {
		assert.NotEmpty(t, s.Product)
	}
	require.Len(t, agg.StockSummary, 2)
	assert.Equal(t, "a", agg.StockSummary[0].Product)
}

func TestAggregate_OrderingAndMonthKeys(t *testing.T) {
	rows := []InventoryRow{
		{Row: 1, Product: "b", Date: datePtr(2025, time.February, 1), Sales: floatPtr(1), Expenses: floatPtr(3)},
		{Row: 2, Product: "a", Date: datePtr(2025, time.February, 9), Sales: floatPtr(2), Expenses: floatPtr(4)},
		{Row: 3, Product: "a", Date: datePtr(2024, time.December, 30), Sales: floatPtr(3), Expenses: floatPtr(5)},
		{Row: 4, Product: "a", Date: datePtr(2025, time.February, 20), Sales: floatPtr(4)},
	}

	agg := Aggregate(NewDetectedSchema(FieldProduct, FieldDate, FieldSales, FieldExpenses), rows)

	assert.Equal(t, []SalesByProductMonth{
		{Product: "a", Month: MonthKey{2024, time.December}, Sales: 3},
		{Product: "a", Month: MonthKey{2025, time.February}, Sales: 6},
		{Product: "b", Month: MonthKey{2025, time.February}, Sales: 1},
	}, agg.SalesByProductMonth)
	assert.Equal(t, []ExpensesByMonth{
		{Month: MonthKey{2024, time.December}, Expenses: 5},
		{Month: MonthKey{2025, time.February}, Expenses: 7},
	}, agg.ExpensesByMonth)
	require.NotNil(t, agg.LatestMonth)
	assert.Equal(t, "February 2025", agg.LatestMonth.Label())
}

func TestAggregate_NoExpenseColumn(t *testing.T) {
	rows := []InventoryRow{{Row: 1, Product: "a", Date: datePtr(2025, time.May, 1), Sales: floatPtr(1)}}

	agg := Aggregate(NewDetectedSchema(FieldProduct, FieldDate, FieldSales), rows)

	assert.NotNil(t, agg.ExpensesByMonth)
	assert.Empty(t, agg.ExpensesByMonth)
	assert.Nil(t, agg.StockSummary)
}

func TestAggregate_StockSummaryUsesLatestDate(t *testing.T) {
	rows := []InventoryRow{
		{Row: 1, Product: "a", Date: datePtr(2025, time.January, 20), EndingStock: floatPtr(8),
			Metrics: DerivedMetrics{MinimumStock: 10, MaximumStock: 12}},
		{Row: 2, Product: "a", Date: datePtr(2025, time.January, 3), EndingStock: floatPtr(30),
			Metrics: DerivedMetrics{MinimumStock: 20, MaximumStock: 24}},
		{Row: 3, Product: "a", Date: datePtr(2025, time.January, 25),
			Metrics: DerivedMetrics{MinimumStock: 30, MaximumStock: 36}},
		{Row: 4, Product: "a", EndingStock: floatPtr(99)},
	}

	agg := Aggregate(NewDetectedSchema(FieldProduct, FieldDate, FieldEndingStock), rows)

	require.Len(t, agg.StockSummary, 1)
	s := agg.StockSummary[0]
	require.NotNil(t, s.EndingStock)
	assert.Equal(t, 8.0, *s.EndingStock)
	assert.Equal(t, Metric(20), s.MeanMinimumStock)
	assert.Equal(t, Metric(24), s.MeanMaximumStock)
	assert.Equal(t, 3, s.Observations)
	assert.Equal(t, "January 2025", s.Month.Label())
}

func TestAggregate_IsIdempotent(t *testing.T) {
	rows := []InventoryRow{
		{Row: 1, Product: "b", Date: datePtr(2025, time.April, 3), Sales: floatPtr(2), Expenses: floatPtr(1), EndingStock: floatPtr(3)},
		{Row: 2, Product: "a", Date: datePtr(2025, time.April, 1), Sales: floatPtr(5), Expenses: floatPtr(2), EndingStock: floatPtr(4)},
		{Row: 3, Product: "a", Sales: floatPtr(1)},
	}
	schema := NewDetectedSchema(FieldProduct, FieldDate, FieldSales, FieldExpenses, FieldEndingStock)

	first := Aggregate(schema, rows)
	second := Aggregate(schema, rows)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, rows[0].Row, "input order must be left untouched")
}
