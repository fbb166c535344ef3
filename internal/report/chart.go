package report

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"math"
	"sort"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline/inventory"
)

// DefaultChartChunkSize is the number of products drawn per chart.
const DefaultChartChunkSize = 10

var palette = []string{"4472C4", "ED7D31", "A5A5A5", "FFC000", "5B9BD5", "70AD47", "264478", "9E480E"}

// BarChart is a grouped bar chart: one group per category, one bar per series.
// Values[i][j] is category i, series j.
type BarChart struct {
	Title      string
	Categories []string
	Series     []string
	Values     [][]float64
}

// LegendEntry names a series and the CSS swatch of its bars.
type LegendEntry struct {
	Label  string
	Swatch template.CSS
}

const (
	chartHeight   = 340
	minChartWidth = 480
	barWidth      = 26
	barSpacing    = 4
	labelLength   = 14
)

// SVG renders the chart with go-chart. Bars of one category sit side by side
// and an empty bar separates categories when there is more than one series.
// Non-finite values are drawn as zero.
func (c BarChart) SVG() (template.HTML, error) {
	bars := c.bars()
	if len(bars) == 0 {
		return "", fmt.Errorf("chart %q has no bars", c.Title)
	}
	lo, hi := c.valueRange()

	graph := chart.BarChart{
		Title:        html.EscapeString(c.Title),
		Width:        chartWidthFor(len(bars)),
		Height:       chartHeight,
		BarWidth:     barWidth,
		BarSpacing:   barSpacing,
		UseBaseValue: true,
		BaseValue:    0,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 50},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.SVG, &buf); err != nil {
		return "", fmt.Errorf("render chart %q: %w", c.Title, err)
	}
	return template.HTML(buf.String()), nil
}

// Legend lists the series in drawing order.
func (c BarChart) Legend() []LegendEntry {
	entries := make([]LegendEntry, 0, len(c.Series))
	for j, s := range c.Series {
		entries = append(entries, LegendEntry{
			Label:  s,
			Swatch: template.CSS("background-color: #" + seriesColor(j)),
		})
	}
	return entries
}

func (c BarChart) bars() []chart.Value {
	if len(c.Series) == 0 {
		return nil
	}
	grouped := len(c.Series) > 1
	var bars []chart.Value
	for i, category := range c.Categories {
		if grouped && i > 0 {
			bars = append(bars, chart.Value{Style: chart.Style{
				FillColor:   drawing.ColorTransparent,
				StrokeColor: drawing.ColorTransparent,
			}})
		}
		for j := range c.Series {
			color := drawing.ColorFromHex(seriesColor(j))
			v := chart.Value{
				Value: c.value(i, j),
				Style: chart.Style{FillColor: color, StrokeColor: color, StrokeWidth: 1},
			}
			if j == 0 {
				v.Label = html.EscapeString(truncate(category, labelLength))
			}
			bars = append(bars, v)
		}
	}
	return bars
}

func (c BarChart) value(i, j int) float64 {
	if i >= len(c.Values) || j >= len(c.Values[i]) {
		return 0
	}
	v := c.Values[i][j]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// valueRange always includes zero and is never empty.
func (c BarChart) valueRange() (lo, hi float64) {
	for i := range c.Values {
		for j := range c.Values[i] {
			v := c.value(i, j)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi * 1.05
}

func chartWidthFor(bars int) int {
	w := 120 + bars*(barWidth+barSpacing)
	if w < minChartWidth {
		return minChartWidth
	}
	return w
}

func seriesColor(j int) string {
	return palette[j%len(palette)]
}

// SalesCharts draws sales per product with one bar per month, products
// split into batches of chunkSize.
func SalesCharts(sales []inventory.SalesByProductMonth, chunkSize int) []BarChart {
	if len(sales) == 0 {
		return nil
	}
	monthSet := make(map[inventory.MonthKey]bool)
	byProduct := make(map[string]map[inventory.MonthKey]float64)
	var products []string
	for _, s := range sales {
		monthSet[s.Month] = true
		if _, ok := byProduct[s.Product]; !ok {
			byProduct[s.Product] = make(map[inventory.MonthKey]float64)
			products = append(products, s.Product)
		}
		byProduct[s.Product][s.Month] += s.Sales
	}
	months := sortedMonths(monthSet)
	series := make([]string, len(months))
	for i, m := range months {
		series[i] = m.Label()
	}

	var charts []BarChart
	batches := chunkProducts(products, chunkSize)
	for n, batch := range batches {
		c := BarChart{Title: batchTitle("Ventas por producto y mes", n, len(batches)), Categories: batch, Series: series}
		for _, p := range batch {
			row := make([]float64, len(months))
			for j, m := range months {
				row[j] = byProduct[p][m]
			}
			c.Values = append(c.Values, row)
		}
		charts = append(charts, c)
	}
	return charts
}

// StockCharts draws, for the latest month of each product, the ending stock
// against mean minimum and maximum stock.
func StockCharts(stock []inventory.ProductMonthSummary, chunkSize int) []BarChart {
	if len(stock) == 0 {
		return nil
	}
	latest := make(map[string]inventory.ProductMonthSummary)
	var products []string
	for _, s := range stock {
		cur, ok := latest[s.Product]
		if !ok {
			products = append(products, s.Product)
		}
		if !ok || cur.Month.Before(s.Month) {
			latest[s.Product] = s
		}
	}

	var charts []BarChart
	batches := chunkProducts(products, chunkSize)
	for n, batch := range batches {
		c := BarChart{
			Title:      batchTitle("Stock final vs. mínimo y máximo", n, len(batches)),
			Categories: batch,
			Series:     []string{"Stock final", "Stock mínimo", "Stock máximo"},
		}
		for _, p := range batch {
			s := latest[p]
			ending := 0.0
			if s.EndingStock != nil {
				ending = *s.EndingStock
			}
			c.Values = append(c.Values, []float64{ending, float64(s.MeanMinimumStock), float64(s.MeanMaximumStock)})
		}
		charts = append(charts, c)
	}
	return charts
}

// ExpensesChart draws one bar per month.
func ExpensesChart(expenses []inventory.ExpensesByMonth) *BarChart {
	if len(expenses) == 0 {
		return nil
	}
	c := &BarChart{Title: "Gastos por mes", Series: []string{"Gastos"}}
	for _, e := range expenses {
		c.Categories = append(c.Categories, e.Month.Label())
		c.Values = append(c.Values, []float64{e.Expenses})
	}
	return c
}

func chunkProducts(products []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChartChunkSize
	}
	var out [][]string
	for start := 0; start < len(products); start += size {
		end := start + size
		if end > len(products) {
			end = len(products)
		}
		out = append(out, products[start:end])
	}
	return out
}

func sortedMonths(set map[inventory.MonthKey]bool) []inventory.MonthKey {
	months := make([]inventory.MonthKey, 0, len(set))
	for m := range set {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}

func batchTitle(title string, n, total int) string {
	if total <= 1 {
		return title
	}
	return fmt.Sprintf("%s (%d/%d)", title, n+1, total)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
