// Package report renders a run's documents as an HTML page or a PDF.
package report

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"time"

	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline/inventory"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html.tmpl").Funcs(template.FuncMap{
		"currency": inventory.FormatCurrency,
		"quantity": formatQuantity,
		"optional": formatOptional,
		"metric":   formatMetric,
		"date":     formatDate,
	}).ParseFS(templateFS, "templates/report.html.tmpl"),
)

// Renderer builds the report from a decoded document bundle.
type Renderer struct {
	pdf       PDFRenderer
	chunkSize int
	now       func() time.Time
}

// NewRenderer returns a renderer; pdf may be nil when only HTML is needed.
func NewRenderer(pdf PDFRenderer, chunkSize int) *Renderer {
	if chunkSize <= 0 {
		chunkSize = DefaultChartChunkSize
	}
	return &Renderer{pdf: pdf, chunkSize: chunkSize, now: time.Now}
}

type reportView struct {
	Title         string
	GeneratedAt   string
	Summary       inventory.RunSummary
	Sales         []inventory.SalesByProductMonth
	Expenses      []inventory.ExpensesByMonth
	Stock         []inventory.ProductMonthSummary
	Issues        []inventory.DataQualityIssue
	SalesCharts   []chartView
	StockCharts   []chartView
	ExpensesChart *chartView
}

type chartView struct {
	SVG    template.HTML
	Legend []LegendEntry
}

// HTML renders the full report page. Charts are drawn only when the run
// asked for them.
func (r *Renderer) HTML(b *inventory.Bundle) ([]byte, error) {
	view := reportView{
		Title:       "Reporte de inventario",
		GeneratedAt: r.now().Format("2006-01-02 15:04"),
		Summary:     b.Summary,
		Sales:       b.SalesByProductMonth,
		Expenses:    b.ExpensesByMonth,
		Stock:       b.StockSummary,
		Issues:      b.Summary.DataQuality,
	}
	if b.Summary.GenerateCharts {
		var err error
		if view.SalesCharts, err = renderCharts(SalesCharts(b.SalesByProductMonth, r.chunkSize)); err != nil {
			return nil, err
		}
		if view.StockCharts, err = renderCharts(StockCharts(b.StockSummary, r.chunkSize)); err != nil {
			return nil, err
		}
		if c := ExpensesChart(b.ExpensesByMonth); c != nil {
			rendered, err := renderCharts([]BarChart{*c})
			if err != nil {
				return nil, err
			}
			view.ExpensesChart = &rendered[0]
		}
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("execute report template: %w", err)
	}
	return buf.Bytes(), nil
}

func renderCharts(charts []BarChart) ([]chartView, error) {
	views := make([]chartView, 0, len(charts))
	for _, c := range charts {
		svg, err := c.SVG()
		if err != nil {
			return nil, err
		}
		views = append(views, chartView{SVG: svg, Legend: c.Legend()})
	}
	return views, nil
}

// PDF renders the HTML report and prints it.
func (r *Renderer) PDF(ctx context.Context, b *inventory.Bundle) ([]byte, error) {
	if r.pdf == nil {
		return nil, fmt.Errorf("report: no pdf renderer configured")
	}
	html, err := r.HTML(b)
	if err != nil {
		return nil, err
	}
	return r.pdf.RenderPDF(ctx, string(html))
}

func formatQuantity(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return inventory.Metric(v).String()
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatQuantity(*v)
}

func formatMetric(m inventory.Metric) string {
	return formatQuantity(float64(m))
}

func formatDate(d *inventory.Date) string {
	if d == nil {
		return "-"
	}
	return d.Format("2006-01-02")
}
