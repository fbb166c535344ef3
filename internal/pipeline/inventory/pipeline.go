package inventory

import (
	"fmt"
	"sort"
)

type Options struct {
	// SafetyFactor is the share of minimum stock held as safety stock.
	SafetyFactor float64
}

// Input is one upload: the parsed table, the declared budget as typed by
// the user and whether the report should carry charts.
type Input struct {
	Table          Table
	Budget         string
	GenerateCharts bool
}

// Result is everything one run produces before serialization.
type Result struct {
	Columns    []string
	Schema     DetectedSchema
	Rows       []InventoryRow
	Aggregates Aggregates
	Budget     BudgetOutcome
	Summary    RunSummary
}

// Pipeline runs normalize, metrics, aggregation and budget evaluation in
// sequence. It holds no state between runs and is safe for concurrent use.
type Pipeline struct {
	calc *Calculator
}

func NewPipeline(opts Options) *Pipeline {
	if opts.SafetyFactor <= 0 {
		opts.SafetyFactor = DefaultSafetyFactor
	}
	return &Pipeline{calc: NewCalculator(opts.SafetyFactor)}
}

func (p *Pipeline) Run(in Input) (*Result, error) {
	table, err := Normalize(in.Table)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	issues := append([]DataQualityIssue(nil), table.Issues...)
	issues = append(issues, p.calc.Apply(table.Schema, table.Rows)...)
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Row < issues[j].Row })

	agg := Aggregate(table.Schema, table.Rows)
	outcome := EvaluateBudget(agg.TotalSales, agg.TotalExpenses, ParseBudget(in.Budget))

	summary := RunSummary{
		TotalSales:         outcome.TotalSales,
		BestSeller:         agg.BestSeller,
		WorstSeller:        agg.WorstSeller,
		TotalExpenses:      outcome.TotalExpenses,
		Budget:             outcome.Budget,
		FinalBalance:       outcome.FinalBalance,
		Alert:              outcome.Alert,
		GenerateCharts:     in.GenerateCharts,
		RowCount:           len(table.Rows),
		DetectedColumns:    table.Schema.Fields(),
		ProductSynthesized: table.Schema.ProductSynthesized,
		MetricsComputed:    table.Schema.CanComputeMetrics(),
		LatestMonth:        agg.LatestMonth,
		DataQuality:        issues,
	}

	return &Result{
		Columns:    table.Columns,
		Schema:     table.Schema,
		Rows:       table.Rows,
		Aggregates: agg,
		Budget:     outcome,
		Summary:    summary,
	}, nil
}
