package inventory

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Field identifies a recognized input column.
type Field string

const (
	FieldProduct     Field = "product"
	FieldDate        Field = "date"
	FieldSales       Field = "sales"
	FieldExpenses    Field = "expenses"
	FieldEndingStock Field = "ending_stock"
	FieldTotalSales  Field = "total_sales"
	FieldElapsedDays Field = "elapsed_days"
	FieldLeadTime    Field = "lead_time"
)

// GenericProduct labels every row when the upload has no product column.
const GenericProduct = "Producto Genérico"

// NotAvailable is reported as best/worst seller when there is no sales data.
const NotAvailable = "N/A"

// DefaultSafetyFactor is the share of minimum stock held as safety stock.
const DefaultSafetyFactor = 0.05

// Table is a raw tabular upload: one header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Metric is a derived number that may be non-finite. Non-finite values are
// encoded as the JSON strings "NaN", "+Inf" and "-Inf".
type Metric float64

func (m Metric) IsFinite() bool {
	f := float64(m)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (m Metric) String() string {
	f := float64(m)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.IsFinite() {
		return []byte(strconv.Quote(m.String())), nil
	}
	return []byte(m.String()), nil
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, `"`) {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return err
		}
		switch s {
		case "NaN":
			*m = Metric(math.NaN())
		case "+Inf", "Inf":
			*m = Metric(math.Inf(1))
		case "-Inf":
			*m = Metric(math.Inf(-1))
		default:
			return fmt.Errorf("invalid metric value %q", s)
		}
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid metric value %s: %w", raw, err)
	}
	*m = Metric(f)
	return nil
}

// Date is a calendar date encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.Format(dateLayout))), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("invalid date %s: %w", data, err)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// MonthKey groups rows by calendar month. Its label ("March 2025") is the
// grouping key of every month-based aggregate.
type MonthKey struct {
	Year  int
	Month time.Month
}

const monthLayout = "January 2006"

func MonthOf(d Date) MonthKey {
	return MonthKey{Year: d.Year(), Month: d.Month()}
}

func (k MonthKey) Label() string {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC).Format(monthLayout)
}

func (k MonthKey) Before(other MonthKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

func (k MonthKey) String() string { return k.Label() }

func (k MonthKey) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(k.Label())), nil
}

func (k *MonthKey) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("invalid month %s: %w", data, err)
	}
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return fmt.Errorf("invalid month %q: %w", s, err)
	}
	k.Year, k.Month = t.Year(), t.Month()
	return nil
}

// DerivedMetrics are the reorder statistics attached to each row. All four
// are computed together or are all zero.
type DerivedMetrics struct {
	DailyDemand  Metric `json:"daily_demand"`
	MinimumStock Metric `json:"minimum_stock"`
	SafetyStock  Metric `json:"safety_stock"`
	MaximumStock Metric `json:"maximum_stock"`
}

func (m DerivedMetrics) IsFinite() bool {
	return m.DailyDemand.IsFinite() && m.MinimumStock.IsFinite() &&
		m.SafetyStock.IsFinite() && m.MaximumStock.IsFinite()
}

// InventoryRow is one normalized observation plus its derived metrics.
// Optional fields are nil when the column is missing or the cell is blank.
type InventoryRow struct {
	Row         int               `json:"row"`
	Product     string            `json:"product"`
	Date        *Date             `json:"date,omitempty"`
	Sales       *float64          `json:"sales,omitempty"`
	Expenses    *float64          `json:"expenses,omitempty"`
	EndingStock *float64          `json:"ending_stock,omitempty"`
	TotalSales  *float64          `json:"total_sales,omitempty"`
	ElapsedDays *float64          `json:"elapsed_days,omitempty"`
	LeadTime    *float64          `json:"lead_time,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
	Metrics     DerivedMetrics    `json:"metrics"`
}

// ProductMonthSummary is the stock picture of one product in one month.
type ProductMonthSummary struct {
	Product          string   `json:"product"`
	Month            MonthKey `json:"month"`
	EndingStock      *float64 `json:"ending_stock"`
	MeanMinimumStock Metric   `json:"mean_minimum_stock"`
	MeanMaximumStock Metric   `json:"mean_maximum_stock"`
	Observations     int      `json:"observations"`
}

type SalesByProductMonth struct {
	Product string   `json:"product"`
	Month   MonthKey `json:"month"`
	Sales   float64  `json:"sales"`
}

type ExpensesByMonth struct {
	Month    MonthKey `json:"month"`
	Expenses float64  `json:"expenses"`
}

// BudgetOutcome compares the declared monthly budget with sales and expenses.
// Alert is non-empty if and only if FinalBalance < 0.
type BudgetOutcome struct {
	TotalSales    float64 `json:"total_sales"`
	TotalExpenses float64 `json:"total_expenses"`
	Budget        float64 `json:"budget"`
	FinalBalance  float64 `json:"final_balance"`
	Alert         string  `json:"alert,omitempty"`
}

// IssueKind classifies a data-quality condition absorbed by the pipeline.
type IssueKind string

const (
	IssueUnparsableDate   IssueKind = "unparsable_date"
	IssueInvalidNumber    IssueKind = "invalid_number"
	IssueNonFiniteMetrics IssueKind = "non_finite_metrics"
	IssueMissingProduct   IssueKind = "missing_product"
)

// DataQualityIssue points at a data row (1-based, header excluded).
type DataQualityIssue struct {
	Row   int       `json:"row"`
	Field Field     `json:"field"`
	Kind  IssueKind `json:"kind"`
	Value string    `json:"value,omitempty"`
}

// RunSummary is the single-record document describing one pipeline run.
type RunSummary struct {
	TotalSales         float64            `json:"total_sales"`
	BestSeller         string             `json:"best_seller"`
	WorstSeller        string             `json:"worst_seller"`
	TotalExpenses      float64            `json:"total_expenses"`
	Budget             float64            `json:"budget"`
	FinalBalance       float64            `json:"final_balance"`
	Alert              string             `json:"alert,omitempty"`
	GenerateCharts     bool               `json:"generate_charts"`
	RowCount           int                `json:"row_count"`
	DetectedColumns    []Field            `json:"detected_columns"`
	ProductSynthesized bool               `json:"product_synthesized"`
	MetricsComputed    bool               `json:"metrics_computed"`
	LatestMonth        *MonthKey          `json:"latest_month,omitempty"`
	DataQuality        []DataQualityIssue `json:"data_quality,omitempty"`
}

