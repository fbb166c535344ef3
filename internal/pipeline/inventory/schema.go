package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrUnreadableInput marks an upload that is not a table at all. It is the
// only normalization failure; missing columns are never an error.
var ErrUnreadableInput = errors.New("unreadable input")

type columnSpec struct {
	field   Field
	header  string
	aliases []string
}

// recognizedColumns lists the canonical header of every field followed by
// the aliases accepted for it. Order is the order of CanonicalHeaders.
var recognizedColumns = []columnSpec{
	{FieldProduct, "Nombre Producto", []string{"producto", "product", "product name", "nombre"}},
	{FieldDate, "Fecha", []string{"date"}},
	{FieldSales, "Ventas", []string{"cantidad vendida", "sales", "sales qty"}},
	{FieldExpenses, "Gastos(compras)", []string{"gastos", "compras", "expenses", "purchases"}},
	{FieldEndingStock, "Stock Final", []string{"ending stock", "stock"}},
	{FieldTotalSales, "Ventas Totales", []string{"total ventas", "total sales"}},
	{FieldElapsedDays, "Días", []string{"dias", "days", "elapsed days"}},
	{FieldLeadTime, "Tiempo_reposicion", []string{"tiempo de reposicion", "lead time"}},
}

var numericFields = []Field{FieldSales, FieldExpenses, FieldEndingStock, FieldTotalSales, FieldElapsedDays, FieldLeadTime}

// CanonicalHeaders returns the header row of the upload template.
func CanonicalHeaders() []string {
	headers := make([]string, 0, len(recognizedColumns))
	for _, c := range recognizedColumns {
		headers = append(headers, c.header)
	}
	return headers
}

var fieldByColumnName = func() map[string]Field {
	m := make(map[string]Field)
	for _, c := range recognizedColumns {
		m[normalizeColumnName(c.header)] = c.field
		for _, alias := range c.aliases {
			m[normalizeColumnName(alias)] = c.field
		}
	}
	return m
}()

// DetectedSchema records which recognized fields an upload carries and in
// which column. It is computed once and handed to every later stage.
type DetectedSchema struct {
	columns            map[Field]int
	ProductSynthesized bool
}

func (s DetectedSchema) Has(f Field) bool {
	if f == FieldProduct {
		return true
	}
	_, ok := s.columns[f]
	return ok
}

// CanComputeMetrics reports whether total sales, elapsed days and lead time
// columns are all present.
func (s DetectedSchema) CanComputeMetrics() bool {
	return s.Has(FieldTotalSales) && s.Has(FieldElapsedDays) && s.Has(FieldLeadTime)
}

// Fields lists the detected fields in canonical order.
func (s DetectedSchema) Fields() []Field {
	fields := make([]Field, 0, len(recognizedColumns))
	for _, c := range recognizedColumns {
		if s.Has(c.field) {
			fields = append(fields, c.field)
		}
	}
	return fields
}

// NewDetectedSchema builds a schema from a field list, for callers that
// already hold normalized rows.
func NewDetectedSchema(fields ...Field) DetectedSchema {
	s := DetectedSchema{columns: make(map[Field]int, len(fields))}
	for i, f := range fields {
		s.columns[f] = i
	}
	if _, ok := s.columns[FieldProduct]; !ok {
		s.ProductSynthesized = true
	}
	return s
}

// NormalizedTable is the output of Normalize.
type NormalizedTable struct {
	Columns []string
	Schema  DetectedSchema
	Rows    []InventoryRow
	Issues  []DataQualityIssue
}

// Normalize trims headers, detects the schema and parses every data row.
// Product names are trimmed and lower-cased; when the product column is
// missing every row gets GenericProduct. A blank product cell leaves the
// product empty and is reported.
func Normalize(t Table) (*NormalizedTable, error) {
	if len(t.Header) == 0 {
		return nil, fmt.Errorf("%w: missing header row", ErrUnreadableInput)
	}

	columns := make([]string, len(t.Header))
	schema := DetectedSchema{columns: make(map[Field]int)}
	nonEmpty := 0
	for i, h := range t.Header {
		columns[i] = strings.TrimSpace(h)
		if columns[i] == "" {
			continue
		}
		nonEmpty++
		f, ok := fieldByColumnName[normalizeColumnName(columns[i])]
		if !ok {
			continue
		}
		if _, dup := schema.columns[f]; !dup {
			schema.columns[f] = i
		}
	}
	if nonEmpty == 0 {
		return nil, fmt.Errorf("%w: header row is empty", ErrUnreadableInput)
	}
	if _, ok := schema.columns[FieldProduct]; !ok {
		schema.ProductSynthesized = true
		columns = append(columns, recognizedColumns[0].header)
	}

	known := make(map[int]bool, len(schema.columns))
	for _, idx := range schema.columns {
		known[idx] = true
	}

	lower := cases.Lower(language.Und)
	out := &NormalizedTable{Columns: columns, Schema: schema}

	for i, record := range t.Rows {
		if isBlankRecord(record) {
			continue
		}
		rowNum := i + 1
		cell := func(f Field) (string, bool) {
			idx, ok := schema.columns[f]
			if !ok || idx >= len(record) {
				return "", false
			}
			v := strings.TrimSpace(record[idx])
			return v, v != ""
		}

		row := InventoryRow{Row: rowNum}
		if schema.ProductSynthesized {
			row.Product = lower.String(GenericProduct)
		} else if v, ok := cell(FieldProduct); ok {
			row.Product = lower.String(v)
		} else {
			out.Issues = append(out.Issues, DataQualityIssue{Row: rowNum, Field: FieldProduct, Kind: IssueMissingProduct})
		}

		if v, ok := cell(FieldDate); ok {
			if d, parsed := parseDate(v); parsed {
				row.Date = &d
			} else {
				out.Issues = append(out.Issues, DataQualityIssue{Row: rowNum, Field: FieldDate, Kind: IssueUnparsableDate, Value: v})
			}
		}

		for _, f := range numericFields {
			v, ok := cell(f)
			if !ok {
				continue
			}
			n, parsed := parseNumber(v)
			if !parsed {
				out.Issues = append(out.Issues, DataQualityIssue{Row: rowNum, Field: f, Kind: IssueInvalidNumber, Value: v})
				continue
			}
			row.setNumber(f, n)
		}

		for idx, v := range record {
			if known[idx] || idx >= len(t.Header) || columns[idx] == "" {
				continue
			}
			if row.Extra == nil {
				row.Extra = make(map[string]string)
			}
			row.Extra[columns[idx]] = strings.TrimSpace(v)
		}

		out.Rows = append(out.Rows, row)
	}

	sort.SliceStable(out.Issues, func(i, j int) bool { return out.Issues[i].Row < out.Issues[j].Row })
	return out, nil
}

func (r *InventoryRow) setNumber(f Field, v float64) {
	switch f {
	case FieldSales:
		r.Sales = floatPtr(v)
	case FieldExpenses:
		r.Expenses = floatPtr(v)
	case FieldEndingStock:
		r.EndingStock = floatPtr(v)
	case FieldTotalSales:
		r.TotalSales = floatPtr(v)
	case FieldElapsedDays:
		r.ElapsedDays = floatPtr(v)
	case FieldLeadTime:
		r.LeadTime = floatPtr(v)
	}
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// FieldForColumn maps an upload header to its recognized field.
func FieldForColumn(name string) (Field, bool) {
	f, ok := fieldByColumnName[normalizeColumnName(name)]
	return f, ok
}

// MetricHeaders are the columns appended to the processed table.
var MetricHeaders = []string{"Demanda diaria", "Stock mínimo", "Stock seguridad", "Stock máximo"}
