package sheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline/inventory"
)

const (
	processedSheet = "Inventario"
	templateSheet  = "Plantilla"
	dateLayout     = "2006-01-02"
)

// WriteProcessed renders the processed table as a workbook: the upload
// columns in their original order followed by the four metric columns.
func WriteProcessed(doc inventory.ProcessedTableDoc) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", processedSheet); err != nil {
		return nil, err
	}

	header := make([]any, 0, len(doc.Columns)+len(inventory.MetricHeaders))
	for _, c := range doc.Columns {
		header = append(header, c)
	}
	for _, c := range inventory.MetricHeaders {
		header = append(header, c)
	}
	if err := writeHeader(f, processedSheet, header); err != nil {
		return nil, err
	}

	fields := columnFields(doc.Columns)
	for i, row := range doc.Rows {
		values := make([]any, 0, len(header))
		for j, col := range doc.Columns {
			values = append(values, cellValue(row, col, fields[j]))
		}
		values = append(values,
			metricValue(row.Metrics.DailyDemand),
			metricValue(row.Metrics.MinimumStock),
			metricValue(row.Metrics.SafetyStock),
			metricValue(row.Metrics.MaximumStock),
		)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(processedSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row.Row, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTemplate renders an empty upload workbook with the canonical headers.
func WriteTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return nil, err
	}
	headers := inventory.CanonicalHeaders()
	row := make([]any, 0, len(headers))
	for _, h := range headers {
		row = append(row, h)
	}
	if err := writeHeader(f, templateSheet, row); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, header []any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	return f.SetColWidth(sheet, "A", lastCol, 18)
}

// columnFields resolves each column to a field. A field repeated in a later
// column is left unresolved so its raw value is read from Extra.
func columnFields(columns []string) []inventory.Field {
	out := make([]inventory.Field, len(columns))
	seen := make(map[inventory.Field]bool)
	for i, c := range columns {
		f, ok := inventory.FieldForColumn(c)
		if !ok || seen[f] {
			continue
		}
		seen[f] = true
		out[i] = f
	}
	return out
}

func cellValue(row inventory.InventoryRow, column string, field inventory.Field) any {
	switch field {
	case inventory.FieldProduct:
		return row.Product
	case inventory.FieldDate:
		if row.Date == nil {
			return nil
		}
		return row.Date.Format(dateLayout)
	case inventory.FieldSales:
		return number(row.Sales)
	case inventory.FieldExpenses:
		return number(row.Expenses)
	case inventory.FieldEndingStock:
		return number(row.EndingStock)
	case inventory.FieldTotalSales:
		return number(row.TotalSales)
	case inventory.FieldElapsedDays:
		return number(row.ElapsedDays)
	case inventory.FieldLeadTime:
		return number(row.LeadTime)
	}
	if v, ok := row.Extra[column]; ok {
		return v
	}
	return nil
}

func number(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func metricValue(m inventory.Metric) any {
	if !m.IsFinite() {
		return m.String()
	}
	return float64(m)
}
