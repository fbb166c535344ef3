package inventory

import (
	"encoding/json"
	"fmt"
)

// DocumentName is the logical name of one output document.
type DocumentName string

const (
	DocProcessedTable      DocumentName = "processed_table"
	DocSalesByProductMonth DocumentName = "sales_by_product_month"
	DocExpensesByMonth     DocumentName = "expenses_by_month"
	DocStockSummary        DocumentName = "product_month_stock_summary"
	DocRunSummary          DocumentName = "run_summary"
)

// DocumentNames lists every document a run produces, in a fixed order.
var DocumentNames = []DocumentName{
	DocProcessedTable,
	DocSalesByProductMonth,
	DocExpensesByMonth,
	DocStockSummary,
	DocRunSummary,
}

// Documents holds the serialized form of each document.
type Documents map[DocumentName][]byte

// ProcessedTableDoc is the normalized table with metrics attached. Columns
// keeps the trimmed upload headers so the table can be rebuilt as a sheet.
type ProcessedTableDoc struct {
	Columns []string       `json:"columns"`
	Rows    []InventoryRow `json:"rows"`
}

// Bundle is the decoded form of a full document set.
type Bundle struct {
	ProcessedTable      ProcessedTableDoc
	SalesByProductMonth []SalesByProductMonth
	ExpensesByMonth     []ExpensesByMonth
	StockSummary        []ProductMonthSummary
	Summary             RunSummary
}

// Serialize encodes every document of a result. Each document stands on
// its own; none references another.
func Serialize(res *Result) (Documents, error) {
	processed := ProcessedTableDoc{Columns: res.Columns, Rows: res.Rows}
	if processed.Rows == nil {
		processed.Rows = []InventoryRow{}
	}

	values := map[DocumentName]any{
		DocProcessedTable:      processed,
		DocSalesByProductMonth: nonNil(res.Aggregates.SalesByProductMonth),
		DocExpensesByMonth:     nonNil(res.Aggregates.ExpensesByMonth),
		DocStockSummary:        nonNil(res.Aggregates.StockSummary),
		DocRunSummary:          res.Summary,
	}

	docs := make(Documents, len(values))
	for _, name := range DocumentNames {
		b, err := json.Marshal(values[name])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		docs[name] = b
	}
	return docs, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func DecodeProcessedTable(b []byte) (ProcessedTableDoc, error) {
	var doc ProcessedTableDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return doc, fmt.Errorf("decode %s: %w", DocProcessedTable, err)
	}
	return doc, nil
}

func DecodeSalesByProductMonth(b []byte) ([]SalesByProductMonth, error) {
	var out []SalesByProductMonth
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", DocSalesByProductMonth, err)
	}
	return out, nil
}

func DecodeExpensesByMonth(b []byte) ([]ExpensesByMonth, error) {
	var out []ExpensesByMonth
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", DocExpensesByMonth, err)
	}
	return out, nil
}

func DecodeStockSummary(b []byte) ([]ProductMonthSummary, error) {
	var out []ProductMonthSummary
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", DocStockSummary, err)
	}
	return out, nil
}

func DecodeRunSummary(b []byte) (RunSummary, error) {
	var out RunSummary
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", DocRunSummary, err)
	}
	return out, nil
}

// DecodeBundle decodes a full document set. A missing document is an error.
func DecodeBundle(docs Documents) (*Bundle, error) {
	for _, name := range DocumentNames {
		if _, ok := docs[name]; !ok {
			return nil, fmt.Errorf("document %s missing", name)
		}
	}

	var (
		b   Bundle
		err error
	)
	if b.ProcessedTable, err = DecodeProcessedTable(docs[DocProcessedTable]); err != nil {
		return nil, err
	}
	if b.SalesByProductMonth, err = DecodeSalesByProductMonth(docs[DocSalesByProductMonth]); err != nil {
		return nil, err
	}
	if b.ExpensesByMonth, err = DecodeExpensesByMonth(docs[DocExpensesByMonth]); err != nil {
		return nil, err
	}
	if b.StockSummary, err = DecodeStockSummary(docs[DocStockSummary]); err != nil {
		return nil, err
	}
	if b.Summary, err = DecodeRunSummary(docs[DocRunSummary]); err != nil {
		return nil, err
	}
	return &b, nil
}
