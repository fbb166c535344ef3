package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline/inventory"
)

// ErrUnsupportedFormat is returned for uploads that are neither xlsx nor csv.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Read dispatches on the filename extension. Cell values are read raw, so
// date cells arrive as Excel serial numbers.
func Read(r io.Reader, filename string) (inventory.Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return readXLSX(r)
	case ".csv", ".txt":
		return readCSV(r)
	}
	return inventory.Table{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
}

func readXLSX(r io.Reader) (inventory.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return inventory.Table{}, fmt.Errorf("%w: %v", inventory.ErrUnreadableInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return inventory.Table{}, fmt.Errorf("%w: workbook has no sheets", inventory.ErrUnreadableInput)
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return inventory.Table{}, fmt.Errorf("%w: failed to read rows from sheet %s: %w", inventory.ErrUnreadableInput, sheet, err)
	}
	defer rows.Close()

	records, err := collectRows(rows)
	if err != nil {
		return inventory.Table{}, fmt.Errorf("sheet %s: %w", sheet, err)
	}
	return toTable(records), nil
}

// rowSource is the part of *excelize.Rows the reader walks.
type rowSource interface {
	Next() bool
	Columns(opts ...excelize.Options) ([]string, error)
	Error() error
}

func collectRows(rows rowSource) ([][]string, error) {
	var records [][]string
	for rows.Next() {
		record, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", inventory.ErrUnreadableInput, err)
		}
		records = append(records, record)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("%w: error iterating rows: %w", inventory.ErrUnreadableInput, err)
	}
	return records, nil
}

func readCSV(r io.Reader) (inventory.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return inventory.Table{}, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.Comma = sniffDelimiter(data)

	records, err := cr.ReadAll()
	if err != nil {
		return inventory.Table{}, fmt.Errorf("%w: %v", inventory.ErrUnreadableInput, err)
	}
	return toTable(records), nil
}

// sniffDelimiter picks ';' for spreadsheets exported with a comma decimal
// locale, ',' otherwise.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// toTable takes the first non-blank record as the header.
func toTable(records [][]string) inventory.Table {
	for i, rec := range records {
		if blank(rec) {
			continue
		}
		return inventory.Table{Header: rec, Rows: records[i+1:]}
	}
	return inventory.Table{}
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
