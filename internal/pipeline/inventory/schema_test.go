package inventory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_TrimsHeadersAndLowercasesProducts(t *testing.T) {
	table := Table{
		Header: []string{"  Nombre Producto ", "Fecha", " Ventas", "Notas"},
		Rows: [][]string{
			{"  Widget ", "2025-01-05", "10", "first"},
			{"GADGET", "01/20/2025", "5", ""},
		},
	}

	out, err := Normalize(table)
	require.NoError(t, err)

	assert.Equal(t, []string{"Nombre Producto", "Fecha", "Ventas", "Notas"}, out.Columns)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "widget", out.Rows[0].Product)
	assert.Equal(t, "gadget", out.Rows[1].Product)
	require.NotNil(t, out.Rows[1].Date)
	assert.Equal(t, "2025-01-20", out.Rows[1].Date.Format("2006-01-02"))
	assert.Equal(t, "first", out.Rows[0].Extra["Notas"])
	assert.False(t, out.Schema.ProductSynthesized)
	assert.Empty(t, out.Issues)
}

func TestNormalize_AliasesAreMatchedLoosely(t *testing.T) {
	table := Table{
		Header: []string{"producto", "DATE", "Sales Qty", "gastos", "stock", "Total Sales", "dias", "Tiempo de reposición"},
		Rows:   [][]string{{"a", "2025-02-01", "1", "2", "3", "4", "5", "6"}},
	}

	out, err := Normalize(table)
	require.NoError(t, err)

	for _, f := range []Field{FieldDate, FieldSales, FieldExpenses, FieldEndingStock, FieldTotalSales, FieldElapsedDays, FieldLeadTime} {
		assert.True(t, out.Schema.Has(f), "field %s", f)
	}
	assert.True(t, out.Schema.CanComputeMetrics())
	row := out.Rows[0]
	assert.Equal(t, 1.0, *row.Sales)
	assert.Equal(t, 2.0, *row.Expenses)
	assert.Equal(t, 3.0, *row.EndingStock)
	assert.Equal(t, 4.0, *row.TotalSales)
	assert.Equal(t, 5.0, *row.ElapsedDays)
	assert.Equal(t, 6.0, *row.LeadTime)
}

func TestNormalize_SynthesizesProduct(t *testing.T) {
	table := Table{
		Header: []string{"Ventas"},
		Rows:   [][]string{{"3"}, {"4"}},
	}

	out, err := Normalize(table)
	require.NoError(t, err)

	assert.True(t, out.Schema.ProductSynthesized)
	assert.Equal(t, []string{"Ventas", "Nombre Producto"}, out.Columns)
	for _, r := range out.Rows {
		assert.Equal(t, "producto genérico", r.Product)
	}
}

func TestNormalize_MissingOptionalColumnsAreNotErrors(t *testing.T) {
	out, err := Normalize(Table{Header: []string{"Nombre Producto"}, Rows: [][]string{{"x"}}})
	require.NoError(t, err)

	assert.Equal(t, []Field{FieldProduct}, out.Schema.Fields())
	assert.False(t, out.Schema.CanComputeMetrics())
	assert.Nil(t, out.Rows[0].Sales)
	assert.Nil(t, out.Rows[0].Date)
}

func TestNormalize_UnreadableInput(t *testing.T) {
	_, err := Normalize(Table{})
	assert.True(t, errors.Is(err, ErrUnreadableInput))

	_, err = Normalize(Table{Header: []string{" ", ""}})
	assert.True(t, errors.Is(err, ErrUnreadableInput))
}

func TestNormalize_RecordsDataQualityIssues(t *testing.T) {
	table := Table{
		Header: []string{"Nombre Producto", "Fecha", "Ventas"},
		Rows: [][]string{
			{"a", "not a date", "1"},
			{"", "", ""},
			{"b", "2025-03-01", "lots"},
		},
	}

	out, err := Normalize(table)
	require.NoError(t, err)

	require.Len(t, out.Rows, 2)
	assert.Equal(t, 3, out.Rows[1].Row)
	assert.Equal(t, []DataQualityIssue{
		{Row: 1, Field: FieldDate, Kind: IssueUnparsableDate, Value: "not a date"},
		{Row: 3, Field: FieldSales, Kind: IssueInvalidNumber, Value: "lots"},
	}, out.Issues)
}

func TestNormalize_BlankProductIsReported(t *testing.T) {
	table := Table{
		Header: []string{"Nombre Producto", "Ventas"},
		Rows: [][]string{
			{"Widget", "3"},
			{"  ", "8"},
		},
	}

	out, err := Normalize(table)
	require.NoError(t, err)

	require.Len(t, out.Rows, 2)
	assert.Empty(t, out.Rows[1].Product)
	assert.Equal(t, 8.0, *out.Rows[1].Sales)
	assert.Equal(t, []DataQualityIssue{{Row: 2, Field: FieldProduct, Kind: IssueMissingProduct}}, out.Issues)
}

func TestNormalize_ShortRecords(t *testing.T) {
	table := Table{
		Header: []string{"Nombre Producto", "Fecha", "Ventas"},
		Rows:   [][]string{{"a"}},
	}

	out, err := Normalize(table)
	require.NoError(t, err)

	require.Len(t, out.Rows, 1)
	assert.Nil(t, out.Rows[0].Date)
	assert.Nil(t, out.Rows[0].Sales)
}

func TestCanonicalHeaders(t *testing.T) {
	assert.Equal(t, []string{
		"Nombre Producto", "Fecha", "Ventas", "Gastos(compras)",
		"Stock Final", "Ventas Totales", "Días", "Tiempo_reposicion",
	}, CanonicalHeaders())
}
