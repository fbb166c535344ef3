package inventory

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "", "(", "", ")", "")

// normalizeColumnName folds a header for matching: lower case, no accents,
// no separators. "Días" and "dias" both become "dias".
func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return columnNameSanitizer.Replace(stripAccents(name))
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// parseNumber reads a numeric cell. Thousands commas and a leading currency
// sign are tolerated; blank cells and non-finite values report ok=false.
func parseNumber(raw string) (value float64, ok bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, false
	}
	v = strings.TrimPrefix(v, "$")
	v = strings.ReplaceAll(v, ",", "")
	v = strings.ReplaceAll(v, " ", "")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"1/2/2006",
	"1/2/06",
	"1-2-2006",
	"2006-01-02T15:04:05",
}

// Excel serial day numbers accepted as dates (1900-01-01 .. 9999-12-31).
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// parseDate accepts ISO dates, month-first slash dates and Excel serial
// day numbers. The time of day is dropped.
func parseDate(raw string) (Date, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return NewDate(t.Year(), t.Month(), t.Day()), true
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return NewDate(t.Year(), t.Month(), t.Day()), true
		}
	}
	return Date{}, false
}

// FormatCurrency renders an amount as "$1.234.567": dollar prefix, dot as
// thousands separator, rounded half to even to whole units. Non-finite
// amounts are rendered with their Metric spelling so they stay visible.
func FormatCurrency(v float64) string {
	if m := Metric(v); !m.IsFinite() {
		return m.String()
	}
	return formatCurrencyDecimal(decimal.NewFromFloat(v))
}

var amountPrinter = message.NewPrinter(language.Spanish)

func formatCurrencyDecimal(d decimal.Decimal) string {
	rounded := d.RoundBank(0)
	prefix := "$"
	if rounded.IsNegative() {
		prefix = "-$"
		rounded = rounded.Abs()
	}
	return prefix + amountPrinter.Sprintf("%d", rounded.IntPart())
}

func floatPtr(v float64) *float64 {
	return &v
}
