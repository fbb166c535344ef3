package inventory

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseBudget reads the declared monthly budget. Anything that is not a
// finite, non-negative number counts as 0.
func ParseBudget(raw string) float64 {
	v, ok := parseNumber(raw)
	if !ok || v < 0 {
		return 0
	}
	return v
}

// EvaluateBudget computes budget + sales - expenses and attaches a deficit
// alert when the balance is negative.
func EvaluateBudget(totalSales, totalExpenses, budget float64) BudgetOutcome {
	out := BudgetOutcome{
		TotalSales:    totalSales,
		TotalExpenses: totalExpenses,
		Budget:        budget,
	}

	if !isFinite(totalSales) || !isFinite(totalExpenses) || !isFinite(budget) {
		out.FinalBalance = budget + totalSales - totalExpenses
		if out.FinalBalance < 0 {
			out.Alert = deficitAlert(FormatCurrency(math.Abs(out.FinalBalance)))
		}
		return out
	}

	balance := decimal.NewFromFloat(budget).
		Add(decimal.NewFromFloat(totalSales)).
		Sub(decimal.NewFromFloat(totalExpenses))
	out.FinalBalance = balance.InexactFloat64()
	if balance.IsNegative() {
		out.Alert = deficitAlert(formatCurrencyDecimal(balance.Abs()))
	}
	return out
}

func deficitAlert(amount string) string {
	return fmt.Sprintf("Alerta: el balance final es negativo. Faltan %s para cubrir los gastos del periodo.", amount)
}

// HasDeficit reports whether an outcome carries a deficit alert.
func (b BudgetOutcome) HasDeficit() bool {
	return strings.TrimSpace(b.Alert) != ""
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
