// Package report computes the monthly statement: totals, balance, status
// and the expense breakdowns drawn as charts.
package report

import (
	"fmt"
	"sort"
	"strings"

	"gastos/internal/core"

	"github.com/shopspring/decimal"
)

// Status classifies the sign of the balance.
type Status string

const (
	Positive Status = "Positive"
	Zero     Status = "Zero"
	Negative Status = "Negative"
)

// Chart titles.
const (
	CategoryChartTitle = "Expenses by Category"
	MethodChartTitle   = "Expenses by Payment Method"
)

// Statement is the computed view of one month.
type Statement struct {
	Month        core.Month
	Transactions core.Table
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal
	Status       Status
	ByCategory   []core.Aggregate // ascending by amount
	ByMethod     []core.Aggregate // ascending by method name
}

// Report is a statement plus its two rendered charts (PNG).
type Report struct {
	Statement     Statement
	CategoryChart []byte
	MethodChart   []byte
}

// Compute builds the statement of month from its table.
func Compute(month core.Month, t core.Table) Statement {
	s := Statement{
		Month:        month,
		Transactions: t.Clone(),
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
	}

	byCategory := map[string]decimal.Decimal{}
	byMethod := map[string]decimal.Decimal{}
	for _, tx := range t {
		switch tx.Kind {
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case core.Expense:
			s.TotalExpense = s.TotalExpense.Add(tx.Amount)
			byCategory[tx.Category] = byCategory[tx.Category].Add(tx.Amount)
			byMethod[string(tx.Method)] = byMethod[string(tx.Method)].Add(tx.Amount)
		}
	}

	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	s.Status = StatusOf(s.Balance)

	s.ByCategory = aggregates(byCategory)
	sort.SliceStable(s.ByCategory, func(i, j int) bool {
		a, b := s.ByCategory[i], s.ByCategory[j]
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c < 0
		}
		return a.Name < b.Name
	})

	s.ByMethod = aggregates(byMethod)
	sort.SliceStable(s.ByMethod, func(i, j int) bool {
		return s.ByMethod[i].Name < s.ByMethod[j].Name
	})
	return s
}

// StatusOf compares the balance with zero exactly.
func StatusOf(balance decimal.Decimal) Status {
	switch balance.Sign() {
	case 1:
		return Positive
	case -1:
		return Negative
	default:
		return Zero
	}
}

// Summary renders the four-line text summary.
func (s Statement) Summary(currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Income: %s\n", core.FormatAmount(currency, s.TotalIncome))
	fmt.Fprintf(&b, "Expenses: %s\n", core.FormatAmount(currency, s.TotalExpense))
	fmt.Fprintf(&b, "Balance: %s\n", core.FormatAmount(currency, s.Balance))
	fmt.Fprintf(&b, "%s balance", s.Status)
	return b.String()
}

// IsEmpty reports whether the month has no transactions.
func (s Statement) IsEmpty() bool {
	return len(s.Transactions) == 0
}

func aggregates(m map[string]decimal.Decimal) []core.Aggregate {
	out := make([]core.Aggregate, 0, len(m))
	for name, amount := range m {
		out = append(out, core.Aggregate{Name: name, Amount: amount})
	}
	return out
}
