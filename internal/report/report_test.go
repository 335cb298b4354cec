package report

import (
	"testing"
	"time"

	"gastos/internal/core"

	"github.com/shopspring/decimal"
)

var may = core.Month{Year: 2025, Month: time.May}

func income(amount string) core.Transaction {
	return core.Transaction{Date: core.NewDate(2025, 5, 1), Kind: core.Income, Category: "Salary", Amount: decimal.RequireFromString(amount)}
}

func expense(amount, category string, method core.Method) core.Transaction {
	return core.Transaction{Date: core.NewDate(2025, 5, 1), Kind: core.Expense, Category: category, Amount: decimal.RequireFromString(amount), Method: method}
}

func TestCompute_Totals(t *testing.T) {
	tests := []struct {
		name    string
		table   core.Table
		income  string
		expense string
		balance string
		status  Status
	}{
		{"empty", nil, "0", "0", "0", Zero},
		{"positive", core.Table{income("10"), expense("4", "Food", core.Credit)}, "10", "4", "6", Positive},
		{"negative", core.Table{income("1"), expense("4", "Food", core.Credit)}, "1", "4", "-3", Negative},
		{"exact zero with cents", core.Table{income("0.3"), expense("0.1", "Food", core.Credit), expense("0.2", "Food", core.InstantTransfer)}, "0.3", "0.3", "0", Zero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Compute(may, tt.table)
			if !s.TotalIncome.Equal(decimal.RequireFromString(tt.income)) {
				t.Errorf("income = %s, want %s", s.TotalIncome, tt.income)
			}
			if !s.TotalExpense.Equal(decimal.RequireFromString(tt.expense)) {
				t.Errorf("expense = %s, want %s", s.TotalExpense, tt.expense)
			}
			if !s.Balance.Equal(decimal.RequireFromString(tt.balance)) {
				t.Errorf("balance = %s, want %s", s.Balance, tt.balance)
			}
			if s.Status != tt.status {
				t.Errorf("status = %s, want %s", s.Status, tt.status)
			}
		})
	}
}

func TestCompute_BalanceMatchesIndependentSum(t *testing.T) {
	table := core.Table{
		income("1200.10"), expense("13.37", "Food", core.Credit), income("0.01"),
		expense("99.99", "Health", core.InstantTransfer), expense("0.02", "Other", core.Credit),
	}
	want := decimal.Zero
	for _, tx := range table {
		if tx.Kind == core.Income {
			want = want.Add(tx.Amount)
		} else {
			want = want.Sub(tx.Amount)
		}
	}
	if got := Compute(may, table).Balance; !got.Equal(want) {
		t.Fatalf("balance = %s, want %s", got, want)
	}
}

func TestCompute_Aggregations(t *testing.T) {
	table := core.Table{
		income("500"),
		expense("30", "Transport", core.Credit),
		expense("10", "Food", core.InstantTransfer),
		expense("15", "Food", core.Credit),
		expense("5", "Health", core.InstantTransfer),
		expense("5", "Education", core.Credit),
	}
	s := Compute(may, table)

	wantCat := []string{"Education:5", "Health:5", "Food:25", "Transport:30"}
	if len(s.ByCategory) != len(wantCat) {
		t.Fatalf("by category = %+v", s.ByCategory)
	}
	for i, a := range s.ByCategory {
		if got := a.Name + ":" + a.Amount.String(); got != wantCat[i] {
			t.Errorf("category[%d] = %s, want %s", i, got, wantCat[i])
		}
	}

	wantMethod := []string{"Credit:50", "Instant Transfer:15"}
	if len(s.ByMethod) != len(wantMethod) {
		t.Fatalf("by method = %+v", s.ByMethod)
	}
	for i, a := range s.ByMethod {
		if got := a.Name + ":" + a.Amount.String(); got != wantMethod[i] {
			t.Errorf("method[%d] = %s, want %s", i, got, wantMethod[i])
		}
	}
}

func TestSummary(t *testing.T) {
	s := Compute(may, core.Table{income("10"), expense("4", "Food", core.Credit)})
	want := "Income: R$ 10.00\nExpenses: R$ 4.00\nBalance: R$ 6.00\nPositive balance"
	if got := s.Summary("R$"); got != want {
		t.Fatalf("summary:\n%s\nwant:\n%s", got, want)
	}

	neg := Compute(may, core.Table{expense("2.5", "Food", core.Credit)})
	if got := neg.Summary("R$"); got != "Income: R$ 0.00\nExpenses: R$ 2.50\nBalance: R$ -2.50\nNegative balance" {
		t.Fatalf("negative summary: %q", got)
	}
	if !Compute(may, nil).IsEmpty() {
		t.Fatalf("expected empty statement")
	}
}
