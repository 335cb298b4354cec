package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gastos/internal/core"
	"gastos/internal/ledger/memory"
	"gastos/internal/report"

	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2025, time.May, 17, 14, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (n *recordingNotifier) PublishMonthChanged(_ context.Context, month, op string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, month+" "+op)
	return n.err
}

// failingLedger fails every Save after a successful Load.
type failingLedger struct {
	*memory.Store
	saves int
}

func (f *failingLedger) Save(context.Context, core.Month, core.Table) error {
	f.saves++
	return &core.StorageError{Op: core.OpSave, Err: errors.New("disk full")}
}

func newService(t *testing.T, opts ...Option) (*LedgerService, *memory.Store) {
	t.Helper()
	store := memory.New()
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewLedgerService(store, opts...), store
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecordIncome(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	tx, err := svc.RecordIncome(ctx, "Salary", amount("3000"))
	if err != nil {
		t.Fatalf("record income: %v", err)
	}
	want := core.Transaction{Date: core.NewDate(2025, 5, 17), Kind: core.Income, Category: "Salary", Amount: amount("3000")}
	if !tx.Equal(want) {
		t.Fatalf("returned %+v, want %+v", tx, want)
	}

	stored, _ := store.Load(ctx, core.Month{Year: 2025, Month: time.May})
	if len(stored) != 1 || !stored[0].Equal(want) {
		t.Fatalf("stored %+v", stored)
	}
}

func TestRecordExpense_Card(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		method   core.Method
		category string
		card     string
		wantCard string
	}{
		{"instant transfer drops card", "100", core.InstantTransfer, "Food", "IgnoredCard", ""},
		{"credit keeps card", "50", core.Credit, "Leisure", "CardX", "CardX"},
		{"credit without card", "5", core.Credit, "Other", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newService(t)
			ctx := context.Background()

			if _, err := svc.RecordExpense(ctx, amount(tt.amount), tt.method, tt.category, tt.card); err != nil {
				t.Fatalf("record expense: %v", err)
			}
			stored, _ := store.Load(ctx, svc.CurrentMonth())
			if len(stored) != 1 {
				t.Fatalf("stored %+v", stored)
			}
			got := stored[0]
			if got.Card != tt.wantCard || got.Method != tt.method || got.Category != tt.category || got.Kind != core.Expense {
				t.Fatalf("stored %+v", got)
			}
		})
	}
}

func TestRecordExpense_Invalid(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	if _, err := svc.RecordExpense(ctx, amount("10"), core.NoMethod, "Food", ""); !errors.Is(err, core.ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}
	if _, err := svc.RecordExpense(ctx, amount("-1"), core.Credit, "Food", ""); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	months, _ := store.Partitions(ctx)
	if len(months) != 0 {
		t.Fatalf("invalid input must not touch storage, got %v", months)
	}
}

func seed(t *testing.T, svc *LedgerService, n int) core.Table {
	t.Helper()
	ctx := context.Background()
	var out core.Table
	for i := 0; i < n; i++ {
		tx, err := svc.RecordExpense(ctx, decimal.NewFromInt(int64(i+1)), core.Credit, "Food", "")
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		out = append(out, tx)
	}
	return out
}

func TestDeleteByPosition(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	rows := seed(t, svc, 4)

	removed, err := svc.DeleteByPosition(ctx, 1)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !removed.Equal(rows[1]) {
		t.Fatalf("removed %+v, want %+v", removed, rows[1])
	}

	got, _ := store.Load(ctx, svc.CurrentMonth())
	want := core.Table{rows[0], rows[2], rows[3]}
	if !got.Equal(want) {
		t.Fatalf("remaining %+v, want %+v", got, want)
	}
}

func TestDeleteByPosition_OutOfRange(t *testing.T) {
	for _, idx := range []int{-1, 3, 100} {
		svc, store := newService(t)
		ctx := context.Background()
		rows := seed(t, svc, 3)

		if _, err := svc.DeleteByPosition(ctx, idx); !errors.Is(err, core.ErrInvalidIndex) {
			t.Fatalf("index %d: expected ErrInvalidIndex, got %v", idx, err)
		}
		got, _ := store.Load(ctx, svc.CurrentMonth())
		if !got.Equal(rows) {
			t.Fatalf("index %d: table changed to %+v", idx, got)
		}
	}
}

func TestDeleteByPosition_NoSaveOnInvalidIndex(t *testing.T) {
	fl := &failingLedger{Store: memory.New()}
	svc := NewLedgerService(fl, WithClock(clock))

	if _, err := svc.DeleteByPosition(context.Background(), 0); !errors.Is(err, core.ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
	if fl.saves != 0 {
		t.Fatalf("expected no save, got %d", fl.saves)
	}
}

func TestClearMonthThenStatement(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.RecordIncome(ctx, "Salary", amount("10")); err != nil {
		t.Fatal(err)
	}
	seed(t, svc, 2)

	if err := svc.ClearMonth(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	rep, err := svc.Statement(ctx)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	st := rep.Statement
	if !st.TotalIncome.IsZero() || !st.TotalExpense.IsZero() || !st.Balance.IsZero() || st.Status != report.Zero {
		t.Fatalf("unexpected statement %+v", st)
	}
	if len(st.Transactions) != 0 {
		t.Fatalf("expected no rows, got %d", len(st.Transactions))
	}
}

func TestStatement_RendersCharts(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.RecordIncome(ctx, "Salary", amount("10")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordExpense(ctx, amount("4"), core.InstantTransfer, "Food", ""); err != nil {
		t.Fatal(err)
	}

	rep, err := svc.Statement(ctx)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	pngMagic := []byte("\x89PNG\r\n\x1a\n")
	if !bytes.HasPrefix(rep.CategoryChart, pngMagic) || !bytes.HasPrefix(rep.MethodChart, pngMagic) {
		t.Fatalf("charts are not PNG images")
	}
	if got := rep.Statement.Summary("R$"); got != "Income: R$ 10.00\nExpenses: R$ 4.00\nBalance: R$ 6.00\nPositive balance" {
		t.Fatalf("summary %q", got)
	}
}

func TestStatement_StorageFailure(t *testing.T) {
	svc := NewLedgerService(brokenLoader{}, WithClock(clock))
	rep, err := svc.Statement(context.Background())
	var se *core.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if rep.CategoryChart != nil || rep.MethodChart != nil || len(rep.Statement.Transactions) != 0 {
		t.Fatalf("expected empty report, got %+v", rep)
	}
}

type brokenLoader struct{}

func (brokenLoader) Load(_ context.Context, m core.Month) (core.Table, error) {
	return nil, &core.StorageError{Op: core.OpLoad, Month: m, Err: errors.New("unreadable")}
}

func (brokenLoader) Save(context.Context, core.Month, core.Table) error { return nil }

func TestSaveFailureIsReported(t *testing.T) {
	fl := &failingLedger{Store: memory.New()}
	n := &recordingNotifier{}
	svc := NewLedgerService(fl, WithClock(clock), WithNotifier(n))

	_, err := svc.RecordIncome(context.Background(), "Salary", amount("1"))
	var se *core.StorageError
	if !errors.As(err, &se) || se.Op != core.OpSave {
		t.Fatalf("expected save StorageError, got %v", err)
	}
	if len(n.events) != 0 {
		t.Fatalf("failed mutation must not notify, got %v", n.events)
	}
}

func TestNotifications(t *testing.T) {
	n := &recordingNotifier{err: errors.New("broker down")}
	svc, _ := newService(t, WithNotifier(n))
	ctx := context.Background()

	if _, err := svc.RecordIncome(ctx, "Other", amount("1")); err != nil {
		t.Fatalf("publish failure must not fail the operation: %v", err)
	}
	if _, err := svc.RecordExpense(ctx, amount("1"), core.Credit, "Food", "X"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.DeleteByPosition(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.DeleteByPosition(ctx, 9); err == nil {
		t.Fatal("expected invalid index")
	}
	if err := svc.ClearMonth(ctx); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"2025-05 append_income",
		"2025-05 append_expense",
		"2025-05 delete_transaction",
		"2025-05 clear_month",
	}
	if len(n.events) != len(want) {
		t.Fatalf("events %v, want %v", n.events, want)
	}
	for i := range want {
		if n.events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, n.events[i], want[i])
		}
	}
}

func TestPartitionsIncludesCurrentMonth(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	_ = store.Save(ctx, core.Month{Year: 2025, Month: time.March}, nil)

	months, err := svc.Partitions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(months) != 2 || months[0].String() != "2025-03" || months[1].String() != "2025-05" {
		t.Fatalf("unexpected months %v", months)
	}

	other := NewLedgerService(brokenLoader{}, WithClock(clock))
	months, err = other.Partitions(ctx)
	if err != nil || len(months) != 1 || months[0].String() != "2025-05" {
		t.Fatalf("non-listing ledger: %v err=%v", months, err)
	}
}

func TestStatementForPastMonth(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	april := core.Month{Year: 2025, Month: time.April}
	_ = store.Save(ctx, april, core.Table{{Date: core.NewDate(2025, 4, 3), Kind: core.Expense, Category: "Health", Amount: amount("7"), Method: core.Credit}})

	st, err := svc.StatementFor(ctx, april)
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != report.Negative || !st.Balance.Equal(amount("-7")) {
		t.Fatalf("unexpected %+v", st)
	}
}
