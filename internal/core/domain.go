package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "Income"
	Expense Kind = "Expense"

	NoMethod        Method = ""
	InstantTransfer Method = "Instant Transfer"
	Credit          Method = "Credit"
)

type (
	// Kind classifies a transaction as income or expense.
	Kind string

	// Method is the payment mechanism of an expense. Income has none.
	Method string

	Date struct {
		time.Time
	}

	Transaction struct {
		Date     Date
		Kind     Kind
		Category string
		Amount   decimal.Decimal
		Method   Method
		Card     string // only set when Method is Credit
	}

	// Table is the ordered list of one month's transactions.
	// The position in the slice is the only identifier of a row.
	Table []Transaction
)

// Columns is the fixed schema of every month partition, in order.
var Columns = []string{"Date", "Kind", "Category", "Amount", "Method", "Card"}

// IncomeCategories and ExpenseCategories are the choices offered to the user.
var (
	IncomeCategories  = []string{"Salary", "Other"}
	ExpenseCategories = []string{"Food", "Transport", "Leisure", "Education", "Health", "Other"}
	ExpenseMethods    = []Method{InstantTransfer, Credit}
)

var (
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidMonth   = errors.New("invalid month")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidKind    = errors.New("invalid kind")
	ErrInvalidMethod  = errors.New("invalid payment method")
	ErrInvalidIndex   = errors.New("invalid index")
	ErrSchemaMismatch = errors.New("partition schema mismatch")
)

const dateLayout = "2006-01-02"

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// ParseKind accepts the stored kind names, ignoring case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return Income, nil
	case "expense":
		return Expense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// ParseMethod accepts "", "Instant Transfer" and "Credit", ignoring case.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return NoMethod, nil
	case "instant transfer":
		return InstantTransfer, nil
	case "credit":
		return Credit, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	switch t.Kind {
	case Income:
		if t.Method != NoMethod {
			return fmt.Errorf("%w: income has no payment method", ErrInvalidMethod)
		}
	case Expense:
		if t.Method != InstantTransfer && t.Method != Credit {
			return fmt.Errorf("%w: %q", ErrInvalidMethod, t.Method)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, t.Kind)
	}
	if t.Amount.IsNegative() || t.Amount.GreaterThanOrEqual(maxAmount) {
		return ErrInvalidAmount
	}
	if t.Card != "" && t.Method != Credit {
		return errors.New("card is only recorded for credit payments")
	}
	return nil
}

// Equal compares field by field; amounts are compared numerically.
func (t Transaction) Equal(o Transaction) bool {
	return t.Date.String() == o.Date.String() &&
		t.Kind == o.Kind &&
		t.Category == o.Category &&
		t.Amount.Equal(o.Amount) &&
		t.Method == o.Method &&
		t.Card == o.Card
}

// Clone returns a copy that shares no backing array with t.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	copy(out, t)
	return out
}

// Remove returns a new table without row i. Rows after i shift up by one.
func (t Table) Remove(i int) (Table, Transaction, error) {
	if i < 0 || i >= len(t) {
		return t, Transaction{}, fmt.Errorf("%w: %d (rows: %d)", ErrInvalidIndex, i, len(t))
	}
	removed := t[i]
	out := make(Table, 0, len(t)-1)
	out = append(out, t[:i]...)
	out = append(out, t[i+1:]...)
	return out, removed, nil
}

func (t Table) Equal(o Table) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if !t[i].Equal(o[i]) {
			return false
		}
	}
	return true
}
