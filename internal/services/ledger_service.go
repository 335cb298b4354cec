package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gastos/internal/chart"
	"gastos/internal/core"
	"gastos/internal/ledger"
	"gastos/internal/log"
	"gastos/internal/report"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Operation names carried by change notifications.
const (
	OpRecordIncome      = "append_income"
	OpRecordExpense     = "append_expense"
	OpDeleteTransaction = "delete_transaction"
	OpClearMonth        = "clear_month"
)

// Notifier is told about every month rewritten by a mutation.
type Notifier interface {
	PublishMonthChanged(ctx context.Context, month, operation string) error
}

// LedgerService runs the ledger operations. Every mutation reads the whole
// month, changes it in memory and writes it back in full.
type LedgerService struct {
	ledger   ledger.Ledger
	now      func() time.Time
	notifier Notifier
	logger   *log.Logger
}

type Option func(*LedgerService)

// WithClock sets the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// WithNotifier publishes month-changed events after each mutation.
func WithNotifier(n Notifier) Option {
	return func(s *LedgerService) { s.notifier = n }
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = l.WithComponent(log.ComponentLedger) }
}

func NewLedgerService(l ledger.Ledger, opts ...Option) *LedgerService {
	s := &LedgerService{
		ledger: l,
		now:    time.Now,
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentMonth is the month all writes go to.
func (s *LedgerService) CurrentMonth() core.Month {
	return core.MonthOf(s.now())
}

// RecordIncome appends an income dated today to the current month.
func (s *LedgerService) RecordIncome(ctx context.Context, category string, amount decimal.Decimal) (core.Transaction, error) {
	tx := core.Transaction{
		Date:     core.DateOf(s.now()),
		Kind:     core.Income,
		Category: strings.TrimSpace(category),
		Amount:   amount,
	}
	if err := s.append(ctx, tx, OpRecordIncome); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// RecordExpense appends an expense dated today to the current month. The
// card is kept only for credit payments.
func (s *LedgerService) RecordExpense(ctx context.Context, amount decimal.Decimal, method core.Method, category, card string) (core.Transaction, error) {
	tx := core.Transaction{
		Date:     core.DateOf(s.now()),
		Kind:     core.Expense,
		Category: strings.TrimSpace(category),
		Amount:   amount,
		Method:   method,
	}
	if method == core.Credit {
		tx.Card = strings.TrimSpace(card)
	}
	if err := s.append(ctx, tx, OpRecordExpense); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (s *LedgerService) append(ctx context.Context, tx core.Transaction, op string) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	month := core.MonthOf(tx.Date.Time)
	t, err := s.ledger.Load(ctx, month)
	if err != nil {
		return fmt.Errorf("load month: %w", err)
	}
	t = append(t, tx)
	if err := s.ledger.Save(ctx, month, t); err != nil {
		return fmt.Errorf("save month: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction recorded", log.NewFields().
		WithOperation(op).
		WithMonth(month.String()).
		WithTransaction(string(tx.Kind), tx.Category, tx.Amount.StringFixed(2), string(tx.Method)).
		ToSlice()...)
	s.notify(ctx, month, op)
	return nil
}

// DeleteByPosition removes row index of the current month. Out of range
// positions return core.ErrInvalidIndex and nothing is written.
func (s *LedgerService) DeleteByPosition(ctx context.Context, index int) (core.Transaction, error) {
	month := s.CurrentMonth()
	t, err := s.ledger.Load(ctx, month)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load month: %w", err)
	}
	rest, removed, err := t.Remove(index)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.ledger.Save(ctx, month, rest); err != nil {
		return core.Transaction{}, fmt.Errorf("save month: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction deleted", log.NewFields().
		WithOperation(OpDeleteTransaction).
		WithMonth(month.String()).
		WithTransaction(string(removed.Kind), removed.Category, removed.Amount.StringFixed(2), string(removed.Method)).
		ToSlice()...)
	s.notify(ctx, month, OpDeleteTransaction)
	return removed, nil
}

// ClearMonth empties the current month, keeping its partition.
func (s *LedgerService) ClearMonth(ctx context.Context) error {
	month := s.CurrentMonth()
	if err := s.ledger.Save(ctx, month, core.Table{}); err != nil {
		return fmt.Errorf("save month: %w", err)
	}
	s.logger.InfoContext(ctx, "Month cleared", log.NewFields().
		WithOperation(OpClearMonth).
		WithMonth(month.String()).
		ToSlice()...)
	s.notify(ctx, month, OpClearMonth)
	return nil
}

// Table returns the current month's rows.
func (s *LedgerService) Table(ctx context.Context) (core.Table, error) {
	return s.TableForMonth(ctx, s.CurrentMonth())
}

func (s *LedgerService) TableForMonth(ctx context.Context, month core.Month) (core.Table, error) {
	t, err := s.ledger.Load(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("load month: %w", err)
	}
	return t, nil
}

// Statement computes the current month's statement and renders its charts.
func (s *LedgerService) Statement(ctx context.Context) (report.Report, error) {
	return s.ReportFor(ctx, s.CurrentMonth())
}

// StatementFor computes a month's statement without charts.
func (s *LedgerService) StatementFor(ctx context.Context, month core.Month) (report.Statement, error) {
	t, err := s.TableForMonth(ctx, month)
	if err != nil {
		return report.Statement{}, err
	}
	return report.Compute(month, t), nil
}

// ReportFor computes a month's statement and renders both charts
// concurrently. On failure the report is empty.
func (s *LedgerService) ReportFor(ctx context.Context, month core.Month) (report.Report, error) {
	st, err := s.StatementFor(ctx, month)
	if err != nil {
		return report.Report{}, err
	}

	var categoryPNG, methodPNG []byte
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := chart.Horizontal(report.CategoryChartTitle, st.ByCategory)
		categoryPNG = b
		return err
	})
	g.Go(func() error {
		b, err := chart.Vertical(report.MethodChartTitle, st.ByMethod)
		methodPNG = b
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Chart rendering failed", log.NewFields().
			WithOperation(log.OpRender).
			WithMonth(month.String()).
			WithError(err).
			ToSlice()...)
		return report.Report{}, fmt.Errorf("render charts: %w", err)
	}

	return report.Report{Statement: st, CategoryChart: categoryPNG, MethodChart: methodPNG}, nil
}

// Partitions lists the stored months when the ledger can enumerate them.
// The current month is always included.
func (s *LedgerService) Partitions(ctx context.Context) ([]core.Month, error) {
	current := s.CurrentMonth()
	lister, ok := s.ledger.(ledger.PartitionLister)
	if !ok {
		return []core.Month{current}, nil
	}
	months, err := lister.Partitions(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range months {
		if m == current {
			return months, nil
		}
	}
	months = append(months, current)
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months, nil
}

func (s *LedgerService) notify(ctx context.Context, month core.Month, op string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishMonthChanged(ctx, month.String(), op); err != nil {
		msg := "Failed to publish month change"
		if errors.Is(err, context.Canceled) {
			msg = "Month change not published, request cancelled"
		}
		s.logger.WarnContext(ctx, msg, log.NewFields().
			WithOperation(op).
			WithMonth(month.String()).
			WithError(err).
			ToSlice()...)
	}
}
