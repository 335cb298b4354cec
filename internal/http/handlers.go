package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/report"

	"github.com/shopspring/decimal"
)

type chartKind string

const (
	chartCategory chartKind = "category"
	chartMethod   chartKind = "method"
)

func chartKey(month core.Month, kind chartKind) string {
	return month.String() + "/" + string(kind)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleReady checks templates and that the ledger answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if _, err := s.svc.Partitions(ctx); err != nil {
		checks["ledger"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["ledger"] = "ok"
	}

	checks["chart_cache"] = map[string]interface{}{"entries": s.charts.Size()}
	checks["rate_limiter"] = map[string]interface{}{"active_clients": s.rateLimiter.activeClients()}
	checks["security"] = s.metrics.snapshot()

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		MethodNotAllowedError("GET, HEAD").Write(w)
		return
	}
	logger := log.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	current := s.svc.CurrentMonth()
	months, err := s.svc.Partitions(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "Partition list error", log.NewFields().
			WithOperation(log.OpList).
			WithError(err).
			ToSlice()...)
		months = []core.Month{current}
	}
	names := make([]string, len(months))
	for i, m := range months {
		names[len(months)-1-i] = m.String() // newest first
	}

	data := struct {
		Month             string
		Months            []string
		Currency          string
		IncomeCategories  []string
		ExpenseCategories []string
		ExpenseMethods    []core.Method
	}{
		Month:             current.String(),
		Months:            names,
		Currency:          s.currency,
		IncomeCategories:  core.IncomeCategories,
		ExpenseCategories: core.ExpenseCategories,
		ExpenseMethods:    core.ExpenseMethods,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		logger.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleRecordIncome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Error: invalid request format").Write(w)
		return
	}
	form, err := ParseIncomeForm(r.PostForm)
	if err != nil {
		UnprocessableEntityError("Error: " + err.Error()).Write(w)
		return
	}

	s.mu.Lock()
	tx, err := s.svc.RecordIncome(r.Context(), form.Category, form.Amount)
	if err == nil {
		s.invalidateCharts(r.Context(), core.MonthOf(tx.Date.Time))
	}
	s.mu.Unlock()

	if err != nil {
		s.mutationError(w, r, "Income not recorded", "Error: ", err)
		return
	}
	SuccessResponse("Income recorded successfully!").
		TriggerLedgerChanged(core.MonthOf(tx.Date.Time).String()).
		TriggerFormReset().
		Write(w)
}

func (s *Server) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Error: invalid request format").Write(w)
		return
	}
	form, err := ParseExpenseForm(r.PostForm)
	if err != nil {
		UnprocessableEntityError("Error: " + err.Error()).Write(w)
		return
	}

	s.mu.Lock()
	tx, err := s.svc.RecordExpense(r.Context(), form.Amount, form.Method, form.Category, form.Card)
	if err == nil {
		s.invalidateCharts(r.Context(), core.MonthOf(tx.Date.Time))
	}
	s.mu.Unlock()

	if err != nil {
		s.mutationError(w, r, "Expense not recorded", "Error: ", err)
		return
	}
	SuccessResponse("Expense recorded successfully!").
		TriggerLedgerChanged(core.MonthOf(tx.Date.Time).String()).
		TriggerFormReset().
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Error deleting: invalid request format").Write(w)
		return
	}
	index, err := ParseIndex(r.PostForm)
	if err != nil {
		UnprocessableEntityError("Invalid index.").Write(w)
		return
	}

	s.mu.Lock()
	month := s.svc.CurrentMonth()
	_, err = s.svc.DeleteByPosition(r.Context(), index)
	if err == nil {
		s.invalidateCharts(r.Context(), month)
	}
	s.mu.Unlock()

	switch {
	case errors.Is(err, core.ErrInvalidIndex):
		UnprocessableEntityError("Invalid index.").Write(w)
	case err != nil:
		s.mutationError(w, r, "Delete failed", "Error deleting: ", err)
	default:
		SuccessResponse(fmt.Sprintf("Transaction at index %d deleted successfully!", index)).
			TriggerLedgerChanged(month.String()).
			Write(w)
	}
}

func (s *Server) handleClearMonth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}

	s.mu.Lock()
	month := s.svc.CurrentMonth()
	err := s.svc.ClearMonth(r.Context())
	if err == nil {
		s.invalidateCharts(r.Context(), month)
	}
	s.mu.Unlock()

	if err != nil {
		s.mutationError(w, r, "Clear month failed", "Error deleting all: ", err)
		return
	}
	SuccessResponse("All transactions for the month were deleted!").
		TriggerLedgerChanged(month.String()).
		Write(w)
}

type statementRow struct {
	Index    int
	Date     string
	Kind     core.Kind
	Category string
	Amount   decimal.Decimal
	Method   core.Method
	Card     string
}

// handleStatement renders the statement panel: table, summary and the two
// chart images for ?month= (default: current month).
func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError("GET").Write(w)
		return
	}
	logger := log.FromContext(r.Context())
	current := s.svc.CurrentMonth()
	month, err := ParseMonthQuery(r.URL.Query(), current)
	if err != nil {
		BadRequestError("Error: " + err.Error()).Write(w)
		return
	}

	st, err := s.svc.StatementFor(r.Context(), month)
	if err != nil {
		logger.ErrorContext(r.Context(), "Statement failed", log.NewFields().
			WithOperation(log.OpRead).
			WithMonth(month.String()).
			WithError(err).
			ToSlice()...)
		InternalServerError("Error loading statement: " + err.Error()).Write(w)
		return
	}
	if s.templates == nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(st.Summary(s.currency)))
		return
	}

	rows := make([]statementRow, len(st.Transactions))
	for i, tx := range st.Transactions {
		rows[i] = statementRow{
			Index:    i,
			Date:     tx.Date.String(),
			Kind:     tx.Kind,
			Category: tx.Category,
			Amount:   tx.Amount,
			Method:   tx.Method,
			Card:     tx.Card,
		}
	}
	data := struct {
		Month     string
		IsCurrent bool
		Empty     bool
		Rows      []statementRow
		Summary   []string
		Status    report.Status
	}{
		Month:     month.String(),
		IsCurrent: month == current,
		Empty:     st.IsEmpty(),
		Rows:      rows,
		Summary:   strings.Split(st.Summary(s.currency), "\n"),
		Status:    st.Status,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "statement.html", data); err != nil {
		logger.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "statement.html", "month", month.String())
		_, _ = w.Write([]byte(`<div class="error">Error rendering statement</div>`))
	}
}

// handleChart serves one of the two statement charts as PNG. Both charts
// of a month are rendered together and cached until the month changes.
func (s *Server) handleChart(kind chartKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			MethodNotAllowedError("GET").Write(w)
			return
		}
		month, err := ParseMonthQuery(r.URL.Query(), s.svc.CurrentMonth())
		if err != nil {
			BadRequestError("Error: " + err.Error()).Write(w)
			return
		}

		png, err := s.chart(r.Context(), month, kind)
		if err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Chart failed", log.NewFields().
				WithOperation(log.OpRender).
				WithMonth(month.String()).
				WithError(err).
				ToSlice()...)
			InternalServerError("Error rendering chart").Write(w)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}

func (s *Server) chart(ctx context.Context, month core.Month, kind chartKind) ([]byte, error) {
	key := chartKey(month, kind)
	if png, ok := s.charts.Get(key); ok {
		return png, nil
	}

	// Holding the mutation lock keeps a concurrent write from being
	// invalidated before the stale render is cached.
	s.mu.Lock()
	defer s.mu.Unlock()
	if png, ok := s.charts.Get(key); ok {
		return png, nil
	}

	rep, err := s.svc.ReportFor(ctx, month)
	if err != nil {
		return nil, err
	}
	s.charts.Set(chartKey(month, chartCategory), rep.CategoryChart)
	s.charts.Set(chartKey(month, chartMethod), rep.MethodChart)
	log.FromContext(ctx).DebugContext(ctx, "Charts cached", "month", month.String())

	if kind == chartCategory {
		return rep.CategoryChart, nil
	}
	return rep.MethodChart, nil
}

func (s *Server) invalidateCharts(ctx context.Context, month core.Month) {
	if n := s.charts.DeletePrefix(month.String() + "/"); n > 0 {
		log.FromContext(ctx).DebugContext(ctx, "Chart cache invalidated", "month", month.String(), "entries", n)
	}
}

// mutationError logs a failed write and renders prefix+err. Input errors
// get 422, everything else 500.
func (s *Server) mutationError(w http.ResponseWriter, r *http.Request, msg, prefix string, err error) {
	status := http.StatusInternalServerError
	if isInputError(err) {
		status = http.StatusUnprocessableEntity
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), msg, log.NewFields().
		WithError(err).
		ToSlice()...)
	ErrorResponse(status, prefix+err.Error()).Write(w)
}

func isInputError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount,
		core.ErrInvalidMethod,
		core.ErrInvalidKind,
		core.ErrInvalidDate,
		core.ErrInvalidIndex,
		errMissingCategory,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
