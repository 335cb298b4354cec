// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Form values are sanitized here so handlers only deal with domain types.

package http

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gastos/internal/core"

	"github.com/shopspring/decimal"
)

var errMissingCategory = errors.New("category is required")

// IncomeForm holds the parsed fields of POST /income.
type IncomeForm struct {
	Category string
	Amount   decimal.Decimal
}

// ExpenseForm holds the parsed fields of POST /expense.
type ExpenseForm struct {
	Amount   decimal.Decimal
	Method   core.Method
	Category string
	Card     string
}

// ParseIncomeForm validates the income form.
func ParseIncomeForm(form url.Values) (IncomeForm, error) {
	category := sanitizeInput(form.Get("category"))
	if category == "" {
		return IncomeForm{}, errMissingCategory
	}
	amount, err := core.ParseAmount(form.Get("amount"))
	if err != nil {
		return IncomeForm{}, err
	}
	return IncomeForm{Category: category, Amount: amount}, nil
}

// ParseExpenseForm validates the expense form. An empty or unknown method
// is rejected since every expense has one.
func ParseExpenseForm(form url.Values) (ExpenseForm, error) {
	amount, err := core.ParseAmount(form.Get("amount"))
	if err != nil {
		return ExpenseForm{}, err
	}
	method, err := core.ParseMethod(form.Get("method"))
	if err != nil {
		return ExpenseForm{}, err
	}
	if method == core.NoMethod {
		return ExpenseForm{}, fmt.Errorf("%w: method is required", core.ErrInvalidMethod)
	}
	category := sanitizeInput(form.Get("category"))
	if category == "" {
		return ExpenseForm{}, errMissingCategory
	}
	return ExpenseForm{
		Amount:   amount,
		Method:   method,
		Category: category,
		Card:     sanitizeInput(form.Get("card")),
	}, nil
}

// ParseIndex reads the row position of POST /delete. Whole-number floats
// such as "2.0" are accepted.
func ParseIndex(form url.Values) (int, error) {
	v := strings.TrimSpace(form.Get("index"))
	if v == "" {
		return 0, fmt.Errorf("%w: empty", core.ErrInvalidIndex)
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidIndex, v)
	}
	return int(f), nil
}

// ParseMonthQuery reads ?month=YYYY-MM, falling back to current when absent.
func ParseMonthQuery(query url.Values, current core.Month) (core.Month, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return current, nil
	}
	return core.ParseMonth(v)
}
