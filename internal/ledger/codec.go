// Package ledger defines the storage ports of the monthly ledger and the row
// codec shared by the spreadsheet-shaped backends.
package ledger

import (
	"fmt"
	"sort"
	"strings"

	"gastos/internal/core"
)

// Header returns the header row of a partition.
func Header() []any {
	out := make([]any, len(core.Columns))
	for i, c := range core.Columns {
		out[i] = c
	}
	return out
}

// Record encodes a transaction as a row of cell values. The amount is a
// number so spreadsheets can compute on it.
func Record(tx core.Transaction) []any {
	return []any{
		tx.Date.String(),
		string(tx.Kind),
		tx.Category,
		tx.Amount.InexactFloat64(),
		string(tx.Method),
		tx.Card,
	}
}

// Rows encodes a table including its header row.
func Rows(t core.Table) [][]any {
	out := make([][]any, 0, len(t)+1)
	out = append(out, Header())
	for _, tx := range t {
		out = append(out, Record(tx))
	}
	return out
}

// CheckHeader verifies that row is exactly the partition schema.
func CheckHeader(row []string) error {
	if len(row) < len(core.Columns) {
		return fmt.Errorf("%w: header %v", core.ErrSchemaMismatch, row)
	}
	for i, c := range core.Columns {
		if !strings.EqualFold(strings.TrimSpace(row[i]), c) {
			return fmt.Errorf("%w: column %d is %q, want %q", core.ErrSchemaMismatch, i+1, row[i], c)
		}
	}
	for _, extra := range row[len(core.Columns):] {
		if strings.TrimSpace(extra) != "" {
			return fmt.Errorf("%w: unexpected column %q", core.ErrSchemaMismatch, extra)
		}
	}
	return nil
}

// DecodeTable decodes the rows of a partition, header first. Blank rows are
// skipped. Rows may be shorter than the schema; missing cells are empty.
func DecodeTable(rows [][]string) (core.Table, error) {
	if len(rows) == 0 {
		return core.Table{}, nil
	}
	if err := CheckHeader(rows[0]); err != nil {
		return nil, err
	}
	out := make(core.Table, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		tx, err := DecodeRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// DecodeRecord decodes one data row.
func DecodeRecord(row []string) (core.Transaction, error) {
	date, err := core.ParseDate(cell(row, 0))
	if err != nil {
		return core.Transaction{}, err
	}
	kind, err := core.ParseKind(cell(row, 1))
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseStoredAmount(cell(row, 3))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %q", err, cell(row, 3))
	}
	method, err := core.ParseMethod(cell(row, 4))
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		Date:     date,
		Kind:     kind,
		Category: cell(row, 2),
		Amount:   amount,
		Method:   method,
		Card:     cell(row, 5),
	}, nil
}

// ParsePartitionNames keeps the names that are months, sorted oldest first.
func ParsePartitionNames(names []string) []core.Month {
	var out []core.Month
	for _, n := range names {
		if m, err := core.ParseMonth(n); err == nil && m.String() == strings.TrimSpace(n) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
