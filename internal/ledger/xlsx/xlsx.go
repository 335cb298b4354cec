// Package xlsx stores the ledger in a single spreadsheet workbook on disk,
// one sheet per month named YYYY-MM.
//
// The workbook is opened and closed on every call; nothing is held between
// calls and there is no locking. Writes go to a temporary file in the same
// directory that replaces the workbook only once it is complete.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gastos/internal/core"
	"gastos/internal/ledger"

	"github.com/xuri/excelize/v2"
)

// defaultSheet is the sheet excelize puts in a new workbook.
const defaultSheet = "Sheet1"

type Workbook struct {
	path string
}

// Ensure interface conformance
var (
	_ ledger.Ledger          = (*Workbook)(nil)
	_ ledger.PartitionLister = (*Workbook)(nil)
	_ ledger.Viewer          = (*Workbook)(nil)
)

func New(path string) *Workbook {
	return &Workbook{path: path}
}

// Path returns the workbook location.
func (w *Workbook) Path() string {
	return w.path
}

// Load returns the month's table. A missing workbook, a missing sheet or a
// sheet without even a header row is initialised empty and written back.
func (w *Workbook) Load(ctx context.Context, month core.Month) (core.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, fresh, err := w.open()
	if err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: err}
	}
	defer f.Close()

	sheet := month.String()
	rows, exists, err := readSheet(f, sheet)
	if err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: err}
	}
	if exists && len(rows) > 0 {
		t, err := ledger.DecodeTable(rows)
		if err != nil {
			return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: err}
		}
		return t, nil
	}

	slog.InfoContext(ctx, "Initializing month partition", "path", w.path, "sheet", sheet, "new_file", fresh)
	if err := writeSheet(f, sheet, fresh, nil); err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: err}
	}
	if err := w.commit(f); err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: err}
	}
	return core.Table{}, nil
}

// View reads the month's table and never writes the workbook. A missing
// workbook or sheet reads as an empty table.
func (w *Workbook) View(ctx context.Context, month core.Month) (core.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(w.path); errors.Is(err, os.ErrNotExist) {
		return core.Table{}, nil
	}
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer f.Close()

	rows, exists, err := readSheet(f, month.String())
	if err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: err}
	}
	if !exists || len(rows) == 0 {
		return core.Table{}, nil
	}
	t, err := ledger.DecodeTable(rows)
	if err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: err}
	}
	return t, nil
}

// Save overwrites the month's sheet with t. Other sheets are kept as they are.
func (w *Workbook) Save(ctx context.Context, month core.Month, t core.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, fresh, err := w.open()
	if err != nil {
		return &core.StorageError{Op: core.OpSave, Month: month, Err: err}
	}
	defer f.Close()

	if err := writeSheet(f, month.String(), fresh, t); err != nil {
		return &core.StorageError{Op: core.OpSave, Month: month, Err: err}
	}
	if err := w.commit(f); err != nil {
		return &core.StorageError{Op: core.OpSave, Month: month, Err: err}
	}
	return nil
}

// Partitions lists the month sheets of the workbook. A missing workbook has none.
func (w *Workbook) Partitions(ctx context.Context) ([]core.Month, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(w.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, &core.StorageError{Op: core.OpList, Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer f.Close()
	return ledger.ParsePartitionNames(f.GetSheetList()), nil
}

// open opens the workbook, or starts a new one in memory when the file does
// not exist yet. fresh reports the latter.
func (w *Workbook) open() (f *excelize.File, fresh bool, err error) {
	_, err = os.Stat(w.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return excelize.NewFile(), true, nil
	case err != nil:
		return nil, false, fmt.Errorf("stat workbook: %w", err)
	}
	f, err = excelize.OpenFile(w.path)
	if err != nil {
		return nil, false, fmt.Errorf("open workbook: %w", err)
	}
	return f, false, nil
}

// commit writes the workbook to a temporary file and renames it over the
// original, so a failed write leaves the previous content in place.
func (w *Workbook) commit(f *excelize.File) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create workbook directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close workbook: %w", err)
	}
	// CreateTemp opens with 0600; keep the mode of the file being replaced.
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(w.path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("chmod workbook: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		return fmt.Errorf("replace workbook: %w", err)
	}
	return nil
}

func readSheet(f *excelize.File, sheet string) (rows [][]string, exists bool, err error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, false, fmt.Errorf("sheet index %s: %w", sheet, err)
	}
	if idx == -1 {
		return nil, false, nil
	}
	rows, err = f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, true, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, true, nil
}

// writeSheet makes sure the sheet exists and replaces its rows with the
// header followed by t. Rows left over from a longer previous table are removed.
func writeSheet(f *excelize.File, sheet string, fresh bool, t core.Table) error {
	previous, err := ensureSheet(f, sheet, fresh)
	if err != nil {
		return err
	}
	for i, row := range ledger.Rows(t) {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, ref, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	// Bottom-up so the row numbers still to delete do not shift.
	for r := previous; r > len(t)+1; r-- {
		if err := f.RemoveRow(sheet, r); err != nil {
			return fmt.Errorf("remove row %d: %w", r, err)
		}
	}
	return nil
}

// ensureSheet creates the sheet if needed and returns how many rows it had.
// In a fresh workbook the default sheet is renamed rather than kept empty.
func ensureSheet(f *excelize.File, sheet string, fresh bool) (int, error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return 0, fmt.Errorf("sheet index %s: %w", sheet, err)
	}
	if idx != -1 {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return 0, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		return len(rows), nil
	}
	if list := f.GetSheetList(); fresh && len(list) == 1 && list[0] == defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return 0, fmt.Errorf("rename default sheet: %w", err)
		}
		return 0, nil
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return 0, fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	return 0, nil
}
