package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gastos/internal/core"
	"gastos/internal/ledger"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteRepository stores month partitions in a SQLite database. Each
// partition is a row of partitions; its transactions keep their position.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ ledger.Ledger          = (*SQLiteRepository)(nil)
	_ ledger.PartitionLister = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load returns the transactions of month ordered by position. The partition
// row is created when missing.
func (r *SQLiteRepository) Load(ctx context.Context, month core.Month) (core.Table, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO partitions (month) VALUES (?)`, month.String()); err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: fmt.Errorf("create partition: %w", err)}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT date, kind, category, amount, method, card
		   FROM transactions
		  WHERE month = ?
		  ORDER BY position`, month.String())
	if err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: fmt.Errorf("query transactions: %w", err)}
	}
	defer rows.Close()

	out := core.Table{}
	for rows.Next() {
		var date, kind, category, amount, method, card string
		if err := rows.Scan(&date, &kind, &category, &amount, &method, &card); err != nil {
			return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: fmt.Errorf("scan transaction: %w", err)}
		}
		tx, err := ledger.DecodeRecord([]string{date, kind, category, amount, method, card})
		if err != nil {
			return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: fmt.Errorf("row %d: %w", len(out)+1, err)}
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: err}
	}
	return out, nil
}

// Save replaces the transactions of month in a single database transaction.
func (r *SQLiteRepository) Save(ctx context.Context, month core.Month, t core.Table) (err error) {
	defer func() {
		if err != nil {
			err = &core.StorageError{Op: core.OpSave, Month: month, Err: err}
		}
	}()

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := dbtx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.WarnContext(ctx, "Rollback failed", "month", month.String(), "error", rbErr)
			}
		}
	}()

	key := month.String()
	if _, err = dbtx.ExecContext(ctx, `INSERT OR IGNORE INTO partitions (month) VALUES (?)`, key); err != nil {
		return fmt.Errorf("create partition: %w", err)
	}
	if _, err = dbtx.ExecContext(ctx, `DELETE FROM transactions WHERE month = ?`, key); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}

	stmt, err := dbtx.PrepareContext(ctx,
		`INSERT INTO transactions (month, position, date, kind, category, amount, method, card)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, tx := range t {
		if _, err = stmt.ExecContext(ctx, key, i,
			tx.Date.String(), string(tx.Kind), tx.Category,
			amountText(tx.Amount), string(tx.Method), tx.Card); err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}

	if err = dbtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Partition saved to SQLite", "month", key, "rows", len(t))
	return nil
}

// Partitions lists every stored month, oldest first.
func (r *SQLiteRepository) Partitions(ctx context.Context) ([]core.Month, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT month FROM partitions`)
	if err != nil {
		return nil, &core.StorageError{Op: core.OpList, Err: err}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &core.StorageError{Op: core.OpList, Err: err}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: core.OpList, Err: err}
	}
	return ledger.ParsePartitionNames(names), nil
}

// amounts are kept as exact decimal text
func amountText(d decimal.Decimal) string {
	return d.String()
}
