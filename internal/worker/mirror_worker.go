package worker

import (
	"context"
	"errors"
	"fmt"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/ledger"
	"gastos/internal/log"
)

// MirrorWorker copies month partitions from the primary ledger to a mirror.
// It handles one month at a time.
type MirrorWorker struct {
	source ledger.Loader
	target ledger.Saver
	logger *log.Logger
}

func NewMirrorWorker(source ledger.Loader, target ledger.Saver, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		source: source,
		target: target,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMonthChanged mirrors the month named in msg. A returned error makes
// the consumer requeue the message.
func (w *MirrorWorker) HandleMonthChanged(ctx context.Context, msg *amqp.MonthChangedMessage) error {
	month, err := msg.ParsedMonth()
	if err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "Processing month changed message", log.NewFields().
		WithMonth(msg.Month).
		WithOperation(msg.Operation).
		ToSlice()...)
	return w.MirrorMonth(ctx, month)
}

// MirrorMonth overwrites the mirror's copy of month with the primary's.
// The primary is read through View when it has one, so the worker never
// writes to it.
func (w *MirrorWorker) MirrorMonth(ctx context.Context, month core.Month) error {
	t, err := w.read(ctx, month)
	if err != nil {
		return fmt.Errorf("load %s from primary: %w", month, err)
	}
	if err := w.target.Save(ctx, month, t); err != nil {
		return fmt.Errorf("save %s to mirror: %w", month, err)
	}
	w.logger.InfoContext(ctx, "Month mirrored", log.NewFields().
		WithOperation(log.OpMirror).
		WithMonth(month.String()).
		ToSlice()...,
	)
	return nil
}

func (w *MirrorWorker) read(ctx context.Context, month core.Month) (core.Table, error) {
	if v, ok := w.source.(ledger.Viewer); ok {
		return v.View(ctx, month)
	}
	return w.source.Load(ctx, month)
}

// StartupSync mirrors every month the primary knows about, to catch up on
// messages missed while the worker was down. Failures are collected and
// the remaining months are still attempted.
func (w *MirrorWorker) StartupSync(ctx context.Context) error {
	lister, ok := w.source.(ledger.PartitionLister)
	if !ok {
		w.logger.InfoContext(ctx, "Primary ledger cannot list months, skipping startup sync")
		return nil
	}
	months, err := lister.Partitions(ctx)
	if err != nil {
		return fmt.Errorf("list primary months: %w", err)
	}
	if len(months) == 0 {
		w.logger.InfoContext(ctx, "No months found on startup")
		return nil
	}

	var errs []error
	for _, m := range months {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.MirrorMonth(ctx, m); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror month on startup", log.NewFields().
				WithMonth(m.String()).
				WithError(err).
				ToSlice()...)
			errs = append(errs, err)
		}
	}

	w.logger.InfoContext(ctx, "Startup sync completed",
		"months", len(months),
		"errors", len(errs))
	return errors.Join(errs...)
}
