package ledger

import (
	"context"

	"gastos/internal/core"
)

// Ports for outbound storage adapters.
type (
	// Loader returns the table of a month partition, creating the partition
	// (empty, with the fixed header) when it does not exist yet.
	Loader interface {
		Load(ctx context.Context, month core.Month) (core.Table, error)
	}

	// Saver replaces the whole content of a month partition. Other
	// partitions are left untouched.
	Saver interface {
		Save(ctx context.Context, month core.Month, t core.Table) error
	}

	Ledger interface {
		Loader
		Saver
	}

	// Viewer returns the table of a month partition without creating or
	// rewriting anything. A missing partition reads as an empty table.
	Viewer interface {
		View(ctx context.Context, month core.Month) (core.Table, error)
	}

	// PartitionLister lists the months that have a partition, oldest first.
	PartitionLister interface {
		Partitions(ctx context.Context) ([]core.Month, error)
	}
)
