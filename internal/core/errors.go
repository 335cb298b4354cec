package core

import "fmt"

// Storage operations reported in StorageError.Op.
const (
	OpLoad = "load"
	OpSave = "save"
	OpList = "list"
)

// StorageError reports a fault of the ledger storage for one month partition.
type StorageError struct {
	Op    string
	Month Month
	Err   error
}

func (e *StorageError) Error() string {
	if e.Month == (Month{}) {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Month, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
