package storage

import (
	"context"
	"fmt"
)

// Store persists the whole state as one blob. Implementations do not need to
// understand the schema beyond "valid JSON for Data".
type Store interface {
	Load(ctx context.Context) (*Data, error)
	Save(ctx context.Context, d *Data) error
}

// PersistenceError wraps a failed load or save so callers can tell "saved"
// from "save failed" instead of the failure disappearing into a log line.
type PersistenceError struct {
	Op  string // "load" or "save"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
