package unitofwork

import (
	"context"
	"errors"
	"time"

	graphstate "github.com/goliatone/go-graphstate"
)

var (
	// ErrBackendRequired is returned by New without a backend.
	ErrBackendRequired = errors.New("unitofwork: backend is required")
	// ErrRowNotFound is returned by MemoryBackend when an update or delete
	// targets a row it does not hold.
	ErrRowNotFound = errors.New("unitofwork: row not found")
	// ErrDuplicateRow is returned by MemoryBackend when an insert reuses a key.
	ErrDuplicateRow = errors.New("unitofwork: duplicate row")
)

// WriteKind is the store operation derived from a tracking state.
type WriteKind string

const (
	WriteInsert WriteKind = "insert"
	WriteUpdate WriteKind = "update"
	WriteDelete WriteKind = "delete"
	WriteNone   WriteKind = "none"
)

// KindOf maps a tracking state to the write it requires.
func KindOf(state graphstate.State) WriteKind {
	switch state {
	case graphstate.Added:
		return WriteInsert
	case graphstate.Modified:
		return WriteUpdate
	case graphstate.Deleted:
		return WriteDelete
	default:
		return WriteNone
	}
}

// Write is one entity of a batch together with its store operation.
type Write struct {
	Kind      WriteKind
	Operation graphstate.Operation
	graphstate.Entry
}

// Batch is the set of writes committed together.
type Batch struct {
	ID        string
	UnitID    string
	Writes    []Write
	CreatedAt time.Time
}

// Count returns the number of writes of kind.
func (b Batch) Count(kind WriteKind) int {
	n := 0
	for _, write := range b.Writes {
		if write.Kind == kind {
			n++
		}
	}
	return n
}

// Receipt summarises an applied batch.
type Receipt struct {
	BatchID   string
	Inserted  int
	Updated   int
	Deleted   int
	Skipped   int
	AppliedAt time.Time
}

// Backend applies a batch atomically or not at all.
type Backend interface {
	Apply(ctx context.Context, batch Batch) (Receipt, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, batch Batch) (Receipt, error)

// Apply implements Backend.
func (fn BackendFunc) Apply(ctx context.Context, batch Batch) (Receipt, error) {
	return fn(ctx, batch)
}
