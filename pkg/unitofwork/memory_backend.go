package unitofwork

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryBackend is an in-memory Backend intended for tests and examples. Rows
// are keyed by entity type and formatted key values. Entities whose key is
// not yet set are stored under their graph path.
type MemoryBackend struct {
	mu      sync.RWMutex
	rows    map[string]any
	batches []Batch
	now     func() time.Time
}

// NewMemoryBackend constructs an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{rows: map[string]any{}, now: time.Now}
}

// Seed stores entity as an existing row so updates and deletes can find it.
func (b *MemoryBackend) Seed(typeName string, keys []any, entity any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows[rowKey(typeName, keys, "")] = entity
}

// Apply validates every write against the stored rows and applies the batch
// only when all writes succeed.
func (b *MemoryBackend) Apply(ctx context.Context, batch Batch) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	staged := make(map[string]any, len(b.rows))
	for key, row := range b.rows {
		staged[key] = row
	}

	receipt := Receipt{BatchID: batch.ID}
	for _, write := range batch.Writes {
		key := rowKey(write.Type, write.Keys, write.Path)
		if !write.KeySet {
			key = rowKey(write.Type, nil, write.Path)
		}
		switch write.Kind {
		case WriteInsert:
			if _, exists := staged[key]; exists && write.KeySet {
				return Receipt{}, fmt.Errorf("%w: %s", ErrDuplicateRow, key)
			}
			staged[key] = write.Entity
			receipt.Inserted++
		case WriteUpdate:
			if _, exists := staged[key]; !exists {
				return Receipt{}, fmt.Errorf("%w: update %s", ErrRowNotFound, key)
			}
			staged[key] = write.Entity
			receipt.Updated++
		case WriteDelete:
			if _, exists := staged[key]; !exists {
				return Receipt{}, fmt.Errorf("%w: delete %s", ErrRowNotFound, key)
			}
			delete(staged, key)
			receipt.Deleted++
		default:
			receipt.Skipped++
		}
	}

	b.rows = staged
	b.batches = append(b.batches, cloneBatch(batch))
	receipt.AppliedAt = b.now()
	return receipt, nil
}

// Row returns the stored entity for typeName and keys.
func (b *MemoryBackend) Row(typeName string, keys ...any) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	row, ok := b.rows[rowKey(typeName, keys, "")]
	return row, ok
}

// Len returns the number of stored rows.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rows)
}

// Batches returns the applied batches in order.
func (b *MemoryBackend) Batches() []Batch {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Batch, 0, len(b.batches))
	for _, batch := range b.batches {
		out = append(out, cloneBatch(batch))
	}
	return out
}

func rowKey(typeName string, keys []any, path string) string {
	if len(keys) == 0 {
		return typeName + "@" + path
	}
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprint(key))
	}
	return typeName + "/" + strings.Join(parts, "/")
}

func cloneBatch(batch Batch) Batch {
	out := batch
	out.Writes = append([]Write(nil), batch.Writes...)
	return out
}
