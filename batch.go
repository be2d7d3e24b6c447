package meshbatch

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gogpu/meshbatch/internal/parallel"
)

// Batch is a contiguous vertex range drawn with a single draw call.
type Batch struct {
	// Offset is the first vertex of the range.
	Offset int
	// NumVertex is the number of vertices in the range.
	NumVertex int
	// Key is the render-state key shared by every mesh in the batch.
	// It is zero when batching without a key.
	Key uint64
}

// KeyFunc returns the render-state key of a drawable. Drawables with equal
// keys can share a draw call.
type KeyFunc func(Drawable) uint64

// TextureKey is a KeyFunc that uses Keyed.BatchKey when available and 0
// otherwise.
func TextureKey(d Drawable) uint64 {
	if k, ok := d.(Keyed); ok {
		return k.BatchKey()
	}
	return 0
}

// BuildBatches lays items out back to back, writes each one at its vertex
// offset and groups the result into batches.
//
// With a nil key, items keep insertion order and form a single batch. With
// a key, items are stable-sorted by ascending key and a new batch starts
// whenever the key changes, so items with equal keys keep their relative
// order. Empty drawables are written but never start a batch.
//
// BuildBatches returns ErrEmptyBatch when items is empty.
func BuildBatches(items []Drawable, key KeyFunc) ([]Batch, error) {
	return buildBatches(items, key, nil)
}

// placement is a drawable with its key and assigned vertex offset.
type placement struct {
	d      Drawable
	key    uint64
	offset int
}

// buildBatches is BuildBatches with optional parallel insertion. Offsets
// are assigned before anything is written, so concurrent inserts touch
// disjoint vertex ranges.
func buildBatches(items []Drawable, key KeyFunc, pool *parallel.WorkerPool) ([]Batch, error) {
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}

	order := make([]placement, len(items))
	for i, d := range items {
		order[i].d = d
		if key != nil {
			order[i].key = key(d)
		}
	}
	if key != nil {
		slices.SortStableFunc(order, func(a, b placement) int {
			return cmp.Compare(a.key, b.key)
		})
	}

	var batches []Batch
	offset := 0
	for i := range order {
		it := &order[i]
		it.offset = offset
		n := it.d.NumVertex()
		if n == 0 {
			continue
		}
		if len(batches) == 0 || batches[len(batches)-1].Key != it.key {
			batches = append(batches, Batch{Offset: offset, Key: it.key})
		}
		batches[len(batches)-1].NumVertex += n
		offset += n
	}

	insert := func(i int) error {
		it := &order[i]
		if err := it.d.Insert(it.offset); err != nil {
			return fmt.Errorf("insert mesh at vertex %d: %w", it.offset, err)
		}
		return nil
	}
	if pool != nil {
		if err := pool.Run(len(order), insert); err != nil {
			return nil, err
		}
		return batches, nil
	}
	for i := range order {
		if err := insert(i); err != nil {
			return nil, err
		}
	}
	return batches, nil
}
