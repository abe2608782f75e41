package reconcile

import (
	"context"

	"github.com/zipsync/zipsync/internal/syncerr"
)

// DefaultChunkSize bounds the operations sent in one mutate request.
const DefaultChunkSize = 10

// Chunk splits items into contiguous groups of at most size, preserving
// order. Each chunk has its capacity capped so appending to one cannot
// overwrite the next.
func Chunk[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, syncerr.Configf("sync.chunk_size", "must be greater than zero, got %d", size)
	}
	if len(items) == 0 {
		return nil, nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks, nil
}

// ApplyFunc submits one chunk. index is the chunk's position in the batch.
type ApplyFunc func(ctx context.Context, index int, chunk []Operation) (MutationOutcome, error)

// Dispatch submits ops chunk by chunk, in order, and returns one outcome per
// submitted chunk. It stops at the first chunk whose apply returns an error
// and reports the outcomes gathered so far with that error.
func Dispatch(ctx context.Context, ops []Operation, size int, apply ApplyFunc) ([]MutationOutcome, error) {
	chunks, err := Chunk(ops, size)
	if err != nil {
		return nil, err
	}
	outcomes := make([]MutationOutcome, 0, len(chunks))
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		out, err := apply(ctx, i, c)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}
