package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipsync/zipsync/internal/syncerr"
)

func TestChunkCountAndOrder(t *testing.T) {
	tests := []struct {
		n, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{7, 1, 7},
		{3, 100, 1},
	}

	for _, tt := range tests {
		items := make([]int, tt.n)
		for i := range items {
			items[i] = i
		}
		chunks, err := Chunk(items, tt.size)
		require.NoError(t, err)
		assert.Len(t, chunks, tt.want, "n=%d size=%d", tt.n, tt.size)

		var flat []int
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), tt.size)
			assert.NotEmpty(t, c)
			flat = append(flat, c...)
		}
		if tt.n > 0 {
			assert.Equal(t, items, flat)
		}
	}
}

func TestChunkRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := Chunk([]string{"a"}, size)
		var cfg *syncerr.ConfigurationError
		require.ErrorAs(t, err, &cfg)
		assert.Equal(t, "sync.chunk_size", cfg.Key)
	}
}

func TestChunkCapacityIsCapped(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	chunks, err := Chunk(items, 2)
	require.NoError(t, err)

	_ = append(chunks[0], "x")
	assert.Equal(t, "c", chunks[1][0])
	assert.Equal(t, []string{"a", "b", "c", "d"}, items)
}

func TestDispatchStopsAtFirstError(t *testing.T) {
	ops := make([]Operation, 5)
	for i := range ops {
		ops[i] = Operation{Kind: OpAdd, CriterionID: string(rune('a' + i))}
	}
	boom := errors.New("boom")

	var seen []int
	outcomes, err := Dispatch(context.Background(), ops, 2, func(_ context.Context, index int, chunk []Operation) (MutationOutcome, error) {
		seen = append(seen, index)
		if index == 1 {
			return MutationOutcome{}, boom
		}
		return MutationOutcome{Success: true, Submitted: len(chunk), SuccessfulCount: len(chunk)}, nil
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []int{0, 1}, seen)
	require.Len(t, outcomes, 1)
	assert.Equal(t, 2, outcomes[0].Submitted)
}

func TestDispatchValidatesBeforeApplying(t *testing.T) {
	called := false
	_, err := Dispatch(context.Background(), []Operation{{Kind: OpAdd}}, 0, func(context.Context, int, []Operation) (MutationOutcome, error) {
		called = true
		return MutationOutcome{}, nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestDispatchHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Dispatch(ctx, []Operation{{Kind: OpAdd}}, 1, func(context.Context, int, []Operation) (MutationOutcome, error) {
		t.Fatal("apply called after cancel")
		return MutationOutcome{}, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
