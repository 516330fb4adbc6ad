package uow

import (
	"context"
	"errors"
	"testing"

	"github.com/kirinyoku/venue-hold/internal/repository"
	"github.com/kirinyoku/venue-hold/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRunsHooksAfterCommit(t *testing.T) {
	t.Parallel()

	u := NewUoW(memory.NewStore())

	var calls []string
	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Tx, after func(AfterCommit)) error {
		after(func(context.Context) { calls = append(calls, "first") })
		after(func(context.Context) { calls = append(calls, "second") })
		calls = append(calls, "body")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"body", "first", "second"}, calls)
}

func TestDoSkipsHooksOnError(t *testing.T) {
	t.Parallel()

	u := NewUoW(memory.NewStore())
	boom := errors.New("boom")

	ran := false
	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Tx, after func(AfterCommit)) error {
		after(func(context.Context) { ran = true })
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.False(t, ran)
}
