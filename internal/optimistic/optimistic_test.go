package optimistic

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cloneSlice(s []string) []string {
	return append([]string(nil), s...)
}

func TestRunCommitsAuthoritativeResult(t *testing.T) {
	r := New([]string{"a", "b"}, cloneSlice)

	got, err := r.Run(context.Background(),
		func(v []string) []string { return append(v, "c") },
		func(ctx context.Context, speculative []string) ([]string, error) {
			assert.Equal(t, []string{"a", "b", "c"}, speculative)
			// Server canonicalizes differently than the speculation.
			return []string{"a", "b", "C"}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "C"}, got)
	assert.Equal(t, []string{"a", "b", "C"}, r.Get())
}

func TestRunRevertsOnCommitFailure(t *testing.T) {
	r := New([]string{"a", "b"}, cloneSlice)

	var midFlight []string
	got, err := r.Run(context.Background(),
		func(v []string) []string { return append(v, "c") },
		func(ctx context.Context, speculative []string) ([]string, error) {
			midFlight = r.Get()
			return nil, eris.New("server rejected")
		})
	require.Error(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, midFlight, "speculative value visible while committing")
	assert.Equal(t, []string{"a", "b"}, got, "failure returns the snapshot")
	assert.Equal(t, []string{"a", "b"}, r.Get(), "value reverted")
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	r := New([]string{"a"}, cloneSlice)

	v := r.Get()
	v[0] = "mutated"
	assert.Equal(t, []string{"a"}, r.Get())
}

func TestSetReplacesValue(t *testing.T) {
	r := New([]string{"a"}, cloneSlice)
	r.Set([]string{"x", "y"})
	assert.Equal(t, []string{"x", "y"}, r.Get())
}
