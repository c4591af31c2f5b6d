package poll

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollStampsIncreasingSequence(t *testing.T) {
	calls := 0
	p := New("live", func(ctx context.Context) ([]string, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("boom")
		}
		return []string{"A"}, nil
	})

	first, err := p.Poll(context.Background())
	require.NoError(t, err)
	_, err = p.Poll(context.Background())
	require.Error(t, err)
	third, err := p.Poll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(3), third.Seq)
	assert.Equal(t, []string{"A"}, third.Value)
}

func TestTickSkipsApplyOnFailure(t *testing.T) {
	p := New("live", func(ctx context.Context) (int, error) { return 0, errors.New("offline") })
	applied := false
	p.Tick(context.Background(), func(Snapshot[int]) { applied = true })
	assert.False(t, applied)
}

func TestTickAppliesSuccess(t *testing.T) {
	p := New("live", func(ctx context.Context) (int, error) { return 42, nil })
	var got Snapshot[int]
	p.Tick(context.Background(), func(s Snapshot[int]) { got = s })
	assert.Equal(t, 42, got.Value)
	assert.Equal(t, uint64(1), got.Seq)
}

func TestSequencerDiscardsStaleCompletion(t *testing.T) {
	var s Sequencer
	// request 2 completes before request 1
	assert.True(t, s.Accept(2))
	assert.False(t, s.Accept(1))
	assert.False(t, s.Accept(2))
	assert.True(t, s.Accept(3))
	assert.Equal(t, uint64(3), s.Last())
}

// For any completion order, the accepted sequence numbers are strictly
// increasing and the newest request is always accepted.
func TestSequencerProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("accepted snapshots are strictly increasing", prop.ForAll(
		func(order []uint64) bool {
			var s Sequencer
			var last uint64
			for _, seq := range order {
				if s.Accept(seq) {
					if seq <= last {
						return false
					}
					last = seq
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt64Range(1, 50)),
	))

	properties.Property("max sequence is always applied", prop.ForAll(
		func(order []uint64) bool {
			if len(order) == 0 {
				return true
			}
			var s Sequencer
			var newest uint64
			for _, seq := range order {
				s.Accept(seq)
				if seq > newest {
					newest = seq
				}
			}
			return s.Last() == newest
		},
		gen.SliceOf(gen.UInt64Range(1, 50)),
	))

	properties.TestingRun(t)
}
