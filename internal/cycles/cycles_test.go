package cycles_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isochk/isochk/internal/cycles"
	"github.com/isochk/isochk/internal/dsg"
	"github.com/isochk/isochk/internal/history"
	"github.com/isochk/isochk/internal/resolver"
)

func buildHistory(t *testing.T, fn func(b *history.Builder)) *history.History {
	t.Helper()
	b := history.NewBuilder()
	fn(b)
	h, err := b.Freeze()
	require.NoError(t, err)
	return h
}

// antiDependencyCycle builds the classic two-transaction anti-dependency
// history: T1 writes x then y; T2 reads x (T1's write, a WR edge T1->T2) and
// reads y's initial value, with T1's write to y becoming the immediate
// successor of T0's write in y's version order (an RW edge T2->T1).
func antiDependencyCycle(t *testing.T) *dsg.Graph {
	h := buildHistory(t, func(b *history.Builder) {
		_, err := b.AddInitialWrite("x", history.Of(0))
		require.NoError(t, err)
		_, err = b.AddInitialWrite("y", history.Of(0))
		require.NoError(t, err)

		require.NoError(t, b.BeginTx(1, history.Stamp{}))
		_, err = b.AddOp(1, history.Operation{Kind: history.OpWrite, Obj: "x", Value: history.Of(1)})
		require.NoError(t, err)
		_, err = b.AddOp(1, history.Operation{Kind: history.OpWrite, Obj: "y", Value: history.Of(1)})
		require.NoError(t, err)
		require.NoError(t, b.SetOutcome(1, history.Committed, history.Stamp{}))

		require.NoError(t, b.BeginTx(2, history.Stamp{}))
		_, err = b.AddOp(2, history.Operation{Kind: history.OpRead, Obj: "x", Value: history.Of(1)})
		require.NoError(t, err)
		_, err = b.AddOp(2, history.Operation{Kind: history.OpRead, Obj: "y", Value: history.Of(0)})
		require.NoError(t, err)
		require.NoError(t, b.SetOutcome(2, history.Committed, history.Stamp{}))
	})

	res := resolver.Resolve(h)
	g, warnings, err := dsg.Build(h, res)
	require.NoError(t, err)
	require.Empty(t, warnings)
	return g
}

func TestEnumerateFindsAntiDependencyCycle(t *testing.T) {
	g := antiDependencyCycle(t)
	found := cycles.Enumerate(g, 0)
	require.Len(t, found, 1)

	c := found[0]
	assert.Equal(t, []history.TxID{1, 2}, c.Txs)
	require.Len(t, c.Labels, 2)
	assert.True(t, c.Labels[0].Has(dsg.WR))
	assert.True(t, c.Labels[1].Has(dsg.RW))
}

func TestEnumerateCanonicalizesToSmallestTxFirst(t *testing.T) {
	g := antiDependencyCycle(t)
	found := cycles.Enumerate(g, 0)
	require.Len(t, found, 1)
	assert.Equal(t, history.TxID(1), found[0].Txs[0])
}

func TestEnumerateNoCyclesOnAcyclicGraph(t *testing.T) {
	h := buildHistory(t, func(b *history.Builder) {
		require.NoError(t, b.BeginTx(1, history.Stamp{}))
		_, err := b.AddOp(1, history.Operation{Kind: history.OpWrite, Obj: "x", Value: history.Of(1)})
		require.NoError(t, err)
		require.NoError(t, b.SetOutcome(1, history.Committed, history.Stamp{}))

		require.NoError(t, b.BeginTx(2, history.Stamp{}))
		_, err = b.AddOp(2, history.Operation{Kind: history.OpRead, Obj: "x", Value: history.Of(1)})
		require.NoError(t, err)
		require.NoError(t, b.SetOutcome(2, history.Committed, history.Stamp{}))
	})

	res := resolver.Resolve(h)
	g, _, err := dsg.Build(h, res)
	require.NoError(t, err)

	found := cycles.Enumerate(g, 0)
	assert.Empty(t, found)
}

func TestEnumerateRespectsMaxAnomaliesCap(t *testing.T) {
	g := antiDependencyCycle(t)
	found := cycles.Enumerate(g, 1)
	assert.Len(t, found, 1)
}
