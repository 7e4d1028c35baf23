package detector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isochk/isochk/internal/detector"
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

func TestDetectFindsG1aFromAbortedRead(t *testing.T) {
	h := buildHistory(t, func(b *history.Builder) {
		require.NoError(t, b.BeginTx(1, history.Stamp{}))
		_, err := b.AddOp(1, history.Operation{Kind: history.OpWrite, Obj: "x", Value: history.Of(9)})
		require.NoError(t, err)
		require.NoError(t, b.SetOutcome(1, history.Aborted, history.Stamp{}))

		require.NoError(t, b.BeginTx(2, history.Stamp{}))
		_, err = b.AddOp(2, history.Operation{Kind: history.OpRead, Obj: "x", Value: history.Of(9)})
		require.NoError(t, err)
		require.NoError(t, b.SetOutcome(2, history.Committed, history.Stamp{}))
	})

	findings := detector.Detect(resolver.Resolve(h))
	require.Len(t, findings, 1)
	assert.Equal(t, detector.G1a, findings[0].Kind)
	assert.Equal(t, history.OpRef{Tx: 2, Seq: 0}, findings[0].Read)
	assert.Equal(t, history.OpRef{Tx: 1, Seq: 0}, findings[0].Write)
}

func TestDetectFindsG1bFromIntermediateRead(t *testing.T) {
	h := buildHistory(t, func(b *history.Builder) {
		require.NoError(t, b.BeginTx(1, history.Stamp{}))
		_, err := b.AddOp(1, history.Operation{Kind: history.OpWrite, Obj: "x", Value: history.Of(1)})
		require.NoError(t, err)
		_, err = b.AddOp(1, history.Operation{Kind: history.OpWrite, Obj: "x", Value: history.Of(2)})
		require.NoError(t, err)
		require.NoError(t, b.SetOutcome(1, history.Committed, history.Stamp{}))

		require.NoError(t, b.BeginTx(2, history.Stamp{}))
		_, err = b.AddOp(2, history.Operation{Kind: history.OpRead, Obj: "x", Value: history.Of(1)})
		require.NoError(t, err)
		require.NoError(t, b.SetOutcome(2, history.Committed, history.Stamp{}))
	})

	findings := detector.Detect(resolver.Resolve(h))
	require.Len(t, findings, 1)
	assert.Equal(t, detector.G1b, findings[0].Kind)
}

func TestDetectIgnoresCleanReads(t *testing.T) {
	h := buildHistory(t, func(b *history.Builder) {
		_, err := b.AddInitialWrite("x", history.Of(0))
		require.NoError(t, err)
		require.NoError(t, b.BeginTx(1, history.Stamp{}))
		_, err = b.AddOp(1, history.Operation{Kind: history.OpRead, Obj: "x", Value: history.Of(0)})
		require.NoError(t, err)
		require.NoError(t, b.SetOutcome(1, history.Committed, history.Stamp{}))
	})

	findings := detector.Detect(resolver.Resolve(h))
	assert.Empty(t, findings)
}

func TestDetectOrdersByReaderThenSeq(t *testing.T) {
	h := buildHistory(t, func(b *history.Builder) {
		require.NoError(t, b.BeginTx(1, history.Stamp{}))
		_, err := b.AddOp(1, history.Operation{Kind: history.OpWrite, Obj: "x", Value: history.Of(9)})
		require.NoError(t, err)
		require.NoError(t, b.SetOutcome(1, history.Aborted, history.Stamp{}))

		require.NoError(t, b.BeginTx(2, history.Stamp{}))
		_, err = b.AddOp(2, history.Operation{Kind: history.OpRead, Obj: "x", Value: history.Of(9)})
		require.NoError(t, err)
		require.NoError(t, b.SetOutcome(2, history.Committed, history.Stamp{}))

		require.NoError(t, b.BeginTx(3, history.Stamp{}))
		_, err = b.AddOp(3, history.Operation{Kind: history.OpRead, Obj: "x", Value: history.Of(9)})
		require.NoError(t, err)
		require.NoError(t, b.SetOutcome(3, history.Committed, history.Stamp{}))
	})

	findings := detector.Detect(resolver.Resolve(h))
	require.Len(t, findings, 2)
	assert.Equal(t, history.TxID(2), findings[0].Read.Tx)
	assert.Equal(t, history.TxID(3), findings[1].Read.Tx)
}
