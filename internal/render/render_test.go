package render_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isochk/isochk/internal/anomaly"
	"github.com/isochk/isochk/internal/cycles"
	"github.com/isochk/isochk/internal/dsg"
	"github.com/isochk/isochk/internal/history"
	"github.com/isochk/isochk/internal/render"
)

func sampleCycle() cycles.Cycle {
	return cycles.Cycle{
		Txs:    []history.TxID{1, 2},
		Labels: []dsg.Labels{dsg.Labels(dsg.WR), dsg.Labels(dsg.RW)},
	}
}

func TestCycleDOTIncludesEveryParticipant(t *testing.T) {
	out := render.CycleDOT(sampleCycle())
	assert.Contains(t, out, "T1 [style=filled,fillcolor=lightpink];")
	assert.Contains(t, out, "T2 [style=filled,fillcolor=lightpink];")
	assert.Contains(t, out, `T1 -> T2 [label="wr",penwidth=2];`)
	assert.Contains(t, out, `T2 -> T1 [label="rw",penwidth=2];`)
}

func TestSummaryRendersCyclicEvidence(t *testing.T) {
	c := sampleCycle()
	ev := []anomaly.Evidence{{Kind: anomaly.GSingle, Cycle: &c}}
	lines := render.Summary(ev)
	assert.Equal(t, []string{"G-single: T1 -[wr]-> T2 -[rw]-> T1"}, lines)
}

func TestSummaryRendersNonCyclicEvidence(t *testing.T) {
	ev := []anomaly.Evidence{
		{Kind: anomaly.G1a, Read: history.OpRef{Tx: 2, Seq: 0}, Write: history.OpRef{Tx: 1, Seq: 0}},
	}
	lines := render.Summary(ev)
	assert.Equal(t, []string{"G1a: T2.0 observed write T1.0"}, lines)
}

func TestCountByKindTalliesAndOrdersByKind(t *testing.T) {
	ev := []anomaly.Evidence{
		{Kind: anomaly.G1a},
		{Kind: anomaly.G0},
		{Kind: anomaly.G1a},
	}
	counts := render.CountByKind(ev)
	require.Len(t, counts, 2)
	assert.Equal(t, anomaly.G0, counts[0].Kind)
	assert.Equal(t, 1, counts[0].Count)
	assert.Equal(t, anomaly.G1a, counts[1].Kind)
	assert.Equal(t, 2, counts[1].Count)
}
