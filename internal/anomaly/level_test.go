package anomaly_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isochk/isochk/internal/anomaly"
)

func TestParseLevelAcceptsCommonSpellings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  anomaly.Level
	}{
		{name: "canonical spaced", input: "READ COMMITTED", want: anomaly.ReadCommitted},
		{name: "sql underscore", input: "repeatable_read", want: anomaly.RepeatableRead},
		{name: "no separators", input: "SNAPSHOTISOLATION", want: anomaly.SnapshotIsolation},
		{name: "snapshot alias", input: "snapshot", want: anomaly.SnapshotIsolation},
		{name: "serializable", input: "Serializable", want: anomaly.Serializable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := anomaly.ParseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	_, err := anomaly.ParseLevel("BOGUS")
	assert.Error(t, err)
}

func TestForbidsIsMonotonicByLevel(t *testing.T) {
	// Every anomaly READ COMMITTED forbids, SERIALIZABLE also forbids.
	rc := anomaly.ReadCommitted.Forbids()
	ser := anomaly.Serializable.Forbids()
	for k, forbidden := range rc {
		if forbidden {
			assert.True(t, ser[k], "SERIALIZABLE should also forbid %s", k)
		}
	}
}

func TestForbidsPerLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   anomaly.Level
		forbids []anomaly.Kind
		allows  []anomaly.Kind
	}{
		{
			name:    "read uncommitted forbids only G0",
			level:   anomaly.ReadUncommitted,
			forbids: []anomaly.Kind{anomaly.G0},
			allows:  []anomaly.Kind{anomaly.G1a, anomaly.G1b, anomaly.GSingle, anomaly.G2},
		},
		{
			name:    "snapshot isolation forbids g-single but not g2-item",
			level:   anomaly.SnapshotIsolation,
			forbids: []anomaly.Kind{anomaly.G0, anomaly.G1a, anomaly.G1b, anomaly.G1c, anomaly.GSingle},
			allows:  []anomaly.Kind{anomaly.G2Item, anomaly.G2},
		},
		{
			name:    "serializable forbids everything",
			level:   anomaly.Serializable,
			forbids: []anomaly.Kind{anomaly.G0, anomaly.G1a, anomaly.G1b, anomaly.G1c, anomaly.GSingle, anomaly.G2Item, anomaly.G2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forbidden := tt.level.Forbids()
			for _, k := range tt.forbids {
				assert.True(t, forbidden[k], "%s should be forbidden at %s", k, tt.level)
			}
			for _, k := range tt.allows {
				assert.False(t, forbidden[k], "%s should be allowed at %s", k, tt.level)
			}
		})
	}
}
