package sqladapter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/isochk/isochk/internal/anomaly"
	"github.com/isochk/isochk/internal/history"
)

func TestIsolationSQLMapsSnapshotToRepeatableRead(t *testing.T) {
	tests := []struct {
		name  string
		level anomaly.Level
		want  string
	}{
		{name: "read uncommitted", level: anomaly.ReadUncommitted, want: "READ UNCOMMITTED"},
		{name: "read committed", level: anomaly.ReadCommitted, want: "READ COMMITTED"},
		{name: "repeatable read", level: anomaly.RepeatableRead, want: "REPEATABLE READ"},
		{name: "snapshot isolation falls back to repeatable read", level: anomaly.SnapshotIsolation, want: "REPEATABLE READ"},
		{name: "serializable", level: anomaly.Serializable, want: "SERIALIZABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := isolationSQL(tt.level)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareSQLMapsEveryOperator(t *testing.T) {
	tests := []struct {
		op   history.CompareOp
		want string
	}{
		{history.OpGT, ">"},
		{history.OpGE, ">="},
		{history.OpLT, "<"},
		{history.OpLE, "<="},
		{history.OpEQ, "="},
		{history.OpNE, "<>"},
	}
	for _, tt := range tests {
		got, err := compareSQL(tt.op)
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.True(t, isRetryableError(errOf("dial tcp: connection refused")))
	assert.True(t, isRetryableError(errOf("driver: bad connection")))
	assert.False(t, isRetryableError(errOf("syntax error near SELECT")))
}

type stringError string

func (e stringError) Error() string { return string(e) }

func errOf(s string) error { return stringError(s) }
