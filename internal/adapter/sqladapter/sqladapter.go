// Package sqladapter implements internal/adapter.Adapter over database/sql,
// against any driver registered with it. It is used with
// github.com/go-sql-driver/mysql for a real MySQL-protocol target and
// github.com/dolthub/driver for an embedded Dolt target.
package sqladapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/dolthub/driver"
	_ "github.com/go-sql-driver/mysql"

	"github.com/isochk/isochk/internal/adapter"
	"github.com/isochk/isochk/internal/anomaly"
	"github.com/isochk/isochk/internal/history"
)

const connectMaxElapsed = 30 * time.Second

// Config names the target table and connection parameters.
type Config struct {
	Driver string // "mysql" or "dolt"
	DSN    string
	Table  string // column layout: obj_key VARCHAR PRIMARY KEY, value BIGINT
}

// DB wraps a database/sql handle as an adapter.Adapter.
type DB struct {
	cfg Config
	db  *sql.DB
}

var _ adapter.Adapter = (*DB)(nil)

// Open dials cfg.DSN, retrying transient connection failures with an
// exponential backoff (mirroring the retry policy a server-mode SQL backend
// needs for brief network blips and server restarts).
func Open(ctx context.Context, cfg Config) (*DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqladapter: open %s: %w", cfg.Driver, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectMaxElapsed
	err = backoff.Retry(func() error {
		pingErr := db.PingContext(ctx)
		if pingErr != nil && !isRetryableError(pingErr) {
			return backoff.Permanent(pingErr)
		}
		return pingErr
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqladapter: connect %s: %w", cfg.Driver, err)
	}

	return &DB{cfg: cfg, db: db}, nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "driver: bad connection") ||
		strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "i/o timeout")
}

// Close closes the underlying pool.
func (d *DB) Close(_ context.Context) error { return d.db.Close() }

// Begin opens a native transaction at the isolation level level maps to.
// SNAPSHOT ISOLATION has no dedicated SQL keyword on MySQL/Dolt; it maps to
// REPEATABLE READ, which both backends implement with MVCC snapshot
// semantics close enough to trigger the same anomaly family (documented
// assumption, see DESIGN.md).
func (d *DB) Begin(ctx context.Context, level anomaly.Level) (adapter.Session, error) {
	sqlLevel, err := isolationSQL(level)
	if err != nil {
		return nil, err
	}
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqladapter: acquire connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "SET TRANSACTION ISOLATION LEVEL "+sqlLevel); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqladapter: set isolation level: %w", err)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqladapter: begin: %w", err)
	}
	return &sqlSession{conn: conn, tx: tx, table: d.cfg.Table}, nil
}

func isolationSQL(level anomaly.Level) (string, error) {
	switch level {
	case anomaly.ReadUncommitted:
		return "READ UNCOMMITTED", nil
	case anomaly.ReadCommitted:
		return "READ COMMITTED", nil
	case anomaly.RepeatableRead, anomaly.SnapshotIsolation:
		return "REPEATABLE READ", nil
	case anomaly.Serializable:
		return "SERIALIZABLE", nil
	default:
		return "", fmt.Errorf("sqladapter: unsupported isolation level %v", level)
	}
}

type sqlSession struct {
	conn  *sql.Conn
	tx    *sql.Tx
	table string
}

func (s *sqlSession) Execute(ctx context.Context, op history.OpKind, args adapter.OpArgs) (adapter.OpResult, error) {
	switch op {
	case history.OpRead:
		return s.read(ctx, args)
	case history.OpWrite:
		return adapter.OpResult{}, s.write(ctx, args)
	case history.OpPredicateRead:
		return s.predicateRead(ctx, args)
	case history.OpPredicateWrite:
		return s.predicateWrite(ctx, args)
	default:
		return adapter.OpResult{}, fmt.Errorf("sqladapter: unsupported op kind %v", op)
	}
}

func (s *sqlSession) read(ctx context.Context, args adapter.OpArgs) (adapter.OpResult, error) {
	var v int64
	q := fmt.Sprintf("SELECT value FROM %s WHERE obj_key = ?", s.table)
	err := s.tx.QueryRowContext(ctx, q, string(args.Obj)).Scan(&v)
	switch {
	case err == sql.ErrNoRows:
		return adapter.OpResult{Value: history.Absent}, nil
	case err != nil:
		return adapter.OpResult{}, fmt.Errorf("sqladapter: read %s: %w", args.Obj, err)
	default:
		return adapter.OpResult{Value: history.Of(v)}, nil
	}
}

func (s *sqlSession) write(ctx context.Context, args adapter.OpArgs) error {
	q := fmt.Sprintf(
		"INSERT INTO %s (obj_key, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)",
		s.table,
	)
	if _, err := s.tx.ExecContext(ctx, q, string(args.Obj), args.Value.Data); err != nil {
		return fmt.Errorf("sqladapter: write %s: %w", args.Obj, err)
	}
	return nil
}

func (s *sqlSession) predicateRead(ctx context.Context, args adapter.OpArgs) (adapter.OpResult, error) {
	cmp, err := compareSQL(args.Pred.Op)
	if err != nil {
		return adapter.OpResult{}, err
	}
	q := fmt.Sprintf("SELECT obj_key, value FROM %s WHERE value %s ?", s.table, cmp)
	rows, err := s.tx.QueryContext(ctx, q, args.Pred.Bound)
	if err != nil {
		return adapter.OpResult{}, fmt.Errorf("sqladapter: predicate read: %w", err)
	}
	defer rows.Close()

	var matched []history.Row
	for rows.Next() {
		var key string
		var v int64
		if err := rows.Scan(&key, &v); err != nil {
			return adapter.OpResult{}, fmt.Errorf("sqladapter: scan predicate row: %w", err)
		}
		matched = append(matched, history.Row{Obj: history.ObjKey(key), Value: history.Of(v)})
	}
	return adapter.OpResult{Matched: matched}, rows.Err()
}

func (s *sqlSession) predicateWrite(ctx context.Context, args adapter.OpArgs) (adapter.OpResult, error) {
	cmp, err := compareSQL(args.Pred.Op)
	if err != nil {
		return adapter.OpResult{}, err
	}
	selectQ := fmt.Sprintf("SELECT obj_key FROM %s WHERE value %s ?", s.table, cmp)
	rows, err := s.tx.QueryContext(ctx, selectQ, args.Pred.Bound)
	if err != nil {
		return adapter.OpResult{}, fmt.Errorf("sqladapter: predicate write scan: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return adapter.OpResult{}, fmt.Errorf("sqladapter: scan predicate write row: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return adapter.OpResult{}, err
	}

	updateQ := fmt.Sprintf("UPDATE %s SET value = ? WHERE obj_key = ?", s.table)
	var affected []history.Row
	for _, key := range keys {
		if _, err := s.tx.ExecContext(ctx, updateQ, args.Value.Data, key); err != nil {
			return adapter.OpResult{}, fmt.Errorf("sqladapter: predicate write update %s: %w", key, err)
		}
		affected = append(affected, history.Row{Obj: history.ObjKey(key), Value: args.Value})
	}
	return adapter.OpResult{Affected: affected}, nil
}

func compareSQL(op history.CompareOp) (string, error) {
	switch op {
	case history.OpGT:
		return ">", nil
	case history.OpGE:
		return ">=", nil
	case history.OpLT:
		return "<", nil
	case history.OpLE:
		return "<=", nil
	case history.OpEQ:
		return "=", nil
	case history.OpNE:
		return "<>", nil
	default:
		return "", fmt.Errorf("sqladapter: unknown compare op %v", op)
	}
}

func (s *sqlSession) Commit(_ context.Context) (history.Outcome, error) {
	defer s.conn.Close()
	if err := s.tx.Commit(); err != nil {
		return history.Aborted, nil
	}
	return history.Committed, nil
}

func (s *sqlSession) Rollback(_ context.Context) error {
	defer s.conn.Close()
	return s.tx.Rollback()
}
