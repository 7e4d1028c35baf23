package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/isochk/isochk/internal/adapter"
	"github.com/isochk/isochk/internal/adapter/sqladapter"
	"github.com/isochk/isochk/internal/nemesis"
)

const defaultTable = "isochk_kv"

// dialNodes opens an adapter against the first reachable node in a
// comma-separated host:port list, in the order given.
func dialNodes(ctx context.Context, nodes string) (adapter.Adapter, error) {
	var lastErr error
	for _, node := range strings.Split(nodes, ",") {
		node = strings.TrimSpace(node)
		if node == "" {
			continue
		}
		dsn := fmt.Sprintf("root@tcp(%s)/isochk", node)
		db, err := sqladapter.Open(ctx, sqladapter.Config{Driver: "mysql", DSN: dsn, Table: defaultTable})
		if err == nil {
			return db, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no nodes supplied")
	}
	return nil, fmt.Errorf("isochk: dial nodes %q: %w", nodes, lastErr)
}

// resolveNemesis returns nemesis.NoopNemesis{} when schedulePath is empty,
// or a FileSchedule watching schedulePath otherwise.
func resolveNemesis(schedulePath string) (nemesis.Nemesis, error) {
	if schedulePath == "" {
		return nemesis.NoopNemesis{}, nil
	}
	return nemesis.NewFileSchedule(schedulePath, nemesis.NoopNemesis{}, logger())
}
