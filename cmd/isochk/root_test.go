package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isochk/isochk/internal/config"
)

func newNodesFlagCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("nodes", "", "")
	return cmd
}

func TestNodesOrConfigDefaultPrefersExplicitFlag(t *testing.T) {
	cmd := newNodesFlagCmd()
	require.NoError(t, cmd.Flags().Set("nodes", "host:1"))

	loadedCfg = config.Config{Nodes: []string{"cfg:1", "cfg:2"}}
	defer func() { loadedCfg = config.Config{} }()

	assert.Equal(t, "host:1", nodesOrConfigDefault(cmd, "host:1"))
}

func TestNodesOrConfigDefaultFallsBackToConfigNodes(t *testing.T) {
	cmd := newNodesFlagCmd()

	loadedCfg = config.Config{Nodes: []string{"cfg:1", "cfg:2"}}
	defer func() { loadedCfg = config.Config{} }()

	assert.Equal(t, "cfg:1,cfg:2", nodesOrConfigDefault(cmd, "flag-default"))
}

func TestNodesOrConfigDefaultReturnsFlagWhenConfigEmpty(t *testing.T) {
	cmd := newNodesFlagCmd()

	loadedCfg = config.Config{}
	defer func() { loadedCfg = config.Config{} }()

	assert.Equal(t, "flag-default", nodesOrConfigDefault(cmd, "flag-default"))
}
