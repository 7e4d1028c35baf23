package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/isochk/isochk/internal/anomaly"
	"github.com/isochk/isochk/internal/generator"
	"github.com/isochk/isochk/internal/render"
)

var (
	tiTxCount         int
	tiObjects         int
	tiNodes           string
	tiMaxAnomalies    int
	tiNemesisSchedule string
)

var testIsolationCmd = &cobra.Command{
	Use:   "test-isolation <isolation>",
	Short: "Generate a workload and check it in one step",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		level, err := anomaly.ParseLevel(args[0])
		if err != nil {
			fatalf("isochk: %v", err)
		}

		ctx := context.Background()
		shutdown, err := generator.InitTelemetry(ctx)
		if err != nil {
			fatalf("isochk: telemetry: %v", err)
		}
		defer shutdown(ctx)

		ad, err := dialNodes(ctx, nodesOrConfigDefault(cmd, tiNodes))
		if err != nil {
			fatalf("isochk: %v", err)
		}
		defer ad.Close(ctx)

		nem, err := resolveNemesis(tiNemesisSchedule)
		if err != nil {
			fatalf("isochk: %v", err)
		}

		gen := &generator.Generator{Adapter: ad, Nemesis: nem, Log: logger()}
		h, err := gen.Run(ctx, generator.Config{TxCount: tiTxCount, ObjectCount: tiObjects, Level: level})
		if err != nil {
			fatalf("isochk: generate: %v", err)
		}

		report, warnings := runCheck(h, level, tiMaxAnomalies)
		for _, w := range warnings {
			fmt.Fprintln(os.Stderr, warnStyle.Render(w))
		}
		for _, line := range render.Summary(report.Anomalies) {
			fmt.Println(line)
		}
		if len(report.Anomalies) == 0 {
			fmt.Println(mutedStyle.Render(fmt.Sprintf("no anomalies found at %s", boldStyle.Render(level.String()))))
		}
	},
}

func init() {
	testIsolationCmd.Flags().IntVarP(&tiTxCount, "tx-count", "t", 100, "number of transactions to generate")
	testIsolationCmd.Flags().IntVarP(&tiObjects, "objects", "n", 10, "number of distinct objects")
	testIsolationCmd.Flags().StringVar(&tiNodes, "nodes", "127.0.0.1:3306", "comma-separated host:port list")
	testIsolationCmd.Flags().IntVarP(&tiMaxAnomalies, "max-anomalies", "l", 0, "stop after this many anomalies (0 = unbounded)")
	testIsolationCmd.Flags().StringVar(&tiNemesisSchedule, "nemesis-schedule", "", "path to a TOML fault schedule")
	rootCmd.AddCommand(testIsolationCmd)
}
