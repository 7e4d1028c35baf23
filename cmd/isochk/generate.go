package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/isochk/isochk/internal/anomaly"
	"github.com/isochk/isochk/internal/generator"
	"github.com/isochk/isochk/internal/history"
)

var (
	genTxCount         int
	genObjects         int
	genNodes           string
	genNemesisSchedule string
)

var generateCmd = &cobra.Command{
	Use:   "generate <isolation> <output>",
	Short: "Run a synthetic workload and record its history",
	Args:  cobra.ExactArgs(2),
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

		ad, err := dialNodes(ctx, nodesOrConfigDefault(cmd, genNodes))
		if err != nil {
			fatalf("isochk: %v", err)
		}
		defer ad.Close(ctx)

		nem, err := resolveNemesis(genNemesisSchedule)
		if err != nil {
			fatalf("isochk: %v", err)
		}

		gen := &generator.Generator{Adapter: ad, Nemesis: nem, Log: logger()}
		h, err := gen.Run(ctx, generator.Config{TxCount: genTxCount, ObjectCount: genObjects, Level: level})
		if err != nil {
			fatalf("isochk: generate: %v", err)
		}

		out, err := os.Create(args[1])
		if err != nil {
			fatalf("isochk: create %s: %v", args[1], err)
		}
		defer out.Close()
		if err := history.Encode(out, h); err != nil {
			fatalf("isochk: encode history: %v", err)
		}
	},
}

func init() {
	generateCmd.Flags().IntVarP(&genTxCount, "tx-count", "t", 100, "number of transactions to generate")
	generateCmd.Flags().IntVarP(&genObjects, "objects", "n", 10, "number of distinct objects")
	generateCmd.Flags().StringVar(&genNodes, "nodes", "127.0.0.1:3306", "comma-separated host:port list")
	generateCmd.Flags().StringVar(&genNemesisSchedule, "nemesis-schedule", "", "path to a TOML fault schedule")
	rootCmd.AddCommand(generateCmd)
}
