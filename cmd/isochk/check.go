package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/isochk/isochk/internal/anomaly"
	"github.com/isochk/isochk/internal/cycles"
	"github.com/isochk/isochk/internal/detector"
	"github.com/isochk/isochk/internal/dsg"
	"github.com/isochk/isochk/internal/history"
	"github.com/isochk/isochk/internal/render"
	"github.com/isochk/isochk/internal/resolver"
)

var (
	checkTreatAsFailure bool
	checkIsolation      string
	checkMaxAnomalies   int
	checkGraphOut       string
)

var checkCmd = &cobra.Command{
	Use:   "check <history_in>",
	Short: "Analyze a recorded history for isolation anomalies",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		level, err := anomaly.ParseLevel(checkIsolation)
		if err != nil {
			fatalf("isochk: %v", err)
		}

		in, err := os.Open(args[0])
		if err != nil {
			fatalf("isochk: open %s: %v", args[0], err)
		}
		defer in.Close()

		h, err := history.Decode(in)
		if err != nil {
			fatalf("isochk: decode history: %v", err)
		}

		report, warnings := runCheck(h, level, checkMaxAnomalies)
		for _, w := range warnings {
			fmt.Fprintln(os.Stderr, warnStyle.Render(w))
		}

		for _, line := range render.Summary(report.Anomalies) {
			fmt.Println(line)
		}
		if len(report.Anomalies) == 0 {
			fmt.Println(mutedStyle.Render("no anomalies found"))
		}

		if checkGraphOut != "" {
			g, _, err := dsg.Build(h, resolver.Resolve(h))
			if err != nil {
				fatalf("isochk: build graph: %v", err)
			}
			if err := os.WriteFile(checkGraphOut, []byte(render.DOT(g)), 0o644); err != nil {
				fatalf("isochk: write graph: %v", err)
			}
		}

		if checkTreatAsFailure && len(report.Anomalies) > 0 {
			os.Exit(1)
		}
	},
}

// runCheck runs the full C2-C6 pipeline over h and returns the level-filtered
// report plus any integrity/version-order warnings worth surfacing.
func runCheck(h *history.History, level anomaly.Level, maxAnomalies int) (anomaly.Report, []string) {
	res := resolver.Resolve(h)

	var warnings []string
	for _, w := range res.Warnings {
		warnings = append(warnings, fmt.Sprintf("integrity warning: %s observed an unresolved write", w.Read.Read))
	}
	for _, e := range res.Integrity {
		warnings = append(warnings, fmt.Sprintf("integrity warning: %v", e))
	}

	g, dsgWarnings, err := dsg.Build(h, res)
	if err != nil {
		fatalf("isochk: build graph: %v", err)
	}
	for _, w := range dsgWarnings {
		warnings = append(warnings, fmt.Sprintf("version-order warning: %v", w.Err))
	}

	// Cycle enumeration itself is unbounded: max_anomalies caps reportable
	// (post-classification) anomalies, and capping raw discovery here could
	// stop before ever reaching a cycle that classifies as forbidden at the
	// requested level, while an earlier, permitted cycle used up the cap.
	cycleList := cycles.Enumerate(g, 0)
	findings := detector.Detect(res)
	report := anomaly.Classify(level, cycleList, findings, maxAnomalies)
	return report, warnings
}

func init() {
	checkCmd.Flags().BoolVarP(&checkTreatAsFailure, "treat-anomalies-as-failure", "t", false, "exit non-zero if any anomaly is found")
	checkCmd.Flags().StringVarP(&checkIsolation, "isolation", "i", "SERIALIZABLE", "requested isolation level")
	checkCmd.Flags().IntVarP(&checkMaxAnomalies, "max-anomalies", "l", 0, "stop after this many anomalies (0 = unbounded)")
	checkCmd.Flags().StringVarP(&checkGraphOut, "graph-out", "g", "", "write the full DSG as Graphviz DOT to this path")
	rootCmd.AddCommand(checkCmd)
}
