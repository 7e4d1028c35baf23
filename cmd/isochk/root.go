// Command isochk drives a synthetic workload against a target database and
// checks the recorded history for Adya isolation anomalies.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/isochk/isochk/internal/config"
	"github.com/isochk/isochk/internal/logging"
)

var (
	configPath string
	verbose    bool
	loadedCfg  config.Config
)

var (
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	})
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	})
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	})
	boldStyle = lipgloss.NewStyle().Bold(true)
)

var rootCmd = &cobra.Command{
	Use:   "isochk",
	Short: "isochk - black-box database isolation checker",
	Long:  "Drives a synthetic transactional workload against a database and checks the recorded history for Adya isolation anomalies.",
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			printVersion()
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		loadedCfg = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to isochk.toml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

// nodesOrConfigDefault returns flagValue unless the user never set the
// --nodes flag and the loaded config names at least one node, in which case
// the config's nodes are joined and used instead.
func nodesOrConfigDefault(cmd *cobra.Command, flagValue string) string {
	if cmd.Flags().Changed("nodes") || len(loadedCfg.Nodes) == 0 {
		return flagValue
	}
	out := loadedCfg.Nodes[0]
	for _, n := range loadedCfg.Nodes[1:] {
		out += "," + n
	}
	return out
}

func logger() *slog.Logger {
	return logging.New(os.Stderr, verbose)
}

func fatalf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, failStyle.Render(fmt.Sprintf(format, args...)))
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
