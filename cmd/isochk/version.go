package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	// Version is isochk's release version (overridden by ldflags at build time).
	Version = "0.1.0"
	// Build identifies the build channel (overridden by ldflags at build time).
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func printVersion() {
	commit := resolveCommit()
	if commit != "" {
		fmt.Printf("isochk version %s (%s: %s)\n", Version, Build, shortCommit(commit))
		return
	}
	fmt.Printf("isochk version %s (%s)\n", Version, Build)
}

func resolveCommit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			return setting.Value
		}
	}
	return ""
}

func shortCommit(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
