package main

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// VersionInfo is the JSON form of the version command.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Built   string `json:"built"`
	Go      string `json:"go"`
	Library string `json:"library,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := VersionInfo{Version: version, Commit: commit, Built: date, Go: runtime.Version()}
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, dep := range bi.Deps {
				if dep.Path == "github.com/joshuapare/buddykit" {
					info.Library = dep.Version
				}
			}
		}
		if jsonOut {
			return printJSON(info)
		}
		printInfo("buddyctl %s\n", info.Version)
		printInfo("  commit: %s\n", info.Commit)
		printInfo("  built: %s\n", info.Built)
		printInfo("  go: %s\n", info.Go)
		if info.Library != "" {
			printInfo("  buddykit: %s\n", info.Library)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
