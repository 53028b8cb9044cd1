package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	cfgFile string
)

// exitStepFailure is the exit status of a script that ran but failed a step.
const exitStepFailure = 2

var rootCmd = &cobra.Command{
	Use:   "buddyctl",
	Short: "Exercise and inspect buddy allocator pools",
	Long: `buddyctl creates buddy allocator pools, replays allocation scripts
against them and reports their state. Pool bounds and logging are read from
flags, BUDDYCTL_* environment variables and an optional YAML config file.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	pf.BoolVar(&jsonOut, "json", false, "Output in JSON format")
	pf.StringVar(&cfgFile, "config", "", "Config file (YAML)")

	pf.Uint64("size", 0, "Pool size hint in bytes (0 selects the default order)")
	pf.Uint("min-order", 0, "Smallest pool order")
	pf.Uint("max-order", 0, "Largest pool order")
	pf.Uint("default-order", 0, "Pool order used when --size is 0")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-file", "", "Write logs to a rotating file")
	pf.Bool("log-json", false, "Log in JSON")

	bindFlags(settings)
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if isStepFailure(err) {
			os.Exit(exitStepFailure)
		}
		os.Exit(1)
	}
}

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
