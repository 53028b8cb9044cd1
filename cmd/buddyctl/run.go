package main

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/joshuapare/buddykit/buddy"
	"github.com/joshuapare/buddykit/internal/trace"
	"github.com/joshuapare/buddykit/pkg/metrics"
	"github.com/joshuapare/buddykit/pkg/report"
)

var (
	runMetrics bool
	runSteps   bool
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().BoolVar(&runMetrics, "metrics", false, "Print Prometheus metrics after the report")
	cmd.Flags().BoolVar(&runSteps, "steps", false, "Print the result of every step")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <script>",
		Short: "Replay an allocation script against a new pool",
		Long: `The run command creates a pool, executes the script step by step and
prints a report of the final pool state. The run stops at the first failing
step; the report then shows the state at the point of failure.

Scripts are line oriented (alloc, free, check, expect-full, expect-empty,
expect-fail) or YAML documents with a "steps" list.

Example:
  buddyctl run workload.trace --size 1048576
  buddyctl run workload.yaml --json
  buddyctl run workload.trace --metrics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(args)
		},
	}
}

// RunOutput is the JSON form of a run.
type RunOutput struct {
	Script  string         `json:"script"`
	Steps   []trace.Result `json:"steps"`
	Error   string         `json:"error,omitempty"`
	Report  report.Report  `json:"report"`
	Leaked  []string       `json:"leaked,omitempty"`
	Success bool           `json:"success"`
}

func runRun(args []string) error {
	path := args[0]
	script, err := trace.ParseFile(path)
	if err != nil {
		return err
	}
	printVerbose("Parsed %d steps from %s\n", len(script.Steps), path)

	p, log, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		if derr := p.Destroy(); derr != nil {
			log.Error("destroy pool", zap.Error(derr))
		}
		_ = log.Sync()
	}()

	r := trace.NewRunner(p)
	results, runErr := r.Run(script)
	out := RunOutput{Script: path, Steps: results}
	for name := range r.Bound() {
		out.Leaked = append(out.Leaked, name)
	}
	slices.Sort(out.Leaked)
	out.Report = report.Build(p)
	out.Success = runErr == nil
	if runErr != nil {
		out.Error = runErr.Error()
	}

	if jsonOut {
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		if runSteps {
			for _, res := range out.Steps {
				printStep(res)
			}
		}
		if !quiet {
			if err := report.WriteText(os.Stdout, out.Report, language.English); err != nil {
				return err
			}
		}
		if len(out.Leaked) > 0 {
			printInfo("\nStill reserved: %v\n", out.Leaked)
		}
	}

	if runMetrics {
		if err := writeMetrics(p); err != nil {
			return err
		}
	}
	return runErr
}

func printStep(res trace.Result) {
	switch {
	case res.Step.Op == trace.OpAlloc:
		printInfo("%4d  %-24s ptr 0x%X order %d\n", res.Step.Line, res.Step, uint64(res.Ptr), res.Order)
	case res.Err != "":
		printInfo("%4d  %-24s %s\n", res.Step.Line, res.Step, res.Err)
	default:
		printInfo("%4d  %-24s ok\n", res.Step.Line, res.Step)
	}
}

// writeMetrics prints the pool metrics in the Prometheus text format.
func writeMetrics(p *buddy.Pool) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector(p, nil)); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(os.Stdout, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		return closer.Close()
	}
	return nil
}

// isStepFailure reports whether err stopped a script rather than the tool.
func isStepFailure(err error) bool {
	var stepErr *trace.StepError
	return errors.As(err, &stepErr)
}
