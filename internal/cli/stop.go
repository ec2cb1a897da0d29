package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/trajevent/internal/config"
	"github.com/star/trajevent/internal/propagation"
)

// StopOptions holds flags for the stop command.
type StopOptions struct {
	Step time.Duration
	Span time.Duration
}

// stopSummary is the JSON payload of the stop command.
type stopSummary struct {
	Spacecraft string                 `json:"spacecraft"`
	NORADID    int                    `json:"norad_id"`
	Start      time.Time              `json:"start"`
	Step       float64                `json:"step_secs"`
	Span       float64                `json:"span_secs"`
	Crossings  []propagation.Crossing `json:"crossings"`
}

// NewStopCommand creates the stop command.
func NewStopCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StopOptions{}

	cmd := &cobra.Command{
		Use:   "stop <run-file>",
		Short: "Find the epochs where stop conditions are met",
		Long: `Stop propagates the TLE named in a YAML run file with SGP4 and reports every
epoch at which one of its stop conditions reaches the goal value. A negative
step searches backward from the start epoch.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd.Context(), rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Step, "step", 0, "sampling interval (overrides the run file)")
	cmd.Flags().DurationVar(&opts.Span, "span", 0, "search length (overrides the run file)")

	return cmd
}

func runStop(ctx context.Context, rootOpts *RootOptions, opts *StopOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	run, err := config.LoadRun(path)
	if err != nil {
		return formatter.Fail(WrapExitError(ExitCommandError, "failed to load run", err))
	}
	entry, err := run.Entry()
	if err != nil {
		return formatter.Fail(WrapExitError(ExitCommandError, "failed to load TLE", err))
	}
	prop, err := propagation.NewSGP4Propagator(entry)
	if err != nil {
		return formatter.Fail(WrapExitError(ExitCommandError, "invalid TLE", err))
	}

	sc := run.SearchConfig(config.SearchConfig{Workers: 1, Step: 30 * time.Second, Span: 24 * time.Hour})
	if opts.Step != 0 {
		sc.Step = opts.Step
	}
	if opts.Span != 0 {
		sc.Span = opts.Span
	}
	formatter.VerboseLog("Searching %s (NORAD %d) from %s, step %s, span %s",
		entry.Name, entry.NORADID, run.Start.UTC().Format(time.RFC3339), sc.Step, sc.Span)

	d := &propagation.Driver{
		Prop:     prop,
		Step:     sc.Step,
		Span:     sc.Span,
		Observer: run.Station.Observer(),
		Logger:   commandLogger(cmd.ErrOrStderr(), rootOpts.Verbose).With("norad_id", entry.NORADID),
	}
	crossings, err := d.Search(ctx, run.Start, run.Stops)
	if err != nil {
		return formatter.Fail(WrapExitError(ExitFailure, "stop search failed", err))
	}

	summary := stopSummary{
		Spacecraft: entry.Name,
		NORADID:    entry.NORADID,
		Start:      run.Start.UTC(),
		Step:       sc.Step.Seconds(),
		Span:       sc.Span.Seconds(),
		Crossings:  crossings,
	}
	if summary.Crossings == nil {
		summary.Crossings = []propagation.Crossing{}
	}
	return formatter.Success(summary, formatCrossings(summary))
}

func formatCrossings(s stopSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Spacecraft: %s (NORAD %d)\n\n", s.Spacecraft, s.NORADID)
	if len(s.Crossings) == 0 {
		b.WriteString("No stop condition was met in the search span.\n")
		return b.String()
	}

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Param\tGoal\t#\tEpoch (UTC)\tElapsed (s)")
	for _, c := range s.Crossings {
		fmt.Fprintf(tw, "%s\t%g\t%d\t%s\t%.3f\n",
			c.Param, c.Goal, c.Occurrence, c.Time.UTC().Format("2006-01-02T15:04:05.000Z"), c.Elapsed)
	}
	tw.Flush()
	fmt.Fprintf(&b, "\nNumber of crossings : %d\n", len(s.Crossings))
	return b.String()
}

// NewParamsCommand lists the stop parameters.
func NewParamsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "params",
		Short:         "List the stop parameters",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			names := propagation.ParamNames()
			return formatter.Success(names, strings.Join(names, "\n")+"\n")
		},
	}
}
