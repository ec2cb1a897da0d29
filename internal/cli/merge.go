package cli

import (
	"bytes"

	"github.com/spf13/cobra"

	"github.com/star/trajevent/internal/config"
	"github.com/star/trajevent/internal/eclipse"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	Output         string
	Spacecraft     string
	SecondsPerUnit float64
}

// mergeSummary is the JSON payload of the merge command.
type mergeSummary struct {
	Spacecraft       string               `json:"spacecraft"`
	IndividualEvents int                  `json:"individual_events"`
	TotalEvents      int                  `json:"total_events"`
	MaxIndex         int                  `json:"max_index"`
	MaxDuration      float64              `json:"max_duration"`
	Events           []eclipse.TotalEvent `json:"events"`
	ReportPath       string               `json:"report_path,omitempty"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{}

	cmd := &cobra.Command{
		Use:   "merge <events-file>",
		Short: "Merge raw eclipse intervals into total events",
		Long: `Merge reads raw shadow intervals (YAML, or JSON when the file ends in .json),
coalesces overlapping or touching intervals into total events and writes the
eclipse report. With --output the report is written atomically to that path.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the report to this file")
	cmd.Flags().StringVar(&opts.Spacecraft, "spacecraft", "", "spacecraft name (overrides the file)")
	cmd.Flags().Float64Var(&opts.SecondsPerUnit, "seconds-per-unit", 86400,
		"seconds per epoch unit when the file does not set one")

	return cmd
}

func runMerge(rootOpts *RootOptions, opts *MergeOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	f, err := config.LoadEvents(path)
	if err != nil {
		return formatter.Fail(WrapExitError(ExitCommandError, "failed to load events", err))
	}
	if opts.Spacecraft != "" {
		f.Spacecraft = opts.Spacecraft
	}

	raw := f.RawEvents()
	formatter.VerboseLog("Loaded %d raw event(s) from %s", len(raw), path)
	res := eclipse.Merge(raw)
	report := f.Report(opts.SecondsPerUnit)

	summary := mergeSummary{
		Spacecraft:       f.Spacecraft,
		IndividualEvents: res.IndividualCount(),
		TotalEvents:      res.Len(),
		MaxIndex:         res.MaxIndex,
		MaxDuration:      res.MaxDuration,
		Events:           res.Events,
		ReportPath:       opts.Output,
	}
	if summary.Events == nil {
		summary.Events = []eclipse.TotalEvent{}
	}

	if opts.Output != "" {
		if err := report.WriteFile(opts.Output, res); err != nil {
			return formatter.Fail(WrapExitError(ExitFailure, "failed to write report", err))
		}
		formatter.VerboseLog("Report written to %s", opts.Output)
		return formatter.Success(summary, "")
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, res); err != nil {
		return formatter.Fail(WrapExitError(ExitFailure, "failed to render report", err))
	}
	return formatter.Success(summary, buf.String())
}
