package eclipse

import (
	"bufio"
	"fmt"
	"io"

	"github.com/google/renameio/v2"
)

// NoEvents is written in place of the table when nothing was found.
const NoEvents = "There are no eclipse events in the time interval."

const reportHeader = "Start Time (UTC)            Stop Time (UTC)               Duration (s)    " +
	"Occ Body        Type        Event Number  Total Duration (s)\n"

// Report writes the eclipse text report.
type Report struct {
	Spacecraft string
	// FormatEpoch renders start and stop epochs. Nil selects FormatMJD.
	FormatEpoch EpochFormatter
	// SecondsPerUnit converts event durations to seconds. Zero selects
	// 86400 (epochs in days).
	SecondsPerUnit float64
}

func (r Report) formatter() EpochFormatter {
	if r.FormatEpoch != nil {
		return r.FormatEpoch
	}
	return FormatMJD
}

func (r Report) scale() float64 {
	if r.SecondsPerUnit > 0 {
		return r.SecondsPerUnit
	}
	return 86400
}

// Write renders res to w.
func (r Report) Write(w io.Writer, res Result) error {
	bw := bufio.NewWriter(w)
	fmtEpoch := r.formatter()
	scale := r.scale()

	fmt.Fprintf(bw, "Spacecraft: %s\n\n", r.Spacecraft)

	if len(res.Events) == 0 {
		fmt.Fprintf(bw, "%s\n", NoEvents)
		return bw.Flush()
	}

	bw.WriteString(reportHeader)
	for _, ev := range res.Events {
		total := BuildNumber(ev.Duration()*scale, false, 14)
		for _, m := range ev.Members {
			fmt.Fprintf(bw, "%s    %s      %s  %-16s%-12s%-14d%s\n",
				fmtEpoch(m.Start),
				fmtEpoch(m.End),
				BuildNumber(m.Duration()*scale, false, 14),
				m.Body,
				m.Kind,
				ev.Index+1,
				total,
			)
		}
	}

	fmt.Fprintf(bw, "\nNumber of individual events : %d\n", res.IndividualCount())
	fmt.Fprintf(bw, "Number of total events      : %d\n", len(res.Events))
	fmt.Fprintf(bw, "Maximum duration (s)        : %s\n", BuildNumber(res.MaxDuration*scale, false, 14))
	fmt.Fprintf(bw, "Maximum duration at the %s eclipse.\n\n\n", Ordinal(res.MaxIndex+1))
	return bw.Flush()
}

// WriteFile writes the report to path, replacing any existing file
// atomically.
func (r Report) WriteFile(path string, res Result) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending report file: %w", err)
	}
	defer pending.Cleanup()

	if err := r.Write(pending, res); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace report file: %w", err)
	}
	return nil
}
