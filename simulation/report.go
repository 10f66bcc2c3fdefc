package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/sarchlab/netsim/datarecording"
	"github.com/sarchlab/netsim/tracing"
)

// ErrNoRunSummary is returned when a recording was not closed by Terminate.
var ErrNoRunSummary = errors.New("recording has no run summary")

// A Report is a finished run read back from its recording.
type Report struct {
	Summary `yaml:",inline"`

	// TraceCounts is the number of trace records of each kind. It is empty
	// when the run was recorded without the trace table.
	TraceCounts map[string]int `yaml:"trace_counts,omitempty"`
}

// LoadReport reads the run summary, the device totals and the trace counts
// from the recording written by a traced run.
func LoadReport(ctx context.Context, filename string) (*Report, error) {
	reader, err := datarecording.NewReader(filename)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	stored, err := reader.StoredTables(ctx)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(stored, RunTable) || !slices.Contains(stored, DeviceTable) {
		return nil, fmt.Errorf("%w: %s", ErrNoRunSummary, filename)
	}

	reader.MapTable(RunTable, RunRecord{})
	reader.MapTable(DeviceTable, DeviceSummary{})

	runs, _, err := reader.Query(ctx, RunTable, datarecording.QueryParams{Limit: 1})
	if err != nil {
		return nil, err
	}

	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRunSummary, filename)
	}

	run := runs[0].(*RunRecord)
	report := &Report{
		Summary: Summary{
			ID:             run.ID,
			VirtualTime:    run.VirtualTime,
			ExecutedEvents: run.ExecutedEvents,
		},
	}

	devices, _, err := reader.Query(ctx, DeviceTable,
		datarecording.QueryParams{OrderBy: "rowid"})
	if err != nil {
		return nil, err
	}

	for _, d := range devices {
		report.Devices = append(report.Devices, *d.(*DeviceSummary))
	}

	if slices.Contains(stored, tracing.TraceTable) {
		report.TraceCounts, err = reader.CountBy(ctx, tracing.TraceTable, "Kind")
		if err != nil {
			return nil, err
		}
	}

	return report, nil
}

// Write prints the report as YAML.
func (r *Report) Write(w io.Writer) error {
	return writeYAML(w, r)
}
