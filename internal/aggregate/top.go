package aggregate

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
)

const unknownGroupLabel = "<unknown>"

// WriteTop renders the grouped rows as an aligned table for terminal use.
func WriteTop(w io.Writer, rows []Row, mode GroupMode) error {
	table := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if mode == GroupBySession {
		fmt.Fprintln(table, "PID@CTIME\tEXE\tCPU_S\tAVG_EFF\tAVG_CPU%\tACTIVE_S\tSAMPLES")
		for i := range rows {
			row := &rows[i]
			fmt.Fprintf(table, "%d@%.0f\t%s\t%.3f\t%.3f\t%.1f\t%.1f\t%d\n",
				row.Pid.ValueOrZero(), row.CreateTime.ValueOrZero(), groupLabel(row),
				row.CPUS, row.AvgEffCores, row.AvgCPUPercent, row.ActiveWallS, row.Samples)
		}
	} else {
		fmt.Fprintln(table, "EXE\tCPU_S\tAVG_EFF\tAVG_CPU%\tACTIVE_S\tSAMPLES")
		for i := range rows {
			row := &rows[i]
			fmt.Fprintf(table, "%s\t%.3f\t%.3f\t%.1f\t%.1f\t%d\n",
				groupLabel(row), row.CPUS, row.AvgEffCores, row.AvgCPUPercent,
				row.ActiveWallS, row.Samples)
		}
	}

	if err := table.Flush(); err != nil {
		return errors.WithMessage(err, "flush top table")
	}
	return nil
}

func groupLabel(row *Row) string {
	if !row.ExePath.Valid || row.ExePath.String == "" {
		return unknownGroupLabel
	}
	return row.ExePath.String
}
