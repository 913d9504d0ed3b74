package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/guregu/null.v3"
)

var csvHeaderByExecutable = []string{
	"exe_path", "samples", "cpu_s", "wall_s", "active_wall_s",
	"avg_eff_cores", "avg_cpu_percent", "avg_rss", "since_ts", "until_ts",
}

var csvHeaderBySession = []string{
	"pid", "create_time", "exe_path", "samples", "cpu_s", "wall_s", "active_wall_s",
	"avg_eff_cores", "avg_cpu_percent", "avg_rss", "since_ts", "until_ts",
}

// WriteCSV writes the grouped rows in the export contract layout and
// returns the number of data rows written.
func WriteCSV(w io.Writer, rows []Row, mode GroupMode, window Window) (int, error) {
	writer := csv.NewWriter(w)

	header := csvHeaderByExecutable
	if mode == GroupBySession {
		header = csvHeaderBySession
	}
	if err := writer.Write(header); err != nil {
		return 0, errors.WithMessage(err, "write csv header")
	}

	for i := range rows {
		row := &rows[i]

		record := make([]string, 0, len(header))
		if mode == GroupBySession {
			record = append(record, formatNullInt(row.Pid), formatNullFloat(row.CreateTime))
		}
		record = append(record,
			row.ExePath.ValueOrZero(),
			strconv.FormatInt(row.Samples, 10),
			formatFloat(row.CPUS),
			formatFloat(row.WallS),
			formatFloat(row.ActiveWallS),
			formatFloat(row.AvgEffCores),
			formatFloat(row.AvgCPUPercent),
			formatRss(row.AvgRss),
			formatFloat(window.SinceTs),
			formatFloat(window.UntilTs),
		)

		if err := writer.Write(record); err != nil {
			return 0, errors.WithMessage(err, "write csv row")
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, errors.WithMessage(err, "flush csv")
	}
	return len(rows), nil
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.6f", v)
}

func formatNullFloat(v null.Float) string {
	if !v.Valid {
		return ""
	}
	return formatFloat(v.Float64)
}

func formatNullInt(v null.Int) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}

func formatRss(v null.Float) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(int64(v.Float64), 10)
}
