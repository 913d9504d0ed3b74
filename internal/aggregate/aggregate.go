package aggregate

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/guregu/null.v3"
)

type GroupMode string

const (
	// GroupByExecutable folds sessions of the same binary together,
	// falling back to the process name when the path was unreadable.
	GroupByExecutable GroupMode = "exe"
	// GroupBySession keeps one row per (pid, create_time) session.
	GroupBySession GroupMode = "pid"
)

func ParseGroupMode(spec string) (GroupMode, error) {
	switch GroupMode(spec) {
	case GroupByExecutable, GroupBySession:
		return GroupMode(spec), nil
	default:
		return "", errors.Errorf("invalid group '%s' (expected 'exe' or 'pid')", spec)
	}
}

// Window is a half-open [SinceTs, UntilTs) interval in epoch seconds.
type Window struct {
	SinceTs float64
	UntilTs float64
}

// Row is one aggregated group, the canonical shape shared by csv export
// and the live top view.
type Row struct {
	Pid        null.Int
	CreateTime null.Float
	ExePath    null.String

	Samples       int64
	CPUS          float64
	WallS         float64
	ActiveWallS   float64
	AvgEffCores   float64
	AvgCPUPercent float64
	AvgRss        null.Float
}

type Aggregator struct {
	logger *zap.Logger
	db     *sql.DB
}

func NewAggregator(rootLogger *zap.Logger, db *sql.DB) *Aggregator {
	return &Aggregator{
		logger: rootLogger.Named("aggregator"),
		db:     db,
	}
}

const byExecutableQuery = `
SELECT
  COALESCE(p.exe_path, p.name) AS exe_path,
  COUNT(*) AS samples,
  SUM(s.delta_cpu_s) AS cpu_s,
  SUM(s.dt_s) AS wall_s,
  SUM(CASE WHEN s.active=1 THEN s.dt_s ELSE 0 END) AS active_wall_s,
  CASE WHEN SUM(s.dt_s) > 0 THEN SUM(s.delta_cpu_s)/SUM(s.dt_s) ELSE 0 END AS avg_eff_cores,
  AVG(s.rss_bytes) AS avg_rss
FROM sample s
JOIN process p ON p.id = s.process_id
WHERE s.ts >= ? AND s.ts < ?
GROUP BY COALESCE(p.exe_path, p.name)
ORDER BY cpu_s DESC
LIMIT ?`

const bySessionQuery = `
SELECT
  p.pid AS pid,
  p.create_time AS create_time,
  MIN(COALESCE(p.exe_path, p.name)) AS exe_path,
  COUNT(*) AS samples,
  SUM(s.delta_cpu_s) AS cpu_s,
  SUM(s.dt_s) AS wall_s,
  SUM(CASE WHEN s.active=1 THEN s.dt_s ELSE 0 END) AS active_wall_s,
  CASE WHEN SUM(s.dt_s) > 0 THEN SUM(s.delta_cpu_s)/SUM(s.dt_s) ELSE 0 END AS avg_eff_cores,
  AVG(s.rss_bytes) AS avg_rss
FROM sample s
JOIN process p ON p.id = s.process_id
WHERE s.ts >= ? AND s.ts < ?
GROUP BY p.pid, p.create_time
ORDER BY cpu_s DESC
LIMIT ?`

// Aggregate reduces all samples inside the window into one row per group,
// ordered by cpu seconds descending. limit < 0 means unlimited.
func (a *Aggregator) Aggregate(ctx context.Context, window Window, mode GroupMode, limit int) ([]Row, error) {
	if limit == 0 {
		limit = -1
	}

	var query string
	switch mode {
	case GroupByExecutable:
		query = byExecutableQuery
	case GroupBySession:
		query = bySessionQuery
	default:
		return nil, errors.Errorf("invalid group '%s' (expected 'exe' or 'pid')", mode)
	}

	rows, err := a.db.QueryContext(ctx, query, window.SinceTs, window.UntilTs, limit)
	if err != nil {
		return nil, errors.WithMessage(err, "query aggregated samples")
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var row Row
		if mode == GroupBySession {
			err = rows.Scan(&row.Pid, &row.CreateTime, &row.ExePath, &row.Samples, &row.CPUS,
				&row.WallS, &row.ActiveWallS, &row.AvgEffCores, &row.AvgRss)
		} else {
			err = rows.Scan(&row.ExePath, &row.Samples, &row.CPUS, &row.WallS,
				&row.ActiveWallS, &row.AvgEffCores, &row.AvgRss)
		}
		if err != nil {
			return nil, errors.WithMessage(err, "scan aggregated row")
		}
		row.AvgCPUPercent = row.AvgEffCores * 100.0
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WithMessage(err, "iterate aggregated rows")
	}

	a.logger.Debug("Aggregated samples", zap.Int("Groups", len(result)),
		zap.Float64("SinceTs", window.SinceTs), zap.Float64("UntilTs", window.UntilTs))
	return result, nil
}
