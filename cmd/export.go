package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/procpulse/agent/internal/aggregate"
	"github.com/procpulse/agent/internal/logging"
	"github.com/procpulse/agent/internal/storage"
	"github.com/procpulse/agent/internal/timespec"
)

type ExportCommand struct {
	Csv ExportCsvCommand `command:"csv" description:"Export aggregated CSV (grouped by executable or session)"`
}

type ExportCsvCommand struct {
	Db    string `long:"db" description:"SQLite database file path" default:"./procpulse.db"`
	Group string `long:"group" description:"Grouping mode: exe or pid" default:"exe"`
	Since string `long:"since" description:"Window start (relative like 24h, ISO timestamp, epoch seconds, or now)" default:"24h"`
	Until string `long:"until" description:"Window end (relative, absolute, or now)" default:"now"`
	Out   string `long:"out" description:"Output CSV file path" required:"true"`
}

func (c *ExportCsvCommand) Execute(_ []string) error {
	logger, err := logging.NewLogger("procpulse", options.Debug)
	if err != nil {
		return errors.WithMessage(err, "new logger")
	}
	defer logger.Sync()

	mode, err := aggregate.ParseGroupMode(c.Group)
	if err != nil {
		return err
	}

	sinceTs, untilTs, err := timespec.ResolveWindow(c.Since, c.Until, time.Now())
	if err != nil {
		return err
	}
	window := aggregate.Window{SinceTs: sinceTs, UntilTs: untilTs}

	store, err := storage.NewStore(logger, c.Db)
	if err != nil {
		return errors.WithMessage(err, "open store")
	}
	defer store.Close()

	aggregator := aggregate.NewAggregator(logger, store.DB())
	rows, err := aggregator.Aggregate(context.Background(), window, mode, -1)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(c.Out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WithMessagef(err, "create output directory '%s'", dir)
		}
	}

	outFile, err := os.Create(c.Out)
	if err != nil {
		return errors.WithMessagef(err, "create output file '%s'", c.Out)
	}
	defer outFile.Close()

	written, err := aggregate.WriteCSV(outFile, rows, mode, window)
	if err != nil {
		return err
	}

	fmt.Printf("CSV written: %s (%d rows)\n", c.Out, written)
	return nil
}
