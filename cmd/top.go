package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/procpulse/agent/internal/aggregate"
	"github.com/procpulse/agent/internal/logging"
	"github.com/procpulse/agent/internal/storage"
	"github.com/procpulse/agent/internal/timespec"
	"github.com/procpulse/agent/internal/types"
)

type TopCommand struct {
	Db     string `long:"db" description:"SQLite database file path" default:"./procpulse.db"`
	Window string `long:"window" description:"Trailing observation window (e.g. 10m, 1h)" default:"10m"`
	Group  string `long:"group" description:"Grouping mode: exe or pid" default:"exe"`
	Limit  int    `long:"limit" description:"Maximum number of rows" default:"20"`
}

func (c *TopCommand) Execute(_ []string) error {
	logger, err := logging.NewLogger("procpulse", options.Debug)
	if err != nil {
		return errors.WithMessage(err, "new logger")
	}
	defer logger.Sync()

	mode, err := aggregate.ParseGroupMode(c.Group)
	if err != nil {
		return err
	}

	windowDuration, err := timespec.ParseDuration(c.Window)
	if err != nil {
		return errors.WithMessage(err, "parse 'window'")
	}

	limit := c.Limit
	if limit < 1 {
		limit = 1
	}

	now := time.Now()
	window := aggregate.Window{
		SinceTs: types.EpochSeconds(now.Add(-windowDuration)),
		UntilTs: types.EpochSeconds(now),
	}

	store, err := storage.NewStore(logger, c.Db)
	if err != nil {
		return errors.WithMessage(err, "open store")
	}
	defer store.Close()

	aggregator := aggregate.NewAggregator(logger, store.DB())
	rows, err := aggregator.Aggregate(context.Background(), window, mode, limit)
	if err != nil {
		return err
	}

	return aggregate.WriteTop(os.Stdout, rows, mode)
}
