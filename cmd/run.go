package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/procpulse/agent/internal/enumerate"
	"github.com/procpulse/agent/internal/host"
	"github.com/procpulse/agent/internal/logging"
	"github.com/procpulse/agent/internal/sampler"
	"github.com/procpulse/agent/internal/storage"
	"github.com/procpulse/agent/internal/timespec"
	"github.com/procpulse/agent/internal/tracking"
)

type RunCommand struct {
	Db              string        `long:"db" description:"SQLite database file path" default:"./procpulse.db"`
	Interval        time.Duration `long:"interval" description:"Sampling interval" default:"1s"`
	ActiveThreshold float64       `long:"active-threshold" description:"Active threshold in cpu-seconds per second" default:"0.005"`
	Retention       string        `long:"retention" description:"Raw sample retention window (e.g. 30d)" default:"30d"`
	NoMemory        bool          `long:"no-mem" description:"Do not collect memory counters (rss/vms)"`
	NoIO            bool          `long:"no-io" description:"Do not collect io counters (read/write bytes)"`
}

func (c *RunCommand) Execute(_ []string) error {
	logger, err := logging.NewLogger("procpulse", options.Debug)
	if err != nil {
		return errors.WithMessage(err, "new logger")
	}
	defer logger.Sync()

	retention, err := timespec.ParseDuration(c.Retention)
	if err != nil {
		return errors.WithMessage(err, "parse 'retention'")
	}

	store, err := storage.NewStore(logger, c.Db)
	if err != nil {
		return errors.WithMessage(err, "open store")
	}
	defer store.Close()

	ctx := context.Background()

	if machineId, err := host.MachineId(); err != nil {
		logger.Warn("Failed to resolve machine id", zap.Error(err))
	} else if err := store.RecordMachineId(ctx, machineId); err != nil {
		logger.Warn("Failed to record machine id", zap.Error(err))
	}

	if batteryPercent, err := host.BatteryPercent(); err != nil {
		logger.Debug("Failed to read battery level", zap.Error(err))
	} else if batteryPercent.Valid {
		logger.Info("Battery level", zap.Float64("Percent", batteryPercent.Float64))
	}

	logicalCores, err := enumerate.LogicalCoreCount()
	if err != nil {
		logger.Warn("Failed to count logical cores, assuming one", zap.Error(err))
	}

	enumerator := enumerate.NewProcessEnumerator(logger, &enumerate.Config{
		CollectMemory: !c.NoMemory,
		CollectIO:     !c.NoIO,
	})
	computer := tracking.NewComputer(logicalCores, c.ActiveThreshold)
	tracker := tracking.NewTracker(logger, computer)

	loopConfig := &sampler.Config{
		Interval:        c.Interval,
		ActiveThreshold: c.ActiveThreshold,
		Retention:       retention,
		JanitorInterval: sampler.DefaultJanitorInterval,
	}

	loop, err := sampler.NewLoop(ctx, logger, loopConfig, enumerator, tracker, store)
	if err != nil {
		return errors.WithMessage(err, "new sampler loop")
	}
	janitor := sampler.NewJanitor(ctx, logger, store, retention, loopConfig.JanitorInterval)

	signalsChan := make(chan os.Signal, 1)
	signal.Notify(signalsChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalsChan
		logger.Info("Stop sampling")
		_ = loop.Stop()
		janitor.Stop()
	}()

	if err := loop.Start(); err != nil {
		return errors.WithMessage(err, "start sampler loop")
	}
	janitor.Start()

	loopErr := loop.WaitUntilCompletion()
	janitor.Stop()
	janitor.WaitUntilCompletion()

	if loopErr != nil {
		return errors.WithMessage(loopErr, "sampler loop aborted")
	}
	return nil
}
