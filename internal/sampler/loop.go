package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/procpulse/agent/internal/enumerate"
	"github.com/procpulse/agent/internal/storage"
	"github.com/procpulse/agent/internal/tracking"
	"github.com/procpulse/agent/internal/types"
)

const storageRetryPause = 500 * time.Millisecond

// Loop drives the sampling cadence: enumerate, diff against the session
// table, persist, once per interval. It is the sole writer of the store.
type Loop struct {
	logger    *zap.Logger
	config    *Config
	context   context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	running   *atomic.Bool

	enumerator enumerate.Enumerator
	tracker    *tracking.Tracker
	store      *storage.Store

	loopErr error
}

func NewLoop(ctx context.Context, rootLogger *zap.Logger, config *Config,
	enumerator enumerate.Enumerator, tracker *tracking.Tracker, store *storage.Store) (*Loop, error) {
	if valid, err := config.Valid(); !valid {
		return nil, errors.WithMessage(err, "invalid sampler config")
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Loop{
		logger:     rootLogger.Named("sampler-loop"),
		config:     config,
		context:    ctx,
		cancel:     cancel,
		running:    atomic.NewBool(false),
		enumerator: enumerator,
		tracker:    tracker,
		store:      store,
	}, nil
}

func (l *Loop) Start() error {
	if l.running.Load() {
		return errors.New("sampler loop already running")
	}

	l.logger.Info("Start sampler loop", zap.Duration("Interval", l.config.Interval),
		zap.Float64("ActiveThreshold", l.config.ActiveThreshold),
		zap.Duration("Retention", l.config.Retention))

	l.running.Toggle() // Turn on

	l.waitGroup.Add(1)
	go l.run()
	return nil
}

func (l *Loop) Stop() error {
	l.cancel()
	return nil
}

func (l *Loop) WaitUntilCompletion() error {
	l.waitGroup.Wait()
	l.running.Toggle() // Turn off
	return l.loopErr
}

func (l *Loop) Running() bool {
	return l.running.Load()
}

func (l *Loop) run() {
	defer l.waitGroup.Done()

	// Tick targets are derived from a monotonic base so the cadence is
	// immune to wall-clock adjustments.
	base := time.Now()
	tickIndex := 0

	for {
		target := base.Add(time.Duration(tickIndex) * l.config.Interval)
		tickIndex++

		timer := time.NewTimer(time.Until(target))
		select {
		case <-l.context.Done():
			timer.Stop()
			l.logger.Info("Sampler loop stopped")
			return
		case <-timer.C:
		}

		if err := l.tick(); err != nil {
			// Losing a tick silently would corrupt the presence
			// bookkeeping that end-of-session detection depends on.
			l.logger.Error("Persistence failed, aborting sampler loop", zap.Error(err))
			l.loopErr = err
			l.cancel()
			return
		}
	}
}

// tick runs one full sampling pass. Cancellation is only observed between
// ticks, so the batch write always runs to completion once started.
func (l *Loop) tick() error {
	readings, err := l.enumerator.Snapshot()
	if err != nil {
		// The session table must not advance on a failed enumeration,
		// otherwise every session would count a missed tick.
		l.logger.Warn("Enumeration failed, skipping tick", zap.Error(err))
		return nil
	}

	mono := time.Now()
	wallTs := types.EpochSeconds(mono)

	result := l.tracker.Advance(readings, mono, wallTs)

	if err := l.store.WriteTick(context.Background(), result); err != nil {
		l.logger.Warn("Tick write failed, retrying once", zap.Error(err))
		time.Sleep(storageRetryPause)
		if err := l.store.WriteTick(context.Background(), result); err != nil {
			return errors.WithMessage(err, "write tick batch")
		}
	}

	l.logger.Debug("Tick complete", zap.Int("Sessions", l.tracker.TrackedSessions()),
		zap.Int("Samples", len(result.Samples)), zap.Int("Ended", len(result.Ended)))
	return nil
}
