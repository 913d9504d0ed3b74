package sampler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/procpulse/agent/internal/storage"
	"github.com/procpulse/agent/internal/types"
)

// Janitor prunes samples older than the retention window on its own
// coarse cadence, decoupled from the sampling interval. Session rows are
// left untouched.
type Janitor struct {
	logger    *zap.Logger
	context   context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	running   *atomic.Bool

	store     *storage.Store
	retention time.Duration
	interval  time.Duration
}

func NewJanitor(ctx context.Context, rootLogger *zap.Logger, store *storage.Store,
	retention, interval time.Duration) *Janitor {
	ctx, cancel := context.WithCancel(ctx)

	return &Janitor{
		logger:    rootLogger.Named("retention-janitor"),
		context:   ctx,
		cancel:    cancel,
		running:   atomic.NewBool(false),
		store:     store,
		retention: retention,
		interval:  interval,
	}
}

func (j *Janitor) Start() {
	j.running.Toggle() // Turn on

	j.waitGroup.Add(1)
	go j.run()
}

func (j *Janitor) Stop() {
	j.cancel()
}

func (j *Janitor) WaitUntilCompletion() {
	j.waitGroup.Wait()
	j.running.Toggle() // Turn off
}

func (j *Janitor) Running() bool {
	return j.running.Load()
}

func (j *Janitor) run() {
	defer j.waitGroup.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.context.Done():
			j.logger.Debug("Retention janitor stopped")
			return
		case <-ticker.C:
			j.prune()
		}
	}
}

func (j *Janitor) prune() {
	cutoffTs := types.EpochSeconds(time.Now()) - j.retention.Seconds()

	deleted, err := j.store.PruneSamples(j.context, cutoffTs)
	if err != nil {
		j.logger.Warn("Prune failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		j.logger.Debug("Pruned old samples", zap.Int64("Deleted", deleted),
			zap.Float64("CutoffTs", cutoffTs))
	}
}
