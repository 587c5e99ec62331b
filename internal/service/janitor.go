package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweep removes stale rows of one kind and reports how many went
type Sweep struct {
	Name  string
	Purge func(ctx context.Context) (int64, error)
}

// Janitor runs its sweeps on a fixed interval: abandoned checkouts and
// expired reset tokens
type Janitor struct {
	sweeps   []Sweep
	interval time.Duration
	logger   *zap.Logger
}

func NewJanitor(interval time.Duration, logger *zap.Logger, sweeps ...Sweep) *Janitor {
	return &Janitor{sweeps: sweeps, interval: interval, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// A failing sweep does not stop the others.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		for _, sweep := range j.sweeps {
			if _, err := sweep.Purge(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("Janitor sweep failed", zap.String("sweep", sweep.Name), zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
