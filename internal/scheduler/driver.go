package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Driver is the background loop that periodically expands due schedules.
type Driver struct {
	svc      *Service
	interval time.Duration
	logger   *slog.Logger
}

// NewDriver wires the driver around a schedule service.
func NewDriver(svc *Service, logger *slog.Logger) *Driver {
	return &Driver{
		svc:      svc,
		interval: svc.cfg.PollInterval,
		logger:   logger,
	}
}

// Start scans immediately, then on every tick until ctx is cancelled.
func (d *Driver) Start(ctx context.Context) error {
	d.logger.Info("schedule driver started", "interval", d.interval)

	d.runScan(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("schedule driver stopped")
			return ctx.Err()
		case <-ticker.C:
			d.runScan(ctx)
		}
	}
}

func (d *Driver) runScan(ctx context.Context) {
	scanCtx, cancel := context.WithTimeout(ctx, d.interval)
	defer cancel()

	if _, err := d.svc.ExpandDue(scanCtx); err != nil {
		d.logger.Error("schedule scan failed", "error", err)
	}
}
