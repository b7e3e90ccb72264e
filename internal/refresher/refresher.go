// Package refresher keeps the schedule snapshot warm by periodically
// forcing a fetch through the coordinator.
package refresher

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSpec refreshes every five minutes.
const DefaultSpec = "@every 5m"

// Refreshable is what the refresher drives, satisfied by the agent.
type Refreshable interface {
	Refresh(ctx context.Context) error
}

type Refresher struct {
	cron   *cron.Cron
	target Refreshable
	spec   string
}

func New(target Refreshable, spec string) *Refresher {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Refresher{
		cron:   cron.New(),
		target: target,
		spec:   spec,
	}
}

// Start schedules the refresh loop. It returns after scheduling; the
// loop stops when ctx is done.
func (r *Refresher) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.spec, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := r.target.Refresh(refreshCtx); err != nil {
			slog.Warn("refresher: refresh failed", "error", err)
			return
		}
		slog.Debug("refresher: snapshot refreshed")
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	go func() {
		<-ctx.Done()
		stopCtx := r.cron.Stop()
		<-stopCtx.Done()
	}()
	return nil
}
