package devices

import (
	"context"
	"log/slog"
	"time"
)

// StaleMarker is implemented by registries whose online rows can go stale.
// Both the device registry and the camera store satisfy it.
type StaleMarker interface {
	MarkStaleOffline(ctx context.Context) (int64, error)
}

// Reconciler periodically demotes silent devices to offline. The sweep is
// idempotent and commutative: running it twice in the same interval changes
// nothing. Rows that never went online (pending cameras) are left alone by
// the stores' WHERE clauses.
type Reconciler struct {
	registries []StaleMarker
	interval   time.Duration
}

func NewReconciler(interval time.Duration, registries ...StaleMarker) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{registries: registries, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over every registry. A failing registry is logged and
// skipped; it will be retried on the next tick.
func (r *Reconciler) Sweep(ctx context.Context) {
	for _, reg := range r.registries {
		n, err := reg.MarkStaleOffline(ctx)
		if err != nil {
			slog.Error("Liveness sweep failed", "error", err)
			continue
		}
		if n > 0 {
			slog.Info("Marked stale devices offline", "count", n)
		}
	}
}
