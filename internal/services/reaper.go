package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/spinsight/internal/metrics"
	"github.com/example/spinsight/internal/repository"
)

// SweepStore is the storage the reaper sweeps.
type SweepStore interface {
	RevokeExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CodeSweepStore drops long-expired one-time codes.
type CodeSweepStore interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReaperConfig sets the sweep interval and retention windows.
type ReaperConfig struct {
	Interval         time.Duration
	SessionRetention time.Duration
	CodeRetention    time.Duration
}

// SweepReport counts what one sweep changed.
type SweepReport struct {
	Revoked         int64
	SessionsDeleted int64
	CodesDeleted    int64
}

// Reaper periodically revokes expired sessions and deletes stale sessions and codes.
// It is owned by the process lifecycle: Start after the database connects, Stop on shutdown.
type Reaper struct {
	sessions SweepStore
	codes    CodeSweepStore
	cfg      ReaperConfig
	now      func() time.Time
	log      *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewReaper creates a new Reaper. codes may be nil. A nil clock means time.Now.
func NewReaper(sessions SweepStore, codes CodeSweepStore, cfg ReaperConfig, now func() time.Time, log *zap.Logger) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{
		sessions: sessions,
		codes:    codes,
		cfg:      cfg,
		now:      now,
		log:      log,
	}
}

// Start launches the sweep loop. Calling Start on a running reaper is a no-op.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.stopped = false

	go r.loop(ctx, r.done)
	r.log.Info("session reaper started", zap.Duration("interval", r.cfg.Interval))
}

// Stop cancels the loop and waits for it to exit.
func (r *Reaper) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.log.Info("session reaper stopped")
}

// Done is closed when the loop has exited, whether stopped or halted on an unusable store.
func (r *Reaper) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Halted reports whether the loop gave up because the store is unusable.
func (r *Reaper) Halted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *Reaper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); errors.Is(err, repository.ErrStoreUnavailable) {
				r.log.Error("session store unavailable, reaper halted", zap.Error(err))
				r.mu.Lock()
				r.stopped = true
				r.mu.Unlock()
				return
			}
		}
	}
}

// Sweep runs every cleanup step once. A failing step is logged and the remaining steps still run;
// the first error is returned. Running Sweep repeatedly over the same data converges.
func (r *Reaper) Sweep(ctx context.Context) (SweepReport, error) {
	var (
		report   SweepReport
		firstErr error
	)
	now := r.now()

	step := func(name string, fn func() (int64, error), into *int64) {
		n, err := fn()
		if err != nil {
			metrics.ReaperSweepsTotal.WithLabelValues(name, "error").Inc()
			r.log.Error("reaper step failed", zap.String("step", name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		metrics.ReaperSweepsTotal.WithLabelValues(name, "ok").Inc()
		*into = n
	}

	step("revoke_expired", func() (int64, error) {
		return r.sessions.RevokeExpired(ctx, now)
	}, &report.Revoked)
	if errors.Is(firstErr, repository.ErrStoreUnavailable) {
		return report, firstErr
	}

	if r.cfg.SessionRetention > 0 {
		step("delete_sessions", func() (int64, error) {
			return r.sessions.DeleteInactiveBefore(ctx, now.Add(-r.cfg.SessionRetention))
		}, &report.SessionsDeleted)
	}

	if r.codes != nil && r.cfg.CodeRetention > 0 {
		step("delete_codes", func() (int64, error) {
			return r.codes.DeleteExpiredBefore(ctx, now.Add(-r.cfg.CodeRetention))
		}, &report.CodesDeleted)
	}

	if report.Revoked > 0 {
		metrics.SessionsRevokedTotal.WithLabelValues("reaper").Add(float64(report.Revoked))
		r.log.Info("expired sessions revoked", zap.Int64("count", report.Revoked))
	}

	return report, firstErr
}
