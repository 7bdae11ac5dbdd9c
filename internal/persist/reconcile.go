package persist

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/adamgoodwin/highlow/internal/game"
)

// ReconcileOnSignIn decides which snapshot wins when a user signs in and a
// remote profile exists: the remote snapshot replaces the local one
// wholesale, except the live auth identity, which always comes from the
// session that just authenticated — never from a stored snapshot.
func ReconcileOnSignIn(local, remote PersistedState) PersistedState {
	merged := remote
	merged.AuthEmail = local.AuthEmail
	merged.AuthAccessToken = local.AuthAccessToken
	return merged
}

// DefaultQuietPeriod is how long the debounced saver waits for the
// mutations to settle before writing remotely.
const DefaultQuietPeriod = 600 * time.Millisecond

// saveTimeout bounds a single remote write.
const saveTimeout = 10 * time.Second

// DebouncedSaver coalesces remote writes: each queued snapshot cancels any
// pending write and schedules a new one after the quiet period, so the
// remote store only ever receives the latest state. A single-slot pending
// register, not a queue.
type DebouncedSaver struct {
	mu       sync.Mutex
	clock    quartz.Clock
	cloud    CloudStore
	logger   *log.Logger
	notifier game.Notifier
	quiet    time.Duration
	timer    *quartz.Timer
}

// NewDebouncedSaver creates a saver writing to cloud. A zero quiet period
// falls back to DefaultQuietPeriod.
func NewDebouncedSaver(clock quartz.Clock, cloud CloudStore, notifier game.Notifier, logger *log.Logger, quiet time.Duration) *DebouncedSaver {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &DebouncedSaver{
		clock:    clock,
		cloud:    cloud,
		logger:   logger.WithPrefix("cloud-sync"),
		notifier: notifier,
		quiet:    quiet,
	}
}

// Queue schedules state to be written for userID after the quiet period,
// superseding any pending write.
func (d *DebouncedSaver) Queue(userID string, state PersistedState) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.quiet, func() {
		d.save(userID, state)
	})
}

// Cancel drops any pending write, e.g. on sign-out or shutdown.
func (d *DebouncedSaver) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// save performs the write. Failures are reported as a warning toast and
// logged; local state stays authoritative and the next mutation will queue
// a fresh attempt.
func (d *DebouncedSaver) save(userID string, state PersistedState) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := d.cloud.Save(ctx, userID, state); err != nil {
		d.logger.Warn("Cloud save failed", "user", userID, "error", err)
		d.notifier.Notify(game.ToastWarning, "Cloud save error: progress kept locally")
		return
	}
	d.logger.Debug("Cloud save complete", "user", userID)
}
