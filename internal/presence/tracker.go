package presence

import (
	"context"
	"sync"
	"time"

	"github.com/damoang/angple-forum/internal/domain"
	"github.com/damoang/angple-forum/internal/metrics"
	"github.com/damoang/angple-forum/internal/scheduler"
	pkglogger "github.com/damoang/angple-forum/pkg/logger"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
)

// Defaults
const (
	DefaultWindow        = 15 * time.Minute
	DefaultSweepInterval = time.Minute
	DefaultPoolSize      = 64

	recordTimeout = 2 * time.Second
	drainTimeout  = 5 * time.Second
)

// Config configures a Tracker
type Config struct {
	Window        time.Duration
	SweepInterval time.Duration
	PoolSize      int
}

// Tracker is the process-wide online registry. Lifecycle: NewTracker, Start
// at service start, Stop at shutdown. Record never blocks the caller.
type Tracker struct {
	store Store
	cfg   Config
	now   func() time.Time
	log   zerolog.Logger

	mu   sync.RWMutex
	pool *ants.Pool
}

// NewTracker creates a Tracker over store; zero config values take defaults
func NewTracker(store Store, cfg Config) *Tracker {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	return &Tracker{
		store: store,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
		log:   pkglogger.WithComponent("presence"),
	}
}

// Start creates the recording pool and registers the sweep task. sched may be
// nil when the caller drives Sweep itself.
func (t *Tracker) Start(sched *scheduler.Scheduler) error {
	pool, err := ants.NewPool(t.cfg.PoolSize, ants.WithNonblocking(true))
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.pool = pool
	t.mu.Unlock()

	if sched != nil {
		sched.Register("presence-sweep", t.cfg.SweepInterval, t.Sweep)
	}
	t.log.Info().Dur("window", t.cfg.Window).Int("pool", t.cfg.PoolSize).Msg("presence tracker started")
	return nil
}

// Stop drains in-flight records and releases the pool
func (t *Tracker) Stop() {
	t.mu.Lock()
	pool := t.pool
	t.pool = nil
	t.mu.Unlock()

	if pool == nil {
		return
	}
	if err := pool.ReleaseTimeout(drainTimeout); err != nil {
		t.log.Warn().Err(err).Msg("presence pool did not drain in time")
	}
	t.log.Info().Msg("presence tracker stopped")
}

// Record queues the session's activity. Entries are dropped, never waited on,
// when the pool is saturated or the tracker is stopped.
func (t *Tracker) Record(entry domain.OnlineEntry) {
	if entry.SessionID == "" {
		return
	}
	if entry.LastSeen.IsZero() {
		entry.LastSeen = t.now()
	}

	t.mu.RLock()
	pool := t.pool
	t.mu.RUnlock()
	if pool == nil {
		metrics.PresenceDropped.Inc()
		return
	}

	err := pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := t.store.Upsert(ctx, entry); err != nil {
			t.log.Warn().Err(err).Str("session", entry.SessionID).Msg("presence record failed")
		}
	})
	if err != nil {
		metrics.PresenceDropped.Inc()
	}
}

// Online returns the sessions seen within the window, newest first
func (t *Tracker) Online(ctx context.Context) ([]domain.OnlineEntry, error) {
	return t.store.Since(ctx, t.now().Add(-t.cfg.Window))
}

// Stats counts members and guests within the window
func (t *Tracker) Stats(ctx context.Context) (domain.OnlineStats, error) {
	entries, err := t.Online(ctx)
	if err != nil {
		return domain.OnlineStats{}, err
	}

	var stats domain.OnlineStats
	for _, e := range entries {
		if e.IsGuest() {
			stats.Guests++
		} else {
			stats.Members++
		}
	}
	stats.Total = stats.Members + stats.Guests

	metrics.OnlineSessions.WithLabelValues("member").Set(float64(stats.Members))
	metrics.OnlineSessions.WithLabelValues("guest").Set(float64(stats.Guests))
	return stats, nil
}

// Sweep removes entries older than the window. Failures are logged and also
// returned so the scheduler can record them.
func (t *Tracker) Sweep(ctx context.Context) error {
	removed, err := t.store.Sweep(ctx, t.now().Add(-t.cfg.Window))
	if err != nil {
		t.log.Error().Err(err).Msg("presence sweep failed")
		return err
	}
	if removed > 0 {
		t.log.Debug().Int("removed", removed).Msg("presence sweep")
	}
	return nil
}
