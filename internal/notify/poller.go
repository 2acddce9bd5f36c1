// internal/notify/poller.go
package notify

import (
	"context"
	"sync"
	"time"

	"bloodconnect/internal/common/errors"
	"bloodconnect/internal/common/logger"
	"bloodconnect/internal/common/metrics"
	"bloodconnect/internal/models"
)

// API is the slice of the backend client the poller depends on.
type API interface {
	UnreadNotifications(ctx context.Context, identityID string) ([]models.Notification, error)
	UnreadCount(ctx context.Context, identityID string) (int, error)
	MarkNotificationRead(ctx context.Context, notificationID int64) error
	MarkAllNotificationsRead(ctx context.Context, identityID string) error
}

// Config holds poller settings.
type Config struct {
	Interval     time.Duration
	FetchTimeout time.Duration
}

// UpdateFunc observes snapshot replacements. It receives a deep copy.
type UpdateFunc func(snapshot models.NotificationSnapshot)

// Poller keeps an approximately fresh unread-notification snapshot for one
// identity. It is a single-owner resource with explicit Start/Stop; the
// owner must Stop it (or Start it for the new identity) whenever the
// session's identity changes, so a result computed for identity A is never
// applied after the poller was restarted for identity B.
type Poller struct {
	config   *Config
	api      API
	logger   logger.Logger
	onUpdate UpdateFunc

	mu          sync.Mutex
	snapshot    models.NotificationSnapshot
	identityID  string
	generation  int
	cancel      context.CancelFunc
	inFlight    bool
	inFlightGen int
}

// NewPoller creates a poller. onUpdate may be nil.
func NewPoller(config *Config, backend API, log logger.Logger, onUpdate UpdateFunc) *Poller {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 10 * time.Second
	}
	return &Poller{
		config:   config,
		api:      backend,
		logger:   log.WithFields(map[string]interface{}{"component": "notify"}),
		onUpdate: onUpdate,
		snapshot: models.NotificationSnapshot{Items: []models.Notification{}},
	}
}

// Start begins polling for the session's identity: one immediate fetch plus
// a fetch per interval tick. Calling Start while running restarts the loop
// for the new identity and discards any in-flight result from the old one.
func (p *Poller) Start(session models.Session) {
	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.generation++
	p.identityID = session.IdentityID
	p.cancel = cancel
	p.snapshot = models.NotificationSnapshot{Items: []models.Notification{}}
	gen := p.generation
	identityID := p.identityID
	p.mu.Unlock()

	p.logger.Info("poller started", map[string]interface{}{
		"identityId": identityID,
		"interval":   p.config.Interval.String(),
	})

	go p.run(ctx, gen, identityID)
}

// Stop cancels the polling loop and invalidates in-flight work. Safe to call
// repeatedly and before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.generation++
	p.identityID = ""
	p.mu.Unlock()
}

// Snapshot returns a deep copy of the latest snapshot.
func (p *Poller) Snapshot() models.NotificationSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot.Clone()
}

// MarkRead marks one notification read, then re-fetches so local state is
// reconciled against the server rather than patched optimistically.
func (p *Poller) MarkRead(ctx context.Context, notificationID int64) error {
	if err := p.api.MarkNotificationRead(ctx, notificationID); err != nil {
		metrics.MarkReadCalls.WithLabelValues("one", "failure").Inc()
		return err
	}
	metrics.MarkReadCalls.WithLabelValues("one", "success").Inc()
	p.refetch(ctx)
	return nil
}

// MarkAllRead marks every unread notification read and re-fetches. When the
// snapshot already shows zero unread it is a no-op.
func (p *Poller) MarkAllRead(ctx context.Context, session models.Session) error {
	p.mu.Lock()
	empty := p.snapshot.UnreadCount == 0
	p.mu.Unlock()
	if empty {
		return nil
	}

	if err := p.api.MarkAllNotificationsRead(ctx, session.IdentityID); err != nil {
		metrics.MarkReadCalls.WithLabelValues("all", "failure").Inc()
		return err
	}
	metrics.MarkReadCalls.WithLabelValues("all", "success").Inc()
	p.refetch(ctx)
	return nil
}

func (p *Poller) run(ctx context.Context, gen int, identityID string) {
	p.fetch(ctx, gen, identityID)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetch(ctx, gen, identityID)
		}
	}
}

// refetch triggers an immediate fetch for the currently started identity,
// outside the timer cadence. No ordering is guaranteed against a concurrent
// tick; both pull from the same endpoints, so last-writer-wins is correct.
func (p *Poller) refetch(ctx context.Context) {
	p.mu.Lock()
	gen := p.generation
	identityID := p.identityID
	running := p.cancel != nil
	p.mu.Unlock()

	if !running {
		return
	}
	p.fetch(ctx, gen, identityID)
}

// fetch performs one snapshot round trip. At most one fetch per generation
// is in flight: a tick that fires while its generation's fetch is pending is
// skipped, never raced. A fetch from a dead generation does not block the
// restarted poller's first fetch; its result is discarded below anyway.
func (p *Poller) fetch(ctx context.Context, gen int, identityID string) {
	p.mu.Lock()
	if p.inFlight && p.inFlightGen == gen {
		p.mu.Unlock()
		metrics.PollTicks.WithLabelValues(metrics.TickSkipped).Inc()
		p.logger.Debug("fetch already in flight, tick skipped", map[string]interface{}{"identityId": identityID})
		return
	}
	p.inFlight = true
	p.inFlightGen = gen
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.inFlightGen == gen {
			p.inFlight = false
		}
		p.mu.Unlock()
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, p.config.FetchTimeout)
	defer cancel()

	start := time.Now()
	next, result := p.fetchSnapshot(fetchCtx, identityID)
	metrics.PollDuration.Observe(time.Since(start).Seconds())

	if result == metrics.TickFailed {
		// Logged, snapshot untouched; the next tick retries independently.
		metrics.PollTicks.WithLabelValues(metrics.TickFailed).Inc()
		return
	}

	p.mu.Lock()
	if p.generation != gen {
		// Poller was stopped or restarted for another identity while
		// this fetch was in flight. The result must be discarded.
		p.mu.Unlock()
		metrics.PollTicks.WithLabelValues(metrics.TickStale).Inc()
		return
	}
	p.snapshot = next
	onUpdate := p.onUpdate
	p.mu.Unlock()

	metrics.PollTicks.WithLabelValues(result).Inc()
	metrics.UnreadNotifications.Set(float64(next.UnreadCount))

	if onUpdate != nil {
		onUpdate(next.Clone())
	}
}

// fetchSnapshot pulls unread items and count. Not-found and server errors
// degrade to an empty snapshot because notifications are best-effort; other
// failures report TickFailed and change nothing.
func (p *Poller) fetchSnapshot(ctx context.Context, identityID string) (models.NotificationSnapshot, string) {
	empty := models.NotificationSnapshot{Items: []models.Notification{}}

	items, err := p.api.UnreadNotifications(ctx, identityID)
	if err != nil {
		return empty, p.classifyFetchError(err, identityID)
	}

	count, err := p.api.UnreadCount(ctx, identityID)
	if err != nil {
		return empty, p.classifyFetchError(err, identityID)
	}

	if items == nil {
		items = []models.Notification{}
	}
	return models.NotificationSnapshot{Items: items, UnreadCount: count}, metrics.TickCompleted
}

func (p *Poller) classifyFetchError(err error, identityID string) string {
	if errors.IsDegradable(err) {
		p.logger.Debug("notification fetch degraded to empty snapshot", map[string]interface{}{
			"identityId": identityID,
			"code":       string(errors.CodeOf(err)),
		})
		return metrics.TickDegraded
	}
	p.logger.WithError(err).Warn("notification fetch failed, retrying next tick", map[string]interface{}{
		"identityId": identityID,
	})
	return metrics.TickFailed
}
