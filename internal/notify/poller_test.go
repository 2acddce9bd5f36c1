// internal/notify/poller_test.go
package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodconnect/internal/common/errors"
	"bloodconnect/internal/common/logger"
	"bloodconnect/internal/models"
)

type fakeAPI struct {
	mu    sync.Mutex
	items []models.Notification
	count int

	unreadErr error
	countErr  error

	// release, when set, blocks UnreadNotifications until closed.
	release chan struct{}

	unreadCalls  int
	markCalls    []int64
	markAllCalls int
	markAllErr   error
	markOneErr   error
}

func (f *fakeAPI) UnreadNotifications(ctx context.Context, identityID string) ([]models.Notification, error) {
	f.mu.Lock()
	f.unreadCalls++
	release := f.release
	err := f.unreadErr
	items := append([]models.Notification{}, f.items...)
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (f *fakeAPI) UnreadCount(ctx context.Context, identityID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func (f *fakeAPI) MarkNotificationRead(ctx context.Context, notificationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls = append(f.markCalls, notificationID)
	if f.markOneErr != nil {
		return f.markOneErr
	}
	for i, n := range f.items {
		if n.ID == notificationID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			f.count--
			break
		}
	}
	return nil
}

func (f *fakeAPI) MarkAllNotificationsRead(ctx context.Context, identityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markAllCalls++
	if f.markAllErr != nil {
		return f.markAllErr
	}
	f.items = nil
	f.count = 0
	return nil
}

func (f *fakeAPI) set(items []models.Notification, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = items
	f.count = count
}

func donorSession() models.Session {
	return models.Session{IdentityID: "u1", Email: "d@example.com", Role: models.RoleDonor}
}

func newTestPoller(t *testing.T, backend API, onUpdate UpdateFunc) *Poller {
	t.Helper()
	// A long interval keeps the ticker out of the way; tests drive fetches
	// through Start's immediate fetch or refetch.
	return NewPoller(&Config{Interval: time.Hour}, backend, logger.NewTestLogger(t), onUpdate)
}

func waitForUpdate(t *testing.T, updates <-chan models.NotificationSnapshot) models.NotificationSnapshot {
	t.Helper()
	select {
	case snap := <-updates:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot update")
		return models.NotificationSnapshot{}
	}
}

func TestStart_FetchesImmediately(t *testing.T) {
	backend := &fakeAPI{
		items: []models.Notification{
			{ID: 2, Type: models.NotificationRequestAccepted, Message: "accepted"},
			{ID: 1, Type: models.NotificationRequestCreated, Message: "created"},
		},
		count: 2,
	}
	updates := make(chan models.NotificationSnapshot, 4)
	p := newTestPoller(t, backend, func(s models.NotificationSnapshot) { updates <- s })
	defer p.Stop()

	p.Start(donorSession())

	snap := waitForUpdate(t, updates)
	assert.Equal(t, 2, snap.UnreadCount)
	require.Len(t, snap.Items, 2)

	// Snapshot() hands out copies, never the internal slice.
	got := p.Snapshot()
	got.Items[0].Message = "mutated"
	assert.Equal(t, "accepted", p.Snapshot().Items[0].Message)
}

func TestFetch_ServerErrorDegradesToEmptySnapshot(t *testing.T) {
	backend := &fakeAPI{
		unreadErr: errors.NewServerError("GET /notifications/u1/unread", 500, "boom"),
	}
	updates := make(chan models.NotificationSnapshot, 4)
	p := newTestPoller(t, backend, func(s models.NotificationSnapshot) { updates <- s })
	defer p.Stop()

	p.Start(donorSession())

	// The endpoint failing server-side is not an error for the caller: the
	// snapshot degrades to empty and polling continues.
	snap := waitForUpdate(t, updates)
	assert.Empty(t, snap.Items)
	assert.Equal(t, 0, snap.UnreadCount)
}

func TestFetch_NetworkErrorLeavesSnapshotUntouched(t *testing.T) {
	backend := &fakeAPI{
		items: []models.Notification{{ID: 1, Message: "hello"}},
		count: 1,
	}
	p := newTestPoller(t, backend, nil)

	// Seed a good snapshot through a direct fetch.
	p.Start(donorSession())
	require.Eventually(t, func() bool {
		return p.Snapshot().UnreadCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	backend.mu.Lock()
	backend.unreadErr = errors.NewNetworkError("GET /notifications/u1/unread", assert.AnError)
	backend.mu.Unlock()

	p.refetch(context.Background())

	// Failed fetch changed nothing; stale-but-present beats empty.
	snap := p.Snapshot()
	assert.Equal(t, 1, snap.UnreadCount)
	require.Len(t, snap.Items, 1)
	p.Stop()
}

func TestFetch_SkipsWhenInFlight(t *testing.T) {
	backend := &fakeAPI{count: 1}
	p := newTestPoller(t, backend, nil)

	p.mu.Lock()
	p.inFlight = true
	p.inFlightGen = 1
	p.mu.Unlock()

	p.fetch(context.Background(), 1, "u1")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 0, backend.unreadCalls)
}

func TestFetch_OldGenerationDoesNotBlockRestart(t *testing.T) {
	backend := &fakeAPI{count: 1}
	p := newTestPoller(t, backend, nil)

	// A fetch from a now-dead generation is still unwinding.
	p.mu.Lock()
	p.inFlight = true
	p.inFlightGen = 1
	p.generation = 2
	p.identityID = "u2"
	p.mu.Unlock()

	// The restarted poller's first fetch must go out immediately, not wait
	// a whole interval behind the old identity's fetch.
	p.fetch(context.Background(), 2, "u2")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 1, backend.unreadCalls)
	assert.Equal(t, 1, p.Snapshot().UnreadCount)
}

func TestFetch_StaleGenerationIsDiscarded(t *testing.T) {
	backend := &fakeAPI{
		items:   []models.Notification{{ID: 9, Message: "old identity"}},
		count:   1,
		release: make(chan struct{}),
	}
	p := newTestPoller(t, backend, nil)

	p.Start(donorSession()) // fetch for u1 blocks on release

	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.unreadCalls == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Identity changes before the first fetch lands.
	p.Stop()
	close(backend.release)

	// The blocked fetch completes but its result is from a dead generation.
	require.Never(t, func() bool {
		return p.Snapshot().UnreadCount != 0
	}, 200*time.Millisecond, 20*time.Millisecond)
	assert.Empty(t, p.Snapshot().Items)
}

func TestRestart_ResetsSnapshotForNewIdentity(t *testing.T) {
	backend := &fakeAPI{
		items: []models.Notification{{ID: 1, Message: "for u1"}},
		count: 1,
	}
	p := newTestPoller(t, backend, nil)
	defer p.Stop()

	p.Start(donorSession())
	require.Eventually(t, func() bool {
		return p.Snapshot().UnreadCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	backend.set(nil, 0)
	p.Start(models.Session{IdentityID: "u2", Role: models.RoleHospital})

	// The old identity's snapshot is gone immediately, not after the
	// first fetch for the new one.
	require.Eventually(t, func() bool {
		snap := p.Snapshot()
		return snap.UnreadCount == 0 && len(snap.Items) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMarkAllRead_NoOpAtZeroUnread(t *testing.T) {
	backend := &fakeAPI{}
	p := newTestPoller(t, backend, nil)

	require.NoError(t, p.MarkAllRead(context.Background(), donorSession()))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 0, backend.markAllCalls)
}

func TestMarkAllRead_RoundTrip(t *testing.T) {
	backend := &fakeAPI{
		items: []models.Notification{{ID: 1}, {ID: 2}},
		count: 2,
	}
	p := newTestPoller(t, backend, nil)
	defer p.Stop()

	p.Start(donorSession())
	require.Eventually(t, func() bool {
		return p.Snapshot().UnreadCount == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, p.MarkAllRead(context.Background(), donorSession()))

	snap := p.Snapshot()
	assert.Equal(t, 0, snap.UnreadCount)
	assert.Empty(t, snap.Items)
}

func TestMarkRead_RemovesItemAndLowersCount(t *testing.T) {
	backend := &fakeAPI{
		items: []models.Notification{{ID: 1}, {ID: 2}},
		count: 2,
	}
	p := newTestPoller(t, backend, nil)
	defer p.Stop()

	p.Start(donorSession())
	require.Eventually(t, func() bool {
		return p.Snapshot().UnreadCount == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, p.MarkRead(context.Background(), 1))

	snap := p.Snapshot()
	assert.Equal(t, 1, snap.UnreadCount)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, int64(2), snap.Items[0].ID)
}

func TestMarkRead_BackendFailurePropagates(t *testing.T) {
	backend := &fakeAPI{
		items:      []models.Notification{{ID: 1}},
		count:      1,
		markOneErr: errors.NewServerError("PUT /notifications/1/read", 500, "boom"),
	}
	p := newTestPoller(t, backend, nil)
	defer p.Stop()

	p.Start(donorSession())
	require.Eventually(t, func() bool {
		return p.Snapshot().UnreadCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	err := p.MarkRead(context.Background(), 1)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeServerError))
	// The unread state is unchanged since the server rejected the write.
	assert.Equal(t, 1, p.Snapshot().UnreadCount)
}

func TestStop_BeforeStartIsSafe(t *testing.T) {
	p := newTestPoller(t, &fakeAPI{}, nil)
	p.Stop()
	p.Stop()
	assert.Equal(t, 0, p.Snapshot().UnreadCount)
}
