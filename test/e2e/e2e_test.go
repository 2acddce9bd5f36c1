// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodconnect/internal/api"
	"bloodconnect/internal/common/logger"
	"bloodconnect/internal/identity"
	"bloodconnect/internal/models"
	"bloodconnect/internal/notify"
	"bloodconnect/internal/routeguard"
	"bloodconnect/internal/session"
)

// fakeIdentity is an in-process stand-in for the identity provider's REST
// surface: signUp, signInWithPassword and update.
type fakeIdentity struct {
	mu       sync.Mutex
	accounts map[string]string // email -> password
	nextID   int
	ids      map[string]string // email -> localId
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{accounts: map[string]string{}, ids: map[string]string{}}
}

func (f *fakeIdentity) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		email, _ := body["email"].(string)
		password, _ := body["password"].(string)

		f.mu.Lock()
		defer f.mu.Unlock()

		writeErr := func(code string) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{"code": 400, "message": code},
			})
		}
		writeIdentity := func(localID string) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"localId":      localID,
				"email":        email,
				"idToken":      "token-" + localID,
				"refreshToken": "refresh-" + localID,
				"expiresIn":    "3600",
			})
		}

		switch {
		case strings.HasSuffix(r.URL.Path, ":signUp"):
			if _, exists := f.accounts[email]; exists {
				writeErr("EMAIL_EXISTS")
				return
			}
			if len(password) < 6 {
				writeErr("WEAK_PASSWORD : Password should be at least 6 characters")
				return
			}
			f.nextID++
			localID := fmt.Sprintf("e2e-%d", f.nextID)
			f.accounts[email] = password
			f.ids[email] = localID
			writeIdentity(localID)

		case strings.HasSuffix(r.URL.Path, ":signInWithPassword"):
			stored, exists := f.accounts[email]
			if !exists {
				writeErr("EMAIL_NOT_FOUND")
				return
			}
			if stored != password {
				writeErr("INVALID_PASSWORD")
				return
			}
			writeIdentity(f.ids[email])

		case strings.HasSuffix(r.URL.Path, ":update"):
			json.NewEncoder(w).Encode(map[string]interface{}{"localId": "ok"})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

// fakeBackend is an in-process coordination API: user sync, role lookup and
// the notification endpoints.
type fakeBackend struct {
	mu            sync.Mutex
	roles         map[string]string // identityId -> role
	notifications map[string][]models.Notification
	nextNotifID   int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{roles: map[string]string{}, notifications: map[string][]models.Notification{}}
}

func (f *fakeBackend) push(identityID, notifType, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextNotifID++
	f.notifications[identityID] = append(f.notifications[identityID], models.Notification{
		ID:          f.nextNotifID,
		RecipientID: identityID,
		Type:        notifType,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	})
}

func (f *fakeBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

		switch {
		case r.Method == "POST" && r.URL.Path == "/users/sync":
			var body struct {
				IdentityID string `json:"identityId"`
				Role       string `json:"role"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.roles[body.IdentityID] = strings.ToLower(body.Role)
			w.WriteHeader(http.StatusOK)

		case r.Method == "GET" && len(parts) == 3 && parts[0] == "users" && parts[2] == "role":
			role, ok := f.roles[parts[1]]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"role": role})

		case r.Method == "GET" && len(parts) == 3 && parts[0] == "notifications" && parts[2] == "unread":
			items := f.notifications[parts[1]]
			unread := []models.Notification{}
			for _, n := range items {
				if !n.IsRead {
					unread = append(unread, n)
				}
			}
			json.NewEncoder(w).Encode(unread)

		case r.Method == "GET" && len(parts) == 3 && parts[0] == "notifications" && parts[2] == "count":
			count := 0
			for _, n := range f.notifications[parts[1]] {
				if !n.IsRead {
					count++
				}
			}
			json.NewEncoder(w).Encode(map[string]int{"count": count})

		case r.Method == "PUT" && len(parts) == 3 && parts[0] == "notifications" && parts[2] == "read-all":
			items := f.notifications[parts[1]]
			for i := range items {
				items[i].IsRead = true
			}
			w.WriteHeader(http.StatusOK)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestFullClientFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	idSrv := httptest.NewServer(newFakeIdentity().handler())
	defer idSrv.Close()
	backendState := newFakeBackend()
	backendSrv := httptest.NewServer(backendState.handler())
	defer backendSrv.Close()

	log := logger.NewTestLogger(t)
	idClient := identity.NewClient(idSrv.URL, "e2e-key", 5*time.Second)
	backend := api.NewClient(backendSrv.URL, 5*time.Second, idClient, log)

	store := session.NewStore(idClient, backend, log)
	defer store.Close()

	// 1. Sign up a donor; the backend record is created by the sync call.
	sess, err := store.SignUp(ctx, "donor@example.com", "secret-pass", models.SignUpProfile{
		DisplayName: "E2E Donor",
		Role:        models.RoleDonor,
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleDonor, sess.Role)
	identityID := sess.IdentityID

	// 2. A donor view renders; a hospital view bounces to the donor dashboard.
	assert.Equal(t, routeguard.ActionRender, routeguard.Decide(sess, models.RoleDonor).Action)
	d := routeguard.Decide(sess, models.RoleHospital)
	assert.Equal(t, routeguard.ActionRedirect, d.Action)
	assert.Equal(t, "/donor/dashboard", d.Location)

	// 3. Sign out: the session clears and guarded views redirect to sign-in.
	require.NoError(t, store.SignOut(ctx))
	assert.True(t, store.Current().IsAnonymous())
	assert.Equal(t, routeguard.SignInPath, routeguard.Decide(store.Current(), models.RoleDonor).Location)

	// 4. Sign back in: the role comes from the backend lookup this time.
	sess, err = store.SignIn(ctx, "donor@example.com", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, identityID, sess.IdentityID)
	assert.Equal(t, models.RoleDonor, sess.Role)

	// 5. Start the poller; a pending request notification shows up.
	backendState.push(identityID, models.NotificationRequestCreated, "New blood request: O- at City Hospital")

	poller := notify.NewPoller(
		&notify.Config{Interval: 50 * time.Millisecond},
		backend,
		log,
		nil,
	)
	defer poller.Stop()
	poller.Start(sess)

	require.Eventually(t, func() bool {
		return poller.Snapshot().UnreadCount == 1
	}, 5*time.Second, 20*time.Millisecond)

	snap := poller.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, models.NotificationRequestCreated, snap.Items[0].Type)
	assert.Equal(t, identityID, snap.Items[0].RecipientID)

	// 6. Mark everything read and watch the snapshot empty out.
	require.NoError(t, poller.MarkAllRead(ctx, sess))
	require.Eventually(t, func() bool {
		s := poller.Snapshot()
		return s.UnreadCount == 0 && len(s.Items) == 0
	}, 5*time.Second, 20*time.Millisecond)

	// 7. Marking all read again is a local no-op.
	require.NoError(t, poller.MarkAllRead(ctx, sess))

	// 8. Sign out stops the flow cleanly.
	poller.Stop()
	require.NoError(t, store.SignOut(ctx))
}

func TestSignInWithWrongPasswordE2E(t *testing.T) {
	ctx := context.Background()

	fakeID := newFakeIdentity()
	idSrv := httptest.NewServer(fakeID.handler())
	defer idSrv.Close()
	backendSrv := httptest.NewServer(newFakeBackend().handler())
	defer backendSrv.Close()

	log := logger.NewTestLogger(t)
	idClient := identity.NewClient(idSrv.URL, "e2e-key", 5*time.Second)
	backend := api.NewClient(backendSrv.URL, 5*time.Second, idClient, log)
	store := session.NewStore(idClient, backend, log)
	defer store.Close()

	_, err := store.SignUp(ctx, "p@example.com", "secret-pass", models.SignUpProfile{Role: models.RolePatient})
	require.NoError(t, err)
	require.NoError(t, store.SignOut(ctx))

	_, err = store.SignIn(ctx, "p@example.com", "wrong-pass")
	require.Error(t, err)
	assert.True(t, store.Current().IsAnonymous())
}
