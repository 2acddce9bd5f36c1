// internal/session/store.go
package session

import (
	"context"
	"sync"
	"time"

	"bloodconnect/internal/api"
	"bloodconnect/internal/common/errors"
	"bloodconnect/internal/common/logger"
	"bloodconnect/internal/common/metrics"
	"bloodconnect/internal/identity"
	"bloodconnect/internal/models"
)

// IdentityProvider is the slice of the identity client the store depends on.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*identity.Identity, error)
	SignIn(ctx context.Context, email, password string) (*identity.Identity, error)
	SignOut(ctx context.Context) error
	UpdateDisplayName(ctx context.Context, name string) error
	OnAuthStateChanged(fn identity.StateListener) func()
}

// RoleDirectory is the slice of the backend client the store depends on.
type RoleDirectory interface {
	ResolveRole(ctx context.Context, identityID string) (models.Role, error)
	SyncUser(ctx context.Context, req api.SyncUserRequest) error
}

// Listener observes session replacements. It receives a value copy.
type Listener func(s models.Session)

const defaultResolveTimeout = 10 * time.Second

// Store maintains exactly one current session. It is the single writer; all
// other components read value copies via Current or Subscribe. Dependencies
// are constructor-injected so the store is testable without globals.
type Store struct {
	provider       IdentityProvider
	directory      RoleDirectory
	logger         logger.Logger
	resolveTimeout time.Duration

	mu          sync.RWMutex
	session     models.Session
	listeners   map[int]Listener
	nextSub     int
	signingUp   bool
	unsubscribe func()
}

// NewStore creates a session store and subscribes it, once for the life of
// the process, to identity-provider state changes.
func NewStore(provider IdentityProvider, directory RoleDirectory, log logger.Logger) *Store {
	s := &Store{
		provider:       provider,
		directory:      directory,
		logger:         log.WithFields(map[string]interface{}{"component": "session"}),
		resolveTimeout: defaultResolveTimeout,
		session:        models.Anonymous(),
		listeners:      map[int]Listener{},
	}
	s.unsubscribe = provider.OnAuthStateChanged(s.handleAuthChange)
	return s
}

// Close detaches the store from identity-provider state changes.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Current returns a copy of the session.
func (s *Store) Current() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Subscribe registers a listener for session replacements and returns an
// unsubscribe function.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SignUp creates an identity account, sets its display name, and syncs the
// user record to the backend. The resulting session carries profile.Role
// optimistically. A sync failure after account creation does not roll the
// account back; it is logged and reported, and the account stays usable for
// sign-in.
func (s *Store) SignUp(ctx context.Context, email, password string, profile models.SignUpProfile) (models.Session, error) {
	if !profile.Role.IsAssignable() {
		return s.Current(), errors.NewInvalidInputError("signup role must be donor, hospital, patient or admin")
	}

	s.mu.Lock()
	s.signingUp = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.signingUp = false
		s.mu.Unlock()
	}()

	ident, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		s.logger.WithError(err).Warn("signup rejected by identity provider", map[string]interface{}{"email": email})
		return s.Current(), err
	}

	if profile.DisplayName != "" {
		if err := s.provider.UpdateDisplayName(ctx, profile.DisplayName); err != nil {
			// Cosmetic only; the account and session are already valid.
			s.logger.WithError(err).Warn("display name update failed", map[string]interface{}{"identityId": ident.ID})
		}
	}

	var syncErr error
	if err := s.directory.SyncUser(ctx, api.SyncUserRequest{
		IdentityID: ident.ID,
		Email:      ident.Email,
		Role:       profile.Role,
	}); err != nil {
		// Recognized inconsistency window: the identity account exists
		// without a backend record. Surfaced to the caller, session
		// still established.
		syncErr = err
		s.logger.WithError(err).Error("backend user sync failed after account creation", map[string]interface{}{
			"identityId": ident.ID,
		})
	}

	next := models.Session{
		IdentityID:  ident.ID,
		Email:       ident.Email,
		DisplayName: profile.DisplayName,
		Role:        profile.Role,
		IsLoading:   false,
	}
	s.replace(next)

	return next, syncErr
}

// SignIn authenticates against the identity provider. Role resolution runs
// inside the resulting auth-state transition, so by the time SignIn returns
// the session has settled at role:X or role:unresolved.
func (s *Store) SignIn(ctx context.Context, email, password string) (models.Session, error) {
	_, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		metrics.SignInAttempts.WithLabelValues("failure").Inc()
		return s.Current(), err
	}
	metrics.SignInAttempts.WithLabelValues("success").Inc()
	return s.Current(), nil
}

// SignOut invalidates the identity-provider session and clears the local
// session. Safe to call when already signed out.
func (s *Store) SignOut(ctx context.Context) error {
	return s.provider.SignOut(ctx)
}

// ResolveRole re-runs the backend role lookup for the current session. This
// is the manual refresh path out of the unresolved rest state; unresolved is
// never retried automatically. A failed lookup leaves the session exactly as
// it was: an established role only ever downgrades via sign-out.
func (s *Store) ResolveRole(ctx context.Context, identityID string) (models.Role, error) {
	role, err := s.directory.ResolveRole(ctx, identityID)
	if err != nil {
		metrics.RoleResolutions.WithLabelValues("failure").Inc()
		s.logger.WithError(err).Warn("role resolution failed", map[string]interface{}{"identityId": identityID})
		return role, err
	}
	metrics.RoleResolutions.WithLabelValues("success").Inc()

	s.mu.Lock()
	if s.session.IdentityID == identityID {
		s.session.Role = role
		s.session.IsLoading = false
	}
	next := s.session
	listeners := s.snapshotListenersLocked()
	s.mu.Unlock()

	notify(listeners, next)
	return role, nil
}

// handleAuthChange is the single subscription to identity-provider state.
// On sign-in it installs a loading session, resolves the role, then swaps
// the settled session in one replacement, so consumers never observe a
// stale role on a fresh identity. On sign-out it clears synchronously.
func (s *Store) handleAuthChange(ident *identity.Identity) {
	if ident == nil {
		s.replace(models.Anonymous())
		return
	}

	s.mu.Lock()
	signingUp := s.signingUp
	s.mu.Unlock()
	if signingUp {
		// SignUp settles the session itself with the profile role; a
		// lookup here would race the not-yet-synced backend record.
		return
	}

	loading := models.Session{
		IdentityID:  ident.ID,
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		Role:        models.RoleUnresolved,
		IsLoading:   true,
	}
	s.replace(loading)

	ctx, cancel := context.WithTimeout(context.Background(), s.resolveTimeout)
	defer cancel()

	role, err := s.directory.ResolveRole(ctx, ident.ID)
	if err != nil {
		metrics.RoleResolutions.WithLabelValues("failure").Inc()
		s.logger.WithError(err).Warn("role resolution failed, session rests at unresolved", map[string]interface{}{
			"identityId": ident.ID,
		})
		role = models.RoleUnresolved
	} else {
		metrics.RoleResolutions.WithLabelValues("success").Inc()
	}

	settled := loading
	settled.Role = role
	settled.IsLoading = false
	s.replace(settled)
}

// replace swaps the session atomically and notifies listeners outside the
// lock.
func (s *Store) replace(next models.Session) {
	s.mu.Lock()
	s.session = next
	listeners := s.snapshotListenersLocked()
	s.mu.Unlock()

	notify(listeners, next)
}

func (s *Store) snapshotListenersLocked() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []Listener, sess models.Session) {
	for _, fn := range listeners {
		fn(sess)
	}
}
