// internal/identity/client.go
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"bloodconnect/internal/common/errors"
	httpclient "bloodconnect/internal/common/http"
)

// Identity is the provider's proof of who the user is. It carries no
// application role; the backend is the only source of truth for that.
//
// RefreshToken is captured from the provider but no refresh flow exists yet:
// once ExpiresAt passes, Token fails and the caller signs in again.
type Identity struct {
	ID           string
	Email        string
	DisplayName  string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// StateListener observes auth state transitions. A nil identity means
// signed out.
type StateListener func(ident *Identity)

// Client talks to an Identity-Toolkit-style provider over REST. It owns the
// current credential and publishes sign-in/sign-out transitions to
// subscribed listeners.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client

	mu        sync.Mutex
	current   *Identity
	listeners map[int]StateListener
	nextSub   int
}

// NewClient creates a new identity-provider client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpclient.NewClient(timeout),
		listeners:  map[int]StateListener{},
	}
}

// credentialResponse holds the provider's token endpoint payload.
type credentialResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"` // seconds, as a string
}

type providerError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignUp creates a password account and signs the client in as it.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	cred, err := c.postCredentials(ctx, "accounts:signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}
	return c.setSignedIn(cred), nil
}

// SignIn authenticates an existing password account.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	cred, err := c.postCredentials(ctx, "accounts:signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}
	return c.setSignedIn(cred), nil
}

// UpdateDisplayName sets the display name on the signed-in account.
func (c *Client) UpdateDisplayName(ctx context.Context, name string) error {
	c.mu.Lock()
	ident := c.current
	c.mu.Unlock()
	if ident == nil {
		return errors.NewTokenInvalidError("no signed-in identity")
	}

	_, err := c.postCredentials(ctx, "accounts:update", map[string]interface{}{
		"idToken":           ident.IDToken,
		"displayName":       name,
		"returnSecureToken": false,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.current != nil && c.current.ID == ident.ID {
		c.current.DisplayName = name
	}
	c.mu.Unlock()
	return nil
}

// SignOut discards the local credential and notifies listeners. It is
// idempotent: signing out an already-anonymous client is a no-op.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	wasSignedIn := c.current != nil
	c.current = nil
	listeners := c.snapshotListenersLocked()
	c.mu.Unlock()

	if wasSignedIn {
		for _, fn := range listeners {
			fn(nil)
		}
	}
	return nil
}

// Current returns a copy of the signed-in identity, or nil.
func (c *Client) Current() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	cp := *c.current
	return &cp
}

// Token returns the current identity token for backend Authorization
// headers.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return "", errors.NewTokenInvalidError("no signed-in identity")
	}
	if !c.current.ExpiresAt.IsZero() && time.Now().After(c.current.ExpiresAt) {
		return "", errors.NewTokenInvalidError("identity token expired")
	}
	return c.current.IDToken, nil
}

// OnAuthStateChanged registers a listener for sign-in/sign-out transitions
// and returns an unsubscribe function. Listeners fire synchronously from the
// call that changed state.
func (c *Client) OnAuthStateChanged(fn StateListener) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) setSignedIn(cred *credentialResponse) *Identity {
	expiresIn, _ := strconv.Atoi(cred.ExpiresIn)
	ident := &Identity{
		ID:           cred.LocalID,
		Email:        cred.Email,
		DisplayName:  cred.DisplayName,
		IDToken:      cred.IDToken,
		RefreshToken: cred.RefreshToken,
	}
	if expiresIn > 0 {
		ident.ExpiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}

	c.mu.Lock()
	c.current = ident
	listeners := c.snapshotListenersLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		cp := *ident
		fn(&cp)
	}

	cp := *ident
	return &cp
}

func (c *Client) snapshotListenersLocked() []StateListener {
	out := make([]StateListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}

func (c *Client) postCredentials(ctx context.Context, endpoint string, payload map[string]interface{}) (*credentialResponse, error) {
	reqURL := fmt.Sprintf("%s/v1/%s?key=%s", c.baseURL, endpoint, c.apiKey)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewBadResponseError(endpoint, err)
	}

	req, err := http.NewRequest("POST", reqURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, errors.NewBadResponseError(endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return nil, errors.NewIdentityUnreachableError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewIdentityUnreachableError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyProviderError(resp.StatusCode, body)
	}

	var cred credentialResponse
	if err := json.Unmarshal(body, &cred); err != nil {
		return nil, errors.NewBadResponseError(endpoint, err)
	}

	return &cred, nil
}

// classifyProviderError maps raw provider error codes onto the stable error
// taxonomy. Raw codes are kept in Details only; they never reach the user.
func classifyProviderError(status int, body []byte) error {
	var pe providerError
	_ = json.Unmarshal(body, &pe)
	msg := pe.Error.Message

	switch {
	case msg == "EMAIL_EXISTS":
		return errors.NewEmailInUseError(msg)
	case strings.HasPrefix(msg, "WEAK_PASSWORD"):
		return errors.NewWeakPasswordError(msg)
	case msg == "EMAIL_NOT_FOUND":
		return errors.NewUnknownAccountError(msg)
	case msg == "INVALID_PASSWORD" || msg == "INVALID_LOGIN_CREDENTIALS":
		return errors.NewWrongPasswordError(msg)
	case msg == "INVALID_ID_TOKEN" || msg == "TOKEN_EXPIRED":
		return errors.NewTokenInvalidError(msg)
	case status >= 500:
		return errors.NewIdentityUnreachableError(fmt.Errorf("provider status %d: %s", status, msg))
	default:
		return errors.NewIdentityUnreachableError(fmt.Errorf("provider status %d: %s", status, string(body)))
	}
}
