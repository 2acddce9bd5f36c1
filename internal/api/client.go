// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"bloodconnect/internal/common/errors"
	httpclient "bloodconnect/internal/common/http"
	"bloodconnect/internal/common/logger"
	"bloodconnect/internal/models"
)

// TokenSource supplies the bearer token attached to backend calls. A nil
// source sends unauthenticated requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is the typed REST client for the coordination backend. All reads
// and writes of durable platform data go through it; the client itself owns
// nothing durable.
type Client struct {
	baseURL    string
	httpClient *httpclient.Client
	tokens     TokenSource
	logger     logger.Logger
}

// NewClient creates a backend client rooted at baseURL (including the /api
// prefix, e.g. https://host/api).
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, log logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpclient.NewClient(timeout),
		tokens:     tokens,
		logger:     log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// ==========================
// Users & roles
// ==========================

type roleResponse struct {
	Role  string `json:"role"`
	Email string `json:"email"`
}

// ResolveRole fetches the authoritative role for an identity. This endpoint
// is the only source of truth for authorization; identity-provider claims
// are never trusted for it.
func (c *Client) ResolveRole(ctx context.Context, identityID string) (models.Role, error) {
	var out roleResponse
	if err := c.call(ctx, "GET", fmt.Sprintf("/users/%s/role", identityID), nil, &out); err != nil {
		return models.RoleUnresolved, errors.NewRoleUndeterminedError(identityID, err)
	}

	role, err := models.ParseRole(out.Role)
	if err != nil {
		return models.RoleUnresolved, errors.NewRoleUndeterminedError(identityID, err)
	}
	return role, nil
}

// SyncUserRequest is the post-signup backend write.
type SyncUserRequest struct {
	IdentityID string      `json:"identityId"`
	Email      string      `json:"email"`
	Role       models.Role `json:"-"`
}

// MarshalJSON serializes the role in the backend's upper-case wire form.
func (r SyncUserRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		IdentityID string `json:"identityId"`
		Email      string `json:"email"`
		Role       string `json:"role"`
	}{r.IdentityID, r.Email, r.Role.Upper()})
}

// SyncUser creates or updates the backend user record after signup.
func (c *Client) SyncUser(ctx context.Context, req SyncUserRequest) error {
	if !req.Role.IsAssignable() {
		return errors.NewInvalidInputError(fmt.Sprintf("role %q is not assignable", req.Role))
	}
	if err := c.call(ctx, "POST", "/users/sync", req, nil); err != nil {
		return errors.NewUserSyncFailedError(req.IdentityID, err)
	}
	return nil
}

// GetUser fetches the backend user record for an identity.
func (c *Client) GetUser(ctx context.Context, identityID string) (*models.User, error) {
	var out models.User
	if err := c.call(ctx, "GET", fmt.Sprintf("/users/%s", identityID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ==========================
// Notifications
// ==========================

type countResponse struct {
	Count int `json:"count"`
}

// UnreadNotifications returns the unread items for a user, newest first as
// served by the backend.
func (c *Client) UnreadNotifications(ctx context.Context, identityID string) ([]models.Notification, error) {
	var out []models.Notification
	if err := c.call(ctx, "GET", fmt.Sprintf("/notifications/%s/unread", identityID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadCount returns the unread notification count. It can exceed the
// length of the unread item list when the backend pages items.
func (c *Client) UnreadCount(ctx context.Context, identityID string) (int, error) {
	var out countResponse
	if err := c.call(ctx, "GET", fmt.Sprintf("/notifications/%s/count", identityID), nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// AllNotifications returns the full notification history for a user.
func (c *Client) AllNotifications(ctx context.Context, identityID string) ([]models.Notification, error) {
	var out []models.Notification
	if err := c.call(ctx, "GET", fmt.Sprintf("/notifications/%s", identityID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead transitions one notification to read.
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID int64) error {
	return c.call(ctx, "PUT", fmt.Sprintf("/notifications/%d/read", notificationID), nil, nil)
}

// MarkAllNotificationsRead transitions every unread notification for a user
// to read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, identityID string) error {
	return c.call(ctx, "PUT", fmt.Sprintf("/notifications/%s/read-all", identityID), nil, nil)
}

// ==========================
// Blood requests
// ==========================

// CreateRequestInput is a patient's new blood request.
type CreateRequestInput struct {
	RequesterID   string  `json:"requesterId"`
	PatientName   string  `json:"patientName,omitempty"`
	BloodGroup    string  `json:"bloodGroup"`
	UnitsRequired int     `json:"unitsRequired"`
	Urgency       string  `json:"urgency"`
	HospitalName  string  `json:"hospitalName"`
	Latitude      float64 `json:"latitude,omitempty"`
	Longitude     float64 `json:"longitude,omitempty"`
}

// CreateRequest opens a new blood request.
func (c *Client) CreateRequest(ctx context.Context, in CreateRequestInput) (*models.BloodRequest, error) {
	var out models.BloodRequest
	if err := c.call(ctx, "POST", "/requests", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PendingRequests lists all open requests, for the map and donor views.
func (c *Client) PendingRequests(ctx context.Context) ([]models.BloodRequest, error) {
	var out []models.BloodRequest
	if err := c.call(ctx, "GET", "/requests/pending", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MyRequests lists the requests created by one requester.
func (c *Client) MyRequests(ctx context.Context, identityID string) ([]models.BloodRequest, error) {
	var out []models.BloodRequest
	if err := c.call(ctx, "GET", fmt.Sprintf("/requests/my/%s", identityID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HospitalRequests lists the requests raised by a hospital.
func (c *Client) HospitalRequests(ctx context.Context, identityID string) ([]models.BloodRequest, error) {
	var out []models.BloodRequest
	if err := c.call(ctx, "GET", fmt.Sprintf("/requests/hospital/%s", identityID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRequestStatus moves a request through its lifecycle. The state math
// (who may fulfill what) lives server-side.
func (c *Client) UpdateRequestStatus(ctx context.Context, requestID int64, status string) (*models.BloodRequest, error) {
	var out models.BloodRequest
	body := map[string]string{"status": status}
	if err := c.call(ctx, "PUT", fmt.Sprintf("/requests/%d/status", requestID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ==========================
// Donations & appointments
// ==========================

// AcceptRequestAsDonor pledges a donor against an open request.
func (c *Client) AcceptRequestAsDonor(ctx context.Context, donorID string, requestID int64) (*models.Donation, error) {
	var out models.Donation
	path := fmt.Sprintf("/donations/donor/%s/accept/%d", donorID, requestID)
	if err := c.call(ctx, "POST", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DonorDonations lists a donor's donation history.
func (c *Client) DonorDonations(ctx context.Context, donorID string) ([]models.Donation, error) {
	var out []models.Donation
	if err := c.call(ctx, "GET", fmt.Sprintf("/donations/donor/%s", donorID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DonorAppointments lists a donor's scheduled appointments.
func (c *Client) DonorAppointments(ctx context.Context, donorID string) ([]models.Appointment, error) {
	var out []models.Appointment
	if err := c.call(ctx, "GET", fmt.Sprintf("/appointments/donor/%s", donorID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateInventoryInput adjusts one blood-group line of a hospital's stock.
type UpdateInventoryInput struct {
	HospitalID     string `json:"hospitalId"`
	BloodGroup     string `json:"bloodGroup"`
	UnitsAvailable int    `json:"unitsAvailable"`
}

// UpdateInventory writes a hospital inventory line.
func (c *Client) UpdateInventory(ctx context.Context, in UpdateInventoryInput) (*models.InventoryItem, error) {
	var out models.InventoryItem
	if err := c.call(ctx, "POST", "/inventory/update", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HospitalInventory lists a hospital's current stock by blood group.
func (c *Client) HospitalInventory(ctx context.Context, hospitalID string) ([]models.InventoryItem, error) {
	var out []models.InventoryItem
	if err := c.call(ctx, "GET", fmt.Sprintf("/inventory/hospital/%s", hospitalID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ==========================
// Transport
// ==========================

// call performs one round trip and decodes the response into out (when out
// is non-nil). Errors come back classified: 401/403 as auth, 404 as
// not-found, 5xx as retryable server errors.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	operation := fmt.Sprintf("%s %s", method, path)

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return errors.NewBadResponseError(operation, err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return errors.NewBadResponseError(operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		switch {
		case err != nil:
			// The request still goes out; the backend's 401 is the real
			// verdict. Logged so auth drift is diagnosable.
			c.logger.WithError(err).Debug("token source failed, sending unauthenticated request", map[string]interface{}{
				"operation": operation,
			})
		case token != "":
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return errors.NewNetworkError(operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewNetworkError(operation, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.NewAuthRejectedError(operation, string(respBody))
	case resp.StatusCode == http.StatusNotFound:
		return errors.NewResourceNotFoundError(path, string(respBody))
	case resp.StatusCode >= 500:
		return errors.NewServerError(operation, resp.StatusCode, string(respBody))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errors.NewBadResponseError(operation,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.NewBadResponseError(operation, err)
		}
	}
	return nil
}
