// internal/models/notification.go
package models

import "time"

// Notification types emitted by the coordination backend.
const (
	NotificationRequestCreated   = "REQUEST_CREATED"
	NotificationRequestAccepted  = "REQUEST_ACCEPTED"
	NotificationRequestFulfilled = "REQUEST_FULFILLED"
	NotificationRequestCancelled = "REQUEST_CANCELLED"
)

// Notification is a unit of asynchronous information delivered to a user.
// Notifications are created server-side; the client only ever transitions
// them from unread to read.
type Notification struct {
	ID               int64     `json:"id"`
	RecipientID      string    `json:"recipientId"`
	Type             string    `json:"type"`
	Message          string    `json:"message"`
	RelatedRequestID int64     `json:"relatedRequestId,omitempty"`
	IsRead           bool      `json:"isRead"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NotificationSnapshot is the client's cached view of unread notifications
// for one identity. It is replaced wholesale on every poll; UnreadCount may
// exceed len(Items) when the backend pages the item list, so callers must
// not assume equality.
type NotificationSnapshot struct {
	Items       []Notification `json:"items"`
	UnreadCount int            `json:"unreadCount"`
}

// Clone returns a deep copy so consumers can never mutate the poller's
// snapshot through a shared slice.
func (s NotificationSnapshot) Clone() NotificationSnapshot {
	out := NotificationSnapshot{UnreadCount: s.UnreadCount, Items: []Notification{}}
	out.Items = append(out.Items, s.Items...)
	return out
}
