// internal/models/request.go
package models

import "time"

// Blood request urgency levels.
const (
	UrgencyNormal    = "NORMAL"
	UrgencyUrgent    = "URGENT"
	UrgencyEmergency = "EMERGENCY"
)

// Blood request lifecycle states as served by the backend.
const (
	RequestPending   = "PENDING"
	RequestAccepted  = "ACCEPTED"
	RequestFulfilled = "FULFILLED"
	RequestCancelled = "CANCELLED"
)

// BloodRequest is a patient's or hospital's open ask for blood units.
type BloodRequest struct {
	ID            int64     `json:"id"`
	RequesterID   string    `json:"requesterId"`
	PatientName   string    `json:"patientName,omitempty"`
	BloodGroup    string    `json:"bloodGroup"`
	UnitsRequired int       `json:"unitsRequired"`
	Urgency       string    `json:"urgency"`
	HospitalName  string    `json:"hospitalName"`
	Latitude      float64   `json:"latitude,omitempty"`
	Longitude     float64   `json:"longitude,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// InventoryItem is one blood-group line of a hospital's stock.
type InventoryItem struct {
	ID             int64     `json:"id"`
	HospitalID     string    `json:"hospitalId"`
	BloodGroup     string    `json:"bloodGroup"`
	UnitsAvailable int       `json:"unitsAvailable"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// Donation statuses.
const (
	DonationPending   = "PENDING"
	DonationCompleted = "COMPLETED"
	DonationCancelled = "CANCELLED"
)

// Donation records a donor's pledge against a request or a general donation
// to a hospital.
type Donation struct {
	ID            int64      `json:"id"`
	DonorID       string     `json:"donorId"`
	HospitalID    string     `json:"hospitalId,omitempty"`
	RequestID     int64      `json:"requestId,omitempty"`
	BloodGroup    string     `json:"bloodGroup"`
	Units         int        `json:"units"`
	DonationType  string     `json:"donationType"` // DIRECT_TO_PATIENT or TO_HOSPITAL
	Status        string     `json:"status"`
	DonationDate  time.Time  `json:"donationDate"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`
}

// Appointment is a scheduled donation slot at a hospital.
type Appointment struct {
	ID                 int64     `json:"id"`
	DonorID            string    `json:"donorId"`
	HospitalID         string    `json:"hospitalId"`
	ScheduledDate      time.Time `json:"scheduledDate"`
	Status             string    `json:"status"` // SCHEDULED, COMPLETED, CANCELLED
	Notes              string    `json:"notes,omitempty"`
	CancellationReason string    `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}
