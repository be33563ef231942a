package domain

import "time"

// ServiceRequestStatus enumerates lifecycle states for a service request.
type ServiceRequestStatus string

const (
	StatusPending    ServiceRequestStatus = "Pending"
	StatusInProgress ServiceRequestStatus = "In Progress"
	StatusCompleted  ServiceRequestStatus = "Completed"
	StatusCancelled  ServiceRequestStatus = "Cancelled"
	StatusOnHold     ServiceRequestStatus = "On Hold"
)

// Statuses lists every valid status in display order.
var Statuses = []ServiceRequestStatus{
	StatusPending,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusOnHold,
}

// Valid reports whether s is a member of the status enumeration.
func (s ServiceRequestStatus) Valid() bool {
	for _, candidate := range Statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// ParseStatus converts raw input into a status. The match is exact.
func ParseStatus(raw string) (ServiceRequestStatus, bool) {
	status := ServiceRequestStatus(raw)
	return status, status.Valid()
}

// CanTransition reports whether a request may move from one status to another.
// Every status is reachable from every other one.
func CanTransition(from, to ServiceRequestStatus) bool {
	return from.Valid() && to.Valid()
}

// ServiceRequest is a scheduled field-service job owned by the user who created it.
type ServiceRequest struct {
	ID                string
	OwnerID           string
	ServiceName       string
	CustomerName      string
	Phone             string
	Email             string
	CompanyName       string
	AssignedTo        string
	ScheduledDateTime time.Time
	Status            ServiceRequestStatus
	Comments          *string
	Signature         *string
	AudioFeedback     *string
	VideoFeedback     *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OwnedBy reports whether userID owns the request.
func (r *ServiceRequest) OwnedBy(userID string) bool {
	return r != nil && userID != "" && r.OwnerID == userID
}

// ServiceRequestPatch carries the only fields an update may touch. Nil fields
// are left as they are.
type ServiceRequestPatch struct {
	Comments      *string
	Status        *ServiceRequestStatus
	Signature     *string
	AudioFeedback *string
	VideoFeedback *string
}

// TouchesEvidence reports whether any evidence field is set.
func (p ServiceRequestPatch) TouchesEvidence() bool {
	return p.Signature != nil || p.AudioFeedback != nil || p.VideoFeedback != nil
}

// Apply copies the present fields of p onto r.
func (p ServiceRequestPatch) Apply(r *ServiceRequest) {
	if p.Comments != nil {
		r.Comments = p.Comments
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Signature != nil {
		r.Signature = p.Signature
	}
	if p.AudioFeedback != nil {
		r.AudioFeedback = p.AudioFeedback
	}
	if p.VideoFeedback != nil {
		r.VideoFeedback = p.VideoFeedback
	}
}
