package events

import (
	"time"

	"github.com/spec-kit/field-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventServiceRequestCreated          EventType = "service_request.created"
	EventServiceRequestStatusChanged    EventType = "service_request.status_changed"
	EventServiceRequestEvidenceAttached EventType = "service_request.evidence_attached"
)

// Event represents a domain event emitted by services after a successful write.
type Event struct {
	ID               string      `json:"id"`
	Type             EventType   `json:"type"`
	ServiceRequestID string      `json:"serviceRequestId"`
	ActorID          string      `json:"actorId"`
	Timestamp        time.Time   `json:"timestamp"`
	Payload          interface{} `json:"payload"`
}

// ServiceRequestCreatedPayload payload.
type ServiceRequestCreatedPayload struct {
	ServiceName string                      `json:"serviceName"`
	AssignedTo  string                      `json:"assignedTo"`
	Status      domain.ServiceRequestStatus `json:"status"`
}

// ServiceRequestStatusChangedPayload payload.
type ServiceRequestStatusChangedPayload struct {
	OldStatus domain.ServiceRequestStatus `json:"oldStatus"`
	NewStatus domain.ServiceRequestStatus `json:"newStatus"`
}

// ServiceRequestEvidenceAttachedPayload lists which evidence fields were set.
type ServiceRequestEvidenceAttachedPayload struct {
	Signature     bool `json:"signature"`
	AudioFeedback bool `json:"audioFeedback"`
	VideoFeedback bool `json:"videoFeedback"`
}
