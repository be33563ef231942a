package domain

import "time"

// HistoryChangeType captures what a history entry records.
type HistoryChangeType string

const (
	ChangeTypeCreated HistoryChangeType = "CREATED"
	ChangeTypeStatus  HistoryChangeType = "STATUS_CHANGE"
)

// ServiceRequestHistory is an immutable audit trail entry.
type ServiceRequestHistory struct {
	ID               string
	ServiceRequestID string
	ChangeType       HistoryChangeType
	FromStatus       *ServiceRequestStatus
	ToStatus         ServiceRequestStatus
	ChangedBy        string
	CreatedAt        time.Time
}
