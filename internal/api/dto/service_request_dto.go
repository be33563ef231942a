package dto

import (
	"strings"
	"time"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/service"
	"github.com/spec-kit/field-service/internal/validation"
	apperrors "github.com/spec-kit/field-service/pkg/util/errorutil"
)

// scheduleLayouts are tried in order. Layouts without a zone are read as UTC.
var scheduleLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseScheduledDateTime parses the schedule formats sent by clients.
func ParseScheduledDateTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// CreateServiceRequestRequest payload. ownerId and timestamps are not part
// of it; any such keys in the body are dropped by the decoder.
type CreateServiceRequestRequest struct {
	ServiceName       string  `json:"serviceName" validate:"notblank"`
	CustomerName      string  `json:"customerName" validate:"notblank"`
	Phone             string  `json:"phone" validate:"notblank"`
	Email             string  `json:"email" validate:"notblank"`
	CompanyName       string  `json:"companyName" validate:"notblank"`
	AssignedTo        string  `json:"assignedTo" validate:"notblank"`
	ScheduledDateTime string  `json:"scheduledDateTime" validate:"notblank"`
	Status            *string `json:"status"`
	Comments          *string `json:"comments"`
	Signature         *string `json:"signature"`
	AudioFeedback     *string `json:"audioFeedback"`
	VideoFeedback     *string `json:"videoFeedback"`
}

// ToInput validates the payload and converts it. Every offending field is
// reported in a single validation error.
func (r *CreateServiceRequestRequest) ToInput() (service.CreateServiceRequestInput, error) {
	var fields []apperrors.FieldError
	if err := validation.ValidateStruct(r); err != nil {
		fields = append(fields, apperrors.ToDomainError(err).Fields...)
	}

	var scheduled time.Time
	if strings.TrimSpace(r.ScheduledDateTime) != "" {
		var ok bool
		if scheduled, ok = ParseScheduledDateTime(r.ScheduledDateTime); !ok {
			fields = append(fields, apperrors.FieldError{
				Field:   "scheduledDateTime",
				Message: "scheduledDateTime must be a valid date and time",
			})
		}
	}

	var status *domain.ServiceRequestStatus
	if r.Status != nil {
		parsed, ok := domain.ParseStatus(*r.Status)
		if !ok {
			fields = append(fields, apperrors.FieldError{
				Field:   "status",
				Message: "status must be one of: " + statusList(),
			})
		}
		status = &parsed
	}

	if len(fields) > 0 {
		return service.CreateServiceRequestInput{}, validation.NewFieldsError(fields...)
	}
	return service.CreateServiceRequestInput{
		ServiceName:       r.ServiceName,
		CustomerName:      r.CustomerName,
		Phone:             r.Phone,
		Email:             r.Email,
		CompanyName:       r.CompanyName,
		AssignedTo:        r.AssignedTo,
		ScheduledDateTime: scheduled,
		Status:            status,
		Comments:          r.Comments,
		Signature:         r.Signature,
		AudioFeedback:     r.AudioFeedback,
		VideoFeedback:     r.VideoFeedback,
	}, nil
}

// UpdateServiceRequestRequest carries the only fields an update may change.
// Absent and null keys both leave the stored value untouched.
type UpdateServiceRequestRequest struct {
	Comments      *string `json:"comments"`
	Status        *string `json:"status"`
	Signature     *string `json:"signature"`
	AudioFeedback *string `json:"audioFeedback"`
	VideoFeedback *string `json:"videoFeedback"`
}

// ToPatch converts the payload. The status value is checked by the service
// once ownership is established.
func (r *UpdateServiceRequestRequest) ToPatch() domain.ServiceRequestPatch {
	patch := domain.ServiceRequestPatch{
		Comments:      r.Comments,
		Signature:     r.Signature,
		AudioFeedback: r.AudioFeedback,
		VideoFeedback: r.VideoFeedback,
	}
	if r.Status != nil {
		status := domain.ServiceRequestStatus(*r.Status)
		patch.Status = &status
	}
	return patch
}

// ServiceRequestResponse is the wire shape of a record. The id is exposed as
// _id for the mobile client.
type ServiceRequestResponse struct {
	ID                string                      `json:"_id"`
	OwnerID           string                      `json:"ownerId"`
	ServiceName       string                      `json:"serviceName"`
	CustomerName      string                      `json:"customerName"`
	Phone             string                      `json:"phone"`
	Email             string                      `json:"email"`
	CompanyName       string                      `json:"companyName"`
	AssignedTo        string                      `json:"assignedTo"`
	ScheduledDateTime time.Time                   `json:"scheduledDateTime"`
	Status            domain.ServiceRequestStatus `json:"status"`
	Comments          *string                     `json:"comments,omitempty"`
	Signature         *string                     `json:"signature,omitempty"`
	AudioFeedback     *string                     `json:"audioFeedback,omitempty"`
	VideoFeedback     *string                     `json:"videoFeedback,omitempty"`
	CreatedAt         time.Time                   `json:"createdAt"`
	UpdatedAt         time.Time                   `json:"updatedAt"`
}

// NewServiceRequestResponse maps a domain record.
func NewServiceRequestResponse(req *domain.ServiceRequest) ServiceRequestResponse {
	return ServiceRequestResponse{
		ID:                req.ID,
		OwnerID:           req.OwnerID,
		ServiceName:       req.ServiceName,
		CustomerName:      req.CustomerName,
		Phone:             req.Phone,
		Email:             req.Email,
		CompanyName:       req.CompanyName,
		AssignedTo:        req.AssignedTo,
		ScheduledDateTime: req.ScheduledDateTime.UTC(),
		Status:            req.Status,
		Comments:          req.Comments,
		Signature:         req.Signature,
		AudioFeedback:     req.AudioFeedback,
		VideoFeedback:     req.VideoFeedback,
		CreatedAt:         req.CreatedAt.UTC(),
		UpdatedAt:         req.UpdatedAt.UTC(),
	}
}

// NewServiceRequestList maps a list; an empty input yields an empty, non-nil slice.
func NewServiceRequestList(list []domain.ServiceRequest) []ServiceRequestResponse {
	out := make([]ServiceRequestResponse, 0, len(list))
	for i := range list {
		out = append(out, NewServiceRequestResponse(&list[i]))
	}
	return out
}

// HistoryEntryResponse is one status history row.
type HistoryEntryResponse struct {
	ID               string                       `json:"_id"`
	ServiceRequestID string                       `json:"serviceRequestId"`
	ChangeType       domain.HistoryChangeType     `json:"changeType"`
	FromStatus       *domain.ServiceRequestStatus `json:"fromStatus"`
	ToStatus         domain.ServiceRequestStatus  `json:"toStatus"`
	ChangedBy        string                       `json:"changedBy"`
	CreatedAt        time.Time                    `json:"createdAt"`
}

// NewHistoryResponse maps history entries.
func NewHistoryResponse(entries []domain.ServiceRequestHistory) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntryResponse{
			ID:               e.ID,
			ServiceRequestID: e.ServiceRequestID,
			ChangeType:       e.ChangeType,
			FromStatus:       e.FromStatus,
			ToStatus:         e.ToStatus,
			ChangedBy:        e.ChangedBy,
			CreatedAt:        e.CreatedAt.UTC(),
		})
	}
	return out
}

func statusList() string {
	names := make([]string, 0, len(domain.Statuses))
	for _, s := range domain.Statuses {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
