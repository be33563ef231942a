package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/validation"
	apperrors "github.com/spec-kit/field-service/pkg/util/errorutil"
)

const serviceRequestResource = "Service request"

// ServiceRequestService enforces ownership and the update contract for
// service requests.
type ServiceRequestService struct {
	requests   repository.ServiceRequestRepository
	history    repository.HistoryRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// ServiceRequestDependencies bundles collaborators for the service.
type ServiceRequestDependencies struct {
	ServiceRequestRepo repository.ServiceRequestRepository
	HistoryRepo        repository.HistoryRepository
	Dispatcher         events.Dispatcher
	Metrics            *observability.Metrics
	Logger             *zap.Logger
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
}

// CreateServiceRequestInput is a validated create payload. Status is optional
// and defaults to Pending.
type CreateServiceRequestInput struct {
	ServiceName       string
	CustomerName      string
	Phone             string
	Email             string
	CompanyName       string
	AssignedTo        string
	ScheduledDateTime time.Time
	Status            *domain.ServiceRequestStatus
	Comments          *string
	Signature         *string
	AudioFeedback     *string
	VideoFeedback     *string
}

// NewServiceRequestService constructs the service.
func NewServiceRequestService(deps ServiceRequestDependencies) *ServiceRequestService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ServiceRequestService{
		requests:   deps.ServiceRequestRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
	}
}

// Create stores a new request owned by ownerID.
func (s *ServiceRequestService) Create(ctx context.Context, ownerID string, input CreateServiceRequestInput) (*domain.ServiceRequest, error) {
	status := domain.StatusPending
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, invalidStatusError()
		}
		status = *input.Status
	}

	req := &domain.ServiceRequest{
		OwnerID:           ownerID,
		ServiceName:       strings.TrimSpace(input.ServiceName),
		CustomerName:      strings.TrimSpace(input.CustomerName),
		Phone:             strings.TrimSpace(input.Phone),
		Email:             domain.NormalizeEmail(input.Email),
		CompanyName:       strings.TrimSpace(input.CompanyName),
		AssignedTo:        strings.TrimSpace(input.AssignedTo),
		ScheduledDateTime: input.ScheduledDateTime.UTC(),
		Status:            status,
		Comments:          trimOptional(input.Comments),
		Signature:         input.Signature,
		AudioFeedback:     input.AudioFeedback,
		VideoFeedback:     input.VideoFeedback,
		CreatedAt:         s.timestamp(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:             events.EventServiceRequestCreated,
		ServiceRequestID: req.ID,
		ActorID:          ownerID,
		Payload: events.ServiceRequestCreatedPayload{
			ServiceName: req.ServiceName,
			AssignedTo:  req.AssignedTo,
			Status:      req.Status,
		},
	})
	return req, nil
}

// List returns the caller's requests, oldest first. An owner without
// requests gets an empty slice.
func (s *ServiceRequestService) List(ctx context.Context, ownerID string) ([]domain.ServiceRequest, error) {
	list, err := s.requests.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return list, nil
}

// Get returns a single request. Requests owned by someone else are reported
// as not found.
func (s *ServiceRequestService) Get(ctx context.Context, ownerID, id string) (*domain.ServiceRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound(serviceRequestResource)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !req.OwnedBy(ownerID) {
		return nil, apperrors.NewNotFound(serviceRequestResource)
	}
	return req, nil
}

// Update applies patch to a request the caller owns. Ownership is resolved
// before the status is validated so a foreign id never reveals more than a
// missing one. Concurrent updates to one record are last-write-wins.
func (s *ServiceRequestService) Update(ctx context.Context, ownerID, id string, patch domain.ServiceRequestPatch) (*domain.ServiceRequest, error) {
	current, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil && !domain.CanTransition(current.Status, *patch.Status) {
		return nil, invalidStatusError()
	}
	patch.Comments = trimOptional(patch.Comments)

	updated, err := s.requests.Update(ctx, id, ownerID, patch, s.timestamp())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound(serviceRequestResource)
		}
		return nil, apperrors.NewInternalError(err)
	}
	s.metrics.RecordMutation(observability.MutationUpdated)

	if patch.Status != nil && *patch.Status != current.Status {
		s.publishEvent(ctx, events.Event{
			Type:             events.EventServiceRequestStatusChanged,
			ServiceRequestID: updated.ID,
			ActorID:          ownerID,
			Payload: events.ServiceRequestStatusChangedPayload{
				OldStatus: current.Status,
				NewStatus: updated.Status,
			},
		})
	}
	if patch.TouchesEvidence() {
		s.publishEvent(ctx, events.Event{
			Type:             events.EventServiceRequestEvidenceAttached,
			ServiceRequestID: updated.ID,
			ActorID:          ownerID,
			Payload: events.ServiceRequestEvidenceAttachedPayload{
				Signature:     patch.Signature != nil,
				AudioFeedback: patch.AudioFeedback != nil,
				VideoFeedback: patch.VideoFeedback != nil,
			},
		})
	}
	return updated, nil
}

// History returns the status history of a request the caller owns.
func (s *ServiceRequestService) History(ctx context.Context, ownerID, id string) ([]domain.ServiceRequestHistory, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByServiceRequest(ctx, id)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

// CountByStatus reports how many requests exist per status across all owners.
func (s *ServiceRequestService) CountByStatus(ctx context.Context) (map[domain.ServiceRequestStatus]int64, error) {
	return s.requests.CountByStatus(ctx)
}

func (s *ServiceRequestService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// publishEvent runs subscribers synchronously. Their failures are logged and
// never undo the write that produced the event.
func (s *ServiceRequestService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.timestamp()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("service_request_id", event.ServiceRequestID),
			zap.Error(err))
	}
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func invalidStatusError() error {
	names := make([]string, 0, len(domain.Statuses))
	for _, status := range domain.Statuses {
		names = append(names, string(status))
	}
	return validation.NewFieldsError(apperrors.FieldError{
		Field:   "status",
		Message: fmt.Sprintf("status must be one of: %s", strings.Join(names, ", ")),
	})
}
