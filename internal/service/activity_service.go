package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/repository"
)

// ActivityService turns service request events into history rows, metrics
// and log lines.
type ActivityService struct {
	dispatcher events.Dispatcher
	history    repository.HistoryRepository
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, history repository.HistoryRepository, metrics *observability.Metrics, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		dispatcher: dispatcher,
		history:    history,
		metrics:    metrics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventServiceRequestCreated, a.handleCreated)
	a.dispatcher.Subscribe(events.EventServiceRequestStatusChanged, a.handleStatusChanged)
	a.dispatcher.Subscribe(events.EventServiceRequestEvidenceAttached, a.handleEvidenceAttached)
}

func (a *ActivityService) handleCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ServiceRequestCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	a.metrics.RecordMutation(observability.MutationCreated)
	a.logger.Info("ServiceRequestCreated",
		zap.String("service_request_id", event.ServiceRequestID),
		zap.String("owner_id", event.ActorID),
		zap.String("status", string(payload.Status)))

	return a.history.Create(ctx, &domain.ServiceRequestHistory{
		ServiceRequestID: event.ServiceRequestID,
		ChangeType:       domain.ChangeTypeCreated,
		ToStatus:         payload.Status,
		ChangedBy:        event.ActorID,
		CreatedAt:        event.Timestamp,
	})
}

func (a *ActivityService) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ServiceRequestStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	a.metrics.RecordMutation(observability.MutationStatusChanged)
	a.logger.Info("ServiceRequestStatusChanged",
		zap.String("service_request_id", event.ServiceRequestID),
		zap.String("from", string(payload.OldStatus)),
		zap.String("to", string(payload.NewStatus)))

	from := payload.OldStatus
	return a.history.Create(ctx, &domain.ServiceRequestHistory{
		ServiceRequestID: event.ServiceRequestID,
		ChangeType:       domain.ChangeTypeStatus,
		FromStatus:       &from,
		ToStatus:         payload.NewStatus,
		ChangedBy:        event.ActorID,
		CreatedAt:        event.Timestamp,
	})
}

func (a *ActivityService) handleEvidenceAttached(_ context.Context, event events.Event) error {
	a.metrics.RecordMutation(observability.MutationEvidenceAttached)
	a.logger.Info("ServiceRequestEvidenceAttached",
		zap.String("service_request_id", event.ServiceRequestID),
		zap.Any("payload", event.Payload))
	return nil
}
