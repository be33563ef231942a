package service

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/repository"
	apperrors "github.com/spec-kit/field-service/pkg/util/errorutil"
)

type serviceRequestFixture struct {
	svc   *ServiceRequestService
	store *repository.MemoryStore
}

func newServiceRequestFixture(t *testing.T) serviceRequestFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	NewActivityService(dispatcher, store.History(), metrics, nil).RegisterHandlers()

	clock := newStepClock(time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC), time.Second)
	svc := NewServiceRequestService(ServiceRequestDependencies{
		ServiceRequestRepo: store.ServiceRequests(),
		HistoryRepo:        store.History(),
		Dispatcher:         dispatcher,
		Metrics:            metrics,
		Clock:              clock.Now,
	})
	return serviceRequestFixture{svc: svc, store: store}
}

func sampleCreateInput(name string) CreateServiceRequestInput {
	return CreateServiceRequestInput{
		ServiceName:       name,
		CustomerName:      "John Doe",
		Phone:             "555-1234",
		Email:             "john@example.com",
		CompanyName:       "ABC Corp",
		AssignedTo:        "Tech Smith",
		ScheduledDateTime: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func statusPtr(s domain.ServiceRequestStatus) *domain.ServiceRequestStatus { return &s }

func strPtr(s string) *string { return &s }

func TestServiceRequestService_CreateDefaults(t *testing.T) {
	f := newServiceRequestFixture(t)

	req, err := f.svc.Create(context.Background(), "user-a", sampleCreateInput("AC Repair"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if req.Status != domain.StatusPending {
		t.Errorf("Status = %q, want Pending", req.Status)
	}
	if req.OwnerID != "user-a" {
		t.Errorf("OwnerID = %q", req.OwnerID)
	}
	if req.ID == "" || req.CreatedAt.IsZero() || !req.UpdatedAt.Equal(req.CreatedAt) {
		t.Errorf("server fields not set: %+v", req)
	}
}

func TestServiceRequestService_NormalizesEmailAndComments(t *testing.T) {
	ctx := context.Background()
	f := newServiceRequestFixture(t)

	input := sampleCreateInput("AC Repair")
	input.Email = "  John@Example.COM "
	input.Comments = strPtr("  bring ladder  ")
	created, err := f.svc.Create(ctx, "user-a", input)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Email != "john@example.com" {
		t.Errorf("Email = %q, want john@example.com", created.Email)
	}
	if *created.Comments != "bring ladder" {
		t.Errorf("Comments = %q, want trimmed", *created.Comments)
	}

	updated, err := f.svc.Update(ctx, "user-a", created.ID, domain.ServiceRequestPatch{Comments: strPtr("\tdone \n")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if *updated.Comments != "done" {
		t.Errorf("updated Comments = %q, want done", *updated.Comments)
	}
}

func TestServiceRequestService_CreateRejectsUnknownStatus(t *testing.T) {
	f := newServiceRequestFixture(t)

	input := sampleCreateInput("AC Repair")
	input.Status = statusPtr("Bogus")
	_, err := f.svc.Create(context.Background(), "user-a", input)
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("Create() error = %v, want VALIDATION_ERROR", err)
	}
	list, _ := f.svc.List(context.Background(), "user-a")
	if len(list) != 0 {
		t.Fatalf("invalid create was persisted: %+v", list)
	}
}

func TestServiceRequestService_OwnershipIsolation(t *testing.T) {
	ctx := context.Background()
	f := newServiceRequestFixture(t)

	created, err := f.svc.Create(ctx, "user-a", sampleCreateInput("AC Repair"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	listB, err := f.svc.List(ctx, "user-b")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listB) != 0 {
		t.Fatalf("user-b sees %d records", len(listB))
	}

	_, err = f.svc.Update(ctx, "user-b", created.ID, domain.ServiceRequestPatch{Status: statusPtr(domain.StatusCompleted)})
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("Update() by user-b error = %v, want NOT_FOUND", err)
	}
	_, missing := f.svc.Update(ctx, "user-b", "does-not-exist", domain.ServiceRequestPatch{})
	if apperrors.ToDomainError(err).Message != apperrors.ToDomainError(missing).Message {
		t.Fatalf("foreign and missing records are distinguishable: %v vs %v", err, missing)
	}
	if _, err := f.svc.Get(ctx, "user-b", created.ID); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("Get() by user-b error = %v, want NOT_FOUND", err)
	}
	if _, err := f.svc.History(ctx, "user-b", created.ID); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("History() by user-b error = %v, want NOT_FOUND", err)
	}

	stored, _ := f.svc.Get(ctx, "user-a", created.ID)
	if stored.Status != domain.StatusPending {
		t.Fatalf("foreign update leaked through: status %q", stored.Status)
	}
}

func TestServiceRequestService_UpdateAppliesOnlyPresentFields(t *testing.T) {
	ctx := context.Background()
	f := newServiceRequestFixture(t)

	created, _ := f.svc.Create(ctx, "user-a", sampleCreateInput("X"))

	updated, err := f.svc.Update(ctx, "user-a", created.ID, domain.ServiceRequestPatch{
		Status:   statusPtr(domain.StatusCompleted),
		Comments: strPtr("done"),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.ServiceName != "X" || updated.CustomerName != "John Doe" {
		t.Errorf("immutable fields changed: %+v", updated)
	}
	if updated.Status != domain.StatusCompleted || *updated.Comments != "done" {
		t.Errorf("Update() = %+v", updated)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want after %v", updated.UpdatedAt, created.UpdatedAt)
	}
	if updated.Signature != nil {
		t.Errorf("absent field was set: %v", *updated.Signature)
	}
}

func TestServiceRequestService_UpdateRejectsBogusStatus(t *testing.T) {
	ctx := context.Background()
	f := newServiceRequestFixture(t)

	created, _ := f.svc.Create(ctx, "user-a", sampleCreateInput("X"))
	_, err := f.svc.Update(ctx, "user-a", created.ID, domain.ServiceRequestPatch{
		Status:   statusPtr("Bogus"),
		Comments: strPtr("should not land"),
	})
	de := apperrors.ToDomainError(err)
	if de.Code != apperrors.CodeValidation || len(de.Fields) != 1 || de.Fields[0].Field != "status" {
		t.Fatalf("Update() error = %+v", de)
	}

	stored, _ := f.svc.Get(ctx, "user-a", created.ID)
	if stored.Status != domain.StatusPending || stored.Comments != nil {
		t.Fatalf("rejected update was applied: %+v", stored)
	}
}

func TestServiceRequestService_AnyStatusReachable(t *testing.T) {
	ctx := context.Background()
	f := newServiceRequestFixture(t)
	created, _ := f.svc.Create(ctx, "user-a", sampleCreateInput("X"))

	path := []domain.ServiceRequestStatus{
		domain.StatusCompleted, domain.StatusPending, domain.StatusOnHold,
		domain.StatusCancelled, domain.StatusInProgress, domain.StatusCompleted,
	}
	for _, status := range path {
		updated, err := f.svc.Update(ctx, "user-a", created.ID, domain.ServiceRequestPatch{Status: statusPtr(status)})
		if err != nil {
			t.Fatalf("Update(%q) error = %v", status, err)
		}
		if updated.Status != status {
			t.Fatalf("Status = %q, want %q", updated.Status, status)
		}
	}
}

func TestServiceRequestService_ListIsStable(t *testing.T) {
	ctx := context.Background()
	f := newServiceRequestFixture(t)

	for _, name := range []string{"first", "second", "third"} {
		if _, err := f.svc.Create(ctx, "user-a", sampleCreateInput(name)); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	first, _ := f.svc.List(ctx, "user-a")
	second, _ := f.svc.List(ctx, "user-a")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("List() not stable:\n%+v\n%+v", first, second)
	}
	if first[0].ServiceName != "first" || first[2].ServiceName != "third" {
		t.Fatalf("List() not oldest first: %+v", first)
	}
}

func TestServiceRequestService_HistoryRecordsStatusChanges(t *testing.T) {
	ctx := context.Background()
	f := newServiceRequestFixture(t)

	created, _ := f.svc.Create(ctx, "user-a", sampleCreateInput("X"))
	_, _ = f.svc.Update(ctx, "user-a", created.ID, domain.ServiceRequestPatch{Status: statusPtr(domain.StatusInProgress)})
	_, _ = f.svc.Update(ctx, "user-a", created.ID, domain.ServiceRequestPatch{Comments: strPtr("no status change")})
	_, _ = f.svc.Update(ctx, "user-a", created.ID, domain.ServiceRequestPatch{Status: statusPtr(domain.StatusInProgress)})
	_, _ = f.svc.Update(ctx, "user-a", created.ID, domain.ServiceRequestPatch{Status: statusPtr(domain.StatusCompleted)})

	history, err := f.svc.History(ctx, "user-a", created.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("History() len = %d, want 3: %+v", len(history), history)
	}
	if history[0].ChangeType != domain.ChangeTypeCreated || history[0].FromStatus != nil {
		t.Errorf("history[0] = %+v", history[0])
	}
	if *history[1].FromStatus != domain.StatusPending || history[1].ToStatus != domain.StatusInProgress {
		t.Errorf("history[1] = %+v", history[1])
	}
	if *history[2].FromStatus != domain.StatusInProgress || history[2].ToStatus != domain.StatusCompleted {
		t.Errorf("history[2] = %+v", history[2])
	}
	if history[2].ChangedBy != "user-a" {
		t.Errorf("ChangedBy = %q", history[2].ChangedBy)
	}
}

func TestServiceRequestService_CountByStatus(t *testing.T) {
	ctx := context.Background()
	f := newServiceRequestFixture(t)

	a, _ := f.svc.Create(ctx, "user-a", sampleCreateInput("a"))
	_, _ = f.svc.Create(ctx, "user-b", sampleCreateInput("b"))
	_, _ = f.svc.Update(ctx, "user-a", a.ID, domain.ServiceRequestPatch{Status: statusPtr(domain.StatusOnHold)})

	counts, err := f.svc.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	if counts[domain.StatusPending] != 1 || counts[domain.StatusOnHold] != 1 {
		t.Fatalf("CountByStatus() = %v", counts)
	}
}

// failingRequestRepo serves reads from the embedded repository and fails the
// operations whose error is set.
type failingRequestRepo struct {
	repository.ServiceRequestRepository
	createErr error
	listErr   error
	updateErr error
}

func (r failingRequestRepo) Create(ctx context.Context, req *domain.ServiceRequest) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.ServiceRequestRepository.Create(ctx, req)
}

func (r failingRequestRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.ServiceRequest, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.ServiceRequestRepository.ListByOwner(ctx, ownerID)
}

func (r failingRequestRepo) Update(ctx context.Context, id, ownerID string, patch domain.ServiceRequestPatch, updatedAt time.Time) (*domain.ServiceRequest, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	return r.ServiceRequestRepository.Update(ctx, id, ownerID, patch, updatedAt)
}

func TestServiceRequestService_StoreFailuresAreInternal(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("connection reset by peer")
	store := repository.NewMemoryStore()
	seeded := &domain.ServiceRequest{OwnerID: "user-a", ServiceName: "AC Repair", Status: domain.StatusPending}
	if err := store.ServiceRequests().Create(ctx, seeded); err != nil {
		t.Fatalf("seed Create() error = %v", err)
	}

	svc := NewServiceRequestService(ServiceRequestDependencies{
		ServiceRequestRepo: failingRequestRepo{
			ServiceRequestRepository: store.ServiceRequests(),
			createErr:                storeErr,
			listErr:                  storeErr,
			updateErr:                storeErr,
		},
		HistoryRepo: store.History(),
	})

	tests := []struct {
		name string
		call func() error
	}{
		{"create", func() error {
			_, err := svc.Create(ctx, "user-a", sampleCreateInput("X"))
			return err
		}},
		{"list", func() error {
			_, err := svc.List(ctx, "user-a")
			return err
		}},
		{"update", func() error {
			_, err := svc.Update(ctx, "user-a", seeded.ID, domain.ServiceRequestPatch{Comments: strPtr("x")})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !apperrors.IsCode(err, apperrors.CodeInternal) {
				t.Fatalf("error = %v, want INTERNAL_ERROR", err)
			}
			de := apperrors.ToDomainError(err)
			if de.HTTPStatus != http.StatusInternalServerError || de.Message != "Internal server error" {
				t.Errorf("DomainError = %+v", de)
			}
			if !errors.Is(err, storeErr) {
				t.Errorf("store error not wrapped: %v", err)
			}
		})
	}
}
