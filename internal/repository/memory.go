package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
)

// MemoryStore keeps users, service requests and history in process memory.
// It backs STORE_DRIVER=memory and the tests; contents are lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	emails    map[string]string
	requests  map[string]domain.ServiceRequest
	ordering  []string
	history   map[string][]domain.ServiceRequestHistory
	timestamp func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		emails:    make(map[string]string),
		requests:  make(map[string]domain.ServiceRequest),
		history:   make(map[string][]domain.ServiceRequestHistory),
		timestamp: time.Now,
	}
}

// Users exposes the store as a UserRepository.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// ServiceRequests exposes the store as a ServiceRequestRepository.
func (s *MemoryStore) ServiceRequests() ServiceRequestRepository { return memoryServiceRequests{s} }

// History exposes the store as a HistoryRepository.
func (s *MemoryStore) History() HistoryRepository { return memoryHistory{s} }

func (s *MemoryStore) now() time.Time {
	return s.timestamp().UTC().Truncate(time.Microsecond)
}

type memoryUsers struct{ s *MemoryStore }

func (m memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, exists := m.s.emails[user.Email]; exists {
		return ErrDuplicateEmail
	}
	user.ID = uuid.NewString()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = m.s.now()
	}
	user.UpdatedAt = user.CreatedAt
	m.s.users[user.ID] = *user
	m.s.emails[user.Email] = user.ID
	return nil
}

func (m memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	id, ok := m.s.emails[email]
	if !ok {
		return nil, ErrNotFound
	}
	user := m.s.users[id]
	return &user, nil
}

type memoryServiceRequests struct{ s *MemoryStore }

func (m memoryServiceRequests) Create(_ context.Context, req *domain.ServiceRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	req.ID = uuid.NewString()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = m.s.now()
	}
	req.UpdatedAt = req.CreatedAt
	m.s.requests[req.ID] = cloneServiceRequest(*req)
	m.s.ordering = append(m.s.ordering, req.ID)
	return nil
}

func (m memoryServiceRequests) GetByID(_ context.Context, id string) (*domain.ServiceRequest, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	req, ok := m.s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneServiceRequest(req)
	return &out, nil
}

func (m memoryServiceRequests) ListByOwner(_ context.Context, ownerID string) ([]domain.ServiceRequest, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	result := []domain.ServiceRequest{}
	for _, id := range m.s.ordering {
		req := m.s.requests[id]
		if req.OwnerID == ownerID {
			result = append(result, cloneServiceRequest(req))
		}
	}
	return result, nil
}

func (m memoryServiceRequests) Update(_ context.Context, id, ownerID string, patch domain.ServiceRequestPatch, updatedAt time.Time) (*domain.ServiceRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	req, ok := m.s.requests[id]
	if !ok || req.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	patch.Apply(&req)
	if updatedAt.After(req.UpdatedAt) {
		req.UpdatedAt = updatedAt
	}
	m.s.requests[id] = cloneServiceRequest(req)
	out := cloneServiceRequest(req)
	return &out, nil
}

func (m memoryServiceRequests) CountByStatus(_ context.Context) (map[domain.ServiceRequestStatus]int64, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	counts := make(map[domain.ServiceRequestStatus]int64, len(domain.Statuses))
	for _, req := range m.s.requests {
		counts[req.Status]++
	}
	return counts, nil
}

type memoryHistory struct{ s *MemoryStore }

func (m memoryHistory) Create(_ context.Context, entry *domain.ServiceRequestHistory) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.s.now()
	}
	m.s.history[entry.ServiceRequestID] = append(m.s.history[entry.ServiceRequestID], *entry)
	return nil
}

func (m memoryHistory) ListByServiceRequest(_ context.Context, serviceRequestID string) ([]domain.ServiceRequestHistory, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	entries := m.s.history[serviceRequestID]
	result := make([]domain.ServiceRequestHistory, len(entries))
	copy(result, entries)
	return result, nil
}

// cloneServiceRequest copies the optional string fields so callers never
// share pointers with the stored value.
func cloneServiceRequest(req domain.ServiceRequest) domain.ServiceRequest {
	req.Comments = cloneString(req.Comments)
	req.Signature = cloneString(req.Signature)
	req.AudioFeedback = cloneString(req.AudioFeedback)
	req.VideoFeedback = cloneString(req.VideoFeedback)
	return req
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
